package classify

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/go-go-golems/lampwick/pkg/i18n"
)

type Domain string

const (
	DomainGeneral      Domain = "general"
	DomainCreative     Domain = "creative"
	DomainTechnical    Domain = "technical"
	DomainResearch     Domain = "research"
	DomainDataAnalysis Domain = "data_analysis"
	DomainSpreadsheet  Domain = "spreadsheet"
	DomainVideo        Domain = "video"
	DomainMath         Domain = "math"
)

type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

type Intent string

const (
	IntentConversation         Intent = "conversation"
	IntentInformationRetrieval Intent = "information_retrieval"
	IntentContentCreation      Intent = "content_creation"
	IntentProblemSolving       Intent = "problem_solving"
	IntentDataAnalysis         Intent = "data_analysis"
	IntentCodeDevelopment      Intent = "code_development"
	IntentCreativeIdeation     Intent = "creative_ideation"
)

type Tool string

const (
	ToolStandard               Tool = "standard"
	ToolDeepSearch             Tool = "deep_search"
	ToolCodeInterpreter        Tool = "code_interpreter"
	ToolCreativeSuite          Tool = "creative_suite"
	ToolSpreadsheetSpecialist  Tool = "spreadsheet_specialist"
	ToolMultiAgentCollaboration Tool = "multi_agent_collaboration"
)

// Verdict is the classifier's structured output driving strategy selection.
type Verdict struct {
	Domain     Domain     `json:"domain"`
	Complexity Complexity `json:"complexity"`
	Intent     Intent     `json:"intent"`
	Tool       Tool       `json:"tool"`
}

// DefaultVerdict treats the request as ordinary chat. Every failure path
// degrades to this.
func DefaultVerdict() Verdict {
	return Verdict{
		Domain:     DomainGeneral,
		Complexity: ComplexitySimple,
		Intent:     IntentConversation,
		Tool:       ToolStandard,
	}
}

var verdictSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"domain":     map[string]any{"type": "string"},
		"complexity": map[string]any{"type": "string"},
		"intent":     map[string]any{"type": "string"},
		"tool":       map[string]any{"type": "string"},
	},
	"required": []any{"domain", "complexity", "intent", "tool"},
}

// The model sometimes wraps the JSON in markdown fences despite
// instructions; a single extraction strips them before parsing.
var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Classifier issues one low-temperature schema-constrained call and maps
// the result onto the verdict enums.
type Classifier struct {
	svc        generation.Service
	translator i18n.Translator
	model      string
}

func New(svc generation.Service, translator i18n.Translator, model string) *Classifier {
	return &Classifier{svc: svc, translator: translator, model: model}
}

// Classify never returns an error: any failure, including malformed output,
// falls back silently to the default verdict so the turn proceeds as
// ordinary chat.
func (c *Classifier) Classify(ctx context.Context, contents []generation.Content) Verdict {
	raw, err := c.svc.GenerateStructured(ctx, contents, verdictSchema, generation.Config{
		Model:             c.model,
		Temperature:       0,
		SystemInstruction: c.translator.T("systemInstructionAnalyzeRequest"),
	})
	if err != nil {
		log.Debug().Err(err).Msg("classification failed, using default verdict")
		return DefaultVerdict()
	}

	text := strings.TrimSpace(string(raw))
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var parsed struct {
		Domain     string `json:"domain"`
		Complexity string `json:"complexity"`
		Intent     string `json:"intent"`
		Tool       string `json:"tool"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		log.Debug().Err(err).Str("text", text).Msg("verdict parse failed, using default")
		return DefaultVerdict()
	}

	v := DefaultVerdict()
	if d := Domain(parsed.Domain); knownDomains[d] {
		v.Domain = d
	}
	if cx := Complexity(parsed.Complexity); knownComplexities[cx] {
		v.Complexity = cx
	}
	if in := Intent(parsed.Intent); knownIntents[in] {
		v.Intent = in
	}
	if tl := Tool(parsed.Tool); knownTools[tl] {
		v.Tool = tl
	}
	return v
}

var knownDomains = map[Domain]bool{
	DomainGeneral: true, DomainCreative: true, DomainTechnical: true,
	DomainResearch: true, DomainDataAnalysis: true, DomainSpreadsheet: true,
	DomainVideo: true, DomainMath: true,
}

var knownComplexities = map[Complexity]bool{
	ComplexitySimple: true, ComplexityModerate: true, ComplexityComplex: true,
}

var knownIntents = map[Intent]bool{
	IntentConversation: true, IntentInformationRetrieval: true,
	IntentContentCreation: true, IntentProblemSolving: true,
	IntentDataAnalysis: true, IntentCodeDevelopment: true,
	IntentCreativeIdeation: true,
}

var knownTools = map[Tool]bool{
	ToolStandard: true, ToolDeepSearch: true, ToolCodeInterpreter: true,
	ToolCreativeSuite: true, ToolSpreadsheetSpecialist: true,
	ToolMultiAgentCollaboration: true,
}
