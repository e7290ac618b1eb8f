package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/lampwick/pkg/classify"
	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/go-go-golems/lampwick/pkg/i18n"
)

// Plan is the concrete generation configuration for one turn.
type Plan struct {
	Model             string
	Temperature       float64
	SystemInstruction string
	Tools             []generation.ToolDeclaration
	WebSearch         bool
	DisableThinking   bool
}

// Config translates into the generation request config.
func (p Plan) Config() generation.Config {
	cfg := generation.Config{
		Model:             p.Model,
		Temperature:       p.Temperature,
		SystemInstruction: p.SystemInstruction,
		Tools:             p.Tools,
		WebSearch:         p.WebSearch,
	}
	if p.DisableThinking {
		zero := 0
		cfg.ThinkingBudget = &zero
	}
	return cfg
}

// TierModels maps the two user-facing model tiers onto backend identifiers.
type TierModels struct {
	Capable string
	Fast    string
}

// Context is the ambient information folded into the base persona
// instruction.
type Context struct {
	UserName      string
	Now           time.Time
	MemoryFacts   []string
	RecentContext string
}

// Planner builds a Plan from a classifier verdict. Instruction composition
// is an ordered table of (predicate, fragment-key) rules so each capability
// combines orthogonally and stays testable in isolation.
type Planner struct {
	translator i18n.Translator
	tiers      TierModels
	baseTools  []generation.ToolDeclaration
	rules      []rule
}

type rule struct {
	name string
	when func(v classify.Verdict) bool
	key  string
}

func New(translator i18n.Translator, tiers TierModels, baseTools []generation.ToolDeclaration) *Planner {
	return &Planner{
		translator: translator,
		tiers:      tiers,
		baseTools:  baseTools,
		rules:      conditionalRules(),
	}
}

func conditionalRules() []rule {
	creative := func(v classify.Verdict) bool {
		return v.Tool == classify.ToolCreativeSuite || v.Tool == classify.ToolMultiAgentCollaboration
	}
	return []rule{
		{
			name: "creative-writing",
			when: creative,
			key:  "systemInstructionCreativeWriting",
		},
		{
			name: "code-generation",
			when: func(v classify.Verdict) bool {
				return v.Tool == classify.ToolCodeInterpreter || v.Tool == classify.ToolMultiAgentCollaboration
			},
			key: "systemInstructionCodeGeneration",
		},
		{
			name: "spreadsheet",
			when: func(v classify.Verdict) bool {
				return v.Tool == classify.ToolSpreadsheetSpecialist || v.Tool == classify.ToolMultiAgentCollaboration
			},
			key: "systemInstructionSpreadsheetGeneration",
		},
		{
			name: "presentation",
			when: creative,
			key:  "systemInstructionPresentationGeneration",
		},
		{
			// image generation rides along whenever the creative suite or
			// presentation work is active
			name: "image-generation",
			when: creative,
			key:  "systemInstructionImageGeneration",
		},
		{
			name: "video-generation",
			when: func(v classify.Verdict) bool { return v.Domain == classify.DomainVideo },
			key:  "systemInstructionVideoGeneration",
		},
		{
			name: "deep-search",
			when: func(v classify.Verdict) bool {
				return v.Tool == classify.ToolDeepSearch || v.Tool == classify.ToolMultiAgentCollaboration
			},
			key: "systemInstructionDeepSearch",
		},
	}
}

func isDeepSearch(v classify.Verdict) bool {
	return v.Tool == classify.ToolDeepSearch || v.Tool == classify.ToolMultiAgentCollaboration
}

func keepsThinking(v classify.Verdict) bool {
	switch v.Tool {
	case classify.ToolCreativeSuite, classify.ToolCodeInterpreter, classify.ToolMultiAgentCollaboration:
		return true
	default:
		return false
	}
}

// Plan builds the generation configuration for the given verdict and
// user-selected model label. The math domain override takes precedence over
// every other instruction and model rule.
func (p *Planner) Plan(v classify.Verdict, modelLabel string, info Context) Plan {
	plan := Plan{
		Tools:       append([]generation.ToolDeclaration{}, p.baseTools...),
		Temperature: 0.5,
	}

	if v.Domain == classify.DomainMath {
		plan.Model = p.tiers.Capable
		plan.Temperature = 0
		plan.SystemInstruction = p.translator.T("systemInstructionMath")
		return plan
	}

	var sb strings.Builder
	sb.WriteString(p.baseInstruction(info))

	tier := conversation.NormalizeModel(modelLabel)
	switch tier {
	case conversation.ModelCapable:
		plan.Temperature = 0
		sb.WriteString(p.translator.T("systemInstructionCapableTier"))
	case conversation.ModelFast:
		plan.Temperature = 0.8
		if !keepsThinking(v) {
			plan.DisableThinking = true
		}
	}

	for _, r := range p.rules {
		if r.when(v) {
			sb.WriteString(p.translator.T(r.key))
		}
	}

	if isDeepSearch(v) {
		plan.WebSearch = true
		plan.Temperature = 0.1
	}

	plan.SystemInstruction = sb.String()
	plan.Model = p.modelFor(tier)
	return plan
}

func (p *Planner) modelFor(tier string) string {
	if tier == conversation.ModelFast {
		return p.tiers.Fast
	}
	return p.tiers.Capable
}

func (p *Planner) baseInstruction(info Context) string {
	var sb strings.Builder
	if info.UserName != "" {
		sb.WriteString(p.translator.T("userName", info.UserName))
		sb.WriteString("\n")
	}
	now := info.Now
	if now.IsZero() {
		now = time.Now()
	}
	sb.WriteString(p.translator.T("currentDateTime", now.Format("Monday, January 2, 2006 15:04:05 MST")))
	sb.WriteString(info.RecentContext)
	if len(info.MemoryFacts) > 0 {
		sb.WriteString(fmt.Sprintf("\n\n### %s\n%s",
			p.translator.T("memoryInfoTitle"),
			strings.Join(info.MemoryFacts, "\n")))
	}
	sb.WriteString("\n\n")
	sb.WriteString(p.translator.T("systemInstructionBase", p.translator.Locale()))
	sb.WriteString(p.translator.T("systemInstructionMemory"))
	sb.WriteString(p.translator.T("systemInstructionWeather"))
	sb.WriteString(p.translator.T("systemInstructionPdfGeneration"))
	sb.WriteString(p.translator.T("systemInstructionWordGeneration"))
	sb.WriteString(p.translator.T("systemInstructionComputerControl"))
	sb.WriteString(p.translator.T("systemInstructionOpenWebsite"))
	sb.WriteString(p.translator.T("systemInstructionYouTubeSearch"))
	return sb.String()
}
