package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/lampwick/pkg/classify"
	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/go-go-golems/lampwick/pkg/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlanner(t *testing.T) *Planner {
	t.Helper()
	tools := []generation.ToolDeclaration{
		{Name: "getWeatherForecast"},
		{Name: "computerControl"},
	}
	return New(i18n.NewCatalog("english"), TierModels{
		Capable: "polaris-2",
		Fast:    "polaris-2-swift",
	}, tools)
}

func baseContext() Context {
	return Context{
		UserName: "Ada",
		Now:      time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}
}

func TestPlanMathOverridesEverything(t *testing.T) {
	t.Parallel()
	p := testPlanner(t)

	v := classify.DefaultVerdict()
	v.Domain = classify.DomainMath
	v.Tool = classify.ToolDeepSearch

	plan := p.Plan(v, conversation.ModelFast, baseContext())

	assert.Equal(t, "polaris-2", plan.Model)
	assert.Equal(t, 0.0, plan.Temperature)
	assert.False(t, plan.WebSearch)
	assert.False(t, plan.DisableThinking)
	assert.Equal(t, p.translator.T("systemInstructionMath"), plan.SystemInstruction)
	assert.NotContains(t, plan.SystemInstruction, "Ada")
}

func TestPlanCapableTier(t *testing.T) {
	t.Parallel()
	p := testPlanner(t)

	plan := p.Plan(classify.DefaultVerdict(), conversation.ModelCapable, baseContext())

	assert.Equal(t, "polaris-2", plan.Model)
	assert.Equal(t, 0.0, plan.Temperature)
	assert.False(t, plan.DisableThinking)
	assert.Contains(t, plan.SystemInstruction, p.translator.T("systemInstructionCapableTier"))
	assert.Contains(t, plan.SystemInstruction, "Ada")
}

func TestPlanFastTierDisablesThinking(t *testing.T) {
	t.Parallel()
	p := testPlanner(t)

	plan := p.Plan(classify.DefaultVerdict(), conversation.ModelFast, baseContext())

	assert.Equal(t, "polaris-2-swift", plan.Model)
	assert.Equal(t, 0.8, plan.Temperature)
	assert.True(t, plan.DisableThinking)

	cfg := plan.Config()
	require.NotNil(t, cfg.ThinkingBudget)
	assert.Equal(t, 0, *cfg.ThinkingBudget)
}

func TestPlanFastTierKeepsThinkingForCreativeWork(t *testing.T) {
	t.Parallel()
	p := testPlanner(t)

	for _, tool := range []classify.Tool{
		classify.ToolCreativeSuite,
		classify.ToolCodeInterpreter,
		classify.ToolMultiAgentCollaboration,
	} {
		v := classify.DefaultVerdict()
		v.Tool = tool
		plan := p.Plan(v, conversation.ModelFast, baseContext())
		assert.False(t, plan.DisableThinking, "tool %s", tool)
		assert.Nil(t, plan.Config().ThinkingBudget, "tool %s", tool)
	}
}

func TestPlanDeepSearch(t *testing.T) {
	t.Parallel()
	p := testPlanner(t)

	v := classify.DefaultVerdict()
	v.Tool = classify.ToolDeepSearch
	plan := p.Plan(v, conversation.ModelCapable, baseContext())

	assert.True(t, plan.WebSearch)
	assert.Equal(t, 0.1, plan.Temperature)
	assert.Contains(t, plan.SystemInstruction, p.translator.T("systemInstructionDeepSearch"))
}

func TestPlanConditionalFragments(t *testing.T) {
	t.Parallel()
	p := testPlanner(t)

	v := classify.DefaultVerdict()
	v.Tool = classify.ToolCreativeSuite
	plan := p.Plan(v, conversation.ModelCapable, baseContext())

	for _, key := range []string{
		"systemInstructionCreativeWriting",
		"systemInstructionPresentationGeneration",
		"systemInstructionImageGeneration",
	} {
		assert.Contains(t, plan.SystemInstruction, p.translator.T(key), key)
	}
	assert.NotContains(t, plan.SystemInstruction, p.translator.T("systemInstructionCodeGeneration"))
	assert.NotContains(t, plan.SystemInstruction, p.translator.T("systemInstructionVideoGeneration"))
}

func TestPlanMultiAgentActivatesAllSpecialists(t *testing.T) {
	t.Parallel()
	p := testPlanner(t)

	v := classify.DefaultVerdict()
	v.Tool = classify.ToolMultiAgentCollaboration
	plan := p.Plan(v, conversation.ModelCapable, baseContext())

	for _, key := range []string{
		"systemInstructionCreativeWriting",
		"systemInstructionCodeGeneration",
		"systemInstructionSpreadsheetGeneration",
		"systemInstructionPresentationGeneration",
		"systemInstructionDeepSearch",
	} {
		assert.Contains(t, plan.SystemInstruction, p.translator.T(key), key)
	}
	assert.True(t, plan.WebSearch)
}

func TestPlanVideoDomainFragment(t *testing.T) {
	t.Parallel()
	p := testPlanner(t)

	v := classify.DefaultVerdict()
	v.Domain = classify.DomainVideo
	plan := p.Plan(v, conversation.ModelCapable, baseContext())

	assert.Contains(t, plan.SystemInstruction, p.translator.T("systemInstructionVideoGeneration"))
}

func TestPlanMemoryFactsInBaseInstruction(t *testing.T) {
	t.Parallel()
	p := testPlanner(t)

	info := baseContext()
	info.MemoryFacts = []string{"Prefers metric units", "Lives in Lisbon"}
	plan := p.Plan(classify.DefaultVerdict(), conversation.ModelCapable, info)

	assert.Contains(t, plan.SystemInstruction, "Prefers metric units")
	assert.Contains(t, plan.SystemInstruction, "Lives in Lisbon")
	idx := strings.Index(plan.SystemInstruction, "Lives in Lisbon")
	base := strings.Index(plan.SystemInstruction, p.translator.T("systemInstructionBase", "english"))
	require.Greater(t, base, idx, "memory block precedes the base persona instruction")
}

func TestPlanCopiesBaseTools(t *testing.T) {
	t.Parallel()
	p := testPlanner(t)

	plan := p.Plan(classify.DefaultVerdict(), conversation.ModelCapable, baseContext())
	require.Len(t, plan.Tools, 2)
	plan.Tools[0].Name = "mutated"

	again := p.Plan(classify.DefaultVerdict(), conversation.ModelCapable, baseContext())
	assert.Equal(t, "getWeatherForecast", again.Tools[0].Name)
}
