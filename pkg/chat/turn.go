package chat

import (
	"context"
	"regexp"
	"time"

	"github.com/go-go-golems/lampwick/pkg/actions"
	"github.com/go-go-golems/lampwick/pkg/classify"
	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/go-go-golems/lampwick/pkg/events"
	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/go-go-golems/lampwick/pkg/i18n"
	"github.com/go-go-golems/lampwick/pkg/strategy"
	"github.com/go-go-golems/lampwick/pkg/tools"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// contentsFor serializes message history into backend content turns. System
// messages are skipped, inline binaries ride along with the active text
// version.
func contentsFor(messages []*conversation.Message) []generation.Content {
	contents := make([]generation.Content, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == conversation.RoleSystem {
			continue
		}
		var parts []generation.Part
		for _, img := range msg.ImagesData {
			parts = append(parts, generation.Part{
				InlineData: &generation.Blob{MIMEType: img.MIMEType, Data: img.Data},
			})
		}
		if msg.AudioData != nil {
			parts = append(parts, generation.Part{
				InlineData: &generation.Blob{MIMEType: msg.AudioData.MIMEType, Data: msg.AudioData.Data},
			})
		}
		if text := msg.ActiveContent(); text != "" {
			parts = append(parts, generation.Part{Text: text})
		}
		if len(parts) > 0 {
			contents = append(contents, generation.Content{Role: string(msg.Role), Parts: parts})
		}
	}
	return contents
}

// turn bundles everything one in-flight turn needs so the helpers below do
// not have to thread five identifiers around.
type turn struct {
	c     *Controller
	ctx   context.Context
	conv  string
	msgID string
	meta  events.EventMetadata
	start time.Time
}

func (t *turn) pause(base, spread int) error {
	d := time.Duration(base) * time.Millisecond
	if spread > 0 {
		d += time.Duration(t.c.jitter(spread)) * time.Millisecond
	}
	return t.c.sleep(t.ctx, d)
}

func (t *turn) updateMessage(transform func(*conversation.Message)) {
	if err := t.c.store.UpdateMessage(t.conv, t.msgID, transform); err != nil {
		log.Warn().Err(err).Str("conversation_id", t.conv).Msg("turn update dropped")
	}
}

// setSteps replaces the narration step list and publishes the update.
func (t *turn) setSteps(transform func(steps []*conversation.AnalysisStep) []*conversation.AnalysisStep) {
	var next []*conversation.AnalysisStep
	t.updateMessage(func(m *conversation.Message) {
		m.AnalysisState = transform(m.AnalysisState)
		next = m.AnalysisState
	})
	t.c.publisher.PublishBlind(events.NewStepUpdateEvent(t.meta, next))
}

func completeSteps(steps []*conversation.AnalysisStep) {
	for _, s := range steps {
		s.Status = conversation.StepCompleted
	}
}

func step(id string, typ conversation.AnalysisStepType, title, icon, details string) *conversation.AnalysisStep {
	return &conversation.AnalysisStep{
		ID:      id,
		Type:    typ,
		Title:   title,
		Status:  conversation.StepActive,
		Icon:    icon,
		Details: details,
	}
}

// runTurn drives one full turn against the conversation's current history.
// Every failure path ends with the placeholder either finalized, replaced
// by an error message, or swapped for a terminal "stopped" system message;
// nothing leaves the message in-flight.
func (c *Controller) runTurn(ctx context.Context, convID, modelLabel string) error {
	turnCtx, cancel, err := c.beginTurn(ctx, convID)
	if err != nil {
		return err
	}
	defer cancel()
	defer c.endTurn(convID)

	conv, err := c.store.Get(convID)
	if err != nil {
		return err
	}
	history := conv.Messages

	placeholder := conversation.NewPlaceholder()
	if err := c.store.Append(convID, placeholder); err != nil {
		return err
	}

	t := &turn{
		c:     c,
		ctx:   turnCtx,
		conv:  convID,
		msgID: placeholder.ID,
		meta: events.EventMetadata{
			TurnID:         uuid.NewString(),
			ConversationID: convID,
			MessageID:      placeholder.ID,
		},
		start: c.now(),
	}
	c.publisher.PublishBlind(events.NewTurnStartedEvent(t.meta))

	contents := contentsFor(history)
	verdict, err := t.narrate(contents)
	if err != nil {
		t.stopped()
		return nil
	}

	t.respond(contents, verdict, modelLabel)
	return nil
}

// narrate runs the classifier and paces the analysis-step visualization.
// The only error it returns is cancellation during a pause.
func (t *turn) narrate(contents []generation.Content) (classify.Verdict, error) {
	tr := t.c.translator

	t.setSteps(func([]*conversation.AnalysisStep) []*conversation.AnalysisStep {
		return []*conversation.AnalysisStep{
			step("c0", conversation.StepCore, tr.T("coreStatusIngesting"), "brain-circuit", ""),
		}
	})
	if err := t.pause(400, 200); err != nil {
		return classify.Verdict{}, err
	}

	verdict := t.c.classifier.Classify(t.ctx, contents)

	t.setSteps(func(steps []*conversation.AnalysisStep) []*conversation.AnalysisStep {
		completeSteps(steps)
		return append(steps, step("c1", conversation.StepCore, tr.T("coreStatusDeconstructing"), "zap",
			tr.T("intent_label")+": "+string(verdict.Intent)))
	})
	if err := t.pause(500, 200); err != nil {
		return verdict, err
	}
	t.setSteps(func(steps []*conversation.AnalysisStep) []*conversation.AnalysisStep {
		for _, s := range steps {
			if s.ID == "c1" {
				s.Details += ", " + tr.T("domain_label") + ": " + string(verdict.Domain)
			}
		}
		return steps
	})
	if err := t.pause(500, 200); err != nil {
		return verdict, err
	}
	t.setSteps(func(steps []*conversation.AnalysisStep) []*conversation.AnalysisStep {
		for _, s := range steps {
			if s.ID == "c1" {
				s.Details += ", " + tr.T("complexity_label") + ": " + string(verdict.Complexity)
			}
		}
		return steps
	})
	if err := t.pause(400, 200); err != nil {
		return verdict, err
	}

	t.setSteps(func(steps []*conversation.AnalysisStep) []*conversation.AnalysisStep {
		completeSteps(steps)
		return append(steps, step("c2", conversation.StepCore, tr.T("coreStatusStrategizing"), "wand-sparkles",
			tr.T("strategyLabel")+": "+string(verdict.Tool)))
	})
	if err := t.pause(600, 200); err != nil {
		return verdict, err
	}

	if verdict.Tool == classify.ToolMultiAgentCollaboration && verdict.Complexity == classify.ComplexityComplex {
		if err := t.narrateAgents(verdict); err != nil {
			return verdict, err
		}
	}

	t.setSteps(func(steps []*conversation.AnalysisStep) []*conversation.AnalysisStep {
		kept := steps[:0]
		for _, s := range steps {
			if s.ID != "c3" {
				kept = append(kept, s)
			}
		}
		completeSteps(kept)
		return append(kept, step("c4", conversation.StepCore, tr.T("coreStatusSynthesizing"), "folders", ""))
	})
	if err := t.pause(800, 200); err != nil {
		return verdict, err
	}

	t.setSteps(func(steps []*conversation.AnalysisStep) []*conversation.AnalysisStep {
		completeSteps(steps)
		return append(steps, step("c5", conversation.StepCore, tr.T("coreStatusFinalizing"), "zap", ""))
	})
	return verdict, nil
}

// agentPool picks the simulated specialist agents by rule matching on the
// verdict. Creative suite doubles as the fallback so the pool is never
// empty.
func agentPool(v classify.Verdict, tr i18n.Translator) []*conversation.AnalysisStep {
	var pool []*conversation.AnalysisStep
	pending := func(id, titleKey, icon string) *conversation.AnalysisStep {
		return &conversation.AnalysisStep{
			ID: id, Type: conversation.StepAgent, Title: tr.T(titleKey),
			Icon: icon, Status: conversation.StepPending, Details: tr.T("agentTaskPending"),
		}
	}
	if v.Intent == classify.IntentInformationRetrieval || v.Intent == classify.IntentDataAnalysis ||
		v.Domain == classify.DomainResearch {
		pool = append(pool, pending("a1", "agentDeepSearch", "search"))
	}
	if v.Intent == classify.IntentCodeDevelopment || v.Domain == classify.DomainTechnical {
		pool = append(pool, pending("a2", "agentCodeInterpreter", "code"))
	}
	if v.Domain == classify.DomainSpreadsheet {
		pool = append(pool, pending("a4", "agentSpreadsheetSpecialist", "sheet"))
	}
	if v.Intent == classify.IntentCreativeIdeation || v.Domain == classify.DomainCreative || len(pool) == 0 {
		pool = append(pool, pending("a3", "agentCreativeSuite", "wand-sparkles"))
	}
	return pool
}

var agentTaskDetails = map[string]string{
	"a1": "agentTaskSearching",
	"a2": "agentTaskCoding",
	"a3": "agentTaskCreativeWriting",
	"a4": "agentTaskSpreadsheet",
}

func (t *turn) narrateAgents(v classify.Verdict) error {
	tr := t.c.translator
	pool := agentPool(v, tr)

	t.setSteps(func(steps []*conversation.AnalysisStep) []*conversation.AnalysisStep {
		completeSteps(steps)
		steps = append(steps, step("c3", conversation.StepCore, tr.T("coreStatusDispatching"), "zap", ""))
		return append(steps, pool...)
	})
	if err := t.pause(500, 200); err != nil {
		return err
	}

	setAgent := func(id string, transform func(*conversation.AnalysisStep)) {
		t.setSteps(func(steps []*conversation.AnalysisStep) []*conversation.AnalysisStep {
			for _, s := range steps {
				if s.ID == id {
					transform(s)
				}
			}
			return steps
		})
	}

	for _, agent := range pool {
		if err := t.pause(400, 200); err != nil {
			return err
		}
		setAgent(agent.ID, func(s *conversation.AnalysisStep) {
			s.Status = conversation.StepActive
			s.Details = tr.T("agentTaskInitializing")
		})
	}

	for _, agent := range pool {
		if err := t.pause(800, 500); err != nil {
			return err
		}
		detail := tr.T(agentTaskDetails[agent.ID])
		setAgent(agent.ID, func(s *conversation.AnalysisStep) { s.Details = detail })
		if err := t.pause(800, 500); err != nil {
			return err
		}
		setAgent(agent.ID, func(s *conversation.AnalysisStep) {
			s.Status = conversation.StepCompleted
			s.Details = detail
		})
	}
	return t.pause(400, 0)
}

// respond runs the planner → generation → dispatch → interpretation chain
// and finalizes the placeholder. All failures are folded into the message.
func (t *turn) respond(contents []generation.Content, verdict classify.Verdict, modelLabel string) {
	c := t.c
	plan := c.planner.Plan(verdict, modelLabel, c.planContext())
	cfg := plan.Config()

	log.Debug().Str("model", plan.Model).Str("tool", string(verdict.Tool)).
		Str("domain", string(verdict.Domain)).Msg("running generation")

	resp, err := c.svc.Generate(t.ctx, contents, cfg)
	if err != nil {
		t.fail(err)
		return
	}
	if t.ctx.Err() != nil {
		t.stopped()
		return
	}

	resp, outcome, err := c.dispatcher.Dispatch(t.ctx, contents, resp, cfg, t.onToolProgress)
	if err != nil {
		t.fail(err)
		return
	}

	if action, written, ok := actions.Parse(resp.Text); ok {
		t.runAction(action, written)
		return
	}

	t.finalize(resp, outcome)
}

func (t *turn) onToolProgress(p tools.Progress) {
	t.updateMessage(func(m *conversation.Message) {
		m.ContentHistory = []string{p.Text}
		m.ActiveVersionIndex = 0
		m.IsTyping = p.Typing
		if len(p.Videos) > 0 {
			m.VideoSearchResults = p.Videos
		}
	})
}

func (t *turn) runAction(action *actions.Action, written string) {
	c := t.c
	confirmation := action.Confirmation(c.translator, written)
	progress := action.Progress(c.translator)

	t.updateMessage(func(m *conversation.Message) {
		m.ContentHistory = []string{confirmation}
		m.ActiveVersionIndex = 0
		m.IsTyping = false
		m.AnalysisState = nil
		m.Pending = progress
	})
	c.publisher.PublishBlind(events.NewArtifactProgressEvent(t.meta, progress))

	if err := c.runner.Run(t.ctx, t.conv, t.msgID, action); err != nil {
		t.stopped()
		return
	}
	c.publisher.PublishBlind(events.NewTurnFinishedEvent(t.meta, c.now().Sub(t.start)))
}

func (t *turn) finalize(resp *generation.Response, outcome tools.Outcome) {
	c := t.c
	post := actions.PostProcess(resp.Text)

	if added := c.memory.AddFacts(post.Facts); added > 0 {
		c.publisher.PublishBlind(events.NewToastEvent(t.meta, "info",
			c.translator.T("memory"), c.translator.T("memoryAutoSaveSuccess")))
	}

	text := post.Text
	if text == "" && post.CodeBlock == nil {
		text = c.translator.T("emptyResponsePlaceholder")
	}

	grounding := dedupeGrounding(resp.Grounding)
	generationTime := c.now().Sub(t.start)

	t.updateMessage(func(m *conversation.Message) {
		m.ContentHistory = []string{text}
		m.ActiveVersionIndex = 0
		m.IsTyping = false
		m.AnalysisState = nil
		m.Pending = nil
		m.CodeBlock = post.CodeBlock
		m.Grounding = grounding
		if len(outcome.Videos) > 0 {
			m.VideoSearchResults = outcome.Videos
		}
		m.GenerationTime = generationTime
	})
	c.publisher.PublishBlind(events.NewTurnFinishedEvent(t.meta, generationTime))
}

func dedupeGrounding(chunks []generation.GroundingChunk) []conversation.GroundingChunk {
	seen := make(map[string]bool, len(chunks))
	var out []conversation.GroundingChunk
	for _, chunk := range chunks {
		if chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		out = append(out, conversation.GroundingChunk{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return out
}

var (
	apiKeyRe  = regexp.MustCompile(`(?i)API_KEY`)
	networkRe = regexp.MustCompile(`(?i)network|fetch`)
)

// fail classifies a turn-level error by substring and replaces the
// placeholder content with the localized message. Cancellation takes the
// stopped path instead.
func (t *turn) fail(cause error) {
	if t.ctx.Err() != nil {
		t.stopped()
		return
	}

	tr := t.c.translator
	var text string
	switch msg := cause.Error(); {
	case apiKeyRe.MatchString(msg):
		text = tr.T("apiKeyError")
	case networkRe.MatchString(msg):
		text = tr.T("networkError")
	default:
		text = tr.T("errorMessageDefault", msg)
	}
	log.Error().Err(cause).Str("conversation_id", t.conv).Msg("turn failed")

	t.updateMessage(func(m *conversation.Message) {
		m.ContentHistory = []string{text}
		m.ActiveVersionIndex = 0
		m.IsTyping = false
		m.AnalysisState = nil
		m.Pending = nil
	})
	t.c.publisher.PublishBlind(events.NewTurnErrorEvent(t.meta, cause.Error()))
	t.c.publisher.PublishBlind(events.NewToastEvent(t.meta, "error", tr.T("toastErrorTitle"), text))
}

// stopped swaps the placeholder for a terminal system message. Cancellation
// is a control path, not a failure.
func (t *turn) stopped() {
	tr := t.c.translator
	stopMsg := conversation.NewMessage(conversation.RoleSystem, tr.T("generationStopped"))
	if err := t.c.store.Upsert(t.conv, func(cv *conversation.Conversation) *conversation.Conversation {
		_, idx := cv.FindMessage(t.msgID)
		if idx < 0 {
			return cv
		}
		cv.Messages = append(cv.Messages[:idx], stopMsg)
		return cv
	}); err != nil {
		log.Warn().Err(err).Str("conversation_id", t.conv).Msg("failed to record stop")
	}
	t.c.publisher.PublishBlind(events.NewTurnFinishedEvent(t.meta, t.c.now().Sub(t.start)))
}

func (c *Controller) planContext() strategy.Context {
	info := strategy.Context{Now: c.now()}
	if c.userName != nil {
		info.UserName = c.userName()
	}
	for _, fact := range c.memory.Facts() {
		info.MemoryFacts = append(info.MemoryFacts, fact.Content)
	}
	return info
}
