package chat

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-go-golems/lampwick/pkg/actions"
	"github.com/go-go-golems/lampwick/pkg/classify"
	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/go-go-golems/lampwick/pkg/events"
	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/go-go-golems/lampwick/pkg/i18n"
	"github.com/go-go-golems/lampwick/pkg/strategy"
	"github.com/go-go-golems/lampwick/pkg/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrTurnInFlight is returned when a second turn is started on a
// conversation that already has one running. Turns on different
// conversations run concurrently without restriction.
var ErrTurnInFlight = errors.New("a turn is already running for this conversation")

// Sleeper is the timed-delay primitive used for pipeline narration pacing.
// Injected so tests run instantly.
type Sleeper func(ctx context.Context, d time.Duration) error

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Controller orchestrates a full turn: classification, strategy planning,
// generation, tool dispatch, action interpretation and finalization. All
// conversation state flows through the store; the controller holds no
// per-turn state beyond the cancel handle.
type Controller struct {
	store      *conversation.Store
	memory     *conversation.MemoryStore
	classifier *classify.Classifier
	planner    *strategy.Planner
	dispatcher *tools.Dispatcher
	runner     *actions.Runner
	svc        generation.Service
	translator i18n.Translator

	publisher *events.PublisherManager
	sleep     Sleeper
	now       func() time.Time
	jitter    func(n int) int
	userName  func() string

	mu    sync.Mutex
	turns map[string]context.CancelFunc
}

type ControllerOption func(*Controller)

// WithPublisher routes turn lifecycle events (step updates, toasts,
// turn-finished) to the given publisher manager.
func WithPublisher(pm *events.PublisherManager) ControllerOption {
	return func(c *Controller) { c.publisher = pm }
}

func WithSleeper(s Sleeper) ControllerOption {
	return func(c *Controller) { c.sleep = s }
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithJitter replaces the random narration-pacing jitter source.
func WithJitter(fn func(n int) int) ControllerOption {
	return func(c *Controller) { c.jitter = fn }
}

// WithUserName supplies the display name folded into the persona
// instruction, typically backed by the accounts layer.
func WithUserName(fn func() string) ControllerOption {
	return func(c *Controller) { c.userName = fn }
}

func NewController(
	store *conversation.Store,
	memory *conversation.MemoryStore,
	classifier *classify.Classifier,
	planner *strategy.Planner,
	dispatcher *tools.Dispatcher,
	runner *actions.Runner,
	svc generation.Service,
	translator i18n.Translator,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		store:      store,
		memory:     memory,
		classifier: classifier,
		planner:    planner,
		dispatcher: dispatcher,
		runner:     runner,
		svc:        svc,
		translator: translator,
		publisher:  events.NewPublisherManager(),
		sleep:      ctxSleep,
		now:        time.Now,
		jitter:     rand.Intn,
		turns:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const titleMaxLen = 30

func deriveTitle(msg *conversation.Message, translator i18n.Translator) string {
	title := msg.ActiveContent()
	if title == "" {
		switch {
		case msg.TextAttachment != nil:
			title = msg.TextAttachment.Title
		case len(msg.ImagesData) > 0:
			title = translator.T("imageChatTitle")
		case msg.AudioData != nil:
			title = translator.T("audioChatTitle")
		}
	}
	if len(title) > titleMaxLen {
		title = title[:titleMaxLen] + "..."
	}
	if title == "" {
		title = translator.T("newChatTitle")
	}
	return title
}

// Send appends a user message and runs a full turn. Attached document text
// is folded into the sent content; the attachment descriptor itself rides
// along as a side channel. Blocks until the turn finalizes; turn-level
// failures are folded into the model message, never returned.
func (c *Controller) Send(ctx context.Context, convID, text string, opts ...conversation.MessageOption) error {
	conv, err := c.store.Get(convID)
	if err != nil {
		return err
	}

	msg := conversation.NewMessage(conversation.RoleUser, text, opts...)
	if att := msg.TextAttachment; att != nil && att.Content != "" {
		folded := fmt.Sprintf("\n\n--- ATTACHED DOCUMENT: %q ---\n%s\n--- END OF DOCUMENT ---", att.Title, att.Content)
		if text != "" {
			folded = text + folded
		}
		msg.ContentHistory = []string{folded}
	}

	if len(conv.Messages) == 0 {
		title := deriveTitle(msg, c.translator)
		if err := c.store.Upsert(convID, func(cv *conversation.Conversation) *conversation.Conversation {
			cv.Title = title
			return cv
		}); err != nil {
			return err
		}
	}

	if err := c.store.Append(convID, msg); err != nil {
		return err
	}
	return c.runTurn(ctx, convID, conv.Model)
}

// Edit records a new version of a message and reruns generation from that
// point. Descendant messages are cut from the active list first (archived,
// not destroyed), so the new branch grows from the edited message.
func (c *Controller) Edit(ctx context.Context, convID, msgID, newContent string) error {
	conv, err := c.store.Get(convID)
	if err != nil {
		return err
	}
	if m, _ := conv.FindMessage(msgID); m == nil {
		return errors.Errorf("message %s not found in conversation %s", msgID, convID)
	}
	if err := c.store.UpdateMessage(convID, msgID, func(m *conversation.Message) {
		m.AppendVersion(newContent)
	}); err != nil {
		return err
	}
	if err := c.store.Truncate(convID, msgID); err != nil {
		return err
	}
	return c.runTurn(ctx, convID, conv.Model)
}

// SelectVersion moves a message's active version pointer. On the last
// message this is a pure pointer move; on an earlier message it forks:
// descendants are truncated and the turn reruns against the newly selected
// content.
func (c *Controller) SelectVersion(ctx context.Context, convID, msgID string, index int) error {
	conv, err := c.store.Get(convID)
	if err != nil {
		return err
	}
	msg, idx := conv.FindMessage(msgID)
	if msg == nil {
		return errors.Errorf("message %s not found in conversation %s", msgID, convID)
	}
	if index < 0 || index >= len(msg.ContentHistory) {
		return errors.Errorf("version index %d out of range [0,%d)", index, len(msg.ContentHistory))
	}

	if err := c.store.UpdateMessage(convID, msgID, func(m *conversation.Message) {
		_ = m.SetActiveVersion(index)
	}); err != nil {
		return err
	}
	if idx == len(conv.Messages)-1 {
		return nil
	}
	if err := c.store.Truncate(convID, msgID); err != nil {
		return err
	}
	return c.runTurn(ctx, convID, conv.Model)
}

// Regenerate discards everything after the last user message and reruns the
// turn from there.
func (c *Controller) Regenerate(ctx context.Context, convID string) error {
	conv, err := c.store.Get(convID)
	if err != nil {
		return err
	}
	var lastUser *conversation.Message
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == conversation.RoleUser {
			lastUser = conv.Messages[i]
			break
		}
	}
	if lastUser == nil {
		return errors.New("no user message to regenerate from")
	}
	if err := c.store.Truncate(convID, lastUser.ID); err != nil {
		return err
	}
	return c.runTurn(ctx, convID, conv.Model)
}

// Stop cancels the conversation's in-flight turn, if any. Cancellation is
// cooperative: the current network call runs to completion and its result
// is discarded at the next checkpoint.
func (c *Controller) Stop(convID string) {
	c.mu.Lock()
	cancel := c.turns[convID]
	c.mu.Unlock()
	if cancel != nil {
		log.Debug().Str("conversation_id", convID).Msg("stopping turn")
		cancel()
	}
}

func (c *Controller) beginTurn(ctx context.Context, convID string) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, running := c.turns[convID]; running {
		return nil, nil, ErrTurnInFlight
	}
	turnCtx, cancel := context.WithCancel(ctx)
	c.turns[convID] = cancel
	return turnCtx, cancel, nil
}

func (c *Controller) endTurn(convID string) {
	c.mu.Lock()
	delete(c.turns, convID)
	c.mu.Unlock()
}
