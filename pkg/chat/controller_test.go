package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/lampwick/pkg/actions"
	"github.com/go-go-golems/lampwick/pkg/classify"
	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/go-go-golems/lampwick/pkg/i18n"
	"github.com/go-go-golems/lampwick/pkg/strategy"
	"github.com/go-go-golems/lampwick/pkg/tools"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu sync.Mutex

	responses []*generation.Response
	errs      []error
	calls     []struct {
		Contents []generation.Content
		Config   generation.Config
	}

	verdictJSON string
	verdictErr  error
}

func (f *fakeService) Generate(_ context.Context, contents []generation.Content, cfg generation.Config) (*generation.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, struct {
		Contents []generation.Content
		Config   generation.Config
	}{contents, cfg})

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.responses) == 0 {
		return &generation.Response{Text: "done"}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeService) GenerateStructured(context.Context, []generation.Content, map[string]any, generation.Config) (json.RawMessage, error) {
	if f.verdictErr != nil {
		return nil, f.verdictErr
	}
	if f.verdictJSON == "" {
		return json.RawMessage(`{"domain":"general","complexity":"simple","intent":"conversation","tool":"standard"}`), nil
	}
	return json.RawMessage(f.verdictJSON), nil
}

func (f *fakeService) generateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeImages struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (f *fakeImages) GenerateImages(_ context.Context, prompt string, count int) ([]conversation.ImageData, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	images := make([]conversation.ImageData, count)
	for i := range images {
		images[i] = conversation.ImageData{MIMEType: "image/png", Data: "abc"}
	}
	return images, nil
}

type stuckVideoGen struct{}

func (stuckVideoGen) Start(context.Context, string, string) (*actions.VideoOperation, error) {
	return &actions.VideoOperation{ID: "op-1"}, nil
}

func (stuckVideoGen) Poll(_ context.Context, op *actions.VideoOperation) (*actions.VideoOperation, error) {
	return op, nil
}

func (stuckVideoGen) Download(context.Context, string) (*conversation.VideoFile, error) {
	return nil, errors.New("unreachable")
}

type alwaysKeys struct{}

func (alwaysKeys) HasSelectedKey(context.Context) (bool, error) { return true, nil }

func instantSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type harness struct {
	ctrl   *Controller
	store  *conversation.Store
	memory *conversation.MemoryStore
	svc    *fakeService
	images *fakeImages
	conv   *conversation.Conversation
}

func newHarness(t *testing.T, svc *fakeService, runnerOpts ...actions.RunnerOption) *harness {
	t.Helper()

	tr := i18n.NewCatalog("en")
	store := conversation.NewStore()
	memory := conversation.NewMemoryStore()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.NewWeatherTool(tools.NewMockWeatherService(tools.WithWeatherSeed(7)))))

	classifier := classify.New(svc, tr, conversation.ModelFast)
	planner := strategy.New(tr, strategy.TierModels{
		Capable: conversation.ModelCapable,
		Fast:    conversation.ModelFast,
	}, registry.Declarations())
	dispatcher := tools.NewDispatcher(registry, svc, tr)

	images := &fakeImages{}
	opts := append([]actions.RunnerOption{
		actions.WithSleeper(actions.Sleeper(instantSleep)),
		actions.WithDelays(0, 0, 0),
	}, runnerOpts...)
	runner := actions.NewRunner(store, tr, images, opts...)

	ctrl := NewController(store, memory, classifier, planner, dispatcher, runner, svc, tr,
		WithSleeper(instantSleep),
		WithJitter(func(int) int { return 0 }),
	)

	conv := conversation.New("", conversation.ModelFast)
	store.Add(conv)

	return &harness{ctrl: ctrl, store: store, memory: memory, svc: svc, images: images, conv: conv}
}

func (h *harness) messages(t *testing.T) []*conversation.Message {
	t.Helper()
	conv, err := h.store.Get(h.conv.ID)
	require.NoError(t, err)
	return conv.Messages
}

func TestWeatherTurnEndToEnd(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		responses: []*generation.Response{
			{
				FunctionCalls: []generation.FunctionCall{
					{Name: "getWeatherForecast", Args: map[string]any{"location": "Tokyo", "days": float64(3)}},
				},
				ModelTurn: &generation.Content{Role: "model"},
			},
			{Text: "Expect three warm days in Tokyo."},
		},
	}
	h := newHarness(t, svc)

	require.NoError(t, h.ctrl.Send(context.Background(), h.conv.ID, "What's the weather in Tokyo for 3 days?"))

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	final := msgs[1]
	assert.Equal(t, conversation.RoleModel, final.Role)
	assert.Equal(t, "Expect three warm days in Tokyo.", final.ActiveContent())
	assert.False(t, final.IsTyping)
	assert.Nil(t, final.AnalysisState)
	assert.Nil(t, final.Pending)
	assert.NotZero(t, final.GenerationTime)

	// the follow-up round ran without tool declarations
	require.Equal(t, 2, svc.generateCalls())
	assert.Empty(t, svc.calls[1].Config.Tools)

	// new chats get titled from the first message
	conv, err := h.store.Get(h.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "What's the weather in Tokyo fo...", conv.Title)
}

func TestClassifierFailureStillCompletesTurn(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		verdictErr: errors.New("classification backend down"),
		responses:  []*generation.Response{{Text: "hello there"}},
	}
	h := newHarness(t, svc)

	require.NoError(t, h.ctrl.Send(context.Background(), h.conv.ID, "hi"))

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello there", msgs[1].ActiveContent())
}

func TestFencedActionTakesPrecedence(t *testing.T) {
	t.Parallel()

	text := "Here {not an action} first.\n```json\n{\"action\":\"generate_image\",\"prompt\":\"a red fox in snow\",\"count\":2}\n```"
	svc := &fakeService{responses: []*generation.Response{{Text: text}}}
	h := newHarness(t, svc)

	require.NoError(t, h.ctrl.Send(context.Background(), h.conv.ID, "draw a fox"))

	msgs := h.messages(t)
	final := msgs[1]
	require.NotNil(t, final.Artifact)
	assert.Equal(t, conversation.ArtifactImage, final.Artifact.Kind)
	assert.Len(t, final.Artifact.Images, 2)
	assert.Nil(t, final.Pending)
	assert.Equal(t, []string{"a red fox in snow"}, h.images.prompts)
}

func TestImageActionWithoutConfirmationUsesDefault(t *testing.T) {
	t.Parallel()

	text := "```json\n{\"action\":\"generate_image\",\"prompt\":\"a lighthouse\",\"count\":1}\n```"
	svc := &fakeService{responses: []*generation.Response{{Text: text}}}
	h := newHarness(t, svc)

	require.NoError(t, h.ctrl.Send(context.Background(), h.conv.ID, "make an image"))

	final := h.messages(t)[1]
	assert.Equal(t, i18n.NewCatalog("en").T("imageGenerationConfirmation"), final.ActiveContent())
	require.NotNil(t, final.Artifact)
	assert.Len(t, final.Artifact.Images, 1)
}

func TestStopMidVideoPollLeavesStoppedMessage(t *testing.T) {
	t.Parallel()

	text := "```json\n{\"action\":\"generate_video\",\"prompt\":\"a comet\",\"aspectRatio\":\"16:9\"}\n```"
	svc := &fakeService{responses: []*generation.Response{{Text: text}}}

	var h *harness
	stopOnSleep := func(ctx context.Context, _ time.Duration) error {
		h.ctrl.Stop(h.conv.ID)
		return ctx.Err()
	}
	h = newHarness(t, svc,
		actions.WithVideoGenerator(stuckVideoGen{}, alwaysKeys{}),
		actions.WithSleeper(actions.Sleeper(stopOnSleep)),
	)

	require.NoError(t, h.ctrl.Send(context.Background(), h.conv.ID, "make a video"))

	msgs := h.messages(t)
	final := msgs[len(msgs)-1]
	assert.Equal(t, conversation.RoleSystem, final.Role)
	assert.Equal(t, "Generation stopped.", final.ActiveContent())
	for _, m := range msgs {
		assert.Nil(t, m.Artifact)
		assert.Nil(t, m.Pending)
	}
}

func TestEditForksAndArchivesDescendants(t *testing.T) {
	t.Parallel()

	svc := &fakeService{responses: []*generation.Response{{Text: "new answer"}}}
	h := newHarness(t, svc)

	u1 := conversation.NewMessage(conversation.RoleUser, "first question")
	m1 := conversation.NewMessage(conversation.RoleModel, "first answer")
	u2 := conversation.NewMessage(conversation.RoleUser, "second question")
	m2 := conversation.NewMessage(conversation.RoleModel, "second answer")
	for _, m := range []*conversation.Message{u1, m1, u2, m2} {
		require.NoError(t, h.store.Append(h.conv.ID, m))
	}

	require.NoError(t, h.ctrl.Edit(context.Background(), h.conv.ID, u1.ID, "revised question"))

	conv, err := h.store.Get(h.conv.ID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)

	edited := conv.Messages[0]
	assert.Equal(t, []string{"first question", "revised question"}, edited.ContentHistory)
	assert.Equal(t, 1, edited.ActiveVersionIndex)
	assert.Equal(t, "new answer", conv.Messages[1].ActiveContent())

	// the abandoned branch is archived, not destroyed
	require.Len(t, conv.ArchivedBranches, 1)
	assert.Equal(t, u1.ID, conv.ArchivedBranches[0].ForkMessageID)
	assert.Len(t, conv.ArchivedBranches[0].Messages, 3)
}

func TestSelectVersionOnLastMessageIsPointerMove(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	h := newHarness(t, svc)

	u1 := conversation.NewMessage(conversation.RoleUser, "question")
	m1 := conversation.NewMessage(conversation.RoleModel, "answer one")
	m1.AppendVersion("answer two")
	require.NoError(t, h.store.Append(h.conv.ID, u1))
	require.NoError(t, h.store.Append(h.conv.ID, m1))

	require.NoError(t, h.ctrl.SelectVersion(context.Background(), h.conv.ID, m1.ID, 0))

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "answer one", msgs[1].ActiveContent())
	assert.Zero(t, svc.generateCalls())
}

func TestSelectVersionOnEarlierMessageReruns(t *testing.T) {
	t.Parallel()

	svc := &fakeService{responses: []*generation.Response{{Text: "regenerated"}}}
	h := newHarness(t, svc)

	u1 := conversation.NewMessage(conversation.RoleUser, "original prompt")
	u1.AppendVersion("alternate prompt")
	m1 := conversation.NewMessage(conversation.RoleModel, "old answer")
	require.NoError(t, h.store.Append(h.conv.ID, u1))
	require.NoError(t, h.store.Append(h.conv.ID, m1))

	require.NoError(t, h.ctrl.SelectVersion(context.Background(), h.conv.ID, u1.ID, 0))

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "regenerated", msgs[1].ActiveContent())

	// generation saw only the history up to the switched message, with the
	// newly selected version as its content
	require.NotZero(t, svc.generateCalls())
	sent := svc.calls[0].Contents
	require.Len(t, sent, 1)
	assert.Equal(t, "original prompt", sent[0].Parts[0].Text)
}

func TestRegenerateDiscardsLastAnswer(t *testing.T) {
	t.Parallel()

	svc := &fakeService{responses: []*generation.Response{{Text: "take two"}}}
	h := newHarness(t, svc)

	u1 := conversation.NewMessage(conversation.RoleUser, "question")
	m1 := conversation.NewMessage(conversation.RoleModel, "take one")
	require.NoError(t, h.store.Append(h.conv.ID, u1))
	require.NoError(t, h.store.Append(h.conv.ID, m1))

	require.NoError(t, h.ctrl.Regenerate(context.Background(), h.conv.ID))

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "take two", msgs[1].ActiveContent())
}

func TestTurnErrorClassification(t *testing.T) {
	t.Parallel()

	tr := i18n.NewCatalog("en")
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"api key", errors.New("API_KEY_INVALID: the key is wrong"), tr.T("apiKeyError")},
		{"network", errors.New("failed to fetch upstream"), tr.T("networkError")},
		{"generic", errors.New("something exploded"), tr.T("errorMessageDefault", "something exploded")},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeService{errs: []error{tc.err}}
			h := newHarness(t, svc)

			require.NoError(t, h.ctrl.Send(context.Background(), h.conv.ID, "hi"))

			final := h.messages(t)[1]
			assert.Equal(t, tc.want, final.ActiveContent())
			assert.False(t, final.IsTyping)
			assert.Nil(t, final.AnalysisState)
		})
	}
}

func TestEmptyResponseGetsPlaceholder(t *testing.T) {
	t.Parallel()

	svc := &fakeService{responses: []*generation.Response{{Text: ""}}}
	h := newHarness(t, svc)

	require.NoError(t, h.ctrl.Send(context.Background(), h.conv.ID, "hi"))

	final := h.messages(t)[1]
	assert.Equal(t, i18n.NewCatalog("en").T("emptyResponsePlaceholder"), final.ActiveContent())
}

func TestMemoryBlockHarvestedAndStripped(t *testing.T) {
	t.Parallel()

	svc := &fakeService{responses: []*generation.Response{
		{Text: "Noted!<memory>{\"facts\":[\"User's dog is called Rex\"]}</memory>"},
	}}
	h := newHarness(t, svc)

	require.NoError(t, h.ctrl.Send(context.Background(), h.conv.ID, "my dog is called Rex"))

	final := h.messages(t)[1]
	assert.Equal(t, "Noted!", final.ActiveContent())
	facts := h.memory.Facts()
	require.Len(t, facts, 1)
	assert.Equal(t, "User's dog is called Rex", facts[0].Content)
}

func TestGroundingDeduplicatedByURI(t *testing.T) {
	t.Parallel()

	svc := &fakeService{responses: []*generation.Response{{
		Text: "sourced answer",
		Grounding: []generation.GroundingChunk{
			{Web: &generation.WebSource{URI: "https://example.com/a", Title: "A"}},
			{Web: &generation.WebSource{URI: "https://example.com/a", Title: "A again"}},
			{Web: &generation.WebSource{URI: "https://example.com/b", Title: "B"}},
			{Web: nil},
		},
	}}}
	h := newHarness(t, svc)

	require.NoError(t, h.ctrl.Send(context.Background(), h.conv.ID, "cite your sources"))

	final := h.messages(t)[1]
	require.Len(t, final.Grounding, 2)
	assert.Equal(t, "https://example.com/a", final.Grounding[0].URI)
	assert.Equal(t, "https://example.com/b", final.Grounding[1].URI)
}

func TestMultiAgentNarrationCompletes(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		verdictJSON: `{"domain":"technical","complexity":"complex","intent":"code_development","tool":"multi_agent_collaboration"}`,
		responses:   []*generation.Response{{Text: "collaborative answer"}},
	}
	h := newHarness(t, svc)

	var observed [][]*conversation.AnalysisStep
	h.store.SetChangeHook(func() {
		conv, err := h.store.Get(h.conv.ID)
		if err != nil || len(conv.Messages) == 0 {
			return
		}
		last := conv.Messages[len(conv.Messages)-1]
		if last.AnalysisState != nil {
			observed = append(observed, last.AnalysisState)
		}
	})

	require.NoError(t, h.ctrl.Send(context.Background(), h.conv.ID, "build me a system"))

	final := h.messages(t)[1]
	assert.Equal(t, "collaborative answer", final.ActiveContent())
	assert.Nil(t, final.AnalysisState)

	// the code-interpreter agent appeared in the narration at some point
	sawAgent := false
	for _, steps := range observed {
		for _, s := range steps {
			if s.Type == conversation.StepAgent && s.ID == "a2" {
				sawAgent = true
			}
		}
	}
	assert.True(t, sawAgent)
}
