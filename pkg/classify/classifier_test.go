package classify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/go-go-golems/lampwick/pkg/i18n"
)

type fakeStructuredService struct {
	raw json.RawMessage
	err error
}

func (f *fakeStructuredService) Generate(ctx context.Context, contents []generation.Content, cfg generation.Config) (*generation.Response, error) {
	return nil, errors.New("not used")
}

func (f *fakeStructuredService) GenerateStructured(ctx context.Context, contents []generation.Content, schema map[string]any, cfg generation.Config) (json.RawMessage, error) {
	return f.raw, f.err
}

func newClassifier(svc generation.Service) *Classifier {
	return New(svc, i18n.NewCatalog("en"), "fast-model")
}

func TestClassifyParsesVerdict(t *testing.T) {
	t.Parallel()

	svc := &fakeStructuredService{raw: json.RawMessage(`{"domain":"math","complexity":"complex","intent":"problem_solving","tool":"code_interpreter"}`)}
	v := newClassifier(svc).Classify(context.Background(), nil)

	assert.Equal(t, DomainMath, v.Domain)
	assert.Equal(t, ComplexityComplex, v.Complexity)
	assert.Equal(t, IntentProblemSolving, v.Intent)
	assert.Equal(t, ToolCodeInterpreter, v.Tool)
}

func TestClassifyStripsMarkdownFence(t *testing.T) {
	t.Parallel()

	svc := &fakeStructuredService{raw: json.RawMessage("```json\n{\"domain\":\"video\",\"complexity\":\"simple\",\"intent\":\"conversation\",\"tool\":\"standard\"}\n```")}
	v := newClassifier(svc).Classify(context.Background(), nil)
	assert.Equal(t, DomainVideo, v.Domain)
}

func TestClassifyFallsBackOnError(t *testing.T) {
	t.Parallel()

	svc := &fakeStructuredService{err: errors.New("network down")}
	v := newClassifier(svc).Classify(context.Background(), nil)
	require.Equal(t, DefaultVerdict(), v)
}

func TestClassifyFallsBackOnGarbage(t *testing.T) {
	t.Parallel()

	svc := &fakeStructuredService{raw: json.RawMessage(`this is not json`)}
	v := newClassifier(svc).Classify(context.Background(), nil)
	assert.Equal(t, DefaultVerdict(), v)
}

func TestClassifyUnknownEnumValuesFallBackPerField(t *testing.T) {
	t.Parallel()

	svc := &fakeStructuredService{raw: json.RawMessage(`{"domain":"martian","complexity":"complex","intent":"nonsense","tool":"deep_search"}`)}
	v := newClassifier(svc).Classify(context.Background(), nil)

	assert.Equal(t, DomainGeneral, v.Domain)
	assert.Equal(t, ComplexityComplex, v.Complexity)
	assert.Equal(t, IntentConversation, v.Intent)
	assert.Equal(t, ToolDeepSearch, v.Tool)
}
