package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	messages []*message.Message
}

func (c *capturePublisher) Publish(_ string, msgs ...*message.Message) error {
	c.messages = append(c.messages, msgs...)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestEventRoundTrip(t *testing.T) {
	t.Parallel()

	meta := EventMetadata{TurnID: "t1", ConversationID: "c1", MessageID: "m1"}
	steps := []*conversation.AnalysisStep{
		{ID: "c0", Type: conversation.StepCore, Title: "Ingesting", Status: conversation.StepCompleted},
		{ID: "c1", Type: conversation.StepCore, Title: "Strategizing", Status: conversation.StepActive},
	}

	b, err := json.Marshal(NewStepUpdateEvent(meta, steps))
	require.NoError(t, err)

	ev, err := NewEventFromJSON(b)
	require.NoError(t, err)

	update, ok := ev.(*EventStepUpdate)
	require.True(t, ok)
	assert.Equal(t, EventTypeStepUpdate, update.Type())
	assert.Equal(t, meta, update.Metadata())
	require.Len(t, update.Steps, 2)
	assert.Equal(t, conversation.StepActive, update.Steps[1].Status)
	assert.Equal(t, b, []byte(update.Payload()))
}

func TestEventFromJSONUnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewEventFromJSON([]byte(`{"type": "no-such-event"}`))
	assert.Error(t, err)
}

func TestTurnFinishedCarriesGenerationTime(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(NewTurnFinishedEvent(EventMetadata{}, 1500*time.Millisecond))
	require.NoError(t, err)

	ev, err := NewEventFromJSON(b)
	require.NoError(t, err)

	finished, ok := ev.(*EventTurnFinished)
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, finished.GenerationTime)
}

func TestPublisherManagerSequenceNumbers(t *testing.T) {
	t.Parallel()

	mgr := NewPublisherManager()
	sink := &capturePublisher{}
	mgr.SubscribePublisher("ui", sink)

	mgr.PublishBlind(NewToastEvent(EventMetadata{}, "info", "Memory", "I saved a new fact to memory."))
	mgr.PublishBlind(NewTurnErrorEvent(EventMetadata{}, "boom"))

	require.Len(t, sink.messages, 2)
	assert.Equal(t, "0", sink.messages[0].Metadata.Get("sequence_number"))
	assert.Equal(t, "1", sink.messages[1].Metadata.Get("sequence_number"))
}
