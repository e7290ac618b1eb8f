package events

import (
	"encoding/json"
	"time"

	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeTurnStarted      EventType = "turn-started"
	EventTypeStepUpdate       EventType = "analysis-step-update"
	EventTypeArtifactProgress EventType = "artifact-progress"
	EventTypeToast            EventType = "toast"
	EventTypeTurnFinished     EventType = "turn-finished"
	EventTypeTurnError        EventType = "turn-error"
)

// EventMetadata locates an event within a conversation turn.
type EventMetadata struct {
	TurnID         string `json:"turn_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

func (m EventMetadata) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("turn_id", m.TurnID).
		Str("conversation_id", m.ConversationID).
		Str("message_id", m.MessageID)
}

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// raw payload when deserialized from JSON
	payload []byte
}

func (e *EventImpl) Type() EventType         { return e.Type_ }
func (e *EventImpl) Metadata() EventMetadata { return e.Metadata_ }
func (e *EventImpl) Payload() []byte         { return e.payload }

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_)).Object("meta", e.Metadata_)
}

// EventTurnStarted marks the beginning of a turn, right after the placeholder
// message is appended.
type EventTurnStarted struct {
	EventImpl
}

func NewTurnStartedEvent(meta EventMetadata) *EventTurnStarted {
	return &EventTurnStarted{
		EventImpl: EventImpl{Type_: EventTypeTurnStarted, Metadata_: meta},
	}
}

// EventStepUpdate carries the full analysis-step list after a transition.
type EventStepUpdate struct {
	EventImpl
	Steps []*conversation.AnalysisStep `json:"steps"`
}

func NewStepUpdateEvent(meta EventMetadata, steps []*conversation.AnalysisStep) *EventStepUpdate {
	return &EventStepUpdate{
		EventImpl: EventImpl{Type_: EventTypeStepUpdate, Metadata_: meta},
		Steps:     steps,
	}
}

// EventArtifactProgress reports artifact generation phase changes.
type EventArtifactProgress struct {
	EventImpl
	Progress *conversation.ArtifactProgress `json:"progress,omitempty"`
}

func NewArtifactProgressEvent(meta EventMetadata, progress *conversation.ArtifactProgress) *EventArtifactProgress {
	return &EventArtifactProgress{
		EventImpl: EventImpl{Type_: EventTypeArtifactProgress, Metadata_: meta},
		Progress:  progress,
	}
}

// EventToast is a transient notification. Level is "info", "success" or
// "error".
type EventToast struct {
	EventImpl
	Level string `json:"level"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

func NewToastEvent(meta EventMetadata, level, title, text string) *EventToast {
	return &EventToast{
		EventImpl: EventImpl{Type_: EventTypeToast, Metadata_: meta},
		Level:     level,
		Title:     title,
		Text:      text,
	}
}

type EventTurnFinished struct {
	EventImpl
	GenerationTime time.Duration `json:"generation_time"`
}

func NewTurnFinishedEvent(meta EventMetadata, generationTime time.Duration) *EventTurnFinished {
	return &EventTurnFinished{
		EventImpl:      EventImpl{Type_: EventTypeTurnFinished, Metadata_: meta},
		GenerationTime: generationTime,
	}
}

type EventTurnError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewTurnErrorEvent(meta EventMetadata, errorString string) *EventTurnError {
	return &EventTurnError{
		EventImpl:   EventImpl{Type_: EventTypeTurnError, Metadata_: meta},
		ErrorString: errorString,
	}
}

// NewEventFromJSON deserializes an event, dispatching on the embedded type
// tag.
func NewEventFromJSON(b []byte) (Event, error) {
	var probe struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, errors.Wrap(err, "failed to peek event type")
	}

	var (
		ret Event
		err error
	)
	switch probe.Type {
	case EventTypeTurnStarted:
		ret, err = decodeEvent[EventTurnStarted](b)
	case EventTypeStepUpdate:
		ret, err = decodeEvent[EventStepUpdate](b)
	case EventTypeArtifactProgress:
		ret, err = decodeEvent[EventArtifactProgress](b)
	case EventTypeToast:
		ret, err = decodeEvent[EventToast](b)
	case EventTypeTurnFinished:
		ret, err = decodeEvent[EventTurnFinished](b)
	case EventTypeTurnError:
		ret, err = decodeEvent[EventTurnError](b)
	default:
		return nil, errors.Errorf("unknown event type %q", probe.Type)
	}
	return ret, err
}

func decodeEvent[T any](b []byte) (*T, error) {
	var ev T
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, errors.Wrap(err, "failed to decode event")
	}
	if impl, ok := any(&ev).(interface{ setPayload([]byte) }); ok {
		impl.setPayload(b)
	}
	return &ev, nil
}

func (e *EventImpl) setPayload(b []byte) { e.payload = b }
