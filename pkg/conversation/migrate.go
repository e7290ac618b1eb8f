package conversation

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Current model labels. Stored conversations referencing retired labels are
// remapped onto these two tiers at load time.
const (
	ModelCapable = "polaris-2"
	ModelFast    = "polaris-2-swift"
)

var legacyFastLabels = map[string]bool{
	"fast": true, "polaris-1-swift": true, "polaris-1.5-swift": true,
}

var legacyCapableLabels = map[string]bool{
	"smart": true, "pro": true, "polaris-1": true, "polaris-1.5": true,
}

// NormalizeModel maps any stored model label onto a current tier; unknown
// labels default to the capable tier.
func NormalizeModel(label string) string {
	switch {
	case label == ModelCapable || label == ModelFast:
		return label
	case legacyFastLabels[label]:
		return ModelFast
	default:
		_ = legacyCapableLabels[label]
		return ModelCapable
	}
}

// MigrateConversation decodes one stored conversation, tolerating the legacy
// single-content message shape and repairing out-of-range version pointers.
// Corrupt individual conversations fail here so the caller can skip them
// without abandoning the rest of the snapshot.
func MigrateConversation(raw json.RawMessage) (*Conversation, error) {
	var legacy struct {
		ID        string            `json:"id"`
		Title     string            `json:"title"`
		Model     string            `json:"model"`
		CreatedAt time.Time         `json:"createdAt"`
		IsPinned  bool              `json:"isPinned"`
		ForkInfo  *ForkInfo         `json:"forkInfo"`
		Messages  []json.RawMessage `json:"messages"`

		ArchivedBranches []*ArchivedBranch `json:"archivedBranches"`
	}
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, errors.Wrap(err, "decode conversation")
	}
	if legacy.ID == "" {
		return nil, errors.New("conversation without id")
	}

	conv := &Conversation{
		ID:               legacy.ID,
		Title:            legacy.Title,
		Model:            NormalizeModel(legacy.Model),
		CreatedAt:        legacy.CreatedAt,
		IsPinned:         legacy.IsPinned,
		ForkInfo:         legacy.ForkInfo,
		ArchivedBranches: legacy.ArchivedBranches,
		Messages:         make([]*Message, 0, len(legacy.Messages)),
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}

	for _, rawMsg := range legacy.Messages {
		msg, err := migrateMessage(rawMsg)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			conv.Messages = append(conv.Messages, msg)
		}
	}
	return conv, nil
}

func migrateMessage(raw json.RawMessage) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(err, "decode message")
	}
	if msg.ID == "" {
		return nil, nil
	}

	// Pre-versioning snapshots stored a single content string.
	if len(msg.ContentHistory) == 0 {
		var legacy struct {
			Content *string `json:"content"`
		}
		if err := json.Unmarshal(raw, &legacy); err == nil && legacy.Content != nil {
			msg.ContentHistory = []string{*legacy.Content}
		}
	}

	switch {
	case len(msg.ContentHistory) == 0:
		if msg.ActiveVersionIndex != 0 {
			log.Debug().Str("message_id", msg.ID).Int("index", msg.ActiveVersionIndex).
				Msg("clamping version pointer of empty message")
			msg.ActiveVersionIndex = 0
		}
	case msg.ActiveVersionIndex < 0 || msg.ActiveVersionIndex >= len(msg.ContentHistory):
		msg.ActiveVersionIndex = len(msg.ContentHistory) - 1
	}

	// Transient state must never survive a restart.
	msg.IsTyping = false
	msg.AnalysisState = nil
	msg.Pending = nil

	return &msg, nil
}
