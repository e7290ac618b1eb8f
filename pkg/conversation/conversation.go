package conversation

import (
	"time"

	"github.com/google/uuid"
)

// ForkInfo records a conversation's lineage when it was split off from a
// parent. The referenced message existed in the parent at fork time.
type ForkInfo struct {
	ParentConversationID string `json:"parentConversationId"`
	ParentMessageID      string `json:"parentMessageId"`
}

// ArchivedBranch retains the messages discarded when an edit or version
// switch truncated the active list. Branches are only destroyed together
// with the conversation.
type ArchivedBranch struct {
	// ForkMessageID is the message whose edit caused the truncation.
	ForkMessageID string     `json:"forkMessageId"`
	ArchivedAt    time.Time  `json:"archivedAt"`
	Messages      []*Message `json:"messages"`
}

// Conversation is the authoritative record of one chat: a causally ordered
// message list plus metadata. Mutation goes through Store transforms only.
type Conversation struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Model     string     `json:"model"`
	CreatedAt time.Time  `json:"createdAt"`
	IsPinned  bool       `json:"isPinned,omitempty"`
	Messages  []*Message `json:"messages"`
	ForkInfo  *ForkInfo  `json:"forkInfo,omitempty"`

	ArchivedBranches []*ArchivedBranch `json:"archivedBranches,omitempty"`
}

func New(title, model string) *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Model:     model,
		CreatedAt: time.Now(),
		Messages:  []*Message{},
	}
}

// FindMessage returns the message with the given id and its position.
func (c *Conversation) FindMessage(id string) (*Message, int) {
	for i, m := range c.Messages {
		if m.ID == id {
			return m, i
		}
	}
	return nil, -1
}

// LastMessage returns the final message or nil for an empty conversation.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// Validate checks the version invariant across all messages.
func (c *Conversation) Validate() error {
	for _, m := range c.Messages {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}
