package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Store holds all conversations in memory. Every mutation is expressed as
// "take the record by id, apply a transform, replace it in the collection",
// so readers never observe a partially updated conversation. Reads hand out
// deep clones for the same reason.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	order         []string

	// onChange is notified after every committed mutation; the persistence
	// layer hangs its debounced writer off this.
	onChange func()
}

type StoreOption func(*Store)

func WithChangeHook(fn func()) StoreOption {
	return func(s *Store) { s.onChange = fn }
}

func NewStore(options ...StoreOption) *Store {
	s := &Store{
		conversations: map[string]*Conversation{},
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// SetChangeHook installs the mutation callback after construction.
func (s *Store) SetChangeHook(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Add inserts a conversation, newest first.
func (s *Store) Add(c *Conversation) {
	s.mu.Lock()
	s.conversations[c.ID] = c
	s.order = append([]string{c.ID}, s.order...)
	s.mu.Unlock()
	s.notify()
}

// Replace swaps the entire collection, used by the persistence loader.
func (s *Store) Replace(convs []*Conversation) {
	s.mu.Lock()
	s.conversations = make(map[string]*Conversation, len(convs))
	s.order = make([]string, 0, len(convs))
	for _, c := range convs {
		s.conversations[c.ID] = c
		s.order = append(s.order, c.ID)
	}
	s.mu.Unlock()
	s.notify()
}

// List returns clones of all conversations in insertion order.
func (s *Store) List() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conversation, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.conversations[id]; ok {
			out = append(out, clone.Clone(c).(*Conversation))
		}
	}
	return out
}

// Sorted returns clones ordered pinned-first, then newest-first.
func (s *Store) Sorted() []*Conversation {
	out := s.List()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Get returns a clone of the conversation or an error when absent.
func (s *Store) Get(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, errors.Errorf("conversation not found: %s", id)
	}
	return clone.Clone(c).(*Conversation), nil
}

// Upsert applies a pure transform to the conversation and commits the
// result as a whole-record replacement. The transform receives a clone, so
// aborting (returning nil) leaves the store untouched.
func (s *Store) Upsert(id string, transform func(*Conversation) *Conversation) error {
	s.mu.Lock()
	current, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return errors.Errorf("conversation not found: %s", id)
	}
	updated := transform(clone.Clone(current).(*Conversation))
	if updated == nil {
		s.mu.Unlock()
		return nil
	}
	if err := updated.Validate(); err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "transform violated the version invariant")
	}
	s.conversations[id] = updated
	s.mu.Unlock()
	s.notify()
	return nil
}

// Rename sets the conversation's title.
func (s *Store) Rename(id, title string) error {
	return s.Upsert(id, func(c *Conversation) *Conversation {
		c.Title = title
		return c
	})
}

// TogglePin flips the pinned flag.
func (s *Store) TogglePin(id string) error {
	return s.Upsert(id, func(c *Conversation) *Conversation {
		c.IsPinned = !c.IsPinned
		return c
	})
}

// SetModel switches the conversation's model tier label.
func (s *Store) SetModel(id, model string) error {
	return s.Upsert(id, func(c *Conversation) *Conversation {
		c.Model = model
		return c
	})
}

// Append adds a message at the end of the conversation.
func (s *Store) Append(id string, msg *Message) error {
	return s.Upsert(id, func(c *Conversation) *Conversation {
		c.Messages = append(c.Messages, msg)
		return c
	})
}

// UpdateMessage applies a transform to one message inside the conversation.
func (s *Store) UpdateMessage(convID, msgID string, transform func(*Message)) error {
	return s.Upsert(convID, func(c *Conversation) *Conversation {
		m, _ := c.FindMessage(msgID)
		if m == nil {
			log.Warn().Str("conversation_id", convID).Str("message_id", msgID).
				Msg("update for unknown message dropped")
			return nil
		}
		transform(m)
		return c
	})
}

// Truncate cuts the active message list after the given message, archiving
// the discarded tail so a fork never destroys history.
func (s *Store) Truncate(convID, msgID string) error {
	return s.Upsert(convID, func(c *Conversation) *Conversation {
		_, idx := c.FindMessage(msgID)
		if idx < 0 || idx >= len(c.Messages)-1 {
			return c
		}
		tail := c.Messages[idx+1:]
		c.ArchivedBranches = append(c.ArchivedBranches, &ArchivedBranch{
			ForkMessageID: msgID,
			ArchivedAt:    time.Now(),
			Messages:      tail,
		})
		c.Messages = c.Messages[:idx+1]
		return c
	})
}

// Remove deletes the conversation, including its archived branches.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.conversations, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
