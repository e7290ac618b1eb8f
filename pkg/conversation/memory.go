package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryFact is a durable fact about the user, independent of conversation
// lifecycle. Never versioned.
type MemoryFact struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// CoachGoal is a user-defined goal tracked by the coaching surface.
type CoachGoal struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MemoryStore keeps facts and goals. Mutations replace the whole slice under
// the lock so readers never see a torn list.
type MemoryStore struct {
	mu       sync.RWMutex
	facts    []MemoryFact
	goals    []CoachGoal
	onChange func()
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SetChangeHook(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *MemoryStore) notify() {
	if m.onChange != nil {
		m.onChange()
	}
}

func (m *MemoryStore) Facts() []MemoryFact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MemoryFact{}, m.facts...)
}

func (m *MemoryStore) Goals() []CoachGoal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CoachGoal{}, m.goals...)
}

func (m *MemoryStore) ReplaceFacts(facts []MemoryFact) {
	m.mu.Lock()
	m.facts = append([]MemoryFact{}, facts...)
	m.mu.Unlock()
	m.notify()
}

func (m *MemoryStore) ReplaceGoals(goals []CoachGoal) {
	m.mu.Lock()
	m.goals = append([]CoachGoal{}, goals...)
	m.mu.Unlock()
	m.notify()
}

// AddFacts appends the given fact contents, deduplicating case-insensitively
// against existing facts. Returns how many were actually added.
func (m *MemoryStore) AddFacts(contents []string) int {
	m.mu.Lock()
	existing := make(map[string]bool, len(m.facts))
	for _, f := range m.facts {
		existing[strings.ToLower(f.Content)] = true
	}
	added := 0
	next := append([]MemoryFact{}, m.facts...)
	for _, content := range contents {
		content = strings.TrimSpace(content)
		if content == "" || existing[strings.ToLower(content)] {
			continue
		}
		existing[strings.ToLower(content)] = true
		next = append(next, MemoryFact{
			ID:        uuid.NewString(),
			Content:   content,
			CreatedAt: time.Now(),
		})
		added++
	}
	m.facts = next
	m.mu.Unlock()
	if added > 0 {
		m.notify()
	}
	return added
}

func (m *MemoryStore) RemoveFact(id string) {
	m.mu.Lock()
	next := m.facts[:0:0]
	for _, f := range m.facts {
		if f.ID != id {
			next = append(next, f)
		}
	}
	m.facts = next
	m.mu.Unlock()
	m.notify()
}

func (m *MemoryStore) AddGoal(content string) {
	m.mu.Lock()
	m.goals = append(append([]CoachGoal{}, m.goals...), CoachGoal{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: time.Now(),
	})
	m.mu.Unlock()
	m.notify()
}
