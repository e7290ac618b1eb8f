package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreUpsertCommitsWholeRecord(t *testing.T) {
	t.Parallel()

	s := NewStore()
	conv := New("test", ModelCapable)
	s.Add(conv)

	err := s.Append(conv.ID, NewMessage(RoleUser, "hello"))
	require.NoError(t, err)

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].ActiveContent())

	// mutating the returned clone must not leak into the store
	got.Messages[0].ContentHistory[0] = "mutated"
	again, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Messages[0].ActiveContent())
}

func TestStoreUpsertRejectsInvariantViolation(t *testing.T) {
	t.Parallel()

	s := NewStore()
	conv := New("test", ModelCapable)
	conv.Messages = append(conv.Messages, NewMessage(RoleUser, "hi"))
	s.Add(conv)

	err := s.Upsert(conv.ID, func(c *Conversation) *Conversation {
		c.Messages[0].ActiveVersionIndex = 5
		return c
	})
	require.Error(t, err)

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Messages[0].ActiveVersionIndex)
}

func TestTruncateArchivesTail(t *testing.T) {
	t.Parallel()

	s := NewStore()
	conv := New("test", ModelCapable)
	m1 := NewMessage(RoleUser, "one")
	m2 := NewMessage(RoleModel, "two")
	m3 := NewMessage(RoleUser, "three")
	conv.Messages = []*Message{m1, m2, m3}
	s.Add(conv)

	require.NoError(t, s.Truncate(conv.ID, m1.ID))

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, m1.ID, got.Messages[0].ID)
	require.Len(t, got.ArchivedBranches, 1)
	assert.Equal(t, m1.ID, got.ArchivedBranches[0].ForkMessageID)
	require.Len(t, got.ArchivedBranches[0].Messages, 2)
	assert.Equal(t, m2.ID, got.ArchivedBranches[0].Messages[0].ID)
}

func TestTruncateOnLastMessageIsNoop(t *testing.T) {
	t.Parallel()

	s := NewStore()
	conv := New("test", ModelCapable)
	m1 := NewMessage(RoleUser, "one")
	conv.Messages = []*Message{m1}
	s.Add(conv)

	require.NoError(t, s.Truncate(conv.ID, m1.ID))
	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
	assert.Empty(t, got.ArchivedBranches)
}

func TestMessageAppendVersion(t *testing.T) {
	t.Parallel()

	m := NewMessage(RoleUser, "v0")
	m.AppendVersion("v1")
	require.NoError(t, m.Validate())
	assert.Equal(t, []string{"v0", "v1"}, m.ContentHistory)
	assert.Equal(t, 1, m.ActiveVersionIndex)

	// editing from an earlier version drops the forward versions
	require.NoError(t, m.SetActiveVersion(0))
	m.AppendVersion("v2")
	require.NoError(t, m.Validate())
	assert.Equal(t, []string{"v0", "v2"}, m.ContentHistory)
	assert.Equal(t, 1, m.ActiveVersionIndex)
}

func TestMessageSetActiveVersionBounds(t *testing.T) {
	t.Parallel()

	m := NewMessage(RoleUser, "only")
	assert.Error(t, m.SetActiveVersion(-1))
	assert.Error(t, m.SetActiveVersion(1))
	assert.NoError(t, m.SetActiveVersion(0))
}

func TestAppendToActiveContentPreservesPriorText(t *testing.T) {
	t.Parallel()

	m := NewMessage(RoleModel, "the answer")
	m.AppendToActiveContent("could not generate the image: boom")
	assert.Equal(t, "the answer\n\ncould not generate the image: boom", m.ActiveContent())

	empty := NewMessage(RoleModel, "")
	empty.AppendToActiveContent("error only")
	assert.Equal(t, "error only", empty.ActiveContent())
}

func TestAppendToActiveContentStartsEmptyHistory(t *testing.T) {
	t.Parallel()

	m := &Message{ID: "m1", Role: RoleModel}
	m.AppendToActiveContent("late failure")
	assert.Equal(t, []string{"late failure"}, m.ContentHistory)
	assert.Equal(t, 0, m.ActiveVersionIndex)
	assert.Equal(t, "late failure", m.ActiveContent())
}

func TestSortedPinnedFirst(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a := New("a", ModelCapable)
	b := New("b", ModelCapable)
	b.IsPinned = true
	s.Add(a)
	s.Add(b)

	sorted := s.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, b.ID, sorted[0].ID)
}

func TestStoreMetadataHelpers(t *testing.T) {
	t.Parallel()

	s := NewStore()
	conv := New("before", ModelFast)
	s.Add(conv)

	require.NoError(t, s.Rename(conv.ID, "after"))
	require.NoError(t, s.TogglePin(conv.ID))
	require.NoError(t, s.SetModel(conv.ID, ModelCapable))

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
	assert.True(t, got.IsPinned)
	assert.Equal(t, ModelCapable, got.Model)

	require.NoError(t, s.TogglePin(conv.ID))
	got, err = s.Get(conv.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPinned)
}

func TestMemoryStoreDeduplicatesCaseInsensitively(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore()
	added := m.AddFacts([]string{"Likes coffee", "likes tea"})
	assert.Equal(t, 2, added)

	added = m.AddFacts([]string{"LIKES COFFEE", "", "  "})
	assert.Equal(t, 0, added)
	assert.Len(t, m.Facts(), 2)
}

func TestRecentAttachmentsCapAndDedupe(t *testing.T) {
	t.Parallel()

	r := NewRecentAttachments()
	for i := 0; i < MaxRecentAttachments+5; i++ {
		r.Add(RecentAttachment{Type: AttachmentText, Title: string(rune('a' + i))})
	}
	assert.Len(t, r.List(), MaxRecentAttachments)

	r.Add(RecentAttachment{Type: AttachmentText, Title: "dup"})
	r.Add(RecentAttachment{Type: AttachmentText, Title: "dup"})
	seen := 0
	for _, item := range r.List() {
		if item.Title == "dup" {
			seen++
		}
	}
	assert.Equal(t, 1, seen)
	assert.Equal(t, "dup", r.List()[0].Title)
}

func TestMigrateLegacySingleContentMessage(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"id": "conv-1",
		"title": "old chat",
		"model": "polaris-1-swift",
		"messages": [
			{"id": "m1", "role": "user", "content": "hello"},
			{"id": "m2", "role": "model", "contentHistory": ["a", "b"], "activeVersionIndex": 7, "isTyping": true}
		]
	}`)

	conv, err := MigrateConversation(raw)
	require.NoError(t, err)
	assert.Equal(t, ModelFast, conv.Model)
	require.Len(t, conv.Messages, 2)

	m1 := conv.Messages[0]
	assert.Equal(t, []string{"hello"}, m1.ContentHistory)
	assert.Equal(t, 0, m1.ActiveVersionIndex)

	m2 := conv.Messages[1]
	assert.Equal(t, 1, m2.ActiveVersionIndex)
	assert.False(t, m2.IsTyping)
	assert.Nil(t, m2.AnalysisState)
	require.NoError(t, conv.Validate())
}

func TestMigrateRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := MigrateConversation(json.RawMessage(`{"id":"x","messages":[42]}`))
	assert.Error(t, err)

	_, err = MigrateConversation(json.RawMessage(`not json`))
	assert.Error(t, err)
}
