package conversation

import (
	"sync"
	"time"
)

// MaxRecentAttachments caps the recents list.
const MaxRecentAttachments = 20

type AttachmentType string

const (
	AttachmentLocal AttachmentType = "local"
	AttachmentText  AttachmentType = "text"
	AttachmentCloud AttachmentType = "cloud"
)

// RecentAttachment is a descriptor used to speed up re-attachment. Not
// authoritative data: losing it loses nothing but convenience.
type RecentAttachment struct {
	Type      AttachmentType `json:"type"`
	Timestamp time.Time      `json:"timestamp"`

	// local files
	Name     string `json:"name,omitempty"`
	FileType string `json:"fileType,omitempty"`

	// pasted text and cloud files
	Title    string `json:"title,omitempty"`
	Content  string `json:"content,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Identity is the deduplication key: file name for local attachments, title
// otherwise.
func (r RecentAttachment) Identity() string {
	if r.Type == AttachmentLocal {
		return r.Name
	}
	return r.Title
}

// RecentAttachments is a capped, most-recent-first, identity-deduplicated
// list.
type RecentAttachments struct {
	mu       sync.RWMutex
	items    []RecentAttachment
	onChange func()
}

func NewRecentAttachments() *RecentAttachments {
	return &RecentAttachments{}
}

func (r *RecentAttachments) SetChangeHook(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *RecentAttachments) List() []RecentAttachment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RecentAttachment{}, r.items...)
}

func (r *RecentAttachments) Replace(items []RecentAttachment) {
	r.mu.Lock()
	if len(items) > MaxRecentAttachments {
		items = items[:MaxRecentAttachments]
	}
	r.items = append([]RecentAttachment{}, items...)
	onChange := r.onChange
	r.mu.Unlock()
	if onChange != nil {
		onChange()
	}
}

// Add pushes the attachment to the front, dropping any earlier entry with
// the same identity and trimming to the cap.
func (r *RecentAttachments) Add(att RecentAttachment) {
	if att.Identity() == "" {
		return
	}
	if att.Timestamp.IsZero() {
		att.Timestamp = time.Now()
	}
	r.mu.Lock()
	next := make([]RecentAttachment, 0, len(r.items)+1)
	next = append(next, att)
	for _, existing := range r.items {
		if existing.Identity() == att.Identity() && existing.Type == att.Type {
			continue
		}
		next = append(next, existing)
	}
	if len(next) > MaxRecentAttachments {
		next = next[:MaxRecentAttachments]
	}
	r.items = next
	onChange := r.onChange
	r.mu.Unlock()
	if onChange != nil {
		onChange()
	}
}
