package conversation

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
	RoleCoach  Role = "coach"
)

// ArtifactKind discriminates the non-text artifacts a message can carry.
type ArtifactKind string

const (
	ArtifactImage        ArtifactKind = "image"
	ArtifactPDF          ArtifactKind = "pdf"
	ArtifactSpreadsheet  ArtifactKind = "spreadsheet"
	ArtifactPresentation ArtifactKind = "presentation"
	ArtifactWord         ArtifactKind = "word"
	ArtifactVideo        ArtifactKind = "video"
)

// ArtifactProgress marks a message as having an artifact generation in
// flight. Exactly one of Pending/Artifact is set at any time; both nil means
// the message is plain text.
type ArtifactProgress struct {
	Kind ArtifactKind `json:"kind"`
	// Status is the localized progress line shown to the user (video phases,
	// presentation image phase).
	Status   string `json:"status,omitempty"`
	Filename string `json:"filename,omitempty"`
	// Descriptor counts surfaced while the artifact is being built.
	SheetCount int `json:"sheetCount,omitempty"`
	SlideCount int `json:"slideCount,omitempty"`
	// GeneratingImages is the presentation sub-phase after slide synthesis.
	GeneratingImages bool `json:"generatingImages,omitempty"`
}

// ImageData is one generated or attached image.
type ImageData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// AudioData is a user-attached audio clip.
type AudioData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
	Name     string `json:"name"`
}

// TextAttachment is pasted or cloud-sourced document text.
type TextAttachment struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Provider string `json:"provider,omitempty"`
}

// CodeBlock holds an extracted interactive HTML preview.
type CodeBlock struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// VideoSearchResult is one entry returned by the video search tool.
type VideoSearchResult struct {
	ID           string `json:"id"`
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	ChannelTitle string `json:"channelTitle"`
}

// GroundingChunk is a web citation attached to a model message.
type GroundingChunk struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

type AnalysisStepStatus string

const (
	StepPending   AnalysisStepStatus = "pending"
	StepActive    AnalysisStepStatus = "active"
	StepCompleted AnalysisStepStatus = "completed"
)

type AnalysisStepType string

const (
	StepCore  AnalysisStepType = "core"
	StepAgent AnalysisStepType = "agent"
	StepTask  AnalysisStepType = "task"
)

// AnalysisStep is one node of the transient pipeline narration shown while a
// turn is in flight. The whole list is cleared once the message finalizes.
type AnalysisStep struct {
	ID      string             `json:"id"`
	Type    AnalysisStepType   `json:"type"`
	Title   string             `json:"title"`
	Status  AnalysisStepStatus `json:"status"`
	Details string             `json:"details,omitempty"`
	Icon    string             `json:"icon,omitempty"`
}

// Message is a single conversation entry with a versioned content history.
// Exactly one version is active; all others are retained for navigation and
// edit history. Messages are mutated only through Store transforms.
type Message struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`

	ContentHistory     []string `json:"contentHistory"`
	ActiveVersionIndex int      `json:"activeVersionIndex"`

	ImagesData     []ImageData     `json:"imagesData,omitempty"`
	AudioData      *AudioData      `json:"audioData,omitempty"`
	TextAttachment *TextAttachment `json:"textAttachment,omitempty"`

	Grounding          []GroundingChunk    `json:"grounding,omitempty"`
	VideoSearchResults []VideoSearchResult `json:"videoSearchResults,omitempty"`
	CodeBlock          *CodeBlock          `json:"codeBlock,omitempty"`

	// Transient state, stripped before persistence.
	IsTyping      bool             `json:"isTyping,omitempty"`
	AnalysisState []*AnalysisStep  `json:"analysisState,omitempty"`
	Pending       *ArtifactProgress `json:"pending,omitempty"`

	Artifact *ArtifactPayload `json:"artifact,omitempty"`
	// RequiresKeySelection is the terminal state of the video precondition
	// check: generation cannot proceed until the user selects an API key.
	RequiresKeySelection bool `json:"requiresKeySelection,omitempty"`

	GenerationTime time.Duration `json:"generationTime,omitempty"`
}

type MessageOption func(*Message)

func WithImages(images ...ImageData) MessageOption {
	return func(m *Message) { m.ImagesData = append(m.ImagesData, images...) }
}

func WithAudio(audio *AudioData) MessageOption {
	return func(m *Message) { m.AudioData = audio }
}

func WithTextAttachment(att *TextAttachment) MessageOption {
	return func(m *Message) { m.TextAttachment = att }
}

func WithID(id string) MessageOption {
	return func(m *Message) { m.ID = id }
}

func NewMessage(role Role, text string, options ...MessageOption) *Message {
	m := &Message{
		ID:                 uuid.NewString(),
		Role:               role,
		ContentHistory:     []string{text},
		ActiveVersionIndex: 0,
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// NewPlaceholder creates the empty model message appended at turn start,
// typing indicator on and an empty analysis state ready for narration.
func NewPlaceholder() *Message {
	return &Message{
		ID:                 uuid.NewString(),
		Role:               RoleModel,
		ContentHistory:     []string{""},
		ActiveVersionIndex: 0,
		IsTyping:           true,
		AnalysisState:      []*AnalysisStep{},
	}
}

// ActiveContent returns the currently selected version, or "" when the
// history is empty.
func (m *Message) ActiveContent() string {
	if m.ActiveVersionIndex < 0 || m.ActiveVersionIndex >= len(m.ContentHistory) {
		return ""
	}
	return m.ContentHistory[m.ActiveVersionIndex]
}

// AppendVersion records an edit: versions after the active one are dropped,
// the new content is appended and becomes active. The history never shrinks
// below its pre-edit prefix.
func (m *Message) AppendVersion(content string) {
	keep := m.ContentHistory[:m.ActiveVersionIndex+1]
	m.ContentHistory = append(append([]string{}, keep...), content)
	m.ActiveVersionIndex = len(m.ContentHistory) - 1
}

// SetActiveVersion moves the active pointer within the existing history.
func (m *Message) SetActiveVersion(index int) error {
	if index < 0 || index >= len(m.ContentHistory) {
		return errors.Errorf("version index %d out of range [0,%d)", index, len(m.ContentHistory))
	}
	m.ActiveVersionIndex = index
	return nil
}

// ReplaceContent collapses the history to a single version. Used when a turn
// finalizes or fails: the placeholder's empty version is overwritten, prior
// user-visible versions of other messages are never touched this way.
func (m *Message) ReplaceContent(content string) {
	m.ContentHistory = []string{content}
	m.ActiveVersionIndex = 0
}

// AppendToActiveContent appends text to the active version, separated by a
// blank line when content already exists. Artifact failures report through
// this so unrelated prior content survives.
func (m *Message) AppendToActiveContent(text string) {
	if len(m.ContentHistory) == 0 {
		m.ContentHistory = []string{text}
		m.ActiveVersionIndex = 0
		return
	}
	current := m.ActiveContent()
	if current == "" {
		m.ContentHistory[m.ActiveVersionIndex] = text
		return
	}
	m.ContentHistory[m.ActiveVersionIndex] = current + "\n\n" + text
}

// Validate checks the version-pointer invariant.
func (m *Message) Validate() error {
	if len(m.ContentHistory) == 0 {
		if m.ActiveVersionIndex != 0 {
			return errors.Errorf("message %s: empty history requires index 0, got %d", m.ID, m.ActiveVersionIndex)
		}
		return nil
	}
	if m.ActiveVersionIndex < 0 || m.ActiveVersionIndex >= len(m.ContentHistory) {
		return errors.Errorf("message %s: index %d out of range [0,%d)", m.ID, m.ActiveVersionIndex, len(m.ContentHistory))
	}
	return nil
}
