package actions

import (
	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/go-go-golems/lampwick/pkg/i18n"
)

// Kind discriminates the structured actions a model response can request.
type Kind string

const (
	KindImage        Kind = "generate_image"
	KindPDF          Kind = "generate_pdf"
	KindSpreadsheet  Kind = "generate_spreadsheet"
	KindPresentation Kind = "generate_presentation"
	KindWord         Kind = "generate_word"
	KindVideo        Kind = "generate_video"
)

// Action is the tagged union of recognized action payloads. Exactly one
// variant matching Kind is non-nil.
type Action struct {
	Kind Kind

	Image        *ImageAction
	PDF          *PDFAction
	Spreadsheet  *SpreadsheetAction
	Presentation *PresentationAction
	Word         *WordAction
	Video        *VideoAction
}

type ImageAction struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count,omitempty"`
}

type PDFAction struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

type SpreadsheetAction struct {
	Filename string               `json:"filename"`
	Sheets   []conversation.Sheet `json:"sheets"`
}

type PresentationAction struct {
	Filename string           `json:"filename"`
	Data     PresentationData `json:"data"`
}

type PresentationData struct {
	Theme  conversation.PresentationTheme `json:"theme"`
	Slides []conversation.Slide           `json:"slides"`
}

type WordAction struct {
	Filename string                   `json:"filename"`
	Theme    *conversation.WordTheme  `json:"theme,omitempty"`
	Content  []conversation.WordBlock `json:"content"`
}

type VideoAction struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// Progress builds the in-flight marker placed on the message before the
// matching subroutine starts.
func (a *Action) Progress(translator i18n.Translator) *conversation.ArtifactProgress {
	switch a.Kind {
	case KindImage:
		return &conversation.ArtifactProgress{Kind: conversation.ArtifactImage}
	case KindPDF:
		return &conversation.ArtifactProgress{Kind: conversation.ArtifactPDF, Filename: a.PDF.Filename}
	case KindSpreadsheet:
		return &conversation.ArtifactProgress{
			Kind:       conversation.ArtifactSpreadsheet,
			Filename:   a.Spreadsheet.Filename,
			SheetCount: len(a.Spreadsheet.Sheets),
		}
	case KindPresentation:
		return &conversation.ArtifactProgress{
			Kind:       conversation.ArtifactPresentation,
			Filename:   a.Presentation.Filename,
			SlideCount: len(a.Presentation.Data.Slides),
		}
	case KindWord:
		return &conversation.ArtifactProgress{Kind: conversation.ArtifactWord, Filename: a.Word.Filename}
	case KindVideo:
		return &conversation.ArtifactProgress{
			Kind:   conversation.ArtifactVideo,
			Status: translator.T("videoStatusInitializing"),
		}
	default:
		return nil
	}
}

// Confirmation picks the visible text for the message while the artifact is
// being generated: whatever the model wrote next to the action payload, or a
// localized default when it wrote nothing. Video shows a bare status line
// instead of a confirmation sentence.
func (a *Action) Confirmation(translator i18n.Translator, written string) string {
	if a.Kind == KindVideo {
		return ""
	}
	if written != "" {
		return written
	}
	switch a.Kind {
	case KindImage:
		return translator.T("imageGenerationConfirmation")
	case KindPDF:
		return translator.T("pdfGenerationConfirmation", a.PDF.Filename)
	case KindSpreadsheet:
		return translator.T("spreadsheetGenerationConfirmation", a.Spreadsheet.Filename)
	case KindPresentation:
		return translator.T("presentationGenerationConfirmation", a.Presentation.Filename)
	case KindWord:
		return translator.T("wordGenerationConfirmation", a.Word.Filename)
	default:
		return written
	}
}
