package conversation

// ArtifactPayload is the finalized artifact attached to a message. Kind
// selects which variant is populated; the others stay nil. Keeping a single
// tagged payload instead of one boolean flag per artifact type makes
// "generating and completed at once" unrepresentable.
type ArtifactPayload struct {
	Kind ArtifactKind `json:"kind"`

	Images       []ImageData       `json:"images,omitempty"`
	PDF          *PDFDocument      `json:"pdf,omitempty"`
	Spreadsheet  *SpreadsheetFile  `json:"spreadsheet,omitempty"`
	Presentation *PresentationFile `json:"presentation,omitempty"`
	Word         *WordFile         `json:"word,omitempty"`
	Video        *VideoFile        `json:"video,omitempty"`
}

// PDFDocument is the structured description handed to the external PDF
// encoder. The core never renders it.
type PDFDocument struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

type SpreadsheetFile struct {
	Filename string  `json:"filename"`
	Sheets   []Sheet `json:"sheets"`
}

type Sheet struct {
	SheetName string       `json:"sheetName"`
	Headers   []string     `json:"headers"`
	Rows      [][]any      `json:"rows"`
	Merges    []MergeRange `json:"merges,omitempty"`
}

// MergeRange is a rectangular cell merge, zero-based and inclusive.
type MergeRange struct {
	StartRow int `json:"startRow"`
	StartCol int `json:"startCol"`
	EndRow   int `json:"endRow"`
	EndCol   int `json:"endCol"`
}

type PresentationFile struct {
	Filename string            `json:"filename"`
	Theme    PresentationTheme `json:"theme"`
	Slides   []Slide           `json:"slides"`
}

type PresentationTheme struct {
	Background    SlideBackground `json:"background"`
	TitleFontFace string          `json:"titleFontFace,omitempty"`
	BodyFontFace  string          `json:"bodyFontFace,omitempty"`
	TextColor     string          `json:"textColor,omitempty"`
}

type SlideBackground struct {
	Color    string         `json:"color,omitempty"`
	Gradient *SlideGradient `json:"gradient,omitempty"`
}

type SlideGradient struct {
	Type   string    `json:"type"`
	Angle  int       `json:"angle,omitempty"`
	Colors [2]string `json:"colors"`
}

type Slide struct {
	Layout     string           `json:"layout"`
	Title      *TextElement     `json:"title,omitempty"`
	Content    *ContentElement  `json:"content,omitempty"`
	Image      *ImageElement    `json:"image,omitempty"`
	Background *SlideBackground `json:"background,omitempty"`
}

type TextElement struct {
	Text     string `json:"text"`
	FontFace string `json:"fontFace,omitempty"`
	FontSize int    `json:"fontSize,omitempty"`
	Color    string `json:"color,omitempty"`
	Bold     bool   `json:"bold,omitempty"`
}

type ContentElement struct {
	Type  string   `json:"type"`
	Items []string `json:"items"`
}

// ImageElement declares a slide image by prompt; Data is filled in by the
// presentation image phase.
type ImageElement struct {
	Prompt string `json:"prompt"`
	Data   string `json:"data,omitempty"`
}

type WordFile struct {
	Filename string      `json:"filename"`
	Theme    *WordTheme  `json:"theme,omitempty"`
	Content  []WordBlock `json:"content"`
}

type WordTheme struct {
	PrimaryColor string `json:"primaryColor,omitempty"`
	Font         string `json:"font,omitempty"`
}

// WordBlock is one paragraph-level element of a Word document description.
type WordBlock struct {
	Type      string       `json:"type,omitempty"`
	Text      string       `json:"text,omitempty"`
	Alignment string       `json:"alignment,omitempty"`
	Spacing   *WordSpacing `json:"spacing,omitempty"`
	Children  []WordRun    `json:"children,omitempty"`
}

type WordSpacing struct {
	Before int `json:"before,omitempty"`
	After  int `json:"after,omitempty"`
}

type WordRun struct {
	Text  string        `json:"text"`
	Style *WordRunStyle `json:"style,omitempty"`
}

type WordRunStyle struct {
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
	Color  string `json:"color,omitempty"`
	Size   int    `json:"size,omitempty"`
}

type VideoFile struct {
	MIMEType string `json:"mimeType"`
	// Data is the materialized binary, base64-encoded. Stripped before
	// persistence.
	Data string `json:"data,omitempty"`
	URI  string `json:"uri,omitempty"`
}
