package conversation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ExportFormat selects the serialization used by Export.
type ExportFormat string

const (
	ExportJSON     ExportFormat = "json"
	ExportMarkdown ExportFormat = "md"
	ExportText     ExportFormat = "txt"
)

// Export writes the conversation to w in the given format. Only the active
// content version of each message is exported; system messages are included
// since they record generation outcomes the user saw.
func Export(w io.Writer, conv *Conversation, format ExportFormat) error {
	switch format {
	case ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(conv), "failed to encode conversation")
	case ExportMarkdown:
		return exportMarkdown(w, conv)
	case ExportText:
		return exportText(w, conv)
	default:
		return errors.Errorf("unknown export format %q", format)
	}
}

func exportMarkdown(w io.Writer, conv *Conversation) error {
	var b strings.Builder
	title := conv.Title
	if title == "" {
		title = "Conversation"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "_%s, model %s_\n", conv.CreatedAt.Format("2006-01-02 15:04"), conv.Model)
	for _, msg := range conv.Messages {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", speakerLabel(msg.Role), msg.ActiveContent())
		if msg.TextAttachment != nil {
			fmt.Fprintf(&b, "\n> attached: %s\n", msg.TextAttachment.Title)
		}
		for _, g := range msg.Grounding {
			fmt.Fprintf(&b, "\n- [%s](%s)\n", g.Title, g.URI)
		}
		if msg.CodeBlock != nil {
			fmt.Fprintf(&b, "\n```%s\n%s\n```\n", msg.CodeBlock.Language, msg.CodeBlock.Code)
		}
	}
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "failed to write export")
}

func exportText(w io.Writer, conv *Conversation) error {
	var b strings.Builder
	for _, msg := range conv.Messages {
		fmt.Fprintf(&b, "%s:\n%s\n\n", speakerLabel(msg.Role), msg.ActiveContent())
	}
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "failed to write export")
}

func speakerLabel(role Role) string {
	switch role {
	case RoleUser:
		return "You"
	case RoleModel:
		return "Assistant"
	case RoleCoach:
		return "Coach"
	default:
		return "System"
	}
}
