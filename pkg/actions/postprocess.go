package actions

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/rs/zerolog/log"
)

var (
	codeBlockRe = regexp.MustCompile("(?s)```(html)\n(.*?)```\\s*$")
	memoryRe    = regexp.MustCompile(`(?s)<memory>(.*?)</memory>`)
)

// PostProcessed is the result of the plain-text fallthrough when no action
// payload was recognized.
type PostProcessed struct {
	Text      string
	CodeBlock *conversation.CodeBlock
	// Facts extracted from a <memory> block, not yet de-duplicated against
	// the memory store.
	Facts []string
}

// PostProcess extracts a trailing HTML code block into an interactive
// preview and harvests memory facts the model chose to save.
func PostProcess(text string) PostProcessed {
	out := PostProcessed{Text: text}

	if m := codeBlockRe.FindStringSubmatchIndex(out.Text); m != nil {
		out.CodeBlock = &conversation.CodeBlock{
			Language: out.Text[m[2]:m[3]],
			Code:     strings.TrimSpace(out.Text[m[4]:m[5]]),
		}
		out.Text = strings.TrimSpace(out.Text[:m[0]])
	}

	if m := memoryRe.FindStringSubmatch(out.Text); m != nil {
		var payload struct {
			Facts []string `json:"facts"`
		}
		if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
			log.Error().Err(err).Msg("failed to parse memory block")
		} else {
			for _, fact := range payload.Facts {
				if strings.TrimSpace(fact) != "" {
					out.Facts = append(out.Facts, fact)
				}
			}
		}
		out.Text = strings.TrimSpace(memoryRe.ReplaceAllString(out.Text, ""))
	}

	return out
}
