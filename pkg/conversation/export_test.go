package conversation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportFixture() *Conversation {
	conv := New("Weather talk", ModelFast)
	conv.Messages = append(conv.Messages,
		NewMessage(RoleUser, "what's the weather?"),
		NewMessage(RoleModel, "Sunny, 22°C."),
	)
	conv.Messages[1].Grounding = []GroundingChunk{{URI: "https://example.com", Title: "forecast"}}
	conv.Messages[1].CodeBlock = &CodeBlock{Code: "<p>sun</p>", Language: "html"}
	return conv
}

func TestExportMarkdown(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	require.NoError(t, Export(&buf, exportFixture(), ExportMarkdown))

	out := buf.String()
	assert.Contains(t, out, "# Weather talk")
	assert.Contains(t, out, "## You\n\nwhat's the weather?")
	assert.Contains(t, out, "## Assistant\n\nSunny, 22°C.")
	assert.Contains(t, out, "[forecast](https://example.com)")
	assert.Contains(t, out, "```html\n<p>sun</p>\n```")
}

func TestExportText(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	require.NoError(t, Export(&buf, exportFixture(), ExportText))
	assert.Equal(t, "You:\nwhat's the weather?\n\nAssistant:\nSunny, 22°C.\n\n", buf.String())
}

func TestExportJSONRoundTrips(t *testing.T) {
	t.Parallel()

	conv := exportFixture()
	var buf strings.Builder
	require.NoError(t, Export(&buf, conv, ExportJSON))

	var got Conversation
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &got))
	assert.Equal(t, conv.ID, got.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "Sunny, 22°C.", got.Messages[1].ActiveContent())
}

func TestExportUnknownFormat(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	require.Error(t, Export(&buf, exportFixture(), ExportFormat("docx")))
}
