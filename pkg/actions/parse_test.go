package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFencedBlockTakesPrecedence(t *testing.T) {
	t.Parallel()

	text := "Here {stray braces} first.\n\n```json\n{\"action\": \"generate_image\", \"prompt\": \"a red fox\"}\n```\nDone."
	action, remainder, ok := Parse(text)
	require.True(t, ok)

	assert.Equal(t, KindImage, action.Kind)
	require.NotNil(t, action.Image)
	assert.Equal(t, "a red fox", action.Image.Prompt)
	assert.Contains(t, remainder, "stray braces")
	assert.NotContains(t, remainder, "generate_image")
}

func TestParseBraceFallbackRequiresActionField(t *testing.T) {
	t.Parallel()

	_, _, ok := Parse("Some math: {1, 2, 3} is a set.")
	assert.False(t, ok)

	action, remainder, ok := Parse(`Sure! {"action": "generate_pdf", "filename": "report.pdf", "title": "Report", "content": "# Hi"} enjoy`)
	require.True(t, ok)
	assert.Equal(t, KindPDF, action.Kind)
	assert.Equal(t, "report.pdf", action.PDF.Filename)
	assert.Equal(t, "Sure!  enjoy", remainder)
}

func TestParseRejectsEmptySheets(t *testing.T) {
	t.Parallel()

	text := "```json\n{\"action\": \"generate_spreadsheet\", \"filename\": \"x.xlsx\", \"sheets\": []}\n```"
	_, _, ok := Parse(text)
	assert.False(t, ok)
}

func TestParseSpreadsheet(t *testing.T) {
	t.Parallel()

	text := "```json\n{\"action\": \"generate_spreadsheet\", \"filename\": \"budget.xlsx\", \"sheets\": [{\"sheetName\": \"Q1\", \"headers\": [\"Item\", \"Cost\"], \"rows\": [[\"Rent\", 1200]]}]}\n```"
	action, _, ok := Parse(text)
	require.True(t, ok)
	require.Equal(t, KindSpreadsheet, action.Kind)
	require.Len(t, action.Spreadsheet.Sheets, 1)
	assert.Equal(t, "Q1", action.Spreadsheet.Sheets[0].SheetName)
	assert.Equal(t, []string{"Item", "Cost"}, action.Spreadsheet.Sheets[0].Headers)
}

func TestParseRejectsBadAspectRatio(t *testing.T) {
	t.Parallel()

	text := "```json\n{\"action\": \"generate_video\", \"prompt\": \"a storm\", \"aspectRatio\": \"4:3\"}\n```"
	_, _, ok := Parse(text)
	assert.False(t, ok)

	text = "```json\n{\"action\": \"generate_video\", \"prompt\": \"a storm\", \"aspectRatio\": \"9:16\"}\n```"
	action, _, ok := Parse(text)
	require.True(t, ok)
	assert.Equal(t, "9:16", action.Video.AspectRatio)
}

func TestParseRejectsMissingRequiredFields(t *testing.T) {
	t.Parallel()

	// prompt is required
	_, _, ok := Parse("```json\n{\"action\": \"generate_image\"}\n```")
	assert.False(t, ok)

	// unknown action names fall through to plain text
	_, _, ok = Parse("```json\n{\"action\": \"self_destruct\"}\n```")
	assert.False(t, ok)
}

func TestParsePresentation(t *testing.T) {
	t.Parallel()

	text := "```json\n{\"action\": \"generate_presentation\", \"filename\": \"deck.pptx\", \"data\": {\"slides\": [{\"layout\": \"title\", \"title\": {\"text\": \"Welcome\"}}]}}\n```"
	action, _, ok := Parse(text)
	require.True(t, ok)
	require.Len(t, action.Presentation.Data.Slides, 1)
	assert.Equal(t, "Welcome", action.Presentation.Data.Slides[0].Title.Text)
}

func TestParseNoPayload(t *testing.T) {
	t.Parallel()

	_, remainder, ok := Parse("Just a normal answer with no JSON at all.")
	assert.False(t, ok)
	assert.Equal(t, "Just a normal answer with no JSON at all.", remainder)
}
