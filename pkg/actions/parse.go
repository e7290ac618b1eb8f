package actions

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Per-action payload schemas. Validation happens before dispatch so a
// half-formed payload falls through to plain text handling instead of
// starting a subroutine with missing fields.
var actionSchemas = map[Kind]string{
	KindImage: `{
		"type": "object",
		"required": ["action", "prompt"],
		"properties": {
			"action": {"const": "generate_image"},
			"prompt": {"type": "string", "minLength": 1},
			"count": {"type": "integer", "minimum": 1}
		}
	}`,
	KindPDF: `{
		"type": "object",
		"required": ["action", "filename", "title", "content"],
		"properties": {
			"action": {"const": "generate_pdf"},
			"filename": {"type": "string", "minLength": 1},
			"title": {"type": "string"},
			"content": {"type": "string"}
		}
	}`,
	KindSpreadsheet: `{
		"type": "object",
		"required": ["action", "filename", "sheets"],
		"properties": {
			"action": {"const": "generate_spreadsheet"},
			"filename": {"type": "string", "minLength": 1},
			"sheets": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["sheetName", "headers", "rows"],
					"properties": {
						"sheetName": {"type": "string"},
						"headers": {"type": "array", "items": {"type": "string"}},
						"rows": {"type": "array", "items": {"type": "array"}}
					}
				}
			}
		}
	}`,
	KindPresentation: `{
		"type": "object",
		"required": ["action", "filename", "data"],
		"properties": {
			"action": {"const": "generate_presentation"},
			"filename": {"type": "string", "minLength": 1},
			"data": {
				"type": "object",
				"required": ["slides"],
				"properties": {
					"slides": {"type": "array", "items": {"type": "object"}}
				}
			}
		}
	}`,
	KindWord: `{
		"type": "object",
		"required": ["action", "filename", "content"],
		"properties": {
			"action": {"const": "generate_word"},
			"filename": {"type": "string", "minLength": 1},
			"content": {"type": "array", "items": {"type": "object"}}
		}
	}`,
	KindVideo: `{
		"type": "object",
		"required": ["action", "prompt"],
		"properties": {
			"action": {"const": "generate_video"},
			"prompt": {"type": "string", "minLength": 1},
			"aspectRatio": {"type": "string", "enum": ["16:9", "9:16"]}
		}
	}`,
}

// Parse scans the final response text for an embedded action payload. The
// fenced ```json block wins; failing that, the widest {...} substring is
// tried and accepted only if it parses and carries an "action" field. On a
// match the payload span is stripped from the text and the trimmed remainder
// returned alongside the decoded action.
func Parse(text string) (*Action, string, bool) {
	jsonString, remainder := extractCandidate(text)
	if jsonString == "" {
		return nil, text, false
	}

	action, ok := decode(jsonString)
	if !ok {
		return nil, text, false
	}
	return action, remainder, true
}

func extractCandidate(text string) (string, string) {
	if m := fenceRe.FindStringSubmatchIndex(text); m != nil {
		jsonString := strings.TrimSpace(text[m[2]:m[3]])
		remainder := strings.TrimSpace(text[:m[0]] + text[m[1]:])
		return jsonString, remainder
	}

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last <= first {
		return "", text
	}
	candidate := text[first : last+1]
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		log.Warn().Err(err).Msg("potential JSON payload in response failed to parse")
		return "", text
	}
	if _, hasAction := probe["action"]; !hasAction {
		return "", text
	}
	remainder := strings.TrimSpace(text[:first] + text[last+1:])
	return candidate, remainder
}

func decode(jsonString string) (*Action, bool) {
	var discriminator struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(jsonString), &discriminator); err != nil {
		log.Warn().Err(err).Msg("could not parse action payload")
		return nil, false
	}

	kind := Kind(discriminator.Action)
	schema, known := actionSchemas[kind]
	if !known {
		return nil, false
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(jsonString),
	)
	if err != nil {
		log.Warn().Err(err).Str("action", discriminator.Action).Msg("action payload validation errored")
		return nil, false
	}
	if !result.Valid() {
		log.Warn().
			Str("action", discriminator.Action).
			Interface("errors", result.Errors()).
			Msg("action payload failed schema validation")
		return nil, false
	}

	action := &Action{Kind: kind}
	var decodeErr error
	switch kind {
	case KindImage:
		action.Image = &ImageAction{}
		decodeErr = json.Unmarshal([]byte(jsonString), action.Image)
	case KindPDF:
		action.PDF = &PDFAction{}
		decodeErr = json.Unmarshal([]byte(jsonString), action.PDF)
	case KindSpreadsheet:
		action.Spreadsheet = &SpreadsheetAction{}
		decodeErr = json.Unmarshal([]byte(jsonString), action.Spreadsheet)
	case KindPresentation:
		action.Presentation = &PresentationAction{}
		decodeErr = json.Unmarshal([]byte(jsonString), action.Presentation)
	case KindWord:
		action.Word = &WordAction{}
		decodeErr = json.Unmarshal([]byte(jsonString), action.Word)
	case KindVideo:
		action.Video = &VideoAction{}
		decodeErr = json.Unmarshal([]byte(jsonString), action.Video)
	}
	if decodeErr != nil {
		log.Warn().Err(decodeErr).Str("action", discriminator.Action).Msg("could not decode action payload")
		return nil, false
	}
	return action, true
}
