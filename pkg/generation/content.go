package generation

// Content is one role-tagged turn handed to the generation backend.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is a single piece of a content turn. Exactly one field is set.
type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// Blob carries inline binary data (images, audio) as base64.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall is a structured request from the backend asking the
// orchestrator to execute a named capability. ID is the provider-assigned
// call identifier, carried so a response can be matched on replay.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse feeds a tool result back into a follow-up call.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// GroundingChunk is a citation attached to generated text.
type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty"`
}

type WebSource struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

// Response is what a generation call yields back to the orchestrator.
type Response struct {
	Text          string
	FunctionCalls []FunctionCall
	Grounding     []GroundingChunk
	// ModelTurn is the assistant turn as the provider represents it,
	// replayed verbatim when a tool result is appended.
	ModelTurn *Content
}

// FindFunctionCall returns the first function call with the given name.
func (r *Response) FindFunctionCall(name string) *FunctionCall {
	if r == nil {
		return nil
	}
	for i := range r.FunctionCalls {
		if r.FunctionCalls[i].Name == name {
			return &r.FunctionCalls[i]
		}
	}
	return nil
}

// NewTextContent builds a single-part text turn.
func NewTextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// NewFunctionResponseContent builds the tool turn carrying a function result.
func NewFunctionResponseContent(name string, response map[string]any) Content {
	return Content{
		Role:  "tool",
		Parts: []Part{{FunctionResponse: &FunctionResponse{Name: name, Response: response}}},
	}
}
