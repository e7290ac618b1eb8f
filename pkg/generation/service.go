package generation

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ToolDeclaration describes one callable tool offered to the model.
// Parameters follow JSON schema, the way providers expect function
// declarations.
type ToolDeclaration struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// Config carries everything a single generation call needs beyond the
// content turns themselves.
type Config struct {
	Model             string
	Temperature       float64
	SystemInstruction string
	Tools             []ToolDeclaration
	// WebSearch activates the provider's built-in search tool.
	WebSearch bool
	// ThinkingBudget is a reasoning-effort hint; nil leaves the provider
	// default, zero disables extended thinking.
	ThinkingBudget *int
}

// WithoutTools returns a copy of the config with all tool declarations
// removed, used for the follow-up call after a tool round so the model
// produces a final natural-language answer.
func (c Config) WithoutTools() Config {
	out := c
	out.Tools = nil
	out.WebSearch = false
	return out
}

// Service is the generation capability the orchestration core consumes.
// Implementations handle provider-specific wire formats.
type Service interface {
	// Generate runs one completion over the given content turns.
	Generate(ctx context.Context, contents []Content, cfg Config) (*Response, error)

	// GenerateStructured runs one completion constrained to the given JSON
	// schema and returns the raw JSON document the model produced.
	GenerateStructured(ctx context.Context, contents []Content, schema map[string]any, cfg Config) (json.RawMessage, error)
}
