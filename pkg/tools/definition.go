package tools

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Handler executes a tool call. Arguments arrive as the raw JSON object the
// model produced; the result is marshalled back into the function response.
type Handler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Definition describes a callable tool: its declaration for the generation
// backend plus the handler that performs the real effect.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	Handler     Handler            `json:"-"`
}

// Declaration returns the wire-facing part of the definition.
func (d Definition) Declaration() generation.ToolDeclaration {
	return generation.ToolDeclaration{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
	}
}

// Execute unmarshals the arguments and runs the handler.
func (d Definition) Execute(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if d.Handler == nil {
		return nil, errors.Errorf("tool %s has no handler", d.Name)
	}
	return d.Handler(ctx, args)
}

// reflectSchema builds an inline JSON schema from an input struct type.
func reflectSchema(input interface{}) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs
		DoNotReference: true,
	}
	return reflector.Reflect(reflect.New(reflect.TypeOf(input)).Elem().Interface())
}

func decodeArgs(args json.RawMessage, into interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, into); err != nil {
		return errors.Wrap(err, "failed to unmarshal tool arguments")
	}
	return nil
}
