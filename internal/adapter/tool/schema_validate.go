package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"devgate/internal/domain"
)

// SchemaValidatingTool wraps a Tool with JSON Schema validation.
// On Execute it fills in declared property defaults for absent params,
// validates the merged document against the compiled schema, and only then
// delegates — the inner tool never sees invalid input.
type SchemaValidatingTool struct {
	inner    domain.Tool
	schema   *jsonschema.Schema
	defaults map[string]json.RawMessage
}

// WithSchemaValidation wraps a tool so that Execute validates params against
// the tool's JSON Schema before forwarding to the inner tool.
// Returns error if the schema fails to compile.
func WithSchemaValidation(t domain.Tool) (domain.Tool, error) {
	raw := t.Schema().InputSchema
	if len(raw) == 0 || string(raw) == "null" {
		return t, nil // no schema to validate against
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", t.Name(), err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Name(), err)
	}

	return &SchemaValidatingTool{
		inner:    t,
		schema:   compiled,
		defaults: extractDefaults(raw),
	}, nil
}

// extractDefaults collects top-level property defaults from the raw schema.
// The validator itself does not apply defaults, so they are merged manually.
func extractDefaults(raw json.RawMessage) map[string]json.RawMessage {
	var doc struct {
		Properties map[string]struct {
			Default json.RawMessage `json:"default"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	defaults := make(map[string]json.RawMessage)
	for name, prop := range doc.Properties {
		if len(prop.Default) > 0 {
			defaults[name] = prop.Default
		}
	}
	return defaults
}

func (s *SchemaValidatingTool) Name() string              { return s.inner.Name() }
func (s *SchemaValidatingTool) Description() string       { return s.inner.Description() }
func (s *SchemaValidatingTool) Schema() domain.ToolSchema { return s.inner.Schema() }

func (s *SchemaValidatingTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	var doc map[string]any
	if err := json.Unmarshal(params, &doc); err != nil {
		return ErrResult("invalid JSON: %v", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	for name, raw := range s.defaults {
		if _, present := doc[name]; present {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			doc[name] = v
		}
	}

	if err := s.schema.Validate(any(doc)); err != nil {
		return ErrResult("schema validation failed: %s", formatValidationError(err))
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return ErrResult("merge defaults: %v", err)
	}
	return s.inner.Execute(ctx, merged)
}

// formatValidationError flattens a validation error into per-field messages
// so the caller can see which parameter was rejected.
func formatValidationError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}

	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "(root)"
			}
			msgs = append(msgs, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}
