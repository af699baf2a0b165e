package tool

import (
	"encoding/json"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a compiled input schema. Descriptors are compiled exactly
// once when the catalog is built; invocations reuse the compiled form.
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema parses and compiles raw JSON schema bytes. Empty input
// yields a schema that accepts any arguments.
func CompileSchema(raw []byte) (*Schema, error) {
	if len(raw) == 0 {
		return &Schema{}, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("mem://schema.json", doc); err != nil {
		return nil, err
	}
	sch, err := c.Compile("mem://schema.json")
	if err != nil {
		return nil, err
	}
	return &Schema{compiled: sch}, nil
}

// Validate checks args against the compiled schema.
func (s *Schema) Validate(args map[string]any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	// Round-trip through JSON so numeric types match what the schema
	// library expects from decoded documents.
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return s.compiled.Validate(v)
}
