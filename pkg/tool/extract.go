package tool

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// BuildDescriptor derives a Descriptor from a tool's declared args struct
// and its doc text. It runs exactly once per tool, at catalog construction.
//
// The first paragraph of doc becomes the tool description. Parameter
// descriptions come from an "Args:" block of "name: text" lines, with
// indented continuation lines joined. Fields are advertised in declaration
// order; a field is required iff it carries no `default` tag. Missing doc
// text degrades to placeholder descriptions, never to an error.
func BuildDescriptor(name, doc string, args any) (Descriptor, error) {
	desc := firstParagraph(doc)
	if desc == "" {
		desc = "No description"
	}
	paramDocs := parseArgsBlock(doc)

	var params []Param
	if args != nil {
		rt := reflect.TypeOf(args)
		if rt.Kind() == reflect.Pointer {
			rt = rt.Elem()
		}
		if rt.Kind() != reflect.Struct {
			return Descriptor{}, fmt.Errorf("tool %q: args must be a struct, got %s", name, rt.Kind())
		}
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			pname := jsonFieldName(f)
			if pname == "" {
				continue
			}
			pdoc := paramDocs[pname]
			if pdoc == "" {
				pdoc = "No description"
			}
			_, hasDefault := f.Tag.Lookup("default")
			params = append(params, Param{
				Name:        pname,
				Type:        jsonType(f.Type),
				Description: pdoc,
				Required:    !hasDefault,
			})
		}
	}

	schema, err := marshalParamSchema(params)
	if err != nil {
		return Descriptor{}, fmt.Errorf("tool %q: %w", name, err)
	}
	return Descriptor{Name: name, Description: desc, Params: params, InputSchema: schema}, nil
}

func marshalParamSchema(params []Param) ([]byte, error) {
	props := map[string]*jsonschema.Schema{}
	var required []string
	for _, p := range params {
		ps := &jsonschema.Schema{Type: p.Type, Description: p.Description}
		if p.Type == "array" {
			ps.Items = &jsonschema.Schema{Type: "string"}
		}
		props[p.Name] = ps
		if p.Required {
			required = append(required, p.Name)
		}
	}
	s := &jsonschema.Schema{Type: "object", Properties: props, Required: required}
	return json.Marshal(s)
}

// jsonFieldName returns the advertised parameter name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if tag != "" {
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		if tag != "" {
			return tag
		}
	}
	return strings.ToLower(f.Name)
}

// jsonType maps a Go type to one of the wire schema types. Unrecognized
// types fall back to string.
func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "string"
	}
}

func firstParagraph(doc string) string {
	doc = strings.TrimSpace(doc)
	if idx := strings.Index(doc, "\n\n"); idx >= 0 {
		doc = doc[:idx]
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc), " "))
}

// parseArgsBlock extracts "name: description" entries from an Args: block.
// Continuation lines (anything that is not a new "name:" line) extend the
// previous entry. A line ending with ":" that is not a parameter entry
// terminates the block.
func parseArgsBlock(doc string) map[string]string {
	result := map[string]string{}
	lines := strings.Split(doc, "\n")

	inArgs := false
	current := ""
	var parts []string
	flush := func() {
		if current != "" {
			result[current] = strings.TrimSpace(strings.Join(parts, " "))
		}
	}
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "Args:" {
			inArgs = true
			continue
		}
		if !inArgs {
			continue
		}
		if stripped == "" {
			continue
		}
		if strings.HasSuffix(stripped, ":") {
			// next doc section (Returns:, Raises:, ...)
			break
		}
		if name, rest, ok := splitParamLine(stripped); ok {
			flush()
			current = name
			parts = []string{rest}
		} else if current != "" {
			parts = append(parts, stripped)
		}
	}
	flush()
	return result
}

// splitParamLine matches "name: description" where name is a single
// identifier-ish token.
func splitParamLine(s string) (name, rest string, ok bool) {
	idx := strings.Index(s, ":")
	if idx <= 0 {
		return "", "", false
	}
	name = strings.TrimSpace(s[:idx])
	if strings.ContainsAny(name, " \t") {
		return "", "", false
	}
	return name, strings.TrimSpace(s[idx+1:]), true
}

// decodeArgs maps validated arguments onto a typed args struct, applying
// `default` tags for absent optional parameters.
func decodeArgs(args map[string]any, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode target must be a struct pointer")
	}
	rt := rv.Elem().Type()
	merged := make(map[string]any, len(args))
	for k, v := range args {
		merged[k] = v
	}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		def, ok := f.Tag.Lookup("default")
		if !ok {
			continue
		}
		pname := jsonFieldName(f)
		if _, present := merged[pname]; present {
			continue
		}
		switch f.Type.Kind() {
		case reflect.String:
			merged[pname] = def
		case reflect.Bool:
			b, err := strconv.ParseBool(def)
			if err == nil {
				merged[pname] = b
			}
		case reflect.Float32, reflect.Float64:
			fv, err := strconv.ParseFloat(def, 64)
			if err == nil {
				merged[pname] = fv
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			iv, err := strconv.ParseInt(def, 10, 64)
			if err == nil {
				merged[pname] = iv
			}
		}
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
