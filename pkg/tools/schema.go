package tools

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"
	"github.com/xeipuuv/gojsonschema"
)

func bound(f float64) *float64 { return &f }

// mcpTool builds the MCP declaration of d from its parameter table.
func mcpTool(d ToolDefinition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(d.Description)}

	for _, p := range d.Params {
		desc := p.Description
		if p.Minimum != nil && p.Maximum != nil {
			desc += fmt.Sprintf(" (%g to %g)", *p.Minimum, *p.Maximum)
		}
		propOpts := []mcp.PropertyOption{mcp.Description(desc)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}

		switch p.Type {
		case TypeString:
			if len(p.Enum) > 0 {
				propOpts = append(propOpts, mcp.Enum(p.Enum...))
			}
			if s, ok := p.Default.(string); ok {
				propOpts = append(propOpts, mcp.DefaultString(s))
			}
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		default:
			if p.Default != nil {
				propOpts = append(propOpts, mcp.DefaultNumber(cast.ToFloat64(p.Default)))
			}
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		}
	}

	return mcp.NewTool(d.Name, opts...)
}

// jsonSchema returns the JSON Schema arguments of d are validated against.
// It is stricter than the MCP declaration: integers, enums and ranges are
// enforced.
func jsonSchema(d ToolDefinition) map[string]any {
	props := map[string]any{}
	required := []string{}

	for _, p := range d.Params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func compileSchema(d ToolDefinition) (*gojsonschema.Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(jsonSchema(d)))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", d.Name, err)
	}
	return s, nil
}

// prepare copies args, fills defaults and coerces loosely typed values (a
// latitude sent as "48.85", an id sent as 5013364.0) before validation.
func prepare(d ToolDefinition, args map[string]any) Args {
	out := make(Args, len(args)+len(d.Params))
	for k, v := range args {
		out[k] = v
	}

	for _, p := range d.Params {
		v, ok := out[p.Name]
		if !ok || v == nil {
			if p.Default != nil {
				out[p.Name] = p.Default
			} else {
				delete(out, p.Name)
			}
			continue
		}
		out[p.Name] = coerce(p, v)
	}
	return out
}

func coerce(p Param, v any) any {
	switch p.Type {
	case TypeString:
		switch x := v.(type) {
		case string:
			if len(p.Enum) > 0 {
				return strings.ToLower(strings.TrimSpace(x))
			}
			return x
		case float64, float32, int, int64, int32:
			return cast.ToString(v)
		}
	case TypeNumber, TypeInteger:
		if !isNumeric(v) {
			return v
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return v
		}
		if p.Type == TypeInteger {
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return v
			}
			return int64(f)
		}
		return f
	}
	return v
}

func isNumeric(v any) bool {
	switch x := v.(type) {
	case float64, float32, int, int64, int32, uint, uint64, uint32:
		return true
	case string:
		return strings.TrimSpace(x) != ""
	default:
		return false
	}
}

// validate checks args against schema and returns every violation.
func validate(schema *gojsonschema.Schema, args Args) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(map[string]any(args)))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}
