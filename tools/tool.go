package tools

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/invopop/jsonschema"
)

// ToolFunc handles one call. args holds the keyword arguments as parsed from
// the call site: strings, int64, float64, bool or nil.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

type ToolDefinition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Function    ToolFunc
}

// GenerateSchema reflects T into an inline JSON Schema. Fields without
// omitempty are required.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// decodeArgs maps keyword arguments onto T. Numeric strings and similar are
// converted; unknown keys are an error.
func decodeArgs[T any](args map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(args); err != nil {
		return out, fmt.Errorf("decode arguments: %w", err)
	}
	return out, nil
}
