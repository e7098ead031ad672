package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// decodeDocument sniffs JSON vs. YAML and decodes into the generic
// map[string]any/[]any shape the resolver and generators walk. OpenAPI
// documents are commonly authored in YAML; remote $refs may point at
// either.
func decodeDocument(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("decode JSON document: %w", err)
		}
		return jsonNativeToGeneric(v), nil
	}
	var v any
	if err := yaml.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("decode YAML document: %w", err)
	}
	return yamlToGeneric(v), nil
}

// jsonNativeToGeneric normalizes encoding/json's map[string]interface{}
// output (already the target shape) — present for symmetry with
// yamlToGeneric and as the one place to extend if numeric precision
// handling is ever needed.
func jsonNativeToGeneric(v any) any { return v }

// yamlToGeneric converts yaml.v3's map[string]interface{} decoding (which,
// unlike some YAML libraries, already emits string keys for v3) into the
// same generic shape used throughout, recursing into nested maps/slices and
// normalizing map[any]any should it ever appear from a custom Unmarshaler.
func yamlToGeneric(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = yamlToGeneric(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = yamlToGeneric(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = yamlToGeneric(e)
		}
		return out
	default:
		return v
	}
}
