package checks

import (
	"encoding/json"
	"fmt"
	"mime"

	"github.com/aymanbagabas/go-udiff"
	"github.com/xeipuuv/gojsonschema"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// maxSchemaExpansionDepth bounds expandSchema's recursive $ref inlining —
// gojsonschema needs a self-contained document, but a cyclic schema (an
// object referencing itself) would recurse forever without a limit. This
// mirrors pkg/schema.Resolver's own cycle-break policy applied to a
// different consumer.
const maxSchemaExpansionDepth = 12

// ResponseSchemaConformance deserializes the response body and validates
// it against the matched response's declared schema for its media type,
// reporting the first violation with its JSON Pointer location and a
// rendered expected-vs-actual diff (spec section 4.I: "SchemaViolation
// (with JSON-pointer + schema path)"). Grounded on
// schema_conformance/tool.go's SchemaViolation{Endpoint, Path, Description,
// Expected, Actual} shape. Library: xeipuuv/gojsonschema for the
// validation itself (no other JSON Schema validator appears anywhere in
// the retrieval pack); aymanbagabas/go-udiff renders the diff.
func ResponseSchemaConformance(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure {
	if resp.TransportError != nil {
		return nil
	}
	def, ok := op.ResponseFor(resp.StatusCode)
	if !ok {
		return nil
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Headers.Get("Content-Type"))
	sch, ok := def.MediaTypes[mediaType]
	if !ok || len(sch) == 0 || len(resp.Body) == 0 {
		return nil
	}

	var doc any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return &model.CheckFailure{
			Kind:    model.KindSchemaViolation,
			Title:   "response body is not valid JSON",
			Message: fmt.Sprintf("%s response body failed to parse as JSON: %v", op.Canonical, err),
			Context: map[string]any{"pointer": "/"},
			Case:     c,
			Response: resp,
		}
	}

	expanded := expandSchema(sch, ctx.Resolver, 0)
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(expanded), gojsonschema.NewGoLoader(doc))
	if err != nil || result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	expectedJSON, _ := json.MarshalIndent(expanded, "", "  ")
	actualJSON, _ := json.MarshalIndent(doc, "", "  ")
	diff := udiff.Unified("schema", "response", string(expectedJSON), string(actualJSON))

	return &model.CheckFailure{
		Kind:    model.KindSchemaViolation,
		Title:   "response schema violation",
		Message: fmt.Sprintf("%s response: %s", op.Canonical, first.String()),
		Context: map[string]any{
			"pointer":     "/" + first.Field(),
			"schema_path": first.Context().String(),
			"diff":        diff,
		},
		Case:     c,
		Response: resp,
	}
}

// expandSchema recursively inlines $ref nodes via resolver so the result
// is a self-contained document gojsonschema can validate without needing
// its own base-URI resolution.
func expandSchema(node map[string]any, resolver *schema.Resolver, depth int) map[string]any {
	if resolver == nil || depth > maxSchemaExpansionDepth {
		return node
	}
	if _, ok := schema.IsRef(node); ok {
		resolved, err := resolver.Deref(node, nil)
		if err == nil {
			node = resolved
		}
	}
	out := make(map[string]any, len(node))
	for k, v := range node {
		out[k] = expandValue(v, resolver, depth+1)
	}
	return out
}

func expandValue(v any, resolver *schema.Resolver, depth int) any {
	switch val := v.(type) {
	case map[string]any:
		return expandSchema(val, resolver, depth)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = expandValue(e, resolver, depth)
		}
		return out
	default:
		return v
	}
}
