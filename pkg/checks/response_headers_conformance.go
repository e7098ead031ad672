package checks

import (
	"fmt"
	"strconv"

	"github.com/xeipuuv/gojsonschema"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// ResponseHeadersConformance fires when a documented required header is
// missing from the response, or present but its value fails the header's
// own JSON Schema (spec section 4.I). Only the first violation per
// response is reported — matching response_schema_conformance's one-
// failure-per-check-per-response shape — since a caller that wants every
// violation can rerun after fixing the first.
func ResponseHeadersConformance(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure {
	if resp.TransportError != nil {
		return nil
	}
	def, ok := op.ResponseFor(resp.StatusCode)
	if !ok {
		return nil
	}

	for name, headerDef := range def.Headers {
		value, present := headerValue(resp.Headers, name)
		if !present {
			if headerDef.Required {
				return &model.CheckFailure{
					Kind:     model.KindMissingHeader,
					Title:    "missing required header",
					Message:  fmt.Sprintf("%s response is missing required header %q", op.Canonical, name),
					Context:  map[string]any{"header": name, "status_code": resp.StatusCode},
					Case:     c,
					Response: resp,
				}
			}
			continue
		}
		if headerDef.Schema == nil {
			continue
		}
		if violation := validateHeaderValue(name, value, headerDef.Schema); violation != "" {
			return &model.CheckFailure{
				Kind:    model.KindHeaderSchemaViolation,
				Title:   "response header schema violation",
				Message: fmt.Sprintf("%s header %q value %q: %s", op.Canonical, name, value, violation),
				Context: map[string]any{"header": name, "value": value},
				Case:     c,
				Response: resp,
			}
		}
	}
	return nil
}

// validateHeaderValue coerces a raw header string to the JSON type its
// schema declares (headers are always strings on the wire) before handing
// it to gojsonschema, returning a human-readable violation description or
// "" if the value conforms.
func validateHeaderValue(name, value string, headerSchema map[string]any) string {
	var typed any = value
	switch headerSchema["type"] {
	case "integer":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			typed = n
		}
	case "number":
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			typed = n
		}
	case "boolean":
		if b, err := strconv.ParseBool(value); err == nil {
			typed = b
		}
	}

	schemaLoader := gojsonschema.NewGoLoader(headerSchema)
	docLoader := gojsonschema.NewGoLoader(typed)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Sprintf("schema error: %v", err)
	}
	if result.Valid() {
		return ""
	}
	return result.Errors()[0].String()
}
