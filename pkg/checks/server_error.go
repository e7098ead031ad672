package checks

import (
	"encoding/json"
	"fmt"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// NotAServerError fires on any 5xx response, or on a 200 GraphQL response
// whose body carries a top-level "errors" array — GraphQL always answers
// with HTTP 200 even when the resolver failed, so the REST-shaped "check
// the status code" rule doesn't catch it (spec section 4.I).
func NotAServerError(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure {
	if resp.TransportError != nil {
		return nil
	}
	if resp.StatusCode >= 500 {
		return &model.CheckFailure{
			Kind:    model.KindServerError,
			Title:   "server error",
			Message: fmt.Sprintf("%s returned %d", op.Canonical, resp.StatusCode),
			Context: map[string]any{"status_code": resp.StatusCode},
			Case:    c,
			Response: resp,
		}
	}

	if op.Method == "POST" && op.PathTemplate == "/graphql" && resp.StatusCode == 200 {
		var body struct {
			Errors []any `json:"errors"`
		}
		if err := json.Unmarshal(resp.Body, &body); err == nil && len(body.Errors) > 0 {
			return &model.CheckFailure{
				Kind:    model.KindServerError,
				Title:   "GraphQL errors present",
				Message: fmt.Sprintf("%s returned a 200 with a non-empty GraphQL errors array", op.Canonical),
				Context: map[string]any{"errors": body.Errors},
				Case:    c,
				Response: resp,
			}
		}
	}

	return nil
}
