package checks

import (
	"fmt"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// StatusCodeConformance fires when a response's status code isn't in the
// operation's documented set — expanding "NXX" wildcards and always
// accepting "default" — or in the check's configured expected-statuses
// override (spec section 4.I).
func StatusCodeConformance(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure {
	if resp.TransportError != nil {
		return nil
	}

	if _, ok := op.ResponseFor(resp.StatusCode); ok {
		return nil
	}
	if matchesAnyPattern(ctx.expectedFor("status_code_conformance"), resp.StatusCode) {
		return nil
	}

	return &model.CheckFailure{
		Kind:    model.KindUndocumentedStatus,
		Title:   "undocumented status code",
		Message: fmt.Sprintf("%s returned status %d, not documented for this operation", op.Canonical, resp.StatusCode),
		Context: map[string]any{
			"status_code":      resp.StatusCode,
			"documented_codes": op.DocumentedStatuses(),
		},
		Case:     c,
		Response: resp,
	}
}
