package checks

import (
	"fmt"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// MissingRequiredHeader fires only against the Coverage Phase's
// "omit required header" cases (pkg/phases.coverageForSchema's
// required-header mutation): the server should refuse a request missing a
// documented required header, typically with 400/401/406 (spec section
// 4.I). Any other case (Examples, Fuzzing, a coverage case targeting a
// different keyword) is out of scope and always passes.
func MissingRequiredHeader(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure {
	if resp.TransportError != nil || !isMissingRequiredHeaderCase(c) {
		return nil
	}
	if rejectedAsExpected(resp.StatusCode) {
		return nil
	}
	if matchesAnyPattern(ctx.expectedFor("missing_required_header"), resp.StatusCode) {
		return nil
	}

	return &model.CheckFailure{
		Kind:    model.KindMissingHeaderNotRejected,
		Title:   "missing required header not rejected",
		Message: fmt.Sprintf("%s omitted required header %q but returned %d instead of a rejection", op.Canonical, c.Meta.Mutation.Name, resp.StatusCode),
		Context: map[string]any{"header": c.Meta.Mutation.Name, "status_code": resp.StatusCode},
		Case:     c,
		Response: resp,
	}
}

func isMissingRequiredHeaderCase(c *model.Case) bool {
	return c.Meta.Phase == "Coverage" && c.Meta.Mutation != nil &&
		c.Meta.Mutation.Location == "header" && c.Meta.Mutation.Keyword == "required"
}

func rejectedAsExpected(status int) bool {
	return status == 400 || status == 401 || status == 406
}

// UnsupportedMethod fires only against the Coverage Phase's
// "unexpected method" cases (pkg/phases.unexpectedMethodCases): a method
// the operation never documents for this path should be rejected with
// 405, carrying an `Allow` header naming the supported methods (spec
// section 4.I).
func UnsupportedMethod(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure {
	if resp.TransportError != nil || !isUnexpectedMethodCase(c) {
		return nil
	}
	if resp.StatusCode == 405 {
		if _, ok := headerValue(resp.Headers, "Allow"); ok {
			return nil
		}
		return &model.CheckFailure{
			Kind:    model.KindMethodNotRejected,
			Title:   "405 response missing Allow header",
			Message: fmt.Sprintf("%s rejected unexpected method with 405 but no Allow header", op.Canonical),
			Context: map[string]any{"status_code": resp.StatusCode},
			Case:     c,
			Response: resp,
		}
	}
	if matchesAnyPattern(ctx.expectedFor("unsupported_method"), resp.StatusCode) {
		return nil
	}

	return &model.CheckFailure{
		Kind:    model.KindMethodNotRejected,
		Title:   "unsupported method not rejected",
		Message: fmt.Sprintf("%s accepted an undocumented method with status %d instead of 405", op.Canonical, resp.StatusCode),
		Context: map[string]any{"status_code": resp.StatusCode},
		Case:     c,
		Response: resp,
	}
}

func isUnexpectedMethodCase(c *model.Case) bool {
	return c.Meta.Phase == "Coverage" && c.Meta.Mutation != nil && c.Meta.Mutation.Location == "method"
}
