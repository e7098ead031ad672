package checks

import (
	"fmt"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// NegativeDataRejection fires when a case generated in negative mode
// (model.Case.Meta.Mode == "negative") is nonetheless accepted with any 2xx
// (spec section 4.I): the server should have rejected invalid input, and
// didn't. Statuses listed in the check's expected-statuses override are
// exempt; the operation's documented responses are not consulted.
func NegativeDataRejection(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure {
	if resp.TransportError != nil || !isNegativeCase(c) {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}
	if matchesAnyPattern(ctx.expectedFor("negative_data_rejection"), resp.StatusCode) {
		return nil
	}

	return &model.CheckFailure{
		Kind:    model.KindNegativeAccepted,
		Title:   "invalid input accepted",
		Message: fmt.Sprintf("%s accepted a negative case (violating %s) with status %d", op.Canonical, mutationKeyword(c), resp.StatusCode),
		Context: map[string]any{
			"status_code": resp.StatusCode,
			"mutation":    mutationKeyword(c),
		},
		Case:     c,
		Response: resp,
	}
}

// PositiveDataAcceptance fires when a case built entirely from valid,
// schema-satisfying data (model.Case.Meta.Mode == "positive") is rejected
// with an unexpected 4xx (spec section 4.I): the server should have
// accepted well-formed input, and didn't.
func PositiveDataAcceptance(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure {
	if resp.TransportError != nil || !isPositiveCase(c) {
		return nil
	}
	if resp.StatusCode < 400 || resp.StatusCode >= 500 {
		return nil
	}
	if _, ok := op.ResponseFor(resp.StatusCode); ok {
		return nil // the operation documents this 4xx as a valid outcome
	}
	if matchesAnyPattern(ctx.expectedFor("positive_data_acceptance"), resp.StatusCode) {
		return nil
	}

	return &model.CheckFailure{
		Kind:    model.KindPositiveRejected,
		Title:   "valid input rejected",
		Message: fmt.Sprintf("%s rejected a positive case with undocumented status %d", op.Canonical, resp.StatusCode),
		Context: map[string]any{"status_code": resp.StatusCode},
		Case:     c,
		Response: resp,
	}
}

func mutationKeyword(c *model.Case) string {
	if c.Meta.Mutation == nil {
		return "unknown"
	}
	return c.Meta.Mutation.Keyword
}
