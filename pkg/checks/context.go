// Package checks implements the built-in Check library (spec section 4.I):
// pure functions over (context, response, case) that surface a
// model.CheckFailure when a response violates a documented or implicit
// contract. Grounded on security_scanner/owasp_checks.go's per-concern
// checker-function shape (one small function per named vulnerability
// class, each returning its own findings) and schema_conformance/tool.go
// for the schema-diff check specifically.
package checks

import (
	"net/http"
	"time"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// Executor issues one extra request during a check (ignored_auth's "without
// or with invalid credentials" probes). Matches pkg/transport.Transport's
// Call signature structurally so the engine can hand its transport in
// directly without pkg/checks importing pkg/transport.
type Executor func(op *schema.APIOperation, c *model.Case) (*model.Response, error)

// Context carries the per-run configuration and collaborators a Check may
// need beyond the (case, response) pair already in hand: per-check
// expected-status overrides (spec section 4.I, "expected status lists are
// overridable per check"), the response-time threshold, and an Executor
// for checks that issue their own extra requests.
type Context struct {
	Resolver *schema.Resolver

	// ExpectedStatuses overrides, keyed by check name, additional status
	// patterns that check accepts as non-failing on top of the schema's own
	// documented responses (config: checks.<name>.expected-statuses).
	ExpectedStatuses map[string][]string

	MaxResponseTime time.Duration

	Execute Executor
}

// expectedFor resolves the configured expected-status override list for a
// named check, or nil if none was configured.
func (c *Context) expectedFor(checkName string) []string {
	if c == nil || c.ExpectedStatuses == nil {
		return nil
	}
	return c.ExpectedStatuses[checkName]
}

// Check is the signature every stateless, single-step check satisfies
// (spec section 4.I: "a pure function (context, response, case) ->
// CheckFailure?"). A nil return means the response passed.
type Check func(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure

// All is the default registry of stateless checks the engine runs against
// every (Case, Response) pair, keyed by check name; being a map, it carries
// no order. Three checks are not in it: ignored_auth runs once per operation
// (IgnoredAuth), and use_after_free and ensure_resource_availability run
// over a stateful scenario's steps (see StatefulChecks).
var All = map[string]Check{
	"not_a_server_error":              NotAServerError,
	"status_code_conformance":         StatusCodeConformance,
	"content-type_conformance":        ContentTypeConformance,
	"response_headers_conformance":    ResponseHeadersConformance,
	"response_schema_conformance":     ResponseSchemaConformance,
	"negative_data_rejection":         NegativeDataRejection,
	"positive_data_acceptance":        PositiveDataAcceptance,
	"missing_required_header":         MissingRequiredHeader,
	"unsupported_method":              UnsupportedMethod,
	"max_response_time":               MaxResponseTime,
}

// matchesAnyPattern reports whether status matches one of the extra
// status patterns a config override supplies, reusing
// schema.ResponseDef.Matches' exact/NXX/default precedence so overrides
// behave identically to documented responses.
func matchesAnyPattern(patterns []string, status int) bool {
	for _, p := range patterns {
		if (schema.ResponseDef{StatusPattern: p}).Matches(status) {
			return true
		}
	}
	return false
}

func isNegativeCase(c *model.Case) bool {
	return c.Meta.Mode == "negative"
}

func isPositiveCase(c *model.Case) bool {
	return c.Meta.Mode == "positive"
}

// headerValue looks up a header case-insensitively, matching http.Header's
// own canonicalization.
func headerValue(h http.Header, name string) (string, bool) {
	if h == nil {
		return "", false
	}
	v := h.Get(name)
	return v, v != ""
}
