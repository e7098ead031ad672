package checks

import (
	"fmt"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// IgnoredAuth probes an operation that declares Security by issuing two
// extra requests (spec section 4.I: "emits 2 extra requests per
// operation") — one with no credentials at all, one with a deliberately
// wrong value for the first declared scheme — and fires if either gets a
// non-401/403 response, meaning the server accepted (or at least didn't
// explicitly reject) a request it should have turned away.
//
// Unlike the per-Case checks in All, this runs once per operation rather
// than once per generated Case: the engine invokes it separately, after the
// operation's generated Cases have run, passing the first Case whose Mode
// is not "negative" as baseCase. baseCase supplies a representative set of
// non-auth parameters (path params, body) to reuse for both probes.
func IgnoredAuth(ctx *Context, op *schema.APIOperation, baseCase *model.Case) []*model.CheckFailure {
	if len(op.Security) == 0 || ctx.Execute == nil {
		return nil
	}

	var failures []*model.CheckFailure

	if f := probeAuth(ctx, op, baseCase, "no credentials", func(c *model.Case) {
		c.Headers.Del("Authorization")
	}); f != nil {
		failures = append(failures, f)
	}

	scheme, ok := firstScheme(ctx, op)
	if ok {
		if f := probeAuth(ctx, op, baseCase, fmt.Sprintf("invalid credentials for %s", scheme.Name), func(c *model.Case) {
			applyInvalidCredential(c, scheme)
		}); f != nil {
			failures = append(failures, f)
		}
	}

	return failures
}

func probeAuth(ctx *Context, op *schema.APIOperation, baseCase *model.Case, label string, mutate func(*model.Case)) *model.CheckFailure {
	probe := cloneCase(baseCase)
	mutate(probe)
	probe.Meta = model.GenerationMeta{Phase: "Checks", Description: "ignored_auth: " + label}

	resp, err := ctx.Execute(op, probe)
	if err != nil || resp.TransportError != nil {
		return nil
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return nil
	}

	return &model.CheckFailure{
		Kind:    model.KindAuthIgnored,
		Title:   "authentication requirement ignored",
		Message: fmt.Sprintf("%s returned %d for a request with %s, expected 401/403", op.Canonical, resp.StatusCode, label),
		Context: map[string]any{"probe": label, "status_code": resp.StatusCode},
		Case:     probe,
		Response: resp,
	}
}

func firstScheme(ctx *Context, op *schema.APIOperation) (schema.SecurityScheme, bool) {
	if len(op.Security) == 0 {
		return schema.SecurityScheme{}, false
	}
	name := op.Security[0].SchemeName
	// The operation only names the scheme, and Context carries no table of
	// declared schemes to resolve it against, so the invalid-credential
	// probe always sends a bearer value in the Authorization header,
	// whatever the named scheme's declared type and location.
	return schema.SecurityScheme{Name: name, Type: "http", Scheme: "bearer", In: schema.InHeader, ParamName: "Authorization"}, true
}

func applyInvalidCredential(c *model.Case, scheme schema.SecurityScheme) {
	const invalid = "conform-invalid-credential"
	switch scheme.In {
	case schema.InQuery:
		c.Query[scheme.ParamName] = []string{invalid}
	case schema.InCookie:
		c.Cookies[scheme.ParamName] = invalid
	default:
		name := scheme.ParamName
		if name == "" {
			name = "Authorization"
		}
		c.Headers.Set(name, "Bearer "+invalid)
	}
}

func cloneCase(base *model.Case) *model.Case {
	c := model.NewCase(base.Operation)
	for k, v := range base.PathParams {
		c.PathParams[k] = v
	}
	for k, v := range base.Query {
		c.Query[k] = append([]string{}, v...)
	}
	for k, v := range base.Headers {
		c.Headers[k] = append([]string{}, v...)
	}
	for k, v := range base.Cookies {
		c.Cookies[k] = v
	}
	c.Body = base.Body
	c.HasBody = base.HasBody
	c.MediaType = base.MediaType
	return c
}
