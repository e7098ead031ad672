package checks

import (
	"fmt"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// MaxResponseTime fires when a response arrives slower than the
// configured threshold (spec section 4.I). A zero or negative threshold
// disables the check, since 0 isn't a meaningful "always fail" SLA.
func MaxResponseTime(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure {
	if resp.TransportError != nil || ctx.MaxResponseTime <= 0 {
		return nil
	}
	if resp.Duration <= ctx.MaxResponseTime {
		return nil
	}

	return &model.CheckFailure{
		Kind:    model.KindTooSlow,
		Title:   "response exceeded max response time",
		Message: fmt.Sprintf("%s took %s, exceeding the %s threshold", op.Canonical, resp.Duration, ctx.MaxResponseTime),
		Context: map[string]any{
			"duration_ms": resp.Duration.Milliseconds(),
			"threshold_ms": ctx.MaxResponseTime.Milliseconds(),
		},
		Case:     c,
		Response: resp,
	}
}
