// Package phases implements the four generation phases of spec section 4:
// Examples (D), Coverage (E), Fuzzing (F). Stateful (G) lives in
// pkg/stateful since it additionally depends on the operation graph.
package phases

import (
	"math/rand"

	"github.com/blackcoderx/conform/pkg/genvalue"
	"github.com/blackcoderx/conform/pkg/jsonvalue"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// maxExampleCombinations bounds the cartesian product across parameters
// carrying multiple explicit examples, so a handful of richly-exampled
// parameters can't combinatorially explode the Examples phase. Capped
// rather than uncapped by design — this phase is meant to replay
// documented examples, not discover new ones; Coverage and Fuzzing cover
// the rest of the space.
const maxExampleCombinations = 64

// ExamplesOptions configures the Examples phase.
type ExamplesOptions struct {
	FillMissing bool // phases.examples.fill-missing
	Resolver    *schema.Resolver
	Rand        *rand.Rand
}

// CollectExamples enumerates explicit examples from operation/parameter/
// media-type/schema-level example sources and combines them via the
// cartesian-product strategy of spec section 4.D, filling missing parts
// with a single positive sample when FillMissing is set.
//
// Grounded on data_driven_engine/template_engine.go's row-to-template
// substitution (Populate): there, CSV rows fill named template slots; here,
// per-parameter example lists fill the same slots, and when a slot has no
// recorded example the single positive fallback plays the role the
// teacher's "missing column" default value did.
func CollectExamples(op *schema.APIOperation, opts ExamplesOptions) []*model.Case {
	paramExamples := make([][]jsonvalue.Value, len(op.Parameters))
	for i, p := range op.Parameters {
		paramExamples[i] = exampleValues(p.Schema, opts)
	}

	var bodyExamples []jsonvalue.Value
	var bodyMediaType string
	if len(op.Bodies) > 0 {
		bodyMediaType = op.Bodies[0].MediaType
		bodyExamples = exampleValues(op.Bodies[0].Schema, opts)
	}

	combos := cartesianIndices(lengths(paramExamples), len(bodyExamples), maxExampleCombinations)

	cases := make([]*model.Case, 0, len(combos))
	for _, combo := range combos {
		c := model.NewCase(op.Canonical)
		c.Meta = model.GenerationMeta{Phase: "Examples", Mode: "positive", Description: "explicit schema example"}

		for i, p := range op.Parameters {
			var v jsonvalue.Value
			if idx := combo.paramIdx[i]; idx >= 0 {
				v = paramExamples[i][idx]
			} else {
				continue
			}
			applyParam(c, p, v)
		}
		if bodyMediaType != "" && combo.bodyIdx >= 0 {
			c.Body = bodyExamples[combo.bodyIdx]
			c.HasBody = true
			c.MediaType = bodyMediaType
		}
		cases = append(cases, c)
	}
	return cases
}

func applyParam(c *model.Case, p schema.Parameter, v jsonvalue.Value) {
	s := genvalue.SerializeHeaderParam(v, p.Explode)
	switch p.Location {
	case schema.InPath:
		c.PathParams[p.Name] = genvalue.SerializePathParam(p.Name, v, p.Style, p.Explode)
	case schema.InQuery:
		for _, pair := range genvalue.SerializeQueryParam(p.Name, v, p.Style, p.Explode) {
			c.Query[pair.Key] = append(c.Query[pair.Key], pair.Value)
		}
	case schema.InHeader:
		c.Headers[p.Name] = append(c.Headers[p.Name], s)
	case schema.InCookie:
		c.Cookies[p.Name] = s
	}
}

// exampleValues gathers the explicit examples found on a schema fragment
// itself: its "example", its "examples" (a list, or a map of value or
// externalValue entries) and, only when neither yields anything, its
// "default". It falls back to one generated positive sample when
// FillMissing is set and nothing was declared. Parameter-, media-type- and
// operation-level examples are not read: the fragments pkg/schema builds
// carry schema keywords only.
func exampleValues(sch map[string]any, opts ExamplesOptions) []jsonvalue.Value {
	if sch == nil {
		if opts.FillMissing {
			return []jsonvalue.Value{jsonvalue.Null()}
		}
		return nil
	}

	var values []jsonvalue.Value
	if ex, ok := sch["example"]; ok {
		values = append(values, jsonvalue.FromNative(ex))
	}
	if examples, ok := sch["examples"].(map[string]any); ok {
		for _, e := range examples {
			if m, ok := e.(map[string]any); ok {
				if v, ok := m["value"]; ok {
					values = append(values, jsonvalue.FromNative(v))
					continue
				}
				if ref, ok := m["externalValue"].(string); ok && opts.Resolver != nil {
					if fetched, _, err := opts.Resolver.Resolve(ref, nil); err == nil {
						values = append(values, jsonvalue.FromNative(fetched))
					}
				}
			}
		}
	}
	if examplesList, ok := sch["examples"].([]any); ok {
		for _, e := range examplesList {
			values = append(values, jsonvalue.FromNative(e))
		}
	}
	if def, ok := sch["default"]; ok && len(values) == 0 {
		values = append(values, jsonvalue.FromNative(def))
	}

	if len(values) == 0 && opts.FillMissing {
		v, _, err := genvalue.Generate(sch, genvalue.Options{Mode: genvalue.ModePositive, Resolver: opts.Resolver, Rand: opts.Rand})
		if err == nil {
			values = append(values, v)
		}
	}
	return values
}

type combo struct {
	paramIdx []int
	bodyIdx  int
}

func lengths(lists [][]jsonvalue.Value) []int {
	out := make([]int, len(lists))
	for i, l := range lists {
		out[i] = len(l)
	}
	return out
}

// cartesianIndices enumerates index combinations across every parameter
// list plus the body list, capped at limit. A list of length 0 contributes
// index -1 (the parameter/body is simply absent from that combination)
// rather than collapsing the whole product to empty.
func cartesianIndices(paramLens []int, bodyLen int, limit int) []combo {
	dims := append(append([]int{}, paramLens...), bodyLen)
	total := 1
	for _, d := range dims {
		if d > 0 {
			total *= d
		}
	}
	if total > limit {
		total = limit
	}
	if total == 0 {
		total = 1
	}

	combos := make([]combo, 0, total)
	for n := 0; n < total; n++ {
		rem := n
		indices := make([]int, len(dims))
		for i, d := range dims {
			if d <= 0 {
				indices[i] = -1
				continue
			}
			indices[i] = rem % d
			rem /= d
		}
		combos = append(combos, combo{paramIdx: indices[:len(paramLens)], bodyIdx: indices[len(paramLens)]})
	}
	return combos
}
