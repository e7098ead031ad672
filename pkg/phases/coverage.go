package phases

import (
	"fmt"
	"math/rand"

	"github.com/blackcoderx/conform/pkg/genvalue"
	"github.com/blackcoderx/conform/pkg/jsonvalue"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// CoverageOptions configures the Coverage phase.
type CoverageOptions struct {
	UnexpectedMethods  []string // phases.coverage.unexpected-methods
	DuplicateQueryParam bool    // phases.coverage.duplicate-query-params
	Resolver           *schema.Resolver
	// Rand backs the enum non-member generator's genvalue.Generate call
	// (the same ModeNegative path the Fuzzing phase drives), set by
	// Engine.collectPhase from its per-operation *rand.Rand.
	Rand *rand.Rand
}

// CollectCoverage emits the deterministic boundary/negation table of spec
// section 4.E: one Case per constraint-keyword scenario, each labeled with
// meta.mutation describing what was varied.
//
// Grounded on security_scanner/fuzzer.go's per-category enumeration loop
// (fuzzSQLInjection, fuzzXSS, ... each returning a fixed payload list for
// its category); generalized here from a fixed attack-string list per
// vulnerability class into a fixed boundary-value list per JSON-Schema
// keyword.
func CollectCoverage(op *schema.APIOperation, opts CoverageOptions) []*model.Case {
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}

	var cases []*model.Case

	for _, p := range op.Parameters {
		cases = append(cases, coverageForSchema(op, "parameter:"+string(p.Location), p.Name, p.Schema, r, func(v jsonvalue.Value, desc string) *model.Case {
			c := newCoverageCase(op, desc)
			applyParam(c, p, v)
			return c
		})...)
	}

	if len(op.Bodies) > 0 {
		body := op.Bodies[0]
		cases = append(cases, coverageForSchema(op, "body", "", body.Schema, r, func(v jsonvalue.Value, desc string) *model.Case {
			c := newCoverageCase(op, desc)
			c.Body = v
			c.HasBody = true
			c.MediaType = body.MediaType
			return c
		})...)
	}

	cases = append(cases, unexpectedMethodCases(op, opts.UnexpectedMethods)...)
	cases = append(cases, missingRequiredHeaderCases(op)...)
	if opts.DuplicateQueryParam {
		cases = append(cases, duplicateQueryParamCases(op)...)
	}

	return cases
}

func newCoverageCase(op *schema.APIOperation, desc string) *model.Case {
	c := model.NewCase(op.Canonical)
	c.Meta = model.GenerationMeta{Phase: "Coverage", Description: desc}
	return c
}

type caseBuilder func(v jsonvalue.Value, desc string) *model.Case

func coverageForSchema(op *schema.APIOperation, location, name string, sch map[string]any, r *rand.Rand, build caseBuilder) []*model.Case {
	if sch == nil {
		return nil
	}
	var cases []*model.Case

	if minLen, ok := numField(sch, "minLength"); ok {
		for _, n := range []int{int(minLen) - 1, int(minLen), int(minLen) + 1} {
			cases = append(cases, labeled(build, jsonvalue.String(repeatString(n)), location, name, "minLength", fmt.Sprintf("length=%d", n)))
		}
	}
	if maxLen, ok := numField(sch, "maxLength"); ok {
		for _, n := range []int{int(maxLen) - 1, int(maxLen), int(maxLen) + 1} {
			cases = append(cases, labeled(build, jsonvalue.String(repeatString(n)), location, name, "maxLength", fmt.Sprintf("length=%d", n)))
		}
	}
	if min, ok := numField(sch, "minimum"); ok {
		for _, n := range []float64{min - 1, min, min + 1} {
			cases = append(cases, labeled(build, jsonvalue.Number(n), location, name, "minimum", fmt.Sprintf("value=%v", n)))
		}
	}
	if max, ok := numField(sch, "maximum"); ok {
		for _, n := range []float64{max - 1, max, max + 1} {
			cases = append(cases, labeled(build, jsonvalue.Number(n), location, name, "maximum", fmt.Sprintf("value=%v", n)))
		}
	}
	if minItems, ok := numField(sch, "minItems"); ok {
		for _, n := range []int{int(minItems) - 1, int(minItems), int(minItems) + 1} {
			cases = append(cases, labeled(build, arrayOfSize(maxIntZero(n)), location, name, "minItems", fmt.Sprintf("size=%d", n)))
		}
	}
	if maxItems, ok := numField(sch, "maxItems"); ok {
		for _, n := range []int{int(maxItems) - 1, int(maxItems), int(maxItems) + 1} {
			cases = append(cases, labeled(build, arrayOfSize(maxIntZero(n)), location, name, "maxItems", fmt.Sprintf("size=%d", n)))
		}
	}
	if enum, ok := sch["enum"].([]any); ok {
		for _, e := range enum {
			cases = append(cases, labeled(build, jsonvalue.FromNative(e), location, name, "enum", fmt.Sprintf("member=%v", e)))
		}
		nonMember, _, err := genvalue.Generate(sch, genvalue.Options{Mode: genvalue.ModeNegative, Rand: r})
		if err == nil {
			cases = append(cases, labeled(build, nonMember, location, name, "enum", "non-member"))
		}
	}
	if required, ok := sch["required"].([]any); ok {
		props, _ := sch["properties"].(map[string]any)
		for _, reqEntry := range required {
			// The Mutation.Name recorded here is the omitted property, not
			// the enclosing name parameter (which names the parameter/body
			// "required" lives on, not any one of its properties) — every
			// other keyword's Mutation.Name identifies the mutated field
			// itself, and for "required" that field is whichever property
			// got dropped.
			omitted, _ := reqEntry.(string)
			without := objectWithout(props, omitted)
			cases = append(cases, labeled(build, without, location, omitted, "required", fmt.Sprintf("omit=%s", omitted)))
		}
	}
	if forbidden := forbiddenTypes(sch); len(forbidden) > 0 {
		for _, ft := range forbidden {
			cases = append(cases, labeled(build, sampleOfType(ft), location, name, "type", fmt.Sprintf("forbidden-type=%s", ft)))
		}
	}
	if _, ok := sch["pattern"].(string); ok {
		cases = append(cases, labeled(build, jsonvalue.String("non-matching-\x00"), location, name, "pattern", "non-matching"))
	}

	return cases
}

func labeled(build caseBuilder, v jsonvalue.Value, location, name, keyword, desc string) *model.Case {
	c := build(v, fmt.Sprintf("%s %s: %s", location, keyword, desc))
	c.Meta.Mutation = &model.Mutation{Location: location, Name: name, Keyword: keyword}
	return c
}

func unexpectedMethodCases(op *schema.APIOperation, methods []string) []*model.Case {
	var cases []*model.Case
	for _, m := range methods {
		c := model.NewCase(fmt.Sprintf("%s %s", m, op.PathTemplate))
		c.Meta = model.GenerationMeta{
			Phase:       "Coverage",
			Description: fmt.Sprintf("unexpected method %s on %s", m, op.PathTemplate),
			Mutation:    &model.Mutation{Location: "method", Name: m, Keyword: "method"},
		}
		cases = append(cases, c)
	}
	return cases
}

func missingRequiredHeaderCases(op *schema.APIOperation) []*model.Case {
	var cases []*model.Case
	for _, p := range op.Parameters {
		if p.Location != schema.InHeader || !p.Required {
			continue
		}
		c := newCoverageCase(op, fmt.Sprintf("omit required header %s", p.Name))
		c.Meta.Mutation = &model.Mutation{Location: "header", Name: p.Name, Keyword: "required"}
		cases = append(cases, c)
	}
	return cases
}

func duplicateQueryParamCases(op *schema.APIOperation) []*model.Case {
	var cases []*model.Case
	for _, p := range op.Parameters {
		if p.Location != schema.InQuery {
			continue
		}
		c := newCoverageCase(op, fmt.Sprintf("duplicate query parameter %s", p.Name))
		c.Meta.Mutation = &model.Mutation{Location: "query", Name: p.Name, Keyword: "duplicate"}
		c.Query[p.Name] = []string{"duplicate-1", "duplicate-2"}
		cases = append(cases, c)
	}
	return cases
}

func numField(sch map[string]any, key string) (float64, bool) {
	switch v := sch[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func repeatString(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func arrayOfSize(n int) jsonvalue.Value {
	items := make([]jsonvalue.Value, n)
	for i := range items {
		items[i] = jsonvalue.Number(float64(i))
	}
	return jsonvalue.Array(items...)
}

func maxIntZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func objectWithout(props map[string]any, omit string) jsonvalue.Value {
	obj := jsonvalue.NewOrderedObject()
	for k := range props {
		if k == omit {
			continue
		}
		obj.Set(k, jsonvalue.String("x"))
	}
	return jsonvalue.Object(obj)
}

func forbiddenTypes(sch map[string]any) []string {
	want, _ := sch["type"].(string)
	if want == "" {
		return nil
	}
	all := []string{"string", "number", "boolean", "array", "object", "null"}
	var out []string
	for _, t := range all {
		if t != want {
			out = append(out, t)
		}
	}
	return out
}

func sampleOfType(t string) jsonvalue.Value {
	switch t {
	case "string":
		return jsonvalue.String("x")
	case "number":
		return jsonvalue.Number(1)
	case "boolean":
		return jsonvalue.Bool(true)
	case "array":
		return jsonvalue.Array()
	case "object":
		return jsonvalue.Object(jsonvalue.NewOrderedObject())
	default:
		return jsonvalue.Null()
	}
}
