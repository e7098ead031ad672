package config

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/xeipuuv/gojsonpointer"

	"github.com/blackcoderx/conform/pkg/schema"
)

// SelectorKind names one of spec section 4.K's filterable operation
// facets: "Filters combine conjunctively across types (path AND method
// AND tag...) and disjunctively within a type (any of several paths)."
type SelectorKind string

const (
	SelectorPath        SelectorKind = "path"
	SelectorMethod      SelectorKind = "method"
	SelectorTag         SelectorKind = "tag"
	SelectorOperationID SelectorKind = "operation-id"
	SelectorName        SelectorKind = "name"
)

// Selector is one --include/--exclude VALUE clause, optionally a regex
// variant (--include path-regex '^/users/.*').
type Selector struct {
	Kind  SelectorKind
	Regex bool
	Value string
}

func (s Selector) matches(op *schema.APIOperation) (bool, error) {
	var candidates []string
	switch s.Kind {
	case SelectorPath:
		candidates = []string{op.PathTemplate}
	case SelectorMethod:
		candidates = []string{op.Method}
	case SelectorTag:
		candidates = op.Tags
	case SelectorOperationID:
		candidates = []string{op.ID}
	case SelectorName:
		candidates = []string{op.Canonical}
	default:
		return false, fmt.Errorf("config: unknown selector kind %q", s.Kind)
	}

	for _, c := range candidates {
		if s.Regex {
			re, err := regexp.Compile(s.Value)
			if err != nil {
				return false, fmt.Errorf("config: compile selector regex %q: %w", s.Value, err)
			}
			if re.MatchString(c) {
				return true, nil
			}
			continue
		}
		if c == s.Value {
			return true, nil
		}
	}
	return false, nil
}

// ExprOp is one of the tiny --include-by/--exclude-by expression
// language's comparison operators (spec section 4.K).
type ExprOp string

const (
	OpEqual    ExprOp = "=="
	OpNotEqual ExprOp = "!="
	OpIn       ExprOp = "in"
	OpNotIn    ExprOp = "not in"
)

// Expr is one parsed "JSON_POINTER OP VALUE" clause. Values, not just a
// single Value, since "in"/"not in" compare against a set.
type Expr struct {
	Pointer string
	Op      ExprOp
	Values  []string
}

// ParseExpr parses one --include-by/--exclude-by expression. The pointer
// and operator are whitespace-delimited; "in"/"not in" take a
// comma-separated value list, "=="/"!=" take a single value.
//
// Grounded on no single teacher source (the teacher has no expression
// parser of this shape); built directly against spec section 4.K's
// grammar since nothing in the pack offers a closer analogue.
func ParseExpr(raw string) (Expr, error) {
	for _, op := range []ExprOp{OpNotIn, OpNotEqual, OpEqual, OpIn} {
		marker := " " + string(op) + " "
		idx := indexOf(raw, marker)
		if idx < 0 {
			continue
		}
		pointer := raw[:idx]
		rest := raw[idx+len(marker):]
		return Expr{Pointer: pointer, Op: op, Values: splitCSV(rest)}, nil
	}
	return Expr{}, fmt.Errorf("config: malformed filter expression %q", raw)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, trimSpace(s[start:i]))
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

// operationDocument projects the fields of an APIOperation a JSON Pointer
// expression might reasonably address, since gojsonpointer operates over
// decoded JSON documents rather than Go structs directly.
type operationDocument struct {
	Method     string   `json:"method"`
	Path       string   `json:"path"`
	OperationID string  `json:"operationId"`
	Tags       []string `json:"tags"`
	Deprecated bool     `json:"deprecated"`
}

// Evaluate resolves e.Pointer against op's JSON projection and applies
// e.Op. Library: github.com/xeipuuv/gojsonpointer — already an indirect
// dependency of xeipuuv/gojsonschema (pkg/checks' schema validator); used
// here directly instead of hand-rolling pointer resolution, since the
// teacher's go.mod already carries it through that transitive edge.
func (e Expr) Evaluate(op *schema.APIOperation) (bool, error) {
	raw, err := json.Marshal(operationDocument{
		Method:      op.Method,
		Path:        op.PathTemplate,
		OperationID: op.ID,
		Tags:        op.Tags,
		Deprecated:  op.Deprecated,
	})
	if err != nil {
		return false, fmt.Errorf("config: project operation for filter: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("config: decode operation projection: %w", err)
	}

	pointer, err := gojsonpointer.NewJsonPointer(e.Pointer)
	if err != nil {
		return false, fmt.Errorf("config: parse JSON pointer %q: %w", e.Pointer, err)
	}
	value, _, err := pointer.Get(doc)
	if err != nil {
		// UNRESOLVABLE pointer: the clause simply doesn't match, the same
		// "skip, don't fail" posture pkg/stateful's runtime-expression
		// binding takes for its own UNRESOLVABLE case.
		return false, nil
	}

	actual := fmt.Sprintf("%v", value)
	switch e.Op {
	case OpEqual:
		return len(e.Values) == 1 && actual == e.Values[0], nil
	case OpNotEqual:
		return !(len(e.Values) == 1 && actual == e.Values[0]), nil
	case OpIn:
		return contains(e.Values, actual), nil
	case OpNotIn:
		return !contains(e.Values, actual), nil
	default:
		return false, fmt.Errorf("config: unknown filter operator %q", e.Op)
	}
}

func contains(values []string, v string) bool {
	for _, c := range values {
		if c == v {
			return true
		}
	}
	return false
}

// Filter is the fully-parsed --include/--exclude/--include-by/--exclude-by
// configuration (spec section 4.K), applied by pkg/engine's caller to
// narrow APISchema.Operations() down to Options.Operations before a run.
type Filter struct {
	Include           []Selector
	Exclude           []Selector
	IncludeBy         []Expr
	ExcludeBy         []Expr
	ExcludeDeprecated bool
}

// Matches reports whether op survives f: every included selector kind
// present must have at least one matching clause (AND across kinds, OR
// within one kind), the exclude selectors, grouped by the same rule, must
// not match (so an exclude list naming several kinds drops only an
// operation matching every one of them), and every --include-by/
// --exclude-by clause must agree.
func (f Filter) Matches(op *schema.APIOperation) (bool, error) {
	if f.ExcludeDeprecated && op.Deprecated {
		return false, nil
	}

	included, err := matchesGrouped(f.Include, op, true)
	if err != nil {
		return false, err
	}
	if !included {
		return false, nil
	}

	excluded, err := matchesGrouped(f.Exclude, op, false)
	if err != nil {
		return false, err
	}
	if excluded {
		return false, nil
	}

	for _, e := range f.IncludeBy {
		ok, err := e.Evaluate(op)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	for _, e := range f.ExcludeBy {
		ok, err := e.Evaluate(op)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}

	return true, nil
}

// matchesGrouped implements the AND-across-kinds/OR-within-kind rule.
// passWhenEmpty is the result for an empty selector list: true for
// Include (nothing configured means everything is included), false for
// Exclude (an empty list never excludes anything).
func matchesGrouped(selectors []Selector, op *schema.APIOperation, passWhenEmpty bool) (bool, error) {
	if len(selectors) == 0 {
		return passWhenEmpty, nil
	}
	byKind := map[SelectorKind][]Selector{}
	for _, s := range selectors {
		byKind[s.Kind] = append(byKind[s.Kind], s)
	}
	for _, group := range byKind {
		matched := false
		for _, s := range group {
			ok, err := s.matches(op)
			if err != nil {
				return false, err
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// Select filters ops down to those Filter.Matches accepts, preserving
// their original order (the same stable-order guarantee
// schema.APISchema.Operations() already provides).
func Select(ops []*schema.APIOperation, f Filter) ([]*schema.APIOperation, error) {
	out := make([]*schema.APIOperation, 0, len(ops))
	for _, op := range ops {
		ok, err := f.Matches(op)
		if err != nil {
			return nil, fmt.Errorf("config: filter %s: %w", op.Canonical, err)
		}
		if ok {
			out = append(out, op)
		}
	}
	return out, nil
}
