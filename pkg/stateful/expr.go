// Package stateful implements the Stateful Phase (spec section 4.G): a
// rule-based state machine over operations linked by OpenAPI Links,
// exploring multi-step scenarios by evaluating runtime expressions against
// prior steps' (Case, Response) pairs.
package stateful

import (
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/dlclark/regexp2"

	"github.com/blackcoderx/conform/pkg/jsonvalue"
	"github.com/blackcoderx/conform/pkg/model"
)

// Unresolvable is the sentinel spec section 4.G names: evaluation yields it
// when any segment of a runtime expression is missing or type-mismatched,
// and the transition using it is skipped rather than treated as a failure.
type Unresolvable struct{ Expr string }

func (u Unresolvable) Error() string { return fmt.Sprintf("stateful: unresolvable expression %q", u.Expr) }

// Step is one completed (Case, Response) pair a scenario has executed,
// the unit runtime expressions evaluate against.
type Step struct {
	Case     *model.Case
	Response *model.Response
}

// Evaluate resolves a runtime expression (spec section 3: "Runtime
// Expression") against the most recent step of history, plus the
// in-progress next request being built. Supported forms:
//
//	$request.header.NAME / $request.path.NAME / $request.query.NAME / $request.body#/ptr
//	$response.header.NAME / $response.body#/ptr
//	literal strings (anything not starting with '$')
//	a regex-capture wrapper: "regex(SOURCE_EXPR, PATTERN)" — extracts the
//	first capture group from SOURCE_EXPR's evaluated value.
//
// Grounded directly on shared/extraction.go's ExtractTool, which resolves
// "header:NAME" / "json:$.ptr" / "regex:PATTERN" source strings against a
// captured HTTP response for one-shot user-invoked extraction; generalized
// here into the engine-invoked evaluator the Stateful Phase drives on every
// transition, and extended with the $request.* half ExtractTool never
// needed (it only ever looked at responses).
func Evaluate(expr string, next *model.Case, last *Step) (string, error) {
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(expr, "regex(") && strings.HasSuffix(expr, ")") {
		return evaluateRegexCapture(expr, next, last)
	}
	if !strings.HasPrefix(expr, "$") {
		return expr, nil
	}
	return evaluateDollarExpr(expr, next, last)
}

func evaluateDollarExpr(expr string, next *model.Case, last *Step) (string, error) {
	switch {
	case strings.HasPrefix(expr, "$request.header."):
		name := strings.TrimPrefix(expr, "$request.header.")
		if next == nil {
			return "", Unresolvable{expr}
		}
		if v := next.Headers.Get(name); v != "" {
			return v, nil
		}
		return "", Unresolvable{expr}
	case strings.HasPrefix(expr, "$request.path."):
		name := strings.TrimPrefix(expr, "$request.path.")
		if next == nil {
			return "", Unresolvable{expr}
		}
		if v, ok := next.PathParams[name]; ok {
			return v, nil
		}
		return "", Unresolvable{expr}
	case strings.HasPrefix(expr, "$request.query."):
		name := strings.TrimPrefix(expr, "$request.query.")
		if next == nil {
			return "", Unresolvable{expr}
		}
		if vs, ok := next.Query[name]; ok && len(vs) > 0 {
			return vs[0], nil
		}
		return "", Unresolvable{expr}
	case strings.HasPrefix(expr, "$request.body#"):
		if next == nil || !next.HasBody {
			return "", Unresolvable{expr}
		}
		return jsonValuePointerLookup(next.Body, strings.TrimPrefix(expr, "$request.body#"), expr)
	case strings.HasPrefix(expr, "$response.header."):
		name := strings.TrimPrefix(expr, "$response.header.")
		if last == nil || last.Response == nil {
			return "", Unresolvable{expr}
		}
		if v := last.Response.Headers.Get(name); v != "" {
			return v, nil
		}
		return "", Unresolvable{expr}
	case strings.HasPrefix(expr, "$response.body#"):
		if last == nil || last.Response == nil {
			return "", Unresolvable{expr}
		}
		return jsonBytesPointerLookup(last.Response.Body, strings.TrimPrefix(expr, "$response.body#"), expr)
	default:
		return "", Unresolvable{expr}
	}
}

// jsonValuePointerLookup resolves a JSON Pointer-shaped fragment against an
// in-memory jsonvalue.Value — used for $request.body#/ptr, where the body
// hasn't been serialized to bytes yet.
func jsonValuePointerLookup(v jsonvalue.Value, pointer, expr string) (string, error) {
	pointer = strings.TrimPrefix(pointer, "/")
	cur := v
	if pointer != "" {
		for _, raw := range strings.Split(pointer, "/") {
			tok := strings.ReplaceAll(strings.ReplaceAll(raw, "~1", "/"), "~0", "~")
			switch cur.Kind() {
			case jsonvalue.KindObject:
				child, ok := cur.AsObject().Get(tok)
				if !ok {
					return "", Unresolvable{expr}
				}
				cur = child
			case jsonvalue.KindArray:
				idx := 0
				if _, err := fmt.Sscanf(tok, "%d", &idx); err != nil {
					return "", Unresolvable{expr}
				}
				arr := cur.AsArray()
				if idx < 0 || idx >= len(arr) {
					return "", Unresolvable{expr}
				}
				cur = arr[idx]
			default:
				return "", Unresolvable{expr}
			}
		}
	}
	if cur.IsNull() {
		return "", Unresolvable{expr}
	}
	if cur.Kind() == jsonvalue.KindString {
		return cur.AsString(), nil
	}
	return fmt.Sprintf("%v", jsonvalue.ToNative(cur)), nil
}

// jsonBytesPointerLookup resolves a JSON Pointer-shaped fragment ("/a/b/0")
// against raw response bytes using buger/jsonparser, matching the
// fast-path, allocation-light lookup the teacher's ExtractTool used for
// its "json:" source prefix.
func jsonBytesPointerLookup(body []byte, pointer, expr string) (string, error) {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return string(body), nil
	}
	keys := strings.Split(pointer, "/")
	for i, k := range keys {
		keys[i] = strings.ReplaceAll(strings.ReplaceAll(k, "~1", "/"), "~0", "~")
	}

	value, dataType, _, err := jsonparser.Get(body, keys...)
	if err != nil {
		return "", Unresolvable{expr}
	}
	switch dataType {
	case jsonparser.String, jsonparser.Number, jsonparser.Boolean:
		return string(value), nil
	case jsonparser.Null:
		return "", Unresolvable{expr}
	default:
		return string(value), nil
	}
}

// evaluateRegexCapture parses "regex(SOURCE, PATTERN)" and extracts the
// first capture group of PATTERN (ECMAScript dialect via dlclark/regexp2,
// consistent with pkg/genvalue/pattern.go) from SOURCE's evaluated value.
func evaluateRegexCapture(expr string, next *model.Case, last *Step) (string, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(expr, "regex("), ")")
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return "", Unresolvable{expr}
	}
	source, err := Evaluate(strings.TrimSpace(parts[0]), next, last)
	if err != nil {
		return "", err
	}
	pattern := strings.TrimSpace(parts[1])
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return "", Unresolvable{expr}
	}
	m, err := re.FindStringMatch(source)
	if err != nil || m == nil || len(m.Groups()) < 2 {
		return "", Unresolvable{expr}
	}
	return m.Groups()[1].String(), nil
}
