package jsonvalue

import (
	"fmt"
	"strconv"
	"strings"
)

// Unresolvable is the sentinel error JSON Pointer lookups return when a
// segment is missing or type-mismatched, per spec section 4.G: evaluation
// yields UNRESOLVABLE rather than failing the scenario.
var Unresolvable = fmt.Errorf("jsonvalue: pointer unresolvable")

// LookupPointer resolves an RFC 6901 JSON Pointer ("/a/b/0") against a
// decoded document (map[string]any / []any / scalars), the shape produced
// by encoding/json and gopkg.in/yaml.v3 decoding alike.
func LookupPointer(doc any, pointer string) (any, error) {
	if pointer == "" || pointer == "/" {
		return doc, nil
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, fmt.Errorf("%w: pointer %q must start with '/'", Unresolvable, pointer)
	}
	cur := doc
	for _, raw := range strings.Split(pointer[1:], "/") {
		tok := unescapeToken(raw)
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[tok]
			if !ok {
				return nil, fmt.Errorf("%w: no key %q", Unresolvable, tok)
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("%w: bad index %q", Unresolvable, tok)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("%w: cannot descend into %T at %q", Unresolvable, cur, tok)
		}
	}
	return cur, nil
}

func unescapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~1", "/")
	tok = strings.ReplaceAll(tok, "~0", "~")
	return tok
}
