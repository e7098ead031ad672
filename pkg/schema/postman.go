package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	postman "github.com/rbretecher/go-postman-collection"
)

// LoadPostmanCollection ingests a Postman Collection v2.1 export as a
// supplemental example source (SPEC_FULL.md "Supplemented features" #1):
// it has no JSON Schema, so every operation it produces carries only
// concrete example parameter/body values, which the Examples phase can
// consume directly but Coverage/Fuzzing cannot meaningfully extend.
//
// Grounded on pkg/core/tools/spec_ingester/postman_parser.go's recursive
// folder walk over postman.Items, generalized from the teacher's flattened
// request list into APIOperation values with inferred path templates.
func LoadPostmanCollection(content []byte) (*APISchema, error) {
	col, err := postman.ParseCollection(content)
	if err != nil {
		return nil, fmt.Errorf("schema: parse postman collection: %w", err)
	}

	s := NewAPISchema()
	s.Format = "postman2.1"
	s.Resolver = NewResolver(map[string]any{}, nil)

	walkItems(s, col.Items)
	return s, nil
}

func walkItems(s *APISchema, items []*postman.Items) {
	for _, item := range items {
		if len(item.Items) > 0 {
			walkItems(s, item.Items)
			continue
		}
		if item.Request == nil {
			continue
		}
		op := requestToOperation(item.Name, item.Request)
		if op != nil {
			s.AddOperation(op)
		}
	}
}

func requestToOperation(name string, req *postman.Request) *APIOperation {
	if req.URL == nil {
		return nil
	}
	method := strings.ToUpper(string(req.Method))
	pathTemplate := postmanPathTemplate(req.URL)

	op := &APIOperation{
		ID:           sanitizeOperationID(name),
		Method:       method,
		PathTemplate: pathTemplate,
		Canonical:    fmt.Sprintf("%s %s", method, pathTemplate),
		Responses:    map[string]ResponseDef{},
	}

	for _, seg := range req.URL.Variable {
		op.Parameters = append(op.Parameters, Parameter{
			Location: InPath,
			Name:     seg.Key,
			Required: true,
			Style:    StyleSimple,
			Schema:   exampleSchema(seg.Value),
		})
	}
	for _, q := range req.URL.Query {
		if q.Disabled {
			continue
		}
		op.Parameters = append(op.Parameters, Parameter{
			Location: InQuery,
			Name:     q.Key,
			Style:    StyleForm,
			Explode:  true,
			Schema:   exampleSchema(q.Value),
		})
	}
	for _, h := range req.Header {
		if h.Disabled {
			continue
		}
		op.Parameters = append(op.Parameters, Parameter{
			Location: InHeader,
			Name:     h.Key,
			Style:    StyleSimple,
			Schema:   exampleSchema(h.Value),
		})
	}

	if req.Body != nil && req.Body.Mode == postman.ModeRaw && req.Body.Raw != "" {
		schema := map[string]any{}
		var parsed any
		if err := json.Unmarshal([]byte(req.Body.Raw), &parsed); err == nil {
			schema = inferExampleSchema(parsed)
		}
		op.Bodies = append(op.Bodies, Body{MediaType: "application/json", Schema: schema})
	}

	// Postman collections carry no documented responses; leave Responses
	// empty so status_code_conformance treats every status as undocumented
	// rather than fabricating one.
	return op
}

func postmanPathTemplate(u *postman.URL) string {
	parts := make([]string, 0, len(u.Path))
	for _, p := range u.Path {
		if strings.HasPrefix(p, ":") {
			parts = append(parts, "{"+strings.TrimPrefix(p, ":")+"}")
		} else {
			parts = append(parts, p)
		}
	}
	return "/" + strings.Join(parts, "/")
}

func sanitizeOperationID(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	return name
}

func exampleSchema(example string) map[string]any {
	if example == "" {
		return map[string]any{"type": "string"}
	}
	return map[string]any{"type": "string", "example": example}
}

func inferExampleSchema(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		props := map[string]any{}
		required := []string{}
		for k, val := range t {
			props[k] = inferExampleSchema(val)
			required = append(required, k)
		}
		return map[string]any{"type": "object", "properties": props, "required": required}
	case []any:
		var items map[string]any
		if len(t) > 0 {
			items = inferExampleSchema(t[0])
		} else {
			items = map[string]any{}
		}
		return map[string]any{"type": "array", "items": items}
	case string:
		return map[string]any{"type": "string", "example": t}
	case bool:
		return map[string]any{"type": "boolean", "example": t}
	case float64:
		return map[string]any{"type": "number", "example": t}
	case nil:
		return map[string]any{"type": "null"}
	default:
		return map[string]any{}
	}
}
