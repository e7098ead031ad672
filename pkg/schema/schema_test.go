package schema

import "testing"

func TestResponseDefMatches(t *testing.T) {
	cases := []struct {
		pattern string
		status  int
		want    bool
	}{
		{"200", 200, true},
		{"200", 201, false},
		{"2XX", 204, true},
		{"2XX", 304, false},
		{"default", 500, true},
	}
	for _, c := range cases {
		r := ResponseDef{StatusPattern: c.pattern}
		if got := r.Matches(c.status); got != c.want {
			t.Errorf("ResponseDef{%q}.Matches(%d) = %v, want %v", c.pattern, c.status, got, c.want)
		}
	}
}

func TestAPIOperationResponseForPrecedence(t *testing.T) {
	op := &APIOperation{
		Responses: map[string]ResponseDef{
			"2XX":     {StatusPattern: "2XX"},
			"200":     {StatusPattern: "200"},
			"default": {StatusPattern: "default"},
		},
	}
	if r, ok := op.ResponseFor(200); !ok || r.StatusPattern != "200" {
		t.Fatalf("expected exact match to win, got %+v", r)
	}
	if r, ok := op.ResponseFor(201); !ok || r.StatusPattern != "2XX" {
		t.Fatalf("expected wildcard match, got %+v", r)
	}
	if r, ok := op.ResponseFor(500); !ok || r.StatusPattern != "default" {
		t.Fatalf("expected default match, got %+v", r)
	}
}

func TestAPISchemaDualReachability(t *testing.T) {
	s := NewAPISchema()
	s.AddOperation(&APIOperation{ID: "getPet", Method: "GET", PathTemplate: "/pets/{id}"})
	s.AddOperation(&APIOperation{ID: "listPets", Method: "GET", PathTemplate: "/pets"})

	if _, ok := s.Operation("GET /pets/{id}"); !ok {
		t.Fatal("expected lookup by canonical name to succeed")
	}
	if _, ok := s.OperationByID("listPets"); !ok {
		t.Fatal("expected lookup by operation id to succeed")
	}
	if got := len(s.Operations()); got != 2 {
		t.Fatalf("expected 2 operations in stable order, got %d", got)
	}
	if s.Operations()[0].ID != "getPet" {
		t.Fatalf("expected insertion order preserved, got first = %s", s.Operations()[0].ID)
	}
}

func TestResolverBreaksCycles(t *testing.T) {
	root := map[string]any{
		"definitions": map[string]any{
			"Node": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"next": map[string]any{"$ref": "#/definitions/Node"},
				},
			},
		},
	}
	r := NewResolver(root, nil)

	val, scope, err := r.Resolve("#/definitions/Node", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node, ok := val.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", val)
	}
	props := node["properties"].(map[string]any)
	next := props["next"].(map[string]any)
	ref, isRef := IsRef(next)
	if !isRef || ref != "#/definitions/Node" {
		t.Fatalf("expected nested $ref preserved, got %+v", next)
	}

	// Following the self-reference a second time must be detected as a
	// cycle and degrade to anyValue rather than recurse forever.
	_, _, err = r.Resolve(ref, scope)
	if err != nil {
		t.Fatalf("unexpected error resolving cyclic ref: %v", err)
	}
	if len(r.Cycles()) == 0 {
		t.Fatal("expected at least one recorded cycle")
	}
}

func TestResolverCachesByScopeAndPointer(t *testing.T) {
	root := map[string]any{
		"components": map[string]any{
			"Widget": map[string]any{"type": "string"},
		},
	}
	r := NewResolver(root, nil)

	v1, _, err := r.Resolve("#/components/Widget", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, _, err := r.Resolve("#/components/Widget", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m1, m2 := v1.(map[string]any), v2.(map[string]any)
	if m1["type"] != m2["type"] {
		t.Fatalf("expected idempotent resolution, got %+v vs %+v", m1, m2)
	}
}

func TestInferDependencyLinks(t *testing.T) {
	s := NewAPISchema()
	create := &APIOperation{
		ID: "createPet", Method: "POST", PathTemplate: "/pets",
		Responses: map[string]ResponseDef{
			"201": {
				StatusPattern: "201",
				MediaTypes: map[string]map[string]any{
					"application/json": {
						"type": "object",
						"properties": map[string]any{
							"id": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
	}
	get := &APIOperation{ID: "getPet", Method: "GET", PathTemplate: "/pets/{id}", Responses: map[string]ResponseDef{}}
	s.AddOperation(create)
	s.AddOperation(get)

	ResolveLinks(s)

	if len(create.OutgoingLinks) == 0 {
		t.Fatal("expected an inferred dependency link from createPet to getPet")
	}
	found := false
	for _, l := range create.OutgoingLinks {
		if l.TargetOperationID == "getPet" && l.Inferred {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected inferred link targeting getPet, got %+v", create.OutgoingLinks)
	}
}

func TestGraphQLFieldNormalization(t *testing.T) {
	sdl := []byte(`
type Query {
  pet(id: ID!): Pet
}

type Mutation {
  createPet(name: String!, age: Int): Pet
}

type Pet {
  id: ID!
  name: String!
}
`)
	s, err := LoadGraphQLSchema(sdl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ops := s.Operations()
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d: %+v", len(ops), ops)
	}
	queryOp, ok := s.OperationByID("QUERY pet")
	if !ok {
		t.Fatal("expected QUERY pet operation")
	}
	if queryOp.Method != "POST" || queryOp.PathTemplate != "/graphql" {
		t.Fatalf("expected normalized POST /graphql, got %s %s", queryOp.Method, queryOp.PathTemplate)
	}
	if _, ok := s.OperationByID("MUTATION createPet"); !ok {
		t.Fatal("expected MUTATION createPet operation")
	}
}

func TestSanitizeOperationID(t *testing.T) {
	if got := sanitizeOperationID(" Get Pet By Id "); got != "Get_Pet_By_Id" {
		t.Fatalf("unexpected sanitized id: %q", got)
	}
}
