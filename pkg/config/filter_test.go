package config

import (
	"testing"

	"github.com/blackcoderx/conform/pkg/schema"
)

func opFixture(method, path, id string, tags []string, deprecated bool) *schema.APIOperation {
	return &schema.APIOperation{
		ID:           id,
		Method:       method,
		PathTemplate: path,
		Canonical:    method + " " + path,
		Tags:         tags,
		Deprecated:   deprecated,
	}
}

func TestParseExprOperators(t *testing.T) {
	cases := []struct {
		raw     string
		op      ExprOp
		pointer string
		values  []string
	}{
		{"/method == GET", OpEqual, "/method", []string{"GET"}},
		{"/method != GET", OpNotEqual, "/method", []string{"GET"}},
		{"/tags in a, b, c", OpIn, "/tags", []string{"a", "b", "c"}},
		{"/tags not in a, b", OpNotIn, "/tags", []string{"a", "b"}},
	}
	for _, c := range cases {
		e, err := ParseExpr(c.raw)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.raw, err)
		}
		if e.Pointer != c.pointer || e.Op != c.op {
			t.Fatalf("%q: got pointer=%q op=%q", c.raw, e.Pointer, e.Op)
		}
		if len(e.Values) != len(c.values) {
			t.Fatalf("%q: expected values %v, got %v", c.raw, c.values, e.Values)
		}
		for i := range c.values {
			if e.Values[i] != c.values[i] {
				t.Fatalf("%q: expected value %q at %d, got %q", c.raw, c.values[i], i, e.Values[i])
			}
		}
	}
}

func TestParseExprMalformedInput(t *testing.T) {
	if _, err := ParseExpr("not an expression"); err == nil {
		t.Fatal("expected an error for an expression with no recognizable operator")
	}
}

func TestExprEvaluateMethodEquals(t *testing.T) {
	op := opFixture("GET", "/pets/{id}", "getPet", []string{"pets"}, false)
	e, err := ParseExpr("/method == GET")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := e.Evaluate(op)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected method == GET to match a GET operation")
	}
}

func TestExprEvaluateTagsIn(t *testing.T) {
	op := opFixture("GET", "/pets/{id}", "getPet", []string{"pets", "admin"}, false)
	e, err := ParseExpr("/tags/0 in pets, dogs")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := e.Evaluate(op)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected first tag 'pets' to satisfy the 'in' clause")
	}
}

func TestExprEvaluateUnresolvablePointerDoesNotMatch(t *testing.T) {
	op := opFixture("GET", "/pets/{id}", "getPet", nil, false)
	e, err := ParseExpr("/nonexistent == x")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := e.Evaluate(op)
	if err != nil {
		t.Fatalf("expected an unresolvable pointer to be a non-match, not an error, got %v", err)
	}
	if ok {
		t.Fatal("expected an unresolvable pointer clause to not match")
	}
}

func TestSelectorPathLiteralMatch(t *testing.T) {
	op := opFixture("GET", "/pets/{id}", "getPet", nil, false)
	s := Selector{Kind: SelectorPath, Value: "/pets/{id}"}
	ok, err := s.matches(op)
	if err != nil || !ok {
		t.Fatalf("expected literal path match, got ok=%v err=%v", ok, err)
	}
}

func TestSelectorPathRegexMatch(t *testing.T) {
	op := opFixture("GET", "/pets/{id}", "getPet", nil, false)
	s := Selector{Kind: SelectorPath, Regex: true, Value: "^/pets/.*"}
	ok, err := s.matches(op)
	if err != nil || !ok {
		t.Fatalf("expected regex path match, got ok=%v err=%v", ok, err)
	}
}

func TestSelectorTagMatchesAnyOfMultipleTags(t *testing.T) {
	op := opFixture("GET", "/pets/{id}", "getPet", []string{"pets", "admin"}, false)
	s := Selector{Kind: SelectorTag, Value: "admin"}
	ok, err := s.matches(op)
	if err != nil || !ok {
		t.Fatalf("expected a tag-list match, got ok=%v err=%v", ok, err)
	}
}

func TestFilterIncludeIsORWithinKindANDAcrossKinds(t *testing.T) {
	getPets := opFixture("GET", "/pets", "listPets", []string{"pets"}, false)
	postPets := opFixture("POST", "/pets", "createPet", []string{"pets"}, false)
	getUsers := opFixture("GET", "/users", "listUsers", []string{"users"}, false)

	f := Filter{Include: []Selector{
		{Kind: SelectorMethod, Value: "GET"},
		{Kind: SelectorTag, Value: "pets"},
	}}

	for _, tc := range []struct {
		op   *schema.APIOperation
		want bool
	}{
		{getPets, true},   // GET AND tag pets
		{postPets, false}, // tag pets but not GET
		{getUsers, false}, // GET but not tag pets
	} {
		ok, err := f.Matches(tc.op)
		if err != nil {
			t.Fatal(err)
		}
		if ok != tc.want {
			t.Fatalf("%s: expected match=%v, got %v", tc.op.Canonical, tc.want, ok)
		}
	}
}

func TestFilterExcludeDeprecated(t *testing.T) {
	op := opFixture("GET", "/legacy", "legacy", nil, true)
	f := Filter{ExcludeDeprecated: true}
	ok, err := f.Matches(op)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected a deprecated operation to be excluded")
	}
}

func TestFilterExcludeBySelector(t *testing.T) {
	keep := opFixture("GET", "/pets", "listPets", nil, false)
	drop := opFixture("DELETE", "/pets/{id}", "deletePet", nil, false)
	f := Filter{Exclude: []Selector{{Kind: SelectorMethod, Value: "DELETE"}}}

	okKeep, err := f.Matches(keep)
	if err != nil || !okKeep {
		t.Fatalf("expected non-DELETE operation to survive, ok=%v err=%v", okKeep, err)
	}
	okDrop, err := f.Matches(drop)
	if err != nil || okDrop {
		t.Fatalf("expected DELETE operation to be excluded, ok=%v err=%v", okDrop, err)
	}
}

func TestFilterIncludeByAndExcludeByExpressions(t *testing.T) {
	op := opFixture("GET", "/pets", "listPets", []string{"pets"}, false)
	includeBy, err := ParseExpr("/method == GET")
	if err != nil {
		t.Fatal(err)
	}
	excludeBy, err := ParseExpr("/operationId == listPets")
	if err != nil {
		t.Fatal(err)
	}

	f := Filter{IncludeBy: []Expr{includeBy}}
	ok, err := f.Matches(op)
	if err != nil || !ok {
		t.Fatalf("expected include-by GET to match, ok=%v err=%v", ok, err)
	}

	f2 := Filter{ExcludeBy: []Expr{excludeBy}}
	ok2, err := f2.Matches(op)
	if err != nil || ok2 {
		t.Fatalf("expected exclude-by operationId==listPets to drop the operation, ok=%v err=%v", ok2, err)
	}
}

func TestSelectPreservesOrder(t *testing.T) {
	a := opFixture("GET", "/a", "a", nil, false)
	b := opFixture("GET", "/b", "b", nil, false)
	c := opFixture("POST", "/c", "c", nil, false)

	out, err := Select([]*schema.APIOperation{a, b, c}, Filter{Include: []Selector{{Kind: SelectorMethod, Value: "GET"}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0] != a || out[1] != b {
		t.Fatalf("expected [a, b] in order, got %v", out)
	}
}
