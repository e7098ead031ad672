package engine

import (
	"net/http"
	"testing"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
	"github.com/blackcoderx/conform/pkg/transport"
)

// stubTransport answers every Call from a caller-supplied function, the
// same seam orchestrate_test.go-style teacher tests use for a fake tool
// executor.
type stubTransport struct {
	call func(op *schema.APIOperation, c *model.Case) (*model.Response, error)
}

func (s *stubTransport) Call(op *schema.APIOperation, c *model.Case, _ transport.CallOptions) (*model.Response, error) {
	return s.call(op, c)
}

func getPetOperation() *schema.APIOperation {
	return &schema.APIOperation{
		ID:           "getPet",
		Method:       "GET",
		PathTemplate: "/pets/{id}",
		Canonical:    "GET /pets/{id}",
		Parameters: []schema.Parameter{
			{Location: schema.InPath, Name: "id", Required: true, Schema: map[string]any{"type": "string"}},
		},
		Responses: map[string]schema.ResponseDef{
			"200": {StatusPattern: "200"},
		},
	}
}

func newSchemaWith(ops ...*schema.APIOperation) *schema.APISchema {
	s := schema.NewAPISchema()
	for _, op := range ops {
		s.AddOperation(op)
	}
	return s
}

func okResponse() *model.Response {
	return &model.Response{StatusCode: 200, Headers: http.Header{"Content-Type": []string{"application/json"}}, Body: []byte(`{}`)}
}

func TestNewDefaultsStatefulScenarios(t *testing.T) {
	s := newSchemaWith(getPetOperation())
	e := New(s, nil, &stubTransport{call: func(*schema.APIOperation, *model.Case) (*model.Response, error) { return okResponse(), nil }}, nil, Options{})
	if e.Options.StatefulScenarios != defaultStatefulScenarios {
		t.Fatalf("expected default stateful scenario count, got %d", e.Options.StatefulScenarios)
	}
	if e.Options.Hooks == nil {
		t.Fatal("expected a non-nil default hook registry")
	}
}

func TestDedupForIsStablePerOperation(t *testing.T) {
	e := New(newSchemaWith(getPetOperation()), nil, nil, nil, Options{})
	a := e.dedupFor("GET /pets/{id}")
	b := e.dedupFor("GET /pets/{id}")
	if a != b {
		t.Fatal("expected the same deduper instance for repeated lookups of the same operation")
	}
	c := e.dedupFor("POST /pets")
	if a == c {
		t.Fatal("expected distinct dedupers for distinct operations")
	}
}

func TestMaxFailuresReached(t *testing.T) {
	e := New(newSchemaWith(getPetOperation()), nil, nil, nil, Options{MaxFailures: 2})
	if e.maxFailuresReached() {
		t.Fatal("should not be reached before any failures recorded")
	}
	e.recordFailures(2)
	if !e.maxFailuresReached() {
		t.Fatal("expected max failures reached after recording exactly the limit")
	}
}

func TestMaxFailuresUnlimitedWhenZero(t *testing.T) {
	e := New(newSchemaWith(getPetOperation()), nil, nil, nil, Options{})
	e.recordFailures(1000)
	if e.maxFailuresReached() {
		t.Fatal("MaxFailures <= 0 should mean unlimited")
	}
}
