package transport

import (
	"net/http"
	"testing"

	"github.com/blackcoderx/conform/pkg/jsonvalue"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

func testOperation() *schema.APIOperation {
	return &schema.APIOperation{
		ID:           "getWidget",
		Method:       "GET",
		PathTemplate: "/widgets/{id}",
		Canonical:    "GET /widgets/{id}",
	}
}

func TestBuildRequestSpecSubstitutesPathAndQuery(t *testing.T) {
	op := testOperation()
	c := model.NewCase(op.Canonical)
	c.PathParams["id"] = "abc 123"
	c.Query["limit"] = []string{"10"}

	spec, err := BuildRequestSpec(op, c, CallOptions{BaseURL: "http://example.test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.URL != "http://example.test/widgets/abc%20123?limit=10" {
		t.Fatalf("unexpected url: %s", spec.URL)
	}
	if spec.Headers.Get("X-Schemathesis-TestCaseId") == "" {
		t.Fatalf("expected test case id header to be set")
	}
}

func TestBuildRequestSpecUserHeaderTakesPrecedence(t *testing.T) {
	op := testOperation()
	c := model.NewCase(op.Canonical)
	c.Headers.Set("Authorization", "Bearer user-token")

	spec, err := BuildRequestSpec(op, c, CallOptions{
		BaseURL:      "http://example.test",
		ExtraHeaders: http.Header{"Authorization": []string{"Bearer injected-token"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := spec.Headers.Get("Authorization"); got != "Bearer user-token" {
		t.Fatalf("expected user header to win, got %q", got)
	}
}

func TestBuildRequestSpecSerializesJSONBody(t *testing.T) {
	op := &schema.APIOperation{Method: "POST", PathTemplate: "/widgets", Canonical: "POST /widgets"}
	c := model.NewCase(op.Canonical)
	obj := jsonvalue.NewOrderedObject()
	obj.Set("name", jsonvalue.String("bolt"))
	c.Body = jsonvalue.Object(obj)
	c.HasBody = true
	c.MediaType = "application/json"

	spec, err := BuildRequestSpec(op, c, CallOptions{BaseURL: "http://example.test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(spec.Body) != `{"name":"bolt"}` {
		t.Fatalf("unexpected body: %s", spec.Body)
	}
	if spec.Headers.Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header to be set")
	}
}

func TestTestCaseIDDeterministicPerSeedAndCase(t *testing.T) {
	c := model.NewCase("GET /widgets")
	id1 := TestCaseID(1, c)
	id2 := TestCaseID(1, c)
	id3 := TestCaseID(2, c)
	if id1 != id2 {
		t.Fatalf("expected same seed+case to reproduce the same id")
	}
	if id1 == id3 {
		t.Fatalf("expected different seeds to produce different ids")
	}
}

func TestInProcessTransportRoundTrip(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/widgets/xyz" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("X-Extra", "1")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	})

	tr := NewInProcessTransport(handler)
	op := testOperation()
	c := model.NewCase(op.Canonical)
	c.PathParams["id"] = "xyz"

	resp, err := tr.Call(op, c, CallOptions{BaseURL: "http://in-process"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Headers.Get("X-Extra") != "1" {
		t.Fatalf("expected response header to be captured")
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", resp.Body)
	}
}
