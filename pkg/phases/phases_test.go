package phases

import (
	"testing"

	"github.com/blackcoderx/conform/pkg/schema"
)

func testOperation() *schema.APIOperation {
	return &schema.APIOperation{
		ID: "createWidget", Method: "POST", PathTemplate: "/widgets", Canonical: "POST /widgets",
		Parameters: []schema.Parameter{
			{Location: schema.InQuery, Name: "dry_run", Schema: map[string]any{"type": "boolean"}},
			{Location: schema.InHeader, Name: "X-Trace", Required: true, Schema: map[string]any{"type": "string"}},
		},
		Bodies: []schema.Body{
			{MediaType: "application/json", Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string", "minLength": 3.0, "maxLength": 10.0},
				},
				"required": []any{"name"},
			}},
		},
		Responses: map[string]schema.ResponseDef{},
	}
}

func TestCollectExamplesFillsMissing(t *testing.T) {
	op := testOperation()
	cases := CollectExamples(op, ExamplesOptions{FillMissing: true})
	if len(cases) == 0 {
		t.Fatal("expected at least one example case when fill-missing is set")
	}
	for _, c := range cases {
		if c.Meta.Phase != "Examples" {
			t.Fatalf("expected Examples phase label, got %q", c.Meta.Phase)
		}
	}
}

func TestCollectCoverageEmitsBoundaryCases(t *testing.T) {
	op := testOperation()
	cases := CollectCoverage(op, CoverageOptions{UnexpectedMethods: []string{"TRACE"}})
	if len(cases) == 0 {
		t.Fatal("expected coverage cases")
	}

	sawMinLength := false
	sawRequired := false
	sawMethod := false
	for _, c := range cases {
		if c.Meta.Mutation == nil {
			continue
		}
		switch c.Meta.Mutation.Keyword {
		case "minLength":
			sawMinLength = true
		case "required":
			sawRequired = true
		case "method":
			sawMethod = true
		}
	}
	if !sawMinLength {
		t.Error("expected a minLength boundary case")
	}
	if !sawRequired {
		t.Error("expected a required-omission case")
	}
	if !sawMethod {
		t.Error("expected an unexpected-method case")
	}
}

func TestCollectCoverageEnumNonMemberDoesNotPanicWithoutRand(t *testing.T) {
	op := testOperation()
	op.Parameters[0].Schema = map[string]any{"type": "string", "enum": []any{"a", "b", "c"}}

	cases := CollectCoverage(op, CoverageOptions{})

	sawNonMember := false
	for _, c := range cases {
		if c.Meta.Mutation != nil && c.Meta.Mutation.Keyword == "enum" && c.Meta.Description == "parameter:query enum: non-member" {
			sawNonMember = true
		}
	}
	if !sawNonMember {
		t.Fatal("expected an enum non-member coverage case")
	}
}

func TestCollectFuzzRespectsBudgetAndModes(t *testing.T) {
	op := testOperation()
	cases := CollectFuzz(op, FuzzOptions{Seed: 42, MaxExamples: 6, Modes: []string{"positive", "negative"}})
	if len(cases) == 0 {
		t.Fatal("expected fuzz cases")
	}
	seenPositive, seenNegative := false, false
	for _, c := range cases {
		switch c.Meta.Mode {
		case "positive":
			seenPositive = true
		case "negative":
			seenNegative = true
		}
	}
	if !seenPositive || !seenNegative {
		t.Fatalf("expected both modes represented, got positive=%v negative=%v", seenPositive, seenNegative)
	}
}

func TestCollectFuzzDeterministicWithSameSeed(t *testing.T) {
	op := testOperation()
	opts := FuzzOptions{Seed: 7, MaxExamples: 4, Modes: []string{"positive"}}
	first := CollectFuzz(op, opts)
	second := CollectFuzz(op, opts)
	if len(first) != len(second) {
		t.Fatalf("expected same case count across runs, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Fingerprint() != second[i].Fingerprint() {
			t.Fatalf("case %d differs between runs with identical seed", i)
		}
	}
}

func TestExampleDBStoreAndLoadRoundTrip(t *testing.T) {
	db := &ExampleDB{Dir: t.TempDir()}
	op := testOperation()

	cases := CollectFuzz(op, FuzzOptions{Seed: 1, MaxExamples: 2, Modes: []string{"negative"}, DB: db})
	if len(cases) == 0 {
		t.Fatal("expected at least one generated case to persist")
	}
	c := cases[0]
	err := db.Store(op.Canonical, StoredExample{
		Fingerprint: c.Fingerprint(),
		Location:    "header",
		Name:        "X-Trace",
		Value:       []byte(`"replayed-value"`),
	})
	if err != nil {
		t.Fatalf("unexpected error storing example: %v", err)
	}

	loaded := db.Load(op.Canonical)
	if len(loaded) != 1 {
		t.Fatalf("expected 1 stored example, got %d", len(loaded))
	}
	replayed := CollectFuzz(op, FuzzOptions{Seed: 1, MaxExamples: 0, Modes: []string{"negative"}, DB: db})
	foundReplay := false
	for _, rc := range replayed {
		if rc.Meta.Description == "replayed from example database" {
			foundReplay = true
		}
	}
	if !foundReplay {
		t.Fatal("expected the persisted example to be replayed")
	}
}
