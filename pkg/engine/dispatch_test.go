package engine

import (
	"context"
	"testing"

	"github.com/blackcoderx/conform/pkg/checks"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/phases"
	"github.com/blackcoderx/conform/pkg/schema"
	"github.com/blackcoderx/conform/pkg/stateful"
)

func baseOptions(resolver *schema.Resolver) Options {
	return Options{
		Phases:  []string{"examples"},
		Workers: 2,
		Checks:  checks.All,
		ExamplesOptions: phases.ExamplesOptions{
			FillMissing: true,
			Resolver:    resolver,
		},
	}
}

func drain(ch <-chan *model.Event) []*model.Event {
	var out []*model.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestRunExaminesOperationAndFinishes(t *testing.T) {
	op := getPetOperation()
	resolver := schema.NewResolver(nil, nil)
	s := newSchemaWith(op)
	opts := baseOptions(resolver)
	opts.Operations = []*schema.APIOperation{op}

	transport := &stubTransport{call: func(*schema.APIOperation, *model.Case) (*model.Response, error) {
		return okResponse(), nil
	}}

	e := New(s, resolver, transport, nil, opts)
	events := drain(e.Run(context.Background()))

	if len(events) == 0 {
		t.Fatal("expected at least EngineStarted/EngineFinished events")
	}
	if events[0].Kind != model.EventEngineStarted {
		t.Fatalf("expected first event EngineStarted, got %v", events[0].Kind)
	}
	last := events[len(events)-1]
	if last.Kind != model.EventEngineFinished {
		t.Fatalf("expected last event EngineFinished, got %v", last.Kind)
	}
	if last.FinalSummary == nil || last.FinalSummary.OperationsTotal != 1 {
		t.Fatalf("expected a final summary covering 1 operation, got %+v", last.FinalSummary)
	}
}

func TestRunStopsOnFirstFailureWithoutContinueOnFailure(t *testing.T) {
	op := getPetOperation()
	op.Parameters[0].Schema = map[string]any{"type": "string", "examples": []any{"a", "b", "c"}}
	resolver := schema.NewResolver(nil, nil)
	s := newSchemaWith(op)
	opts := baseOptions(resolver)
	opts.Operations = []*schema.APIOperation{op}
	opts.ContinueOnFailure = false

	calls := 0
	transport := &stubTransport{call: func(*schema.APIOperation, *model.Case) (*model.Response, error) {
		calls++
		return &model.Response{StatusCode: 500}, nil
	}}

	e := New(s, resolver, transport, nil, opts)
	drain(e.Run(context.Background()))

	if calls != 1 {
		t.Fatalf("expected exactly one call before stopping on the first failure, got %d", calls)
	}
}

func TestRunContinuesOnFailureWhenConfigured(t *testing.T) {
	opA := getPetOperation()
	opB := &schema.APIOperation{
		ID: "listPets", Method: "GET", PathTemplate: "/pets", Canonical: "GET /pets",
		Responses: map[string]schema.ResponseDef{"200": {StatusPattern: "200"}},
	}
	resolver := schema.NewResolver(nil, nil)
	s := newSchemaWith(opA, opB)
	opts := baseOptions(resolver)
	opts.Operations = []*schema.APIOperation{opA, opB}
	opts.ContinueOnFailure = true
	opts.Workers = 1

	var calls int
	transport := &stubTransport{call: func(*schema.APIOperation, *model.Case) (*model.Response, error) {
		calls++
		return &model.Response{StatusCode: 500}, nil
	}}

	e := New(s, resolver, transport, nil, opts)
	drain(e.Run(context.Background()))

	if calls < 2 {
		t.Fatalf("expected both operations to run a call despite failures, got %d calls", calls)
	}
}

func TestRunHonorsMaxFailures(t *testing.T) {
	op := getPetOperation()
	op.Parameters[0].Schema = map[string]any{"type": "string", "examples": []any{"a", "b", "c"}}
	resolver := schema.NewResolver(nil, nil)
	s := newSchemaWith(op)
	opts := baseOptions(resolver)
	opts.Operations = []*schema.APIOperation{op}
	opts.ContinueOnFailure = true
	opts.MaxFailures = 1
	opts.Checks = map[string]checks.Check{"not_a_server_error": checks.NotAServerError}

	var calls int
	transport := &stubTransport{call: func(*schema.APIOperation, *model.Case) (*model.Response, error) {
		calls++
		return &model.Response{StatusCode: 500}, nil
	}}

	e := New(s, resolver, transport, nil, opts)
	drain(e.Run(context.Background()))

	if calls != 1 {
		t.Fatalf("expected the operation loop to stop after reaching MaxFailures, got %d calls", calls)
	}
}

func TestRunEmitsMissingAuthWarning(t *testing.T) {
	op := getPetOperation()
	op.Security = []schema.SecurityRequirement{{SchemeName: "apiKey"}}
	resolver := schema.NewResolver(nil, nil)
	s := newSchemaWith(op)
	s.SecuritySchemes["apiKey"] = schema.SecurityScheme{Name: "apiKey", Type: "apiKey", In: schema.InHeader, ParamName: "X-Api-Key"}

	opts := baseOptions(resolver)
	opts.Operations = []*schema.APIOperation{op}
	opts.Checks = map[string]checks.Check{"not_a_server_error": checks.NotAServerError}

	transport := &stubTransport{call: func(*schema.APIOperation, *model.Case) (*model.Response, error) {
		return &model.Response{StatusCode: 401}, nil
	}}

	e := New(s, resolver, transport, nil, opts)
	events := drain(e.Run(context.Background()))

	var sawMissingAuth bool
	for _, ev := range events {
		if ev.Kind == model.EventWarning && ev.WarningKind == "missing_auth" {
			sawMissingAuth = true
		}
	}
	if !sawMissingAuth {
		t.Fatal("expected a missing_auth warning when every response is 401/403")
	}
}

func TestRunEmitsUnusedOpenAPIAuthWarning(t *testing.T) {
	op := getPetOperation()
	resolver := schema.NewResolver(nil, nil)
	s := newSchemaWith(op)

	opts := baseOptions(resolver)
	opts.Operations = []*schema.APIOperation{op}
	opts.ConfiguredAuthSchemes = []string{"bearer"}

	transport := &stubTransport{call: func(*schema.APIOperation, *model.Case) (*model.Response, error) {
		return okResponse(), nil
	}}

	e := New(s, resolver, transport, nil, opts)
	events := drain(e.Run(context.Background()))

	var sawUnused bool
	for _, ev := range events {
		if ev.Kind == model.EventWarning && ev.WarningKind == "unused_openapi_auth" {
			sawUnused = true
		}
	}
	if !sawUnused {
		t.Fatal("expected an unused_openapi_auth warning for a configured scheme absent from the schema")
	}
}

func TestRunDedupsRepeatedFailures(t *testing.T) {
	op := getPetOperation()
	op.Parameters[0].Schema = map[string]any{"type": "string", "examples": []any{"a", "b", "c"}}
	resolver := schema.NewResolver(nil, nil)
	s := newSchemaWith(op)
	opts := baseOptions(resolver)
	opts.Operations = []*schema.APIOperation{op}
	opts.ContinueOnFailure = true
	opts.Checks = map[string]checks.Check{"not_a_server_error": checks.NotAServerError}

	transport := &stubTransport{call: func(*schema.APIOperation, *model.Case) (*model.Response, error) {
		return &model.Response{StatusCode: 500}, nil
	}}

	e := New(s, resolver, transport, nil, opts)
	events := drain(e.Run(context.Background()))

	var failureEvents int
	for _, ev := range events {
		if ev.Kind == model.EventStepFinished && len(ev.Checks) > 0 {
			failureEvents++
		}
	}
	if failureEvents != 1 {
		t.Fatalf("expected the identical 500 failure deduped to a single reported event, got %d", failureEvents)
	}
}

func TestRunRecoversWorkerPanicAsNonFatalError(t *testing.T) {
	op := getPetOperation()
	resolver := schema.NewResolver(nil, nil)
	s := newSchemaWith(op)
	opts := baseOptions(resolver)
	opts.Operations = []*schema.APIOperation{op}

	transport := &stubTransport{call: func(*schema.APIOperation, *model.Case) (*model.Response, error) {
		panic("simulated transport panic")
	}}

	e := New(s, resolver, transport, nil, opts)
	events := drain(e.Run(context.Background()))

	var sawPanic bool
	for _, ev := range events {
		if ev.Kind == model.EventNonFatalError && ev.Operation == op.Canonical {
			sawPanic = true
		}
	}
	if !sawPanic {
		t.Fatal("expected a NonFatalError event for the recovered worker panic")
	}
	last := events[len(events)-1]
	if last.Kind != model.EventEngineFinished {
		t.Fatalf("expected Run to finish normally despite the worker panic, got %v as the last event", last.Kind)
	}
}

func TestRunStatefulScenarioWalksGraph(t *testing.T) {
	create := &schema.APIOperation{
		ID: "createPet", Method: "POST", PathTemplate: "/pets", Canonical: "POST /pets",
		Responses: map[string]schema.ResponseDef{"201": {StatusPattern: "201"}},
		OutgoingLinks: []schema.LinkDef{
			{Name: "GetCreatedPet", SourceStatus: "201", TargetOperationID: "getPet", Parameters: map[string]string{"id": "$response.body#/id"}},
		},
	}
	get := &schema.APIOperation{
		ID: "getPet", Method: "GET", PathTemplate: "/pets/{id}", Canonical: "GET /pets/{id}",
		Parameters: []schema.Parameter{{Location: schema.InPath, Name: "id", Required: true, Schema: map[string]any{"type": "string"}}},
		Responses:  map[string]schema.ResponseDef{"200": {StatusPattern: "200"}},
	}
	s := newSchemaWith(create, get)
	create.IncomingLinks = nil
	get.IncomingLinks = []schema.LinkDef{create.OutgoingLinks[0]}
	graph := stateful.NewGraph(s)

	resolver := schema.NewResolver(nil, nil)
	opts := Options{
		Phases:            []string{"stateful"},
		Workers:           1,
		Checks:            checks.All,
		StatefulChecks:    checks.StatefulChecks,
		StatefulScenarios: 1,
		StatefulMaxSteps:  3,
	}

	transport := &stubTransport{call: func(op *schema.APIOperation, c *model.Case) (*model.Response, error) {
		if op.Canonical == create.Canonical {
			return &model.Response{StatusCode: 201, Body: []byte(`{"id":"1"}`)}, nil
		}
		return &model.Response{StatusCode: 200, Body: []byte(`{"id":"1"}`)}, nil
	}}

	e := New(s, resolver, transport, graph, opts)
	events := drain(e.Run(context.Background()))

	var sawStep bool
	for _, ev := range events {
		if ev.Kind == model.EventStepFinished {
			sawStep = true
		}
	}
	if !sawStep {
		t.Fatal("expected at least one StepFinished event from the stateful scenario")
	}
}
