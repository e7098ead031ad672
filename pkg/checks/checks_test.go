package checks

import (
	"net/http"
	"testing"
	"time"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
	"github.com/blackcoderx/conform/pkg/stateful"
)

func petOperation() *schema.APIOperation {
	op := &schema.APIOperation{
		ID:           "getPet",
		Method:       "GET",
		PathTemplate: "/pets/{petId}",
		Canonical:    "GET /pets/{petId}",
		Responses: map[string]schema.ResponseDef{
			"200": {
				MediaTypes: map[string]map[string]any{
					"application/json": {
						"type":     "object",
						"required": []any{"id"},
						"properties": map[string]any{
							"id": map[string]any{"type": "string"},
						},
					},
				},
				Headers: map[string]schema.HeaderDef{
					"X-Rate-Limit": {Required: true, Schema: map[string]any{"type": "integer"}},
				},
			},
			"404": {MediaTypes: map[string]map[string]any{}},
		},
		Security: []schema.SecurityRequirement{{SchemeName: "bearerAuth"}},
	}
	return op
}

func baseCase(op *schema.APIOperation) *model.Case {
	c := model.NewCase(op.Canonical)
	c.PathParams["petId"] = "123"
	c.Meta = model.GenerationMeta{Phase: "Examples", Mode: "positive"}
	return c
}

func jsonResponse(status int, body string) *model.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Rate-Limit", "10")
	return &model.Response{StatusCode: status, Headers: h, Body: []byte(body), Duration: 10 * time.Millisecond}
}

func TestNotAServerErrorFiresOn5xx(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(500, `{}`)

	failure := NotAServerError(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindServerError {
		t.Fatalf("expected ServerError failure, got %+v", failure)
	}
}

func TestNotAServerErrorPassesOn2xx(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(200, `{"id":"123"}`)

	if failure := NotAServerError(&Context{}, op, c, resp); failure != nil {
		t.Fatalf("expected no failure, got %+v", failure)
	}
}

func TestStatusCodeConformanceFlagsUndocumented(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(503, `{}`)

	failure := StatusCodeConformance(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindUndocumentedStatus {
		t.Fatalf("expected UndocumentedStatus failure, got %+v", failure)
	}
}

func TestStatusCodeConformanceHonorsOverride(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(503, `{}`)
	ctx := &Context{ExpectedStatuses: map[string][]string{"status_code_conformance": {"5XX"}}}

	if failure := StatusCodeConformance(ctx, op, c, resp); failure != nil {
		t.Fatalf("expected override to suppress failure, got %+v", failure)
	}
}

func TestContentTypeConformanceFlagsUndocumentedType(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(200, `{"id":"123"}`)
	resp.Headers.Set("Content-Type", "text/plain")

	failure := ContentTypeConformance(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindUndocumentedContentType {
		t.Fatalf("expected UndocumentedContentType failure, got %+v", failure)
	}
}

func TestContentTypeConformanceFlagsMalformed(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(200, `{"id":"123"}`)
	resp.Headers.Set("Content-Type", ";;;not-a-type")

	failure := ContentTypeConformance(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindMalformedMediaType {
		t.Fatalf("expected MalformedMediaType failure, got %+v", failure)
	}
}

func TestResponseHeadersConformanceFlagsMissing(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(200, `{"id":"123"}`)
	resp.Headers.Del("X-Rate-Limit")

	failure := ResponseHeadersConformance(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindMissingHeader {
		t.Fatalf("expected MissingHeader failure, got %+v", failure)
	}
}

func TestResponseHeadersConformanceFlagsSchemaViolation(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(200, `{"id":"123"}`)
	resp.Headers.Set("X-Rate-Limit", "not-a-number")

	failure := ResponseHeadersConformance(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindHeaderSchemaViolation {
		t.Fatalf("expected HeaderSchemaViolation failure, got %+v", failure)
	}
}

func TestResponseSchemaConformanceFlagsViolation(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(200, `{"name":"rex"}`) // missing required "id"

	failure := ResponseSchemaConformance(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindSchemaViolation {
		t.Fatalf("expected SchemaViolation failure, got %+v", failure)
	}
}

func TestResponseSchemaConformancePassesOnValidBody(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(200, `{"id":"123"}`)

	if failure := ResponseSchemaConformance(&Context{}, op, c, resp); failure != nil {
		t.Fatalf("expected no failure, got %+v", failure)
	}
}

func TestNegativeDataRejectionFiresWhenAccepted(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	c.Meta.Mode = "negative"
	c.Meta.Mutation = &model.Mutation{Location: "body", Name: "id", Keyword: "minLength"}
	resp := jsonResponse(200, `{"id":"123"}`)

	failure := NegativeDataRejection(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindNegativeAccepted {
		t.Fatalf("expected NegativeAccepted failure, got %+v", failure)
	}
}

func TestPositiveDataAcceptanceFiresOnUndocumented4xx(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(422, `{}`)

	failure := PositiveDataAcceptance(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindPositiveRejected {
		t.Fatalf("expected PositiveRejected failure, got %+v", failure)
	}
}

func TestMissingRequiredHeaderFiresWhenNotRejected(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	c.Meta.Phase = "Coverage"
	c.Meta.Mutation = &model.Mutation{Location: "header", Name: "X-Request-Id", Keyword: "required"}
	resp := jsonResponse(200, `{"id":"123"}`)

	failure := MissingRequiredHeader(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindMissingHeaderNotRejected {
		t.Fatalf("expected MissingHeaderNotRejected failure, got %+v", failure)
	}
}

func TestMissingRequiredHeaderIgnoresOtherCases(t *testing.T) {
	op := petOperation()
	c := baseCase(op) // Examples phase, no mutation
	resp := jsonResponse(200, `{"id":"123"}`)

	if failure := MissingRequiredHeader(&Context{}, op, c, resp); failure != nil {
		t.Fatalf("expected no failure for non-coverage case, got %+v", failure)
	}
}

func TestUnsupportedMethodFiresWithout405(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	c.Meta.Phase = "Coverage"
	c.Meta.Mutation = &model.Mutation{Location: "method", Name: "TRACE", Keyword: "method"}
	resp := jsonResponse(200, `{"id":"123"}`)

	failure := UnsupportedMethod(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindMethodNotRejected {
		t.Fatalf("expected MethodNotRejected failure, got %+v", failure)
	}
}

func TestUnsupportedMethodFiresWhen405MissingAllowHeader(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	c.Meta.Phase = "Coverage"
	c.Meta.Mutation = &model.Mutation{Location: "method", Name: "TRACE", Keyword: "method"}
	resp := jsonResponse(405, `{}`)

	failure := UnsupportedMethod(&Context{}, op, c, resp)
	if failure == nil || failure.Kind != model.KindMethodNotRejected {
		t.Fatalf("expected MethodNotRejected failure for missing Allow header, got %+v", failure)
	}
}

func TestUnsupportedMethodPassesWith405AndAllowHeader(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	c.Meta.Phase = "Coverage"
	c.Meta.Mutation = &model.Mutation{Location: "method", Name: "TRACE", Keyword: "method"}
	resp := jsonResponse(405, `{}`)
	resp.Headers.Set("Allow", "GET, POST")

	if failure := UnsupportedMethod(&Context{}, op, c, resp); failure != nil {
		t.Fatalf("expected no failure, got %+v", failure)
	}
}

func TestMaxResponseTimeFiresOverThreshold(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(200, `{"id":"123"}`)
	resp.Duration = 2 * time.Second
	ctx := &Context{MaxResponseTime: time.Second}

	failure := MaxResponseTime(ctx, op, c, resp)
	if failure == nil || failure.Kind != model.KindTooSlow {
		t.Fatalf("expected TooSlow failure, got %+v", failure)
	}
}

func TestMaxResponseTimeDisabledAtZero(t *testing.T) {
	op := petOperation()
	c := baseCase(op)
	resp := jsonResponse(200, `{"id":"123"}`)
	resp.Duration = time.Hour

	if failure := MaxResponseTime(&Context{}, op, c, resp); failure != nil {
		t.Fatalf("expected no failure when threshold is unset, got %+v", failure)
	}
}

func TestIgnoredAuthFiresWhenNoCredentialsAccepted(t *testing.T) {
	op := petOperation()
	base := baseCase(op)

	ctx := &Context{
		Execute: func(op *schema.APIOperation, c *model.Case) (*model.Response, error) {
			return jsonResponse(200, `{"id":"123"}`), nil
		},
	}

	failures := IgnoredAuth(ctx, op, base)
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures (no-creds + invalid-creds probes), got %d: %+v", len(failures), failures)
	}
	for _, f := range failures {
		if f.Kind != model.KindAuthIgnored {
			t.Fatalf("expected AuthIgnored failures, got %+v", f)
		}
	}
}

func TestIgnoredAuthPassesWhenRejected(t *testing.T) {
	op := petOperation()
	base := baseCase(op)

	ctx := &Context{
		Execute: func(op *schema.APIOperation, c *model.Case) (*model.Response, error) {
			return jsonResponse(401, `{}`), nil
		},
	}

	if failures := IgnoredAuth(ctx, op, base); len(failures) != 0 {
		t.Fatalf("expected no failures, got %+v", failures)
	}
}

func TestIgnoredAuthSkipsOperationsWithoutSecurity(t *testing.T) {
	op := petOperation()
	op.Security = nil
	base := baseCase(op)

	ctx := &Context{
		Execute: func(op *schema.APIOperation, c *model.Case) (*model.Response, error) {
			t.Fatal("Execute should not be called for an unsecured operation")
			return nil, nil
		},
	}

	if failures := IgnoredAuth(ctx, op, base); failures != nil {
		t.Fatalf("expected nil, got %+v", failures)
	}
}

func stepFor(operation string, pathParams map[string]string, status int) stateful.Step {
	c := model.NewCase(operation)
	for k, v := range pathParams {
		c.PathParams[k] = v
	}
	return stateful.Step{Case: c, Response: &model.Response{StatusCode: status}}
}

func TestUseAfterFreeFiresAfterDelete(t *testing.T) {
	scenario := &stateful.Scenario{Steps: []stateful.Step{
		stepFor("POST /pets", nil, 201),
		stepFor("DELETE /pets/{petId}", map[string]string{"petId": "1"}, 204),
		stepFor("GET /pets/{petId}", map[string]string{"petId": "1"}, 200),
	}}

	failures := UseAfterFree(&Context{}, scenario)
	if len(failures) != 1 || failures[0].Kind != model.KindUseAfterFree {
		t.Fatalf("expected 1 UseAfterFree failure, got %+v", failures)
	}
}

func TestUseAfterFreePassesWhen404(t *testing.T) {
	scenario := &stateful.Scenario{Steps: []stateful.Step{
		stepFor("DELETE /pets/{petId}", map[string]string{"petId": "1"}, 204),
		stepFor("GET /pets/{petId}", map[string]string{"petId": "1"}, 404),
	}}

	if failures := UseAfterFree(&Context{}, scenario); len(failures) != 0 {
		t.Fatalf("expected no failures, got %+v", failures)
	}
}

func TestUseAfterFreeIgnoresDifferentResource(t *testing.T) {
	scenario := &stateful.Scenario{Steps: []stateful.Step{
		stepFor("DELETE /pets/{petId}", map[string]string{"petId": "1"}, 204),
		stepFor("GET /pets/{petId}", map[string]string{"petId": "2"}, 200),
	}}

	if failures := UseAfterFree(&Context{}, scenario); len(failures) != 0 {
		t.Fatalf("expected no failures for a different resource, got %+v", failures)
	}
}

func TestEnsureResourceAvailabilityFiresOn404AfterCreate(t *testing.T) {
	scenario := &stateful.Scenario{Steps: []stateful.Step{
		stepFor("POST /pets", nil, 201),
		stepFor("GET /pets/{petId}", map[string]string{"petId": "1"}, 404),
	}}

	failures := EnsureResourceAvailability(&Context{}, scenario)
	if len(failures) != 1 || failures[0].Kind != model.KindResourceMissing {
		t.Fatalf("expected 1 ResourceMissing failure, got %+v", failures)
	}
}

func TestEnsureResourceAvailabilityPassesWhenRetrievable(t *testing.T) {
	scenario := &stateful.Scenario{Steps: []stateful.Step{
		stepFor("POST /pets", nil, 201),
		stepFor("GET /pets/{petId}", map[string]string{"petId": "1"}, 200),
	}}

	if failures := EnsureResourceAvailability(&Context{}, scenario); len(failures) != 0 {
		t.Fatalf("expected no failures, got %+v", failures)
	}
}

func TestAllRegistryCoversStatelessChecks(t *testing.T) {
	want := []string{
		"not_a_server_error",
		"status_code_conformance",
		"content-type_conformance",
		"response_headers_conformance",
		"response_schema_conformance",
		"negative_data_rejection",
		"positive_data_acceptance",
		"missing_required_header",
		"unsupported_method",
		"max_response_time",
	}
	for _, name := range want {
		if _, ok := All[name]; !ok {
			t.Fatalf("expected All to register %q", name)
		}
	}
}

func TestStatefulChecksRegistryCoversScenarioChecks(t *testing.T) {
	for _, name := range []string{"use_after_free", "ensure_resource_availability"} {
		if _, ok := StatefulChecks[name]; !ok {
			t.Fatalf("expected StatefulChecks to register %q", name)
		}
	}
}
