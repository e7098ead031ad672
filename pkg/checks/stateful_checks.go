package checks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/stateful"
)

// ScenarioCheck is the signature for checks that need a full Scenario's step
// history rather than one Case/Response pair (spec section 4.I):
// use_after_free and ensure_resource_availability look for a resource
// lifecycle violation that spans multiple steps, which no single step
// exposes on its own. Grounded on the same per-concern checker shape as
// Check, applied to integration_orchestrator/workflow.go's multi-step
// trace instead of a single request/response.
type ScenarioCheck func(ctx *Context, scenario *stateful.Scenario) []*model.CheckFailure

// StatefulChecks is the default registry of scenario-scoped checks, run
// once per completed Scenario rather than once per step.
var StatefulChecks = map[string]ScenarioCheck{
	"use_after_free":               UseAfterFree,
	"ensure_resource_availability": EnsureResourceAvailability,
}

// UseAfterFree walks a scenario's steps looking for a DELETE that succeeded
// followed, later in the same trace, by a GET/PUT/PATCH against the same
// resource that did not come back 404/410 (spec section 4.I): the server
// kept serving a resource it had already told the client was gone.
func UseAfterFree(ctx *Context, scenario *stateful.Scenario) []*model.CheckFailure {
	var failures []*model.CheckFailure
	deletedAt := map[string]*stateful.Step{}

	for i := range scenario.Steps {
		step := &scenario.Steps[i]
		method, pathTemplate := splitOperation(step.Case.Operation)
		key := resourceKey(pathTemplate, step.Case.PathParams)

		if method == "DELETE" && succeeded(step.Response) {
			deletedAt[key] = step
			continue
		}

		deletedBy, wasDeleted := deletedAt[key]
		if !wasDeleted || (method != "GET" && method != "PUT" && method != "PATCH") {
			continue
		}
		if step.Response.TransportError != nil {
			continue
		}
		if step.Response.StatusCode == 404 || step.Response.StatusCode == 410 {
			continue
		}

		failures = append(failures, &model.CheckFailure{
			Kind:    model.KindUseAfterFree,
			Title:   "resource accessible after delete",
			Message: fmt.Sprintf("%s returned %d after %s had already deleted the same resource", step.Case.Operation, step.Response.StatusCode, deletedBy.Case.Operation),
			Context: map[string]any{
				"deleted_by":  deletedBy.Case.Operation,
				"status_code": step.Response.StatusCode,
			},
			Case:     step.Case,
			Response: step.Response,
		})
	}

	return failures
}

// EnsureResourceAvailability fires when a successful create (a POST
// returning 2xx) is immediately followed, in the same scenario, by a
// linked GET that returns 404 (spec section 4.I): the resource the server
// just said it created isn't actually retrievable. Adjacency stands in for
// "linked" here since RunScenario only ever advances from a step to an
// operation reachable by one of its outgoing links.
func EnsureResourceAvailability(ctx *Context, scenario *stateful.Scenario) []*model.CheckFailure {
	var failures []*model.CheckFailure

	for i := 0; i+1 < len(scenario.Steps); i++ {
		create := &scenario.Steps[i]
		method, _ := splitOperation(create.Case.Operation)
		if method != "POST" || !succeeded(create.Response) {
			continue
		}

		next := &scenario.Steps[i+1]
		nextMethod, _ := splitOperation(next.Case.Operation)
		if nextMethod != "GET" || next.Response.TransportError != nil {
			continue
		}
		if next.Response.StatusCode != 404 {
			continue
		}

		failures = append(failures, &model.CheckFailure{
			Kind:    model.KindResourceMissing,
			Title:   "created resource not retrievable",
			Message: fmt.Sprintf("%s succeeded but the following %s returned 404", create.Case.Operation, next.Case.Operation),
			Context: map[string]any{"created_by": create.Case.Operation},
			Case:     next.Case,
			Response: next.Response,
		})
	}

	return failures
}

func succeeded(resp *model.Response) bool {
	return resp != nil && resp.TransportError == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
}

func splitOperation(operation string) (method, pathTemplate string) {
	parts := strings.SplitN(operation, " ", 2)
	if len(parts) != 2 {
		return operation, ""
	}
	return parts[0], parts[1]
}

// resourceKey identifies "the same resource" across steps as its path
// template plus the resolved value of every path parameter, sorted by
// name so map iteration order never affects the key.
func resourceKey(pathTemplate string, pathParams map[string]string) string {
	names := make([]string, 0, len(pathParams))
	for name := range pathParams {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(pathTemplate)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(pathParams[name])
	}
	return b.String()
}
