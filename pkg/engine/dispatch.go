package engine

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/blackcoderx/conform/pkg/checks"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/phases"
	"github.com/blackcoderx/conform/pkg/schema"
	"github.com/blackcoderx/conform/pkg/stateful"
)

var phaseOrder = []string{"examples", "coverage", "fuzzing", "stateful"}

// Run executes every selected operation's enabled non-stateful phases
// (spec section 4.J steps 2-6), then the Stateful phase's scenario draws,
// emitting Events on the returned channel as work completes. The channel
// is closed once EngineFinished has been sent.
//
// Grounded on orchestrate.go's RunTestsTool.Execute: filter scenarios,
// bound concurrency with a worker pool, collect results, summarize —
// generalized from a flat scenario list into phase-ordered per-operation
// dispatch with stop conditions and warnings.
func (e *Engine) Run(ctx context.Context) <-chan *model.Event {
	out := make(chan *model.Event, 64)
	runCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		defer cancel()

		start := time.Now()
		e.Options.Logger.WithFields(logrus.Fields{"operations": len(e.Options.Operations), "phases": e.Options.Phases}).Info("engine started")
		emit(out, &model.Event{Kind: model.EventEngineStarted})

		for _, op := range e.Options.Operations {
			if err := e.Options.Hooks.BeforeInitOperation(op); err != nil {
				emit(out, &model.Event{Kind: model.EventNonFatalError, Operation: op.Canonical, Info: fmt.Sprintf("before_init_operation hook: %v", err)})
			}
		}

		workers := e.Options.Workers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}

		var totalCases, totalFailures, operationsTested int
		p := pool.New().WithMaxGoroutines(workers)
		for _, op := range e.Options.Operations {
			op := op
			p.Go(func() {
				defer e.recoverWorker(op.Canonical, out)
				if runCtx.Err() != nil {
					return
				}
				stats := e.runOperation(runCtx, op, out)
				e.mu.Lock()
				totalCases += stats.CasesExecuted
				totalFailures += stats.FailuresFound
				operationsTested++
				e.mu.Unlock()
			})
		}
		p.Wait()

		if e.hasPhase("stateful") && e.Graph != nil && runCtx.Err() == nil {
			stats := e.runStatefulPhase(runCtx, out)
			totalCases += stats.CasesExecuted
			totalFailures += stats.FailuresFound
		}

		for _, t := range unusedOpenAPIAuth(e.Options.ConfiguredAuthSchemes, e.Schema.SecuritySchemes) {
			emit(out, &model.Event{Kind: model.EventWarning, WarningKind: t.Kind, Counters: t.Counters})
		}

		interrupted := runCtx.Err() != nil
		e.Options.Logger.WithFields(logrus.Fields{
			"total_cases": totalCases, "total_failures": totalFailures, "interrupted": interrupted,
		}).Info("engine finished")
		emit(out, &model.Event{
			Kind: model.EventEngineFinished,
			FinalSummary: &model.Summary{
				OperationsTotal:  len(e.Options.Operations),
				OperationsTested: operationsTested,
				TotalCases:       totalCases,
				TotalFailures:    totalFailures,
				Duration:         time.Since(start),
				Interrupted:      interrupted,
			},
		})
	}()

	return out
}

// runOperation drives Examples -> Coverage -> Fuzzing for one operation,
// plus the one-shot ignored_auth probe, then evaluates warning thresholds.
func (e *Engine) runOperation(ctx context.Context, op *schema.APIOperation, out chan<- *model.Event) model.ScenarioStats {
	var stats model.ScenarioStats
	start := time.Now()
	r := rand.New(rand.NewSource(e.Options.Seed ^ int64(len(op.Canonical))))

	if op.ParseError != nil {
		emit(out, &model.Event{Kind: model.EventNonFatalError, Operation: op.Canonical, Info: fmt.Sprintf("invalid operation schema: %v", op.ParseError)})
		return stats
	}

	opLog := e.Options.Logger.WithField("operation", op.Canonical)
	opLog.Debug("starting operation")

	var cases []*model.Case
	for _, phase := range phaseOrder {
		if phase == "stateful" || !e.hasPhase(phase) {
			continue
		}
		phaseCases := e.collectPhase(phase, op, r)
		for _, c := range phaseCases {
			opLog.WithFields(logrus.Fields{"phase": phase, "case_id": c.Fingerprint()}).Debug("generated case")
		}
		cases = append(cases, phaseCases...)
	}
	stats.CasesGenerated = len(cases)

	stop := false
	for _, c := range cases {
		if ctx.Err() != nil || stop || e.maxFailuresReached() {
			break
		}
		failures := e.runCase(ctx, op, c, out)
		stats.CasesExecuted++
		stats.FailuresFound += len(failures)
		if len(failures) > 0 && !e.Options.ContinueOnFailure {
			stop = true
		}
	}

	if !stop && ctx.Err() == nil && len(op.Security) > 0 && len(cases) > 0 {
		base := firstPositive(cases)
		if base != nil {
			for _, f := range checks.IgnoredAuth(e.checkContext(), op, base) {
				failures := e.dedupFor(op.Canonical).Filter(op.Canonical, []*model.CheckFailure{f})
				if len(failures) > 0 {
					emit(out, &model.Event{Kind: model.EventStepFinished, Operation: op.Canonical, Case: f.Case, Response: f.Response, Checks: failures})
					e.recordFailures(len(failures))
					stats.FailuresFound += len(failures)
				}
			}
		}
	}

	stats.Duration = time.Since(start)
	e.emitWarnings(op.Canonical, out)
	return stats
}

func (e *Engine) collectPhase(phase string, op *schema.APIOperation, r *rand.Rand) []*model.Case {
	switch phase {
	case "examples":
		opts := e.Options.ExamplesOptions
		opts.Rand = r
		opts.Resolver = e.Resolver
		return phases.CollectExamples(op, opts)
	case "coverage":
		opts := e.Options.CoverageOptions
		opts.Resolver = e.Resolver
		opts.Rand = r
		return phases.CollectCoverage(op, opts)
	case "fuzzing":
		opts := e.Options.FuzzOptions
		opts.Resolver = e.Resolver
		opts.Seed = r.Int63()
		return phases.CollectFuzz(op, opts)
	default:
		return nil
	}
}

func firstPositive(cases []*model.Case) *model.Case {
	for _, c := range cases {
		if c.Meta.Mode != "negative" {
			return c
		}
	}
	return nil
}

// runCase executes one Case through the full before_call -> transport ->
// after_call -> checks pipeline (spec section 4.J step 4), emitting
// ScenarioStarted/StepFinished/ScenarioFinished for it.
func (e *Engine) runCase(ctx context.Context, op *schema.APIOperation, c *model.Case, out chan<- *model.Event) []*model.CheckFailure {
	emit(out, &model.Event{Kind: model.EventScenarioStarted, Operation: op.Canonical})

	if err := e.Options.Hooks.BeforeCall(op, c); err != nil {
		emit(out, &model.Event{Kind: model.EventNonFatalError, Operation: op.Canonical, Info: fmt.Sprintf("before_call hook: %v", err)})
		emit(out, &model.Event{Kind: model.EventScenarioFinished, Operation: op.Canonical, Status: model.ScenarioSkipped})
		return nil
	}

	if err := e.waitForRate(ctx); err != nil {
		emit(out, &model.Event{Kind: model.EventScenarioFinished, Operation: op.Canonical, Status: model.ScenarioInterrupted})
		return nil
	}

	resp, err := e.execute(op, c)
	if err != nil {
		emit(out, &model.Event{Kind: model.EventNonFatalError, Operation: op.Canonical, Info: fmt.Sprintf("transport: %v", err)})
		emit(out, &model.Event{Kind: model.EventScenarioFinished, Operation: op.Canonical, Status: model.ScenarioError})
		return nil
	}

	if err := e.Options.Hooks.AfterCall(op, c, resp); err != nil {
		emit(out, &model.Event{Kind: model.EventNonFatalError, Operation: op.Canonical, Info: fmt.Sprintf("after_call hook: %v", err)})
	}

	failures := e.runChecks(op, c, resp)
	failures = e.dedupFor(op.Canonical).Filter(op.Canonical, failures)
	e.recordFailures(len(failures))
	e.warningsFor(op.Canonical).Record(resp)

	status := model.ScenarioSuccess
	if len(failures) > 0 {
		status = model.ScenarioFailure
	}

	emit(out, &model.Event{Kind: model.EventStepFinished, Operation: op.Canonical, Case: c, Response: resp, Checks: failures})
	emit(out, &model.Event{Kind: model.EventScenarioFinished, Operation: op.Canonical, Status: status})

	return failures
}

// runChecks runs every enabled stateless check against (op, c, resp),
// short-circuiting to a single TransportError failure when the call never
// completed (spec section 7, error taxonomy bucket 3).
func (e *Engine) runChecks(op *schema.APIOperation, c *model.Case, resp *model.Response) []*model.CheckFailure {
	if resp.TransportError != nil {
		return []*model.CheckFailure{{
			Kind:     model.KindTransportError,
			Title:    "transport error",
			Message:  resp.TransportError.Error(),
			Context:  map[string]any{"error": resp.TransportError.Error()},
			Case:     c,
			Response: resp,
		}}
	}

	ctx := e.checkContext()
	var failures []*model.CheckFailure
	for name, check := range e.Options.Checks {
		if name == "ignored_auth" {
			continue // operation-scoped, invoked separately from runOperation
		}
		if f := check(ctx, op, c, resp); f != nil {
			failures = append(failures, f)
		}
	}
	return failures
}

// recoverWorker implements spec section 7's panic propagation policy: a
// worker's panic is captured, converted to a NonFatalError event, and the
// worker is recycled rather than crashing Run's consumer. conc/pool
// otherwise captures a goroutine panic internally and re-raises it at
// p.Wait(), which runs with no recover of its own — deferring this inside
// each p.Go closure intercepts the panic before conc ever sees it.
func (e *Engine) recoverWorker(operation string, out chan<- *model.Event) {
	if r := recover(); r != nil {
		e.Options.Logger.WithFields(logrus.Fields{"operation": operation, "panic": r}).Error("worker panic recovered")
		emit(out, &model.Event{Kind: model.EventNonFatalError, Operation: operation, Info: fmt.Sprintf("panic: %v", r)})
	}
}

func (e *Engine) checkContext() *checks.Context {
	return &checks.Context{
		Resolver:         e.Resolver,
		ExpectedStatuses: e.Options.ExpectedStatuses,
		MaxResponseTime:  e.Options.MaxResponseTime,
		Execute:          e.execute,
	}
}

// runStatefulPhase draws Options.StatefulScenarios independent scenarios
// from the graph (spec section 4.J: "for Stateful, scenario-seeds" are the
// dispatch unit), running them concurrently the same way runOperation's
// per-operation cases run sequentially within one operation.
func (e *Engine) runStatefulPhase(ctx context.Context, out chan<- *model.Event) model.ScenarioStats {
	var total model.ScenarioStats
	workers := e.Options.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := pool.New().WithMaxGoroutines(workers)
	for i := 0; i < e.Options.StatefulScenarios; i++ {
		seed := e.Options.Seed + int64(i) + 1
		p.Go(func() {
			label := fmt.Sprintf("stateful-scenario-%d", seed)
			defer e.recoverWorker(label, out)
			if ctx.Err() != nil || e.maxFailuresReached() {
				return
			}
			stats := e.runStatefulScenario(ctx, seed, out)
			e.mu.Lock()
			total.CasesGenerated += stats.CasesGenerated
			total.CasesExecuted += stats.CasesExecuted
			total.FailuresFound += stats.FailuresFound
			e.mu.Unlock()
		})
	}
	p.Wait()
	return total
}

func (e *Engine) runStatefulScenario(ctx context.Context, seed int64, out chan<- *model.Event) model.ScenarioStats {
	var stats model.ScenarioStats
	start := time.Now()

	label := fmt.Sprintf("stateful-scenario-%d", seed)
	emit(out, &model.Event{Kind: model.EventScenarioStarted, Operation: label})

	scenario, err := stateful.RunScenario(e.Graph, stateful.ScenarioOptions{
		Seed:     seed,
		MaxSteps: e.Options.StatefulMaxSteps,
		Resolver: e.Resolver,
		Execute:  e.execute,
	})
	if err != nil {
		emit(out, &model.Event{Kind: model.EventNonFatalError, Operation: label, Info: fmt.Sprintf("stateful scenario: %v", err)})
		emit(out, &model.Event{Kind: model.EventScenarioFinished, Operation: label, Status: model.ScenarioError})
		return stats
	}

	stats.CasesGenerated = len(scenario.Steps)
	failed := false
	for _, step := range scenario.Steps {
		stats.CasesExecuted++
		op, ok := e.Graph.Operation(step.Case.Operation)
		if !ok {
			continue
		}
		failures := e.runChecks(op, step.Case, step.Response)
		failures = e.dedupFor(op.Canonical).Filter(op.Canonical, failures)
		e.recordFailures(len(failures))
		e.warningsFor(op.Canonical).Record(step.Response)
		if len(failures) > 0 {
			failed = true
		}
		stats.FailuresFound += len(failures)
		emit(out, &model.Event{Kind: model.EventStepFinished, Operation: op.Canonical, Case: step.Case, Response: step.Response, Checks: failures})
	}

	for _, scenarioCheck := range e.Options.StatefulChecks {
		for _, f := range scenarioCheck(e.checkContext(), scenario) {
			operation := f.Case.Operation
			failures := e.dedupFor(operation).Filter(operation, []*model.CheckFailure{f})
			if len(failures) == 0 {
				continue
			}
			failed = true
			stats.FailuresFound += len(failures)
			e.recordFailures(len(failures))
			emit(out, &model.Event{Kind: model.EventStepFinished, Operation: operation, Case: f.Case, Response: f.Response, Checks: failures})
		}
	}

	status := model.ScenarioSuccess
	if failed {
		status = model.ScenarioFailure
	}

	stats.Duration = time.Since(start)
	emit(out, &model.Event{Kind: model.EventScenarioFinished, Operation: label, Status: status, Stats: &stats})
	return stats
}

func emit(out chan<- *model.Event, e *model.Event) {
	out <- e
}
