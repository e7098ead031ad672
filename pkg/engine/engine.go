// Package engine implements the Execution Engine (spec section 4.J): the
// per-run orchestration that turns a filtered operation set into a stream
// of Events, wiring together pkg/phases, pkg/stateful, pkg/transport, and
// pkg/checks.
//
// Grounded on pkg/core/tools/registry.go's "one Register* method per
// capability area, composed by one top-level orchestrator" shape,
// re-purposed from tool registration into phase dispatch, and on
// orchestrate.go's worker-pool-over-independent-units pattern (there:
// one goroutine per TestScenario behind a semaphore; here: one goroutine
// per operation behind a sourcegraph/conc pool, since the teacher's own
// hand-rolled WaitGroup+channel-semaphore duplicates what conc already
// provides off the shelf).
package engine

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/blackcoderx/conform/pkg/checks"
	"github.com/blackcoderx/conform/pkg/hooks"
	conformlog "github.com/blackcoderx/conform/pkg/log"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/phases"
	"github.com/blackcoderx/conform/pkg/schema"
	"github.com/blackcoderx/conform/pkg/stateful"
	"github.com/blackcoderx/conform/pkg/transport"
)

// Options configures one engine Run. The zero value is usable but inert
// (no phases enabled); callers (pkg/config, cmd/conform) are expected to
// fill this in from resolved configuration.
type Options struct {
	// Operations is the already-filtered, already-ordered set of
	// operations to test (spec section 4.J step 1, "Filter" — performed
	// upstream by pkg/config so the engine itself never has to know about
	// selector syntax).
	Operations []*schema.APIOperation

	// Phases lists the enabled phases, a subset of
	// {"examples","coverage","fuzzing","stateful"}. CollectX calls and
	// the Stateful scenario loop run only for phases present here, in
	// the fixed order examples -> coverage -> fuzzing -> stateful
	// regardless of this slice's order (spec section 4.J step 2).
	Phases []string

	Workers           int // <= 0 means runtime.NumCPU()
	MaxFailures       int // <= 0 means unlimited
	ContinueOnFailure bool

	RateLimit rate.Limit // requests/sec; 0 disables limiting
	RateBurst int

	Seed int64

	Checks           map[string]checks.Check
	StatefulChecks   map[string]checks.ScenarioCheck
	ExpectedStatuses map[string][]string
	MaxResponseTime  time.Duration

	ExamplesOptions phases.ExamplesOptions
	CoverageOptions phases.CoverageOptions
	FuzzOptions     phases.FuzzOptions

	StatefulScenarios int // number of scenario draws, default 10
	StatefulMaxSteps  int

	// ConfiguredAuthSchemes lists the security scheme names the run was
	// given credentials for (spec section 6's unused_openapi_auth
	// warning: a configured name with no counterpart in the loaded
	// schema's SecuritySchemes).
	ConfiguredAuthSchemes []string

	CallOptions transport.CallOptions

	// AuthInjector resolves each operation's declared SecurityRequirements
	// into header additions (spec section 4.H) at call time, since a
	// single CallOptions.ExtraHeaders value is shared across every
	// operation but different operations can declare different security
	// requirements. nil means no automatic auth injection (headers must
	// already be set via CallOptions.ExtraHeaders / the CLI's -H flag).
	AuthInjector *transport.AuthInjector

	Hooks *hooks.Registry

	// Logger receives per-operation/per-worker structured log lines
	// (fields "operation", "phase", "case_id") so log output correlates
	// with emitted events. Defaults to an info-level text logger when
	// nil, grounded on pkg/logger/logger.go's NewDefault.
	Logger logrus.FieldLogger
}

const defaultStatefulScenarios = 10

// Engine runs one test session against Options.Operations and emits
// Events on the channel Run returns.
type Engine struct {
	Schema    *schema.APISchema
	Resolver  *schema.Resolver
	Transport transport.Transport
	Graph     *stateful.Graph

	Options Options

	failureCount atomic.Int64
	limiter      *rate.Limiter

	mu         sync.Mutex
	dedupers   map[string]*deduper
	warnCounts map[string]*warningCounters
}

// New builds an Engine ready to Run. graph may be nil if the stateful
// phase is disabled.
func New(s *schema.APISchema, resolver *schema.Resolver, t transport.Transport, graph *stateful.Graph, opts Options) *Engine {
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	if opts.StatefulScenarios <= 0 {
		opts.StatefulScenarios = defaultStatefulScenarios
	}
	if opts.Hooks == nil {
		opts.Hooks = hooks.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = conformlog.NewDefault()
	}

	return &Engine{
		Schema:     s,
		Resolver:   resolver,
		Transport:  t,
		Graph:      graph,
		Options:    opts,
		limiter:    limiter,
		dedupers:   map[string]*deduper{},
		warnCounts: map[string]*warningCounters{},
	}
}

// execute adapts Transport.Call to the (op, case) -> (response, error)
// shape pkg/checks.Executor and pkg/stateful.Executor both expect,
// threading the engine's CallOptions through every call site and layering
// op-specific auth headers on top when an AuthInjector is configured.
func (e *Engine) execute(op *schema.APIOperation, c *model.Case) (*model.Response, error) {
	opts := e.Options.CallOptions
	if e.Options.AuthInjector != nil && len(op.Security) > 0 {
		authHeaders, err := e.Options.AuthInjector.Apply(context.Background(), op.Security)
		if err != nil {
			return nil, err
		}
		merged := opts.ExtraHeaders.Clone()
		if merged == nil {
			merged = http.Header{}
		}
		for name, values := range authHeaders {
			for _, v := range values {
				merged.Add(name, v)
			}
		}
		opts.ExtraHeaders = merged
	}
	return e.Transport.Call(op, c, opts)
}

func (e *Engine) hasPhase(name string) bool {
	for _, p := range e.Options.Phases {
		if p == name {
			return true
		}
	}
	return false
}

func (e *Engine) dedupFor(operation string) *deduper {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.dedupers[operation]
	if !ok {
		d = newDeduper()
		e.dedupers[operation] = d
	}
	return d
}

func (e *Engine) warningsFor(operation string) *warningCounters {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.warnCounts[operation]
	if !ok {
		w = &warningCounters{}
		e.warnCounts[operation] = w
	}
	return w
}

func (e *Engine) recordFailures(n int) {
	if n <= 0 {
		return
	}
	e.failureCount.Add(int64(n))
}

func (e *Engine) maxFailuresReached() bool {
	return e.Options.MaxFailures > 0 && e.failureCount.Load() >= int64(e.Options.MaxFailures)
}

// waitForRate blocks until the shared token bucket admits the next
// request (spec section 5, "Throttling": a single shared token bucket,
// fair under contention). A nil limiter (no --rate-limit) never blocks.
func (e *Engine) waitForRate(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}
