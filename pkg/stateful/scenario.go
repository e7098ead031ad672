package stateful

import (
	"fmt"
	"math/rand"

	"github.com/blackcoderx/conform/pkg/genvalue"
	"github.com/blackcoderx/conform/pkg/jsonvalue"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// defaultMaxSteps is spec section 4.G's "max-steps (default 6)".
const defaultMaxSteps = 6

// Executor runs one built Case against the real target and returns the
// response, letting RunScenario bind the next step's parameters from it.
// This is the one place the Stateful Phase differs from Examples/Coverage/
// Fuzzing: a scenario's later steps cannot be generated without first
// executing its earlier ones (spec section 4.G), so generation and
// execution interleave here instead of running as separate stages.
type Executor func(op *schema.APIOperation, c *model.Case) (*model.Response, error)

// ScenarioOptions configures one scenario draw.
type ScenarioOptions struct {
	Seed     int64
	MaxSteps int
	Resolver *schema.Resolver
	Execute  Executor
}

// Scenario is a completed (or partially completed, if it ran out of valid
// transitions early) sequence of steps, reported in full on failure so a
// user can replay the chain (spec section 4.G, "Failure reporting").
type Scenario struct {
	Steps []Step
	Seed  int64
}

// RunScenario draws a bounded random-walk scenario over g: at each step it
// either starts a new trace from a root operation, follows an outgoing
// link from the current position (binding target parameters via runtime
// expressions against the accumulated state), or re-picks an
// already-explored transition for additional coverage (spec section 4.G,
// scenario generation options 1–3). Determinism: the same Seed and Graph
// reproduce the same step sequence (Testable Property, spec section 4.G).
//
// Grounded on integration_orchestrator/workflow.go's sequential multi-step
// execution loop, generalized from one fixed hard-coded step list into a
// graph-driven random walk.
func RunScenario(g *Graph, opts ScenarioOptions) (*Scenario, error) {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	r := rand.New(rand.NewSource(opts.Seed))

	scenario := &Scenario{Seed: opts.Seed}
	var lastOp *schema.APIOperation
	var explored []schema.LinkDef

	const maxStallRetries = 10
	stalls := 0

	for len(scenario.Steps) < maxSteps {
		if stalls >= maxStallRetries {
			break
		}
		var op *schema.APIOperation
		var binding map[string]string

		if lastOp == nil {
			op = pickRoot(g, r)
			if op == nil {
				break
			}
		} else {
			lastStatus := scenario.Steps[len(scenario.Steps)-1].Response.StatusCode
			link, ok := pickTransition(g, lastOp, lastStatus, explored, r)
			if !ok {
				op = pickRoot(g, r)
				if op == nil {
					break
				}
			} else {
				target, ok := g.Target(link)
				if !ok {
					break
				}
				op = target
				explored = append(explored, link)
				b, ok := bindParameters(link, &scenario.Steps[len(scenario.Steps)-1])
				if !ok {
					stalls++
					continue // UNRESOLVABLE binding: skip this transition, not a failure
				}
				binding = b
				stalls = 0
			}
		}

		c, err := buildCase(op, binding, opts.Resolver, r)
		if err != nil {
			break
		}
		if opts.Execute == nil {
			return nil, fmt.Errorf("stateful: no Executor configured")
		}
		resp, err := opts.Execute(op, c)
		if err != nil {
			break
		}
		scenario.Steps = append(scenario.Steps, Step{Case: c, Response: resp})
		lastOp = op
	}

	return scenario, nil
}

func pickRoot(g *Graph, r *rand.Rand) *schema.APIOperation {
	roots := g.Roots()
	if len(roots) == 0 {
		return nil
	}
	return roots[r.Intn(len(roots))]
}

// pickTransition chooses either an outgoing link from op whose SourceStatus
// matches the last response's status code (two times in three when both
// are available) or a re-pick of an already-explored transition for extra
// coverage (one time in three)
// (option 3 of spec section 4.G: "for each outgoing link from a completed
// step whose response matched the link's source status, a candidate next
// step is available"). Links are already lexicographically ordered by
// pkg/schema/links.go.
func pickTransition(g *Graph, op *schema.APIOperation, lastStatus int, explored []schema.LinkDef, r *rand.Rand) (schema.LinkDef, bool) {
	var eligible []schema.LinkDef
	for _, l := range g.Transitions(op) {
		if statusMatchesPattern(l.SourceStatus, lastStatus) {
			eligible = append(eligible, l)
		}
	}
	if len(eligible) == 0 {
		return schema.LinkDef{}, false
	}
	if len(explored) > 0 && r.Intn(3) == 0 {
		return explored[r.Intn(len(explored))], true
	}
	return eligible[r.Intn(len(eligible))], true
}

// statusMatchesPattern mirrors schema.ResponseDef.Matches' precedence
// (exact, "NXX" wildcard, "default" always matches) for a Link's
// SourceStatus pattern.
func statusMatchesPattern(pattern string, status int) bool {
	return (schema.ResponseDef{StatusPattern: pattern}).Matches(status)
}

// bindParameters evaluates every runtime expression in link.Parameters
// against the last completed step. If any binding is UNRESOLVABLE, the
// whole transition is skipped (spec section 4.G: "evaluation yields
// UNRESOLVABLE and the transition is skipped, not a failure").
func bindParameters(link schema.LinkDef, last *Step) (map[string]string, bool) {
	out := map[string]string{}
	for name, expr := range link.Parameters {
		v, err := Evaluate(expr, nil, last)
		if err != nil {
			return nil, false
		}
		out[name] = v
	}
	return out, true
}

// buildCase materializes a Case for op: bound path/query parameters come
// from binding; everything else required is filled with one positive
// sample (spec section 4.G's rule-precondition: "a positive generator
// available").
func buildCase(op *schema.APIOperation, binding map[string]string, resolver *schema.Resolver, r *rand.Rand) (*model.Case, error) {
	c := model.NewCase(op.Canonical)
	c.Meta.Phase = "Stateful"

	for _, p := range op.Parameters {
		if bound, ok := binding[p.Name]; ok {
			setBoundParam(c, p, bound)
			continue
		}
		if !p.Required {
			continue
		}
		v, _, err := genvalue.Generate(p.Schema, genvalue.Options{Mode: genvalue.ModePositive, Resolver: resolver, Rand: r, Location: string(p.Location), Name: p.Name})
		if err != nil {
			return nil, fmt.Errorf("stateful: generate required parameter %s: %w", p.Name, err)
		}
		setGeneratedParam(c, p, v, r)
	}

	if len(op.Bodies) > 0 {
		body := op.Bodies[0]
		if bound, ok := binding["requestBody"]; ok {
			c.Body = jsonvalue.String(bound)
			c.HasBody = true
			c.MediaType = body.MediaType
		} else {
			v, _, err := genvalue.Generate(body.Schema, genvalue.Options{Mode: genvalue.ModePositive, Resolver: resolver, Rand: r, Location: "body"})
			if err == nil {
				c.Body = v
				c.HasBody = true
				c.MediaType = body.MediaType
			}
		}
	}

	return c, nil
}

func setBoundParam(c *model.Case, p schema.Parameter, value string) {
	switch p.Location {
	case schema.InPath:
		c.PathParams[p.Name] = value
	case schema.InQuery:
		c.Query[p.Name] = append(c.Query[p.Name], value)
	case schema.InHeader:
		c.Headers.Set(p.Name, value)
	case schema.InCookie:
		c.Cookies[p.Name] = value
	}
}

func setGeneratedParam(c *model.Case, p schema.Parameter, v jsonvalue.Value, r *rand.Rand) {
	switch p.Location {
	case schema.InPath:
		c.PathParams[p.Name] = genvalue.SerializePathParam(p.Name, v, p.Style, p.Explode)
	case schema.InQuery:
		for _, pair := range genvalue.SerializeQueryParam(p.Name, v, p.Style, p.Explode) {
			c.Query[pair.Key] = append(c.Query[pair.Key], pair.Value)
		}
	case schema.InHeader:
		c.Headers.Set(p.Name, genvalue.SerializeHeaderParam(v, p.Explode))
	case schema.InCookie:
		c.Cookies[p.Name] = genvalue.SerializeHeaderParam(v, p.Explode)
	}
}
