package stateful

import (
	"sort"

	"github.com/blackcoderx/conform/pkg/schema"
)

// Graph is the directed multigraph of operations connected by Links, the
// structure the Stateful Phase's scenario walker explores (spec section
// 4.G). It is a thin index over *schema.APISchema's already-resolved
// OutgoingLinks/IncomingLinks (pkg/schema/links.go), not a separate copy of
// the operation data — APISchema remains the sole owner (spec section 3,
// "Ownership").
//
// Grounded on spec_ingester/graph_builder.go's producer/consumer tool
// graph, fused with the teacher's integration_orchestrator/workflow.go
// explicit step-sequencing struct: that file modeled one fixed multi-step
// workflow; this type generalizes it into a graph a random walk can
// explore at run time rather than a single hard-coded sequence.
type Graph struct {
	schema *schema.APISchema
	roots  []*schema.APIOperation
}

// NewGraph builds a Graph over s. Root operations — those with no incoming
// links — are precomputed once since every scenario's first step (spec
// section 4.G, "Picks a root operation") draws from that same set.
func NewGraph(s *schema.APISchema) *Graph {
	g := &Graph{schema: s}
	for _, op := range s.Operations() {
		if len(op.IncomingLinks) == 0 {
			g.roots = append(g.roots, op)
		}
	}
	sort.Slice(g.roots, func(i, j int) bool { return g.roots[i].Canonical < g.roots[j].Canonical })
	return g
}

// Roots returns every operation with no incoming links, in stable order.
func (g *Graph) Roots() []*schema.APIOperation {
	out := make([]*schema.APIOperation, len(g.roots))
	copy(out, g.roots)
	return out
}

// Transitions returns op's outgoing links in the tie-break order this repo
// chose for the originating spec's open question on ordering ambiguous
// transitions: lexicographic by link name, matching the order
// pkg/schema/links.go's sortLinks already established, so callers don't
// need to re-sort.
func (g *Graph) Transitions(op *schema.APIOperation) []schema.LinkDef {
	return op.OutgoingLinks
}

// Target resolves a Link's destination operation.
func (g *Graph) Target(link schema.LinkDef) (*schema.APIOperation, bool) {
	if op, ok := g.schema.OperationByID(link.TargetOperationID); ok {
		return op, true
	}
	return g.schema.Operation(link.TargetOperationID)
}

// Operation looks up an operation by canonical name, for replaying an
// already-explored transition (spec section 4.G, scenario step option 3).
func (g *Graph) Operation(canonical string) (*schema.APIOperation, bool) {
	return g.schema.Operation(canonical)
}
