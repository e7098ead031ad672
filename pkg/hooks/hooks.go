// Package hooks defines the plugin interface the engine invokes at fixed
// extension points (spec section 9, "Hooks & custom checks as interfaces").
// It is interface-only: no concrete hook implementations ship here (spec
// Non-goals exclude a user-extension runtime) — only the seam the engine
// calls through, so an embedder can register its own Hook values.
package hooks

import (
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// Hook is a named plugin invoked at one or more of the engine's fixed
// points. Every method is optional: an embedding type built on Base
// (below) only needs to override what it cares about.
type Hook interface {
	ID() string

	// BeforeLoadSchema runs once, before the raw schema document is
	// parsed. Returning an error aborts the load (spec section 7, error
	// taxonomy bucket 1).
	BeforeLoadSchema(raw []byte) error

	// AfterLoadSchema runs once, after the APISchema is fully built.
	AfterLoadSchema(s *schema.APISchema) error

	// BeforeInitOperation runs once per selected operation, strictly
	// before any Case is generated for it — spec section 9: "cyclic
	// dependencies between user hooks and generators are resolved by
	// running all before_init_operation hooks strictly before any Case
	// is produced."
	BeforeInitOperation(op *schema.APIOperation) error

	// BeforeCall runs immediately before a Case is sent. Returning an
	// error skips the call and is reported as a NonFatalError naming the
	// operation and the hook's error (spec section 7, bucket 5).
	BeforeCall(op *schema.APIOperation, c *model.Case) error

	// AfterCall runs immediately after a Response (or transport error)
	// comes back, before checks run.
	AfterCall(op *schema.APIOperation, c *model.Case, resp *model.Response) error
}

// Base is an embeddable no-op Hook so a concrete hook only needs to define
// the methods it actually uses.
type Base struct{ Name string }

func (b Base) ID() string { return b.Name }

func (Base) BeforeLoadSchema(raw []byte) error { return nil }

func (Base) AfterLoadSchema(s *schema.APISchema) error { return nil }

func (Base) BeforeInitOperation(op *schema.APIOperation) error { return nil }

func (Base) BeforeCall(op *schema.APIOperation, c *model.Case) error { return nil }

func (Base) AfterCall(op *schema.APIOperation, c *model.Case, resp *model.Response) error {
	return nil
}

// Registry is the engine-local, pass-by-reference collection spec section 9
// requires instead of a process-global registry ("Plugins register into an
// engine-local registry passed by reference, not a process-global").
type Registry struct {
	hooks []Hook
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Register(h Hook) { r.hooks = append(r.hooks, h) }

func (r *Registry) BeforeLoadSchema(raw []byte) error {
	for _, h := range r.hooks {
		if err := h.BeforeLoadSchema(raw); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) AfterLoadSchema(s *schema.APISchema) error {
	for _, h := range r.hooks {
		if err := h.AfterLoadSchema(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) BeforeInitOperation(op *schema.APIOperation) error {
	for _, h := range r.hooks {
		if err := h.BeforeInitOperation(op); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) BeforeCall(op *schema.APIOperation, c *model.Case) error {
	for _, h := range r.hooks {
		if err := h.BeforeCall(op, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) AfterCall(op *schema.APIOperation, c *model.Case, resp *model.Response) error {
	for _, h := range r.hooks {
		if err := h.AfterCall(op, c, resp); err != nil {
			return err
		}
	}
	return nil
}
