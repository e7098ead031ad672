package schema

import (
	"fmt"
	"strings"
	"sync"
)

// MaxInlineDepth bounds how far Resolve chases nested $refs, for every
// caller, before treating the remainder as pass-through (spec section 4.A).
const MaxInlineDepth = 8

// Fetcher retrieves the bytes behind a remote reference ("uri#/pointer").
// Schema fetching over HTTP/filesystem is an external collaborator (spec
// section 1); the resolver only consumes whatever Fetcher it's given.
type Fetcher interface {
	Fetch(uri string) ([]byte, error)
}

// CycleRecord describes a $ref cycle the resolver broke, kept for
// diagnostics (NonFatalError reporting) rather than aborting generation.
type CycleRecord struct {
	Pointer string
	Scope   string
	Depth   int
}

// Resolver resolves "$ref" pointers — local ("#/pointer") and remote
// ("uri#/pointer") — against a root document and any externally fetched
// documents, with cycle detection and a per-(scope,pointer) cache so the
// same pointer always resolves to the same value (spec section 4.A,
// "Resolver idempotence", Testable Property 4).
type Resolver struct {
	root    any
	fetcher Fetcher

	mu       sync.RWMutex
	docs     map[string]any          // uri -> fetched document
	cache    map[cacheKey]any        // (scope,pointer) -> resolved value
	cycles   []CycleRecord
}

type cacheKey struct {
	scope   string
	pointer string
}

// anyValue permits any value (the cycle-break placeholder) used for data
// generation when a self-reference is detected: "permits any value" per
// spec section 4.A.
var anyValue = map[string]any{}

func NewResolver(root any, fetcher Fetcher) *Resolver {
	return &Resolver{
		root:    root,
		fetcher: fetcher,
		docs:    map[string]any{},
		cache:   map[cacheKey]any{},
	}
}

// Cycles returns every cycle the resolver has broken so far, for
// NonFatalError reporting by the schema loader.
func (r *Resolver) Cycles() []CycleRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CycleRecord, len(r.cycles))
	copy(out, r.cycles)
	return out
}

// Resolve resolves a pointer of the form "#/pointer" (local, against the
// root document) or "uri#/pointer" (remote, fetched and cached) within the
// given scope (the chain of pointers already visited on the current path,
// used for cycle detection). It returns the resolved value and the scope
// to use for any further resolution of $refs found inside that value.
func (r *Resolver) Resolve(ref string, visiting []string) (any, []string, error) {
	uri, pointer := splitRef(ref)

	scopeKey := strings.Join(visiting, ">")
	key := cacheKey{scope: scopeKey, pointer: ref}
	r.mu.RLock()
	if v, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return v, append(append([]string{}, visiting...), ref), nil
	}
	r.mu.RUnlock()

	for _, seen := range visiting {
		if seen == ref {
			r.mu.Lock()
			r.cycles = append(r.cycles, CycleRecord{Pointer: ref, Scope: scopeKey, Depth: len(visiting)})
			r.mu.Unlock()
			return anyValue, visiting, nil
		}
	}

	var doc any
	if uri == "" {
		doc = r.root
	} else {
		d, err := r.fetchDoc(uri)
		if err != nil {
			return nil, visiting, fmt.Errorf("schema: resolve %q: %w", ref, err)
		}
		doc = d
	}

	val, err := lookupPointerInDoc(doc, pointer)
	if err != nil {
		return nil, visiting, fmt.Errorf("schema: resolve %q: %w", ref, err)
	}

	newScope := append(append([]string{}, visiting...), ref)

	// Inline expansion is capped at MaxInlineDepth for every caller;
	// beyond that, treat the subschema as pass-through rather than keep
	// expanding (spec section 4.A).
	if len(newScope) > MaxInlineDepth {
		return anyValue, newScope, nil
	}

	r.mu.Lock()
	r.cache[key] = val
	r.mu.Unlock()

	return val, newScope, nil
}

// ScopedResolve is the "scoped-resolve wrapper" named in spec section 4.A:
// it resolves ref exactly as Resolve does and returns the same values. It
// returns no pop function; the caller's own scope slice is never modified.
func (r *Resolver) ScopedResolve(ref string, visiting []string) (any, []string, error) {
	return r.Resolve(ref, visiting)
}

func (r *Resolver) fetchDoc(uri string) (any, error) {
	r.mu.RLock()
	if d, ok := r.docs[uri]; ok {
		r.mu.RUnlock()
		return d, nil
	}
	r.mu.RUnlock()

	if r.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for remote reference %q", uri)
	}
	raw, err := r.fetcher.Fetch(uri)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.docs[uri] = doc
	r.mu.Unlock()
	return doc, nil
}

func splitRef(ref string) (uri, pointer string) {
	idx := strings.Index(ref, "#")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}

func lookupPointerInDoc(doc any, pointer string) (any, error) {
	if pointer == "" {
		return doc, nil
	}
	cur := doc
	for _, tok := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		tok = strings.ReplaceAll(tok, "~1", "/")
		tok = strings.ReplaceAll(tok, "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[tok]
			if !ok {
				return nil, fmt.Errorf("pointer segment %q not found", tok)
			}
			cur = v
		case []any:
			var idx int
			if _, err := fmt.Sscanf(tok, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("pointer segment %q not a valid index", tok)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("cannot descend into %T at %q", cur, tok)
		}
	}
	return cur, nil
}

// IsRef reports whether a decoded schema node is a $ref wrapper, and
// returns its target if so.
func IsRef(node map[string]any) (string, bool) {
	if len(node) == 0 {
		return "", false
	}
	ref, ok := node["$ref"].(string)
	return ref, ok
}

// Deref follows $ref chains in node (possibly through several hops) using
// r, returning the first non-$ref schema object reached. Cycles degrade to
// anyValue per spec section 4.A.
func (r *Resolver) Deref(node map[string]any, visiting []string) (map[string]any, error) {
	cur := node
	scope := visiting
	for {
		ref, ok := IsRef(cur)
		if !ok {
			return cur, nil
		}
		val, newScope, err := r.Resolve(ref, scope)
		if err != nil {
			return nil, err
		}
		m, ok := val.(map[string]any)
		if !ok {
			return anyValue, nil
		}
		cur = m
		scope = newScope
	}
}
