// Package model holds the data shared across the generation, transport,
// checks, and execution layers: Case, Response, CheckFailure, and Event,
// per spec section 3 ("Data Model").
package model

import (
	"fmt"
	"net/http"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/blackcoderx/conform/pkg/jsonvalue"
)

// Mutation records which schema keyword a Coverage/Fuzzing negative case
// violated, so checks can skip validations that a known-invalid input would
// otherwise always fail (spec section 4.C, "Negative mode").
type Mutation struct {
	Location string // path | query | header | cookie | body; Coverage parameter cases use "parameter:<location>", unexpected-method cases "method"
	Name     string
	Keyword  string // minLength, maximum, required, type, pattern, ...
}

// GenerationMeta is the provenance a Case carries: which phase produced it,
// in what mode, from which seed, with what human-readable description.
type GenerationMeta struct {
	Phase       string // Examples | Coverage | Fuzzing | Stateful | Checks (ignored_auth probes)
	Mode        string // positive | negative
	Seed        int64
	Description string
	Mutation    *Mutation
}

// Case is a concrete, ready-to-send request: the atom of testing (spec
// section 3). Its identity is (Operation, Fingerprint()).
type Case struct {
	Operation  string // canonical "METHOD /path"
	PathParams map[string]string
	Query      map[string][]string
	Headers    http.Header
	Cookies    map[string]string
	Body       jsonvalue.Value
	HasBody    bool
	MediaType  string
	Meta       GenerationMeta
}

func NewCase(operation string) *Case {
	return &Case{
		Operation:  operation,
		PathParams: map[string]string{},
		Query:      map[string][]string{},
		Headers:    http.Header{},
		Cookies:    map[string]string{},
	}
}

// fingerprintView is the structurally-hashable projection of a Case;
// hashstructure needs a plain, comparable shape rather than http.Header's
// case-insensitive semantics, so header names are canonicalized
// (http.CanonicalHeaderKey) here.
type fingerprintView struct {
	PathParams map[string]string
	Query      map[string][]string
	Headers    map[string][]string
	Cookies    map[string]string
	Body       any
	MediaType  string
}

// Fingerprint derives the stable per-Case identity used for dedup, the
// fuzzing example database key, and reproduction ("same seed -> same
// fingerprint sequence", Testable Property 1).
func (c *Case) Fingerprint() string {
	headers := make(map[string][]string, len(c.Headers))
	for k, v := range c.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}
	view := fingerprintView{
		PathParams: c.PathParams,
		Query:      c.Query,
		Headers:    headers,
		Cookies:    c.Cookies,
		Body:       jsonvalue.ToNative(c.Body),
		MediaType:  c.MediaType,
	}
	h, err := hashstructure.Hash(view, hashstructure.FormatV2, nil)
	if err != nil {
		// Hashing a plain-data struct of maps/slices/strings cannot fail in
		// practice; degrade to a distinguishable value rather than panic.
		return fmt.Sprintf("unhashable-%p", c)
	}
	return fmt.Sprintf("%016x", h)
}
