// Package genvalue implements the Data Generators component (spec section
// 4.C): producing positive and negative values from JSON Schema fragments
// and serializing them to wire formats per media type and parameter style.
package genvalue

import (
	"math/rand"

	"github.com/blackcoderx/conform/pkg/jsonvalue"
)

// Strategy produces values of type T from an RNG and participates in
// shrinking toward a minimal counterexample. Mirrors the teacher's
// generator-closure idiom (see jsonschema.go) generalized to a named
// interface. Func is its only implementation; the generators in
// jsonschema.go, pattern.go and format.go are plain functions and do not
// implement it.
type Strategy[T any] interface {
	Generate(r *rand.Rand) T
	// Shrink yields progressively smaller candidates derived from v, in
	// order from least to most aggressively reduced. A strategy with no
	// meaningful shrink steps may return nil.
	Shrink(v T) []T
}

// ValueStrategy is Strategy over jsonvalue.Value. pkg/phases calls
// Generate directly and does not use it.
type ValueStrategy = Strategy[jsonvalue.Value]

// Func adapts a plain generation function into a Strategy with no shrink
// steps of its own.
type Func func(r *rand.Rand) jsonvalue.Value

func (f Func) Generate(r *rand.Rand) jsonvalue.Value { return f(r) }
func (f Func) Shrink(jsonvalue.Value) []jsonvalue.Value { return nil }
