// Package errs defines the fatal/recoverable distinction spec section 7's
// error taxonomy draws between bucket 1 (fatal, pre-run, exit 2) and
// bucket 2 (recoverable, per-operation, continue). Every error elsewhere
// in the module is built with plain fmt.Errorf("...: %w", err), exactly
// the wrapping idiom pkg/core/tools/spec_ingester/openapi_parser.go and
// pkg/core/tools/shared/diff.go use throughout the teacher repo; this
// package only adds typed sentinels so a caller can tell the two buckets
// apart with errors.As instead of string matching.
package errs

import "fmt"

// Fatal wraps an error that should stop the run before it starts and
// exit with status 2: an unparsable schema, an unreachable schema URL
// after --wait-for-schema, invalid configuration (spec section 7 bucket
// 1).
type Fatal struct {
	Op  string
	Err error
}

func (e *Fatal) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *Fatal) Unwrap() error { return e.Err }

// NewFatal wraps err as a Fatal error tagged with the operation/stage
// that produced it (e.g. "load schema", "resolve references").
func NewFatal(op string, err error) *Fatal {
	return &Fatal{Op: op, Err: err}
}

// Recoverable wraps an error scoped to one operation that should not
// abort the run: an invalid schema sub-document, an unresolvable
// reference, a generator that cannot produce values for one parameter
// (spec section 7 bucket 2). The engine converts these into
// NonFatalError events and continues with the remaining operations.
type Recoverable struct {
	Operation string
	Err       error
}

func (e *Recoverable) Error() string {
	if e.Operation == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}
func (e *Recoverable) Unwrap() error { return e.Err }

// NewRecoverable wraps err as a Recoverable error scoped to operation.
func NewRecoverable(operation string, err error) *Recoverable {
	return &Recoverable{Operation: operation, Err: err}
}
