package engine

import (
	"mime"
	"sync"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// knownMediaTypes are the media types the transport/checks layer can
// actually parse. A non-empty body outside this set trips
// missing_deserializer — distinct from content-type_conformance's
// "undocumented for this operation", since a type can be documented by
// the schema yet still be something nothing in the pipeline knows how to
// decode.
var knownMediaTypes = map[string]bool{
	"application/json":                  true,
	"application/xml":                   true,
	"text/xml":                          true,
	"text/plain":                        true,
	"application/x-www-form-urlencoded": true,
	"multipart/form-data":               true,
	"application/octet-stream":          true,
}

// warningCounters accumulates the per-operation response-shape counters
// spec section 6's "Warning thresholds" are evaluated against.
type warningCounters struct {
	mu                  sync.Mutex
	total               int
	auth401403          int
	status404           int
	status4xxOther      int
	missingDeserializer bool
}

// Record folds one Response into the running counters. Transport-level
// failures (no real status code) don't count toward any ratio.
func (w *warningCounters) Record(resp *model.Response) {
	if resp == nil || resp.TransportError != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.total++
	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		w.auth401403++
	case resp.StatusCode == 404:
		w.status404++
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		w.status4xxOther++
	}

	if len(resp.Body) == 0 {
		return
	}
	mediaType, _, err := mime.ParseMediaType(resp.Headers.Get("Content-Type"))
	if err != nil {
		return
	}
	if !knownMediaTypes[mediaType] {
		w.missingDeserializer = true
	}
}

// threshold names one fired warning and the counters that triggered it.
type threshold struct {
	Kind     string
	Counters map[string]int
}

// Evaluate checks every ratio in spec section 6 once an operation's run is
// complete ("After all scenarios for an operation complete, if any
// threshold is met, emit a Warning event").
func (w *warningCounters) Evaluate() []threshold {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.total == 0 {
		return nil
	}

	var out []threshold
	if ratio(w.auth401403, w.total) >= 0.90 {
		out = append(out, threshold{Kind: "missing_auth", Counters: map[string]int{"count": w.auth401403, "total": w.total}})
	}
	if ratio(w.status404, w.total) >= 0.10 {
		out = append(out, threshold{Kind: "missing_test_data", Counters: map[string]int{"count": w.status404, "total": w.total}})
	}
	if ratio(w.status4xxOther, w.total) >= 0.10 {
		out = append(out, threshold{Kind: "validation_mismatch", Counters: map[string]int{"count": w.status4xxOther, "total": w.total}})
	}
	if w.missingDeserializer {
		out = append(out, threshold{Kind: "missing_deserializer", Counters: map[string]int{"total": w.total}})
	}
	return out
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// emitWarnings evaluates operation's accumulated counters and emits one
// Warning event per threshold met, once the operation's cases have all
// run (spec section 6: "After all scenarios for an operation complete,
// if any threshold is met, emit a Warning event").
func (e *Engine) emitWarnings(operation string, out chan<- *model.Event) {
	for _, t := range e.warningsFor(operation).Evaluate() {
		e.Options.Logger.WithField("operation", operation).Warnf("warning threshold met: %s", t.Kind)
		emit(out, &model.Event{Kind: model.EventWarning, Operation: operation, WarningKind: t.Kind, Counters: t.Counters})
	}
}

// unusedOpenAPIAuth compares the scheme names the run was configured with
// credentials for against the schemes the loaded schema actually declares,
// firing the fifth warning kind for any name with no schema counterpart.
func unusedOpenAPIAuth(configured []string, declared map[string]schema.SecurityScheme) []threshold {
	var out []threshold
	for _, name := range configured {
		if _, ok := declared[name]; ok {
			continue
		}
		out = append(out, threshold{Kind: "unused_openapi_auth", Counters: map[string]int{}})
	}
	return out
}
