package engine

import (
	"sync"

	"github.com/blackcoderx/conform/pkg/model"
)

// deduper canonicalizes CheckFailures within one operation so the same
// underlying defect, hit repeatedly across cases, is counted once (spec
// section 7, "Deduplication policy"). Grounded on
// regression_watchdog/diff_engine.go's diff-then-classify-then-dedup
// shape, applied here to CheckFailure.DedupKey instead of a diff
// classification. Library: github.com/mitchellh/hashstructure/v2, already
// backing CheckFailure.DedupKey itself.
type deduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newDeduper() *deduper {
	return &deduper{seen: map[string]bool{}}
}

// Filter returns only the failures not already seen for operation,
// marking them seen as a side effect. The first occurrence of any given
// canonical failure survives; later repeats are dropped.
func (d *deduper) Filter(operation string, failures []*model.CheckFailure) []*model.CheckFailure {
	if len(failures) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*model.CheckFailure, 0, len(failures))
	for _, f := range failures {
		key := f.DedupKey(operation)
		if d.seen[key] {
			continue
		}
		d.seen[key] = true
		out = append(out, f)
	}
	return out
}
