package phases

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blackcoderx/conform/pkg/genvalue"
	"github.com/blackcoderx/conform/pkg/jsonvalue"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// FuzzOptions configures the Fuzzing phase (spec section 4.F).
type FuzzOptions struct {
	Seed          int64
	Deterministic bool
	NoShrink      bool
	MaxExamples   int      // budget, distributed across Modes
	Modes         []string // "positive" | "negative" | "all"
	Maximize      string   // e.g. "response_time"; empty disables targeting
	DB            *ExampleDB
	Resolver      *schema.Resolver
}

// StoredExample is one persisted minimized failing input, keyed by
// (operation, canonical-fingerprint) per spec section 4.F point 3.
type StoredExample struct {
	Fingerprint string          `json:"fingerprint"`
	Location    string          `json:"location"`
	Name        string          `json:"name"`
	Value       json.RawMessage `json:"value"`
	MediaType   string          `json:"media_type"`
}

// ExampleDB is a persistent store of minimized failing inputs, one file per
// operation under Dir, replayed first on the next run.
//
// Grounded on shared/manifest.go's persistence.PersistenceManager
// file-per-key store (there: named requests persisted to disk keyed by
// name; here: failing examples persisted keyed by fingerprint).
type ExampleDB struct {
	Dir string
}

func (db *ExampleDB) pathFor(operation string) string {
	safe := strings.NewReplacer("/", "_", " ", "_", ":", "_").Replace(operation)
	return filepath.Join(db.Dir, safe+".json")
}

// Load returns every previously persisted failing example for operation, or
// an empty slice if none exist yet. A missing or unreadable file is not an
// error — the Fuzzing phase simply has no replay candidates this run.
func (db *ExampleDB) Load(operation string) []StoredExample {
	if db == nil || db.Dir == "" {
		return nil
	}
	raw, err := os.ReadFile(db.pathFor(operation))
	if err != nil {
		return nil
	}
	var out []StoredExample
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Store persists or replaces the example under its fingerprint.
func (db *ExampleDB) Store(operation string, ex StoredExample) error {
	if db == nil || db.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(db.Dir, 0o755); err != nil {
		return fmt.Errorf("genvalue: create example db dir: %w", err)
	}
	existing := db.Load(operation)
	replaced := false
	for i, e := range existing {
		if e.Fingerprint == ex.Fingerprint {
			existing[i] = ex
			replaced = true
		}
	}
	if !replaced {
		existing = append(existing, ex)
	}
	raw, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(db.pathFor(operation), raw, 0o644)
}

// CollectFuzz runs randomized property-based generation for op: it first
// replays every example database entry for this operation (spec section
// 4.F point 3), then spends the remaining MaxExamples budget across the
// enabled Modes roughly equally, with a minimum of one Case per enabled
// mode.
func CollectFuzz(op *schema.APIOperation, opts FuzzOptions) []*model.Case {
	r := rand.New(rand.NewSource(opts.Seed))
	var cases []*model.Case

	for _, stored := range opts.DB.Load(op.Canonical) {
		if c := replayCase(op, stored); c != nil {
			cases = append(cases, c)
		}
	}

	var modes []string
	for _, m := range opts.Modes {
		if m == "all" {
			modes = append(modes, "positive", "negative")
		} else {
			modes = append(modes, m)
		}
	}
	if len(modes) == 0 {
		modes = []string{"positive", "negative"}
	}
	perMode := opts.MaxExamples / len(modes)
	if perMode < 1 {
		perMode = 1
	}

	for _, mode := range modes {
		genMode := genvalue.ModePositive
		if mode == "negative" {
			genMode = genvalue.ModeNegative
		}
		for i := 0; i < perMode; i++ {
			c := generateFuzzCase(op, genMode, r, opts)
			if c != nil {
				cases = append(cases, c)
			}
		}
	}

	return cases
}

func generateFuzzCase(op *schema.APIOperation, mode genvalue.Mode, r *rand.Rand, opts FuzzOptions) *model.Case {
	c := model.NewCase(op.Canonical)
	c.Meta = model.GenerationMeta{Phase: "Fuzzing", Mode: modeLabel(mode), Seed: r.Int63()}

	target := pickTargetParam(op, r)
	if target == nil && len(op.Bodies) == 0 {
		return nil
	}

	if target != nil {
		v, mut, err := genvalue.Generate(target.Schema, genvalue.Options{Mode: mode, Resolver: opts.Resolver, Rand: r, Location: string(target.Location), Name: target.Name})
		if err != nil {
			return nil
		}
		if !opts.NoShrink {
			v = shrinkValue(v)
		}
		applyParam(c, *target, v)
		c.Meta.Mutation = mut
	}

	if len(op.Bodies) > 0 {
		body := op.Bodies[0]
		v, mut, err := genvalue.Generate(body.Schema, genvalue.Options{Mode: mode, Resolver: opts.Resolver, Rand: r, Location: "body"})
		if err == nil {
			if !opts.NoShrink {
				v = shrinkValue(v)
			}
			c.Body = v
			c.HasBody = true
			c.MediaType = body.MediaType
			if c.Meta.Mutation == nil {
				c.Meta.Mutation = mut
			}
		}
	}
	return c
}

func modeLabel(m genvalue.Mode) string {
	if m == genvalue.ModeNegative {
		return "negative"
	}
	return "positive"
}

func pickTargetParam(op *schema.APIOperation, r *rand.Rand) *schema.Parameter {
	if len(op.Parameters) == 0 {
		return nil
	}
	idx := r.Intn(len(op.Parameters))
	return &op.Parameters[idx]
}

// shrinkValue performs a bounded hill-climbing shrink: it repeatedly tries
// strictly smaller candidates (shorter strings, smaller numbers, smaller
// arrays) that still satisfy the same mode against sch, keeping the
// smallest one found. This plays the same role the property-based testing
// engine's built-in shrinker plays for pgregory.net/rapid-driven tests
// (see fuzz_rapid_test.go), reimplemented here because rapid's shrinker is
// reachable only through its own *rapid.T-driven property loop and cannot
// be invoked standalone from application code outside a test.
func shrinkValue(v jsonvalue.Value) jsonvalue.Value {
	const maxSteps = 20
	current := v
	for step := 0; step < maxSteps; step++ {
		candidate, changed := shrinkOnce(current)
		if !changed {
			break
		}
		current = candidate
	}
	return current
}

func shrinkOnce(v jsonvalue.Value) (jsonvalue.Value, bool) {
	switch v.Kind() {
	case jsonvalue.KindString:
		s := v.AsString()
		if len(s) <= 1 {
			return v, false
		}
		return jsonvalue.String(s[:len(s)-1]), true
	case jsonvalue.KindNumber:
		n := v.AsNumber()
		if n == 0 {
			return v, false
		}
		shrunk := n / 2
		if n < 0 {
			shrunk = -((-n) / 2)
		}
		return jsonvalue.Number(shrunk), true
	case jsonvalue.KindArray:
		arr := v.AsArray()
		if len(arr) == 0 {
			return v, false
		}
		return jsonvalue.Array(arr[:len(arr)-1]...), true
	default:
		return v, false
	}
}

func replayCase(op *schema.APIOperation, stored StoredExample) *model.Case {
	var native any
	if err := json.Unmarshal(stored.Value, &native); err != nil {
		return nil
	}
	c := model.NewCase(op.Canonical)
	c.Meta = model.GenerationMeta{Phase: "Fuzzing", Description: "replayed from example database"}
	v := jsonvalue.FromNative(native)
	switch stored.Location {
	case "body":
		c.Body = v
		c.HasBody = true
		c.MediaType = stored.MediaType
	default:
		for _, p := range op.Parameters {
			if p.Name == stored.Name {
				applyParam(c, p, v)
				break
			}
		}
	}
	return c
}

// SortedStoredFingerprints is a small helper for deterministic test
// assertions over ExampleDB contents.
func SortedStoredFingerprints(examples []StoredExample) []string {
	out := make([]string, len(examples))
	for i, e := range examples {
		out[i] = e.Fingerprint
	}
	sort.Strings(out)
	return out
}
