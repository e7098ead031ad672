package genvalue

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/blackcoderx/conform/pkg/jsonvalue"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// Mode selects positive (constraint-satisfying) or negative
// (single-keyword-violating) generation, per spec section 4.C.
type Mode int

const (
	ModePositive Mode = iota
	ModeNegative
)

// ErrUnsatisfiableNegative is returned when a schema carries no keyword
// that can be meaningfully negated (spec section 4.C, "unsatisfiable
// negative" skip reason).
var ErrUnsatisfiableNegative = fmt.Errorf("genvalue: unsatisfiable negative")

// Options configures one call to Generate.
type Options struct {
	Mode     Mode
	Resolver *schema.Resolver
	Rand     *rand.Rand

	// Location/Name identify the parameter or body this schema belongs to,
	// copied onto the resulting Mutation for negative-mode Cases.
	Location string
	Name     string
}

// Generate produces one value from a JSON Schema fragment, walking
// allOf/anyOf/oneOf and every constraint keyword named in spec section
// 4.C's positive-mode table; a "not" subschema is ignored. In negative
// mode it additionally selects one
// present, negatable keyword, violates it, and returns the Mutation
// recording which keyword was negated.
//
// Grounded on shared/report_validator.go's keyword-by-keyword walk over a
// JSON-Schema-shaped struct (there, to report violations; here, inverted to
// either satisfy or deliberately violate each keyword).
func Generate(rawSchema map[string]any, opts Options) (jsonvalue.Value, *model.Mutation, error) {
	sch, err := deref(rawSchema, opts.Resolver)
	if err != nil {
		return jsonvalue.Null(), nil, err
	}

	if opts.Mode == ModeNegative {
		keyword, ok := pickNegatableKeyword(sch)
		if !ok {
			return jsonvalue.Null(), nil, ErrUnsatisfiableNegative
		}
		v, err := generateViolating(sch, keyword, opts)
		if err != nil {
			return jsonvalue.Null(), nil, err
		}
		return v, &model.Mutation{Location: opts.Location, Name: opts.Name, Keyword: keyword}, nil
	}

	v, err := generateSatisfying(sch, opts)
	return v, nil, err
}

func deref(node map[string]any, resolver *schema.Resolver) (map[string]any, error) {
	if resolver == nil {
		return node, nil
	}
	if _, ok := schema.IsRef(node); !ok {
		return node, nil
	}
	return resolver.Deref(node, nil)
}

// --- positive generation ---------------------------------------------

func generateSatisfying(sch map[string]any, opts Options) (jsonvalue.Value, error) {
	sch, err := deref(sch, opts.Resolver)
	if err != nil {
		return jsonvalue.Null(), err
	}
	if len(sch) == 0 {
		return genAny(opts.Rand), nil
	}

	if allOf, ok := sch["allOf"].([]any); ok && len(allOf) > 0 {
		return generateAllOf(allOf, opts)
	}
	if anyOf, ok := sch["anyOf"].([]any); ok && len(anyOf) > 0 {
		branch := pickBranch(anyOf, opts.Rand)
		return generateSatisfying(toSchemaMap(branch), opts)
	}
	if oneOf, ok := sch["oneOf"].([]any); ok && len(oneOf) > 0 {
		branch := pickBranch(oneOf, opts.Rand)
		return generateSatisfying(toSchemaMap(branch), opts)
	}

	if enum, ok := sch["enum"].([]any); ok && len(enum) > 0 {
		return jsonvalue.FromNative(enum[opts.Rand.Intn(len(enum))]), nil
	}
	if c, ok := sch["const"]; ok {
		return jsonvalue.FromNative(c), nil
	}

	if nullable, _ := sch["nullable"].(bool); nullable && opts.Rand.Intn(4) == 0 {
		return jsonvalue.Null(), nil
	}

	typeName := schemaType(sch)
	switch typeName {
	case "string":
		return genString(sch, opts), nil
	case "number", "integer":
		return genNumber(sch, opts, typeName == "integer"), nil
	case "boolean":
		return jsonvalue.Bool(opts.Rand.Intn(2) == 0), nil
	case "array":
		return genArray(sch, opts)
	case "object":
		return genObject(sch, opts)
	case "null":
		return jsonvalue.Null(), nil
	default:
		return genAny(opts.Rand), nil
	}
}

func generateAllOf(branches []any, opts Options) (jsonvalue.Value, error) {
	merged := map[string]any{}
	for _, b := range branches {
		for k, v := range toSchemaMap(b) {
			merged[k] = v
		}
	}
	return generateSatisfying(merged, opts)
}

func pickBranch(branches []any, r *rand.Rand) any {
	return branches[r.Intn(len(branches))]
}

func toSchemaMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func schemaType(sch map[string]any) string {
	switch t := sch["type"].(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	if _, ok := sch["properties"]; ok {
		return "object"
	}
	if _, ok := sch["items"]; ok {
		return "array"
	}
	return ""
}

func genAny(r *rand.Rand) jsonvalue.Value {
	switch r.Intn(4) {
	case 0:
		return jsonvalue.String(randomString(r, 8))
	case 1:
		return jsonvalue.Number(r.Float64() * 100)
	case 2:
		return jsonvalue.Bool(r.Intn(2) == 0)
	default:
		return jsonvalue.Null()
	}
}

func genString(sch map[string]any, opts Options) jsonvalue.Value {
	if format, ok := sch["format"].(string); ok {
		if strat, ok := FormatStrategy(format); ok {
			return strat.Generate(opts.Rand)
		}
	}
	minLen, maxLen := boundsInt(sch, "minLength", "maxLength", 0, 20)
	if pattern, ok := sch["pattern"].(string); ok {
		if s, err := GenerateMatchingWithLengthHint(pattern, minLen, maxLen, opts.Rand); err == nil {
			return jsonvalue.String(s)
		}
	}
	return jsonvalue.String(randomString(opts.Rand, randIntBetween(opts.Rand, minLen, maxLen)))
}

func genNumber(sch map[string]any, opts Options, integer bool) jsonvalue.Value {
	min, max := numberBounds(sch)
	n := min + opts.Rand.Float64()*(max-min)
	if integer {
		n = math.Round(n)
	}
	if mult, ok := numericField(sch, "multipleOf"); ok && mult != 0 {
		n = math.Round(n/mult) * mult
	}
	return jsonvalue.Number(n)
}

func genArray(sch map[string]any, opts Options) (jsonvalue.Value, error) {
	minItems, maxItems := boundsInt(sch, "minItems", "maxItems", 0, 5)
	n := randIntBetween(opts.Rand, minItems, maxItems)
	itemSchema := map[string]any{}
	if raw, ok := sch["items"].(map[string]any); ok {
		itemSchema = raw
	}
	seen := map[string]bool{}
	unique, _ := sch["uniqueItems"].(bool)
	items := make([]jsonvalue.Value, 0, n)
	for len(items) < n {
		v, err := generateSatisfying(itemSchema, opts)
		if err != nil {
			return jsonvalue.Null(), err
		}
		if unique {
			key := fmt.Sprintf("%v", jsonvalue.ToNative(v))
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		items = append(items, v)
	}
	return jsonvalue.Array(items...), nil
}

func genObject(sch map[string]any, opts Options) (jsonvalue.Value, error) {
	obj := jsonvalue.NewOrderedObject()
	props, _ := sch["properties"].(map[string]any)
	required := stringSlice(sch["required"])
	requiredSet := map[string]bool{}
	for _, r := range required {
		requiredSet[r] = true
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		if !requiredSet[name] && opts.Rand.Intn(5) == 0 {
			continue // optional properties are sometimes omitted
		}
		v, err := generateSatisfying(toSchemaMap(props[name]), opts)
		if err != nil {
			return jsonvalue.Null(), err
		}
		obj.Set(name, v)
	}
	for _, name := range required {
		if _, ok := obj.Get(name); !ok {
			v, err := generateSatisfying(toSchemaMap(props[name]), opts)
			if err != nil {
				return jsonvalue.Null(), err
			}
			obj.Set(name, v)
		}
	}
	return jsonvalue.Object(obj), nil
}

// --- negative generation -----------------------------------------------

// negatableOrder fixes a deterministic priority among present keywords so
// repeated calls with the same schema and RNG seed pick the same keyword.
// "type" comes last, so a typed schema with other constraints has one of
// those negated rather than its type.
var negatableOrder = []string{
	"enum", "required", "minLength", "maxLength", "pattern",
	"minimum", "maximum", "minItems", "maxItems", "const", "type",
}

func pickNegatableKeyword(sch map[string]any) (string, bool) {
	for _, k := range negatableOrder {
		if _, ok := sch[k]; ok {
			return k, true
		}
	}
	return "", false
}

func generateViolating(sch map[string]any, keyword string, opts Options) (jsonvalue.Value, error) {
	switch keyword {
	case "type":
		return genWrongType(sch, opts), nil
	case "enum":
		enum, _ := sch["enum"].([]any)
		for {
			v := genAny(opts.Rand)
			native := jsonvalue.ToNative(v)
			if !containsNative(enum, native) {
				return v, nil
			}
		}
	case "const":
		for {
			v := genAny(opts.Rand)
			if fmt.Sprintf("%v", jsonvalue.ToNative(v)) != fmt.Sprintf("%v", sch["const"]) {
				return v, nil
			}
		}
	case "required":
		without := map[string]any{}
		for k, v := range sch {
			without[k] = v
		}
		props, _ := sch["properties"].(map[string]any)
		required := stringSlice(sch["required"])
		if len(required) == 0 {
			break
		}
		drop := required[opts.Rand.Intn(len(required))]
		remaining := map[string]any{}
		for k, v := range props {
			if k != drop {
				remaining[k] = v
			}
		}
		without["properties"] = remaining
		without["required"] = removeString(required, drop)
		return generateSatisfying(without, opts)
	case "minLength":
		minLen, _ := intField(sch, "minLength")
		if minLen <= 0 {
			break
		}
		return jsonvalue.String(randomString(opts.Rand, minLen-1)), nil
	case "maxLength":
		maxLen, _ := intField(sch, "maxLength")
		return jsonvalue.String(randomString(opts.Rand, maxLen+1)), nil
	case "pattern":
		return jsonvalue.String("\x00non-matching\x00"), nil
	case "minimum":
		min, _ := numericField(sch, "minimum")
		return jsonvalue.Number(min - 1), nil
	case "maximum":
		max, _ := numericField(sch, "maximum")
		return jsonvalue.Number(max + 1), nil
	case "minItems":
		minItems, _ := intField(sch, "minItems")
		items := make([]jsonvalue.Value, 0, maxInt(minItems-1, 0))
		for i := 0; i < minItems-1; i++ {
			items = append(items, genAny(opts.Rand))
		}
		return jsonvalue.Array(items...), nil
	case "maxItems":
		maxItems, _ := intField(sch, "maxItems")
		items := make([]jsonvalue.Value, 0, maxItems+1)
		for i := 0; i < maxItems+1; i++ {
			items = append(items, genAny(opts.Rand))
		}
		return jsonvalue.Array(items...), nil
	}
	return generateSatisfying(sch, opts)
}

func genWrongType(sch map[string]any, opts Options) jsonvalue.Value {
	want := schemaType(sch)
	choices := []string{"string", "number", "boolean", "array", "object", "null"}
	for {
		pick := choices[opts.Rand.Intn(len(choices))]
		if pick == want {
			continue
		}
		switch pick {
		case "string":
			return jsonvalue.String(randomString(opts.Rand, 5))
		case "number":
			return jsonvalue.Number(opts.Rand.Float64() * 1000)
		case "boolean":
			return jsonvalue.Bool(true)
		case "array":
			return jsonvalue.Array()
		case "object":
			return jsonvalue.Object(jsonvalue.NewOrderedObject())
		case "null":
			return jsonvalue.Null()
		}
	}
}

// --- shared helpers ------------------------------------------------------

func boundsInt(sch map[string]any, minKey, maxKey string, defaultMin, defaultMax int) (int, int) {
	min := defaultMin
	max := defaultMax
	if v, ok := intField(sch, minKey); ok {
		min = v
	}
	if v, ok := intField(sch, maxKey); ok {
		max = v
	}
	if max < min {
		max = min
	}
	return min, max
}

func numberBounds(sch map[string]any) (float64, float64) {
	min, max := -1000.0, 1000.0
	if v, ok := numericField(sch, "minimum"); ok {
		min = v
	}
	if v, ok := numericField(sch, "exclusiveMinimum"); ok {
		min = v + 1
	}
	if v, ok := numericField(sch, "maximum"); ok {
		max = v
	}
	if v, ok := numericField(sch, "exclusiveMaximum"); ok {
		max = v - 1
	}
	if max < min {
		max = min
	}
	return min, max
}

func intField(sch map[string]any, key string) (int, bool) {
	v, ok := numericField(sch, key)
	if !ok {
		return 0, false
	}
	return int(v), true
}

func numericField(sch map[string]any, key string) (float64, bool) {
	switch v := sch[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		if s, ok := v.([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func removeString(ss []string, target string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

func containsNative(enum []any, native any) bool {
	for _, e := range enum {
		if fmt.Sprintf("%v", e) == fmt.Sprintf("%v", native) {
			return true
		}
	}
	return false
}

func randIntBetween(r *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + r.Intn(max-min+1)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(r *rand.Rand, n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(buf)
}
