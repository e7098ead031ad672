// Package jsonvalue implements the JSON data model shared by the schema,
// generation, and transport layers: null, bool, number, string, array,
// object, or a raw binary blob for non-JSON media types.
package jsonvalue

import "fmt"

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the JSON data model plus a Binary variant
// for payloads (octet-stream bodies, multipart parts) that never round-trip
// through JSON encoding.
type Value struct {
	kind   Kind
	b      bool
	n      float64
	s      string
	arr    []Value
	obj    *OrderedObject
	binary []byte
}

func Null() Value               { return Value{kind: KindNull} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Number(n float64) Value    { return Value{kind: KindNumber, n: n} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func Array(vs ...Value) Value   { return Value{kind: KindArray, arr: vs} }
func Binary(b []byte) Value     { return Value{kind: KindBinary, binary: b} }
func Object(o *OrderedObject) Value {
	if o == nil {
		o = NewOrderedObject()
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) AsBool() bool    { return v.b }
func (v Value) AsNumber() float64 { return v.n }
func (v Value) AsString() string  { return v.s }
func (v Value) AsArray() []Value  { return v.arr }
func (v Value) AsBinary() []byte  { return v.binary }
func (v Value) AsObject() *OrderedObject {
	if v.obj == nil {
		return NewOrderedObject()
	}
	return v.obj
}

// OrderedObject preserves insertion order, matching the determinism
// requirement (Testable Property 1): two generator runs on the same
// seed must produce byte-identical serializations.
type OrderedObject struct {
	keys   []string
	values map[string]Value
}

func NewOrderedObject() *OrderedObject {
	return &OrderedObject{values: make(map[string]Value)}
}

func (o *OrderedObject) Set(key string, v Value) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *OrderedObject) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *OrderedObject) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

func (o *OrderedObject) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

func (o *OrderedObject) Len() int { return len(o.keys) }

// ToNative converts a Value into plain Go values (map[string]any,
// []any, string, float64, bool, nil) suitable for encoding/json,
// gopkg.in/yaml.v3, or xeipuuv/gojsonschema, all of which operate on
// that shape rather than on Value directly.
func ToNative(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindBinary:
		return v.binary
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = ToNative(e)
		}
		return out
	case KindObject:
		out := make(map[string]any, v.obj.Len())
		for _, k := range v.obj.Keys() {
			val, _ := v.obj.Get(k)
			out[k] = ToNative(val)
		}
		return out
	default:
		return nil
	}
}

// FromNative converts decoded JSON/YAML (map[string]any, []any, ...)
// into a Value tree. Map key order is not preserved since Go's decoders
// don't preserve it either; callers that need ordering (schema
// properties iteration) should walk the raw map directly instead.
func FromNative(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case string:
		return String(t)
	case []any:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = FromNative(e)
		}
		return Array(vs...)
	case map[string]any:
		o := NewOrderedObject()
		for k, val := range t {
			o.Set(k, FromNative(val))
		}
		return Object(o)
	default:
		panic(fmt.Sprintf("jsonvalue: unsupported native type %T", v))
	}
}
