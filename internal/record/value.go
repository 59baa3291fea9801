package record

import "github.com/cockroachdb/apd/v3"

// Value is the decoded, in-memory representation of one record field.
// It is intentionally a closed set of Go-native types plus *apd.Decimal for
// the extension type, mirroring the wire format's closed type tag set.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f64  float64
	f32  float32
	str  string
	bin  []byte
	arr  []Value
	mp   *MapValue
	dec  *apd.Decimal

	// raw is the exact wire-format span Decode read this value from, set
	// only by Decode/decodeArray/decodeMap (never by the constructors
	// below). Sizeof/Encode use it as a fast path: a value nobody
	// reconstructed can be re-emitted by copying its original bytes
	// instead of walking its decoded fields.
	raw []byte
}

// Kind enumerates the decoded value categories.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindUint
	KindInt
	KindFloat32
	KindFloat64
	KindString
	KindBinary
	KindArray
	KindMap
	KindDecimal
)

// MapValue preserves key insertion order, matching the "unchanged base map"
// semantics the update engine's MAP node relies on: the original order of
// untouched keys must survive re-serialization.
type MapValue struct {
	Keys   []string
	Values []Value
}

func (m *MapValue) Get(key string) (Value, bool) {
	for i, k := range m.Keys {
		if k == key {
			return m.Values[i], true
		}
	}
	return Value{}, false
}

func (m *MapValue) Index(key string) int {
	for i, k := range m.Keys {
		if k == key {
			return i
		}
	}
	return -1
}

func Nil() Value                  { return Value{kind: KindNil} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Uint(u uint64) Value         { return Value{kind: KindUint, u: u} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float32(f float32) Value     { return Value{kind: KindFloat32, f32: f} }
func Float64(f float64) Value     { return Value{kind: KindFloat64, f64: f} }
func String(s string) Value       { return Value{kind: KindString, str: s} }
func Binary(b []byte) Value       { return Value{kind: KindBinary, bin: b} }
func Array(vs []Value) Value      { return Value{kind: KindArray, arr: vs} }
func Map(m *MapValue) Value       { return Value{kind: KindMap, mp: m} }
func Decimal(d *apd.Decimal) Value { return Value{kind: KindDecimal, dec: d} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() bool {
	return v.b
}

func (v Value) Uint() uint64 {
	if v.kind == KindInt {
		return uint64(v.i)
	}
	return v.u
}

func (v Value) Int() int64 {
	if v.kind == KindUint {
		return int64(v.u)
	}
	return v.i
}

func (v Value) Float64() float64 {
	switch v.kind {
	case KindFloat32:
		return float64(v.f32)
	default:
		return v.f64
	}
}

func (v Value) Float32() float32 { return v.f32 }
func (v Value) Str() string      { return v.str }
func (v Value) Bin() []byte      { return v.bin }
func (v Value) Arr() []Value     { return v.arr }
func (v Value) MapVal() *MapValue { return v.mp }
func (v Value) Dec() *apd.Decimal { return v.dec }

// IsNumeric reports whether the value is one of the numeric kinds the
// arithmetic and bitwise update operators accept as a source.
func (v Value) IsNumeric() bool {
	switch v.kind {
	case KindUint, KindInt, KindFloat32, KindFloat64, KindDecimal:
		return true
	default:
		return false
	}
}
