// Package codec packs and unpacks the numeric value types the engine
// understands to and from little-endian bytes, and defines the
// per-type equality and ordering semantics used by the candidate
// filter and by write verification.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type is a tag for one of the six supported numeric value types.
type Type string

const (
	Int32   Type = "int32"
	Uint32  Type = "uint32"
	Int64   Type = "int64"
	Uint64  Type = "uint64"
	Float32 Type = "float32"
	Float64 Type = "float64"
)

// Tolerances for float equality, per spec.
const (
	tolerance32 = 1e-5
	tolerance64 = 1e-9
)

// ErrUnsupportedType is returned when a Type token is not recognized.
type ErrUnsupportedType struct {
	Type Type
}

func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("codec: unsupported value type %q", e.Type)
}

// Size returns the byte width of t, or an error if t is not recognized.
func Size(t Type) (int, error) {
	switch t {
	case Int32, Uint32, Float32:
		return 4, nil
	case Int64, Uint64, Float64:
		return 8, nil
	default:
		return 0, ErrUnsupportedType{Type: t}
	}
}

// MustSize is Size, panicking on an unsupported type. Only safe to call
// with a Type that has already been validated.
func MustSize(t Type) int {
	n, err := Size(t)
	if err != nil {
		panic(err)
	}
	return n
}

// Value is a decoded numeric value, keeping its exact bit pattern so
// that int64/uint64 comparisons never lose precision by round-tripping
// through float64.
type Value struct {
	Type Type
	bits uint64
}

// FromInt32 wraps an int32 as a Value.
func FromInt32(v int32) Value { return Value{Type: Int32, bits: uint64(uint32(v))} }

// FromUint32 wraps a uint32 as a Value.
func FromUint32(v uint32) Value { return Value{Type: Uint32, bits: uint64(v)} }

// FromInt64 wraps an int64 as a Value.
func FromInt64(v int64) Value { return Value{Type: Int64, bits: uint64(v)} }

// FromUint64 wraps a uint64 as a Value.
func FromUint64(v uint64) Value { return Value{Type: Uint64, bits: v} }

// FromFloat32 wraps a float32 as a Value.
func FromFloat32(v float32) Value { return Value{Type: Float32, bits: uint64(math.Float32bits(v))} }

// FromFloat64 wraps a float64 as a Value.
func FromFloat64(v float64) Value { return Value{Type: Float64, bits: math.Float64bits(v)} }

// Int32 returns v's payload as an int32. Only meaningful if v.Type == Int32.
func (v Value) Int32() int32 { return int32(uint32(v.bits)) }

// Uint32 returns v's payload as a uint32. Only meaningful if v.Type == Uint32.
func (v Value) Uint32() uint32 { return uint32(v.bits) }

// Int64 returns v's payload as an int64. Only meaningful if v.Type == Int64.
func (v Value) Int64() int64 { return int64(v.bits) }

// Uint64 returns v's payload as a uint64. Only meaningful if v.Type == Uint64.
func (v Value) Uint64() uint64 { return v.bits }

// Float32 returns v's payload as a float32. Only meaningful if v.Type == Float32.
func (v Value) Float32() float32 { return math.Float32frombits(uint32(v.bits)) }

// Float64 returns v's payload as a float64. Only meaningful if v.Type == Float64.
func (v Value) Float64() float64 { return math.Float64frombits(v.bits) }

// AsFloat64 returns a display/JSON-friendly float64 for v regardless of
// its underlying type. This is lossy for int64/uint64 magnitudes beyond
// 2^53 and must never be used for comparisons; it serves the
// "current_value" field of a Scan Result, Patch Log lines, and other
// places that carry a number as float64.
func (v Value) AsFloat64() float64 {
	switch v.Type {
	case Int32:
		return float64(v.Int32())
	case Uint32:
		return float64(v.Uint32())
	case Int64:
		return float64(v.Int64())
	case Uint64:
		return float64(v.Uint64())
	case Float32:
		return float64(v.Float32())
	case Float64:
		return v.Float64()
	default:
		return 0
	}
}

// New builds a Value of type t from a float64 carrier, rounding
// half-away-from-zero when t is an integer type. Used when the
// caller-supplied number comes from the CLI, a config file, or JSON,
// all of which only carry float64/number.
func New(f float64, t Type) (Value, error) {
	switch t {
	case Int32:
		return FromInt32(int32(roundToInt(f))), nil
	case Uint32:
		return FromUint32(uint32(roundToInt(f))), nil
	case Int64:
		return FromInt64(roundToInt(f)), nil
	case Uint64:
		if f >= 0 {
			return FromUint64(uint64(math.Floor(f + 0.5))), nil
		}
		return FromUint64(uint64(roundToInt(f))), nil
	case Float32:
		return FromFloat32(float32(f)), nil
	case Float64:
		return FromFloat64(f), nil
	default:
		return Value{}, ErrUnsupportedType{Type: t}
	}
}

// roundToInt implements round-half-away-from-zero. The spec leaves the
// exact tie-breaking rule open ("round-half-away-from-zero is
// acceptable; consistency is what matters") — see DESIGN.md.
func roundToInt(v float64) int64 {
	if v >= 0 {
		return int64(math.Floor(v + 0.5))
	}
	return int64(math.Ceil(v - 0.5))
}

// Pack encodes v into little-endian bytes sized for v.Type.
func Pack(v Value) ([]byte, error) {
	size, err := Size(v.Type)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	switch size {
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v.bits))
	case 8:
		binary.LittleEndian.PutUint64(buf, v.bits)
	}
	return buf, nil
}

// PackFloat is a convenience that combines New and Pack for the common
// case of packing a caller-supplied number for a search or write.
func PackFloat(f float64, t Type) ([]byte, error) {
	v, err := New(f, t)
	if err != nil {
		return nil, err
	}
	return Pack(v)
}

// Unpack decodes little-endian bytes of type t. raw must be at least
// Size(t) bytes; extra trailing bytes are ignored.
func Unpack(raw []byte, t Type) (Value, error) {
	size, err := Size(t)
	if err != nil {
		return Value{}, err
	}
	if len(raw) < size {
		return Value{}, fmt.Errorf("codec: need %d bytes for %s, got %d", size, t, len(raw))
	}
	switch size {
	case 4:
		return Value{Type: t, bits: uint64(binary.LittleEndian.Uint32(raw))}, nil
	default:
		return Value{Type: t, bits: binary.LittleEndian.Uint64(raw)}, nil
	}
}

// Equal reports whether old and new represent the same value: exact
// equality for integer types, tolerance-bounded for floats. old and new
// must share a Type.
func Equal(old, new Value) bool {
	switch old.Type {
	case Float32:
		return math.Abs(float64(old.Float32())-float64(new.Float32())) <= tolerance32
	case Float64:
		return math.Abs(old.Float64()-new.Float64()) <= tolerance64
	default:
		return old.bits == new.bits
	}
}

// Compare returns -1, 0, or 1 as old is less than, equal to, or greater
// than new, using each type's natural ordering (signed for signed
// integer types, unsigned for unsigned, IEEE-754 for floats). old and
// new must share a Type.
func Compare(old, new Value) int {
	switch old.Type {
	case Int32:
		a, b := old.Int32(), new.Int32()
		return cmpOrdered(a, b)
	case Uint32:
		a, b := old.Uint32(), new.Uint32()
		return cmpOrdered(a, b)
	case Int64:
		a, b := old.Int64(), new.Int64()
		return cmpOrdered(a, b)
	case Uint64:
		a, b := old.Uint64(), new.Uint64()
		return cmpOrdered(a, b)
	case Float32:
		a, b := old.Float32(), new.Float32()
		return cmpOrdered(a, b)
	case Float64:
		a, b := old.Float64(), new.Float64()
		return cmpOrdered(a, b)
	default:
		return 0
	}
}

func cmpOrdered[T int32 | uint32 | int64 | uint64 | float32 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
