package codec

import "testing"

func TestRoundTripIntegers(t *testing.T) {
	cases := []struct {
		t Type
		f float64
	}{
		{Int32, -12345},
		{Uint32, 4000000000},
		{Int64, -9000000000000000000},
		{Uint64, 18000000000000000000},
	}
	for _, c := range cases {
		v, err := New(c.f, c.t)
		if err != nil {
			t.Fatalf("New(%v, %s): %v", c.f, c.t, err)
		}
		raw, err := Pack(v)
		if err != nil {
			t.Fatalf("Pack: %v", err)
		}
		got, err := Unpack(raw, c.t)
		if err != nil {
			t.Fatalf("Unpack: %v", err)
		}
		if !Equal(v, got) {
			t.Errorf("%s: round trip mismatch: %v != %v", c.t, v, got)
		}
	}
}

func TestRoundTripFloats(t *testing.T) {
	v32, _ := New(3.14159, Float32)
	raw, _ := Pack(v32)
	got, _ := Unpack(raw, Float32)
	if !Equal(v32, got) {
		t.Errorf("float32 round trip mismatch: %v != %v", v32, got)
	}

	v64, _ := New(2.718281828459045, Float64)
	raw64, _ := Pack(v64)
	got64, _ := Unpack(raw64, Float64)
	if !Equal(v64, got64) {
		t.Errorf("float64 round trip mismatch: %v != %v", v64, got64)
	}
}

func TestFloatTolerance(t *testing.T) {
	a := FromFloat32(1.0)
	b := FromFloat32(1.0 + 5e-6)
	if !Equal(a, b) {
		t.Errorf("expected values within float32 tolerance to be equal")
	}
	c := FromFloat32(1.0 + 5e-4)
	if Equal(a, c) {
		t.Errorf("expected values outside float32 tolerance to differ")
	}
}

func TestCompareUnsignedVsSigned(t *testing.T) {
	// 0xFFFFFFFF as uint32 is large-positive; as int32 it's -1.
	u := FromUint32(0xFFFFFFFF)
	zero := FromUint32(0)
	if Compare(u, zero) <= 0 {
		t.Errorf("expected uint32 max > 0")
	}

	i := FromInt32(-1)
	izero := FromInt32(0)
	if Compare(i, izero) >= 0 {
		t.Errorf("expected int32(-1) < 0")
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	v, _ := New(3.7, Int32)
	if v.Int32() != 4 {
		t.Errorf("expected 3.7 to round to 4, got %d", v.Int32())
	}
	v2, _ := New(-3.7, Int32)
	if v2.Int32() != -4 {
		t.Errorf("expected -3.7 to round to -4, got %d", v2.Int32())
	}
}

func TestUnsupportedType(t *testing.T) {
	if _, err := Size(Type("bogus")); err == nil {
		t.Errorf("expected error for unsupported type")
	}
}
