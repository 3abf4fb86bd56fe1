package tracer

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/vondutchi/vondutch-patcher/internal/access"
)

func TestTracePointerChain(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{
		{Base: 0x10000000, Size: 0x2000, Description: "region1"},
		{Base: 0x20000000, Size: 0x2000, Description: "region2"},
	}, nil)

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x10000400)
	if err := mock.Write(0x20000100, buf); err != nil {
		t.Fatalf("seed write: %v", err)
	}
	binary.LittleEndian.PutUint64(buf, 0x20000100)
	if err := mock.Write(0x20000108, buf); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	regions, _ := mock.EnumerateRegions()
	chains := Trace(mock, regions, []uint64{0x10000400}, 2)

	want1 := Chain{0x20000100, 0x10000400}
	want2 := Chain{0x20000108, 0x20000100, 0x10000400}

	var found1, found2 bool
	for _, c := range chains {
		if reflect.DeepEqual(c, want1) {
			found1 = true
		}
		if reflect.DeepEqual(c, want2) {
			found2 = true
		}
	}
	if !found1 {
		t.Errorf("expected chain %v among %v", want1, chains)
	}
	if !found2 {
		t.Errorf("expected chain %v among %v", want2, chains)
	}
}

func TestTraceDepthZeroEmitsNothing(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x100}}, nil)
	regions, _ := mock.EnumerateRegions()
	chains := Trace(mock, regions, []uint64{0x10000000}, 0)
	if len(chains) != 0 {
		t.Errorf("expected no chains at depth 0, got %v", chains)
	}
}

func TestTraceCycleTerminatesAtDepth(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x100}}, nil)
	buf := make([]byte, 8)
	// 0x10000000 holds a pointer to 0x10000008, which holds a pointer
	// back to 0x10000000 - a two-node cycle.
	binary.LittleEndian.PutUint64(buf, 0x10000008)
	_ = mock.Write(0x10000000, buf)
	binary.LittleEndian.PutUint64(buf, 0x10000000)
	_ = mock.Write(0x10000008, buf)

	regions, _ := mock.EnumerateRegions()
	chains := Trace(mock, regions, []uint64{0x10000000}, 4)
	if len(chains) == 0 {
		t.Fatalf("expected cyclic chains to be produced")
	}
	for _, c := range chains {
		if len(c) > 5 {
			t.Errorf("chain longer than depth bound allows: %v", c)
		}
	}
}
