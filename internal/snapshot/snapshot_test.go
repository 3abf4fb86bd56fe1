package snapshot

import (
	"testing"

	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/codec"
)

func TestTakeAlignment(t *testing.T) {
	m := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x100}}, nil)
	regions, _ := m.EnumerateRegions()
	snap, err := Take(m, regions, codec.Int32, 64)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	for addr := range snap.Values {
		if (addr-0x10000000)%4 != 0 {
			t.Errorf("address 0x%X not 4-byte aligned to region base", addr)
		}
	}
	// 0x100 bytes / 4-byte stride = 64 entries.
	if len(snap.Values) != 64 {
		t.Errorf("expected 64 snapshot entries, got %d", len(snap.Values))
	}
}

func TestTakeChunkSizeLowerBound(t *testing.T) {
	m := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x20}}, nil)
	regions, _ := m.EnumerateRegions()
	// Request a chunk size smaller than the value size; it must be
	// raised to at least the value's own size.
	snap, err := Take(m, regions, codec.Int64, 2)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if len(snap.Values) != 4 {
		t.Errorf("expected 4 int64 entries in 0x20 bytes, got %d", len(snap.Values))
	}
}

func TestRestrictToWindow(t *testing.T) {
	s := Snapshot{Type: codec.Int32, Values: map[uint64]codec.Value{
		0x1000: codec.FromInt32(1),
		0x2000: codec.FromInt32(2),
		0x3000: codec.FromInt32(3),
	}}
	restricted := s.Restrict([]access.Region{{Base: 0x1800, Size: 0x1000}})
	if len(restricted.Values) != 1 {
		t.Fatalf("expected 1 value in window, got %d", len(restricted.Values))
	}
	if _, ok := restricted.Values[0x2000]; !ok {
		t.Errorf("expected 0x2000 to survive restriction")
	}
}
