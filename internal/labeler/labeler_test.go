package labeler

import (
	"testing"

	"github.com/vondutchi/vondutch-patcher/internal/access"
)

func TestLabelWithinModule(t *testing.T) {
	l := New([]access.Module{
		{Path: "/lib/libgame.so", Base: 0x10000000, Size: 0x2000},
		{Path: "/lib/libcore.so", Base: 0x20000000, Size: 0x1000},
	})
	if got := l.Label(0x10000400); got != "libgame.so+0x400" {
		t.Errorf("got %q", got)
	}
}

func TestLabelFallsBackToHex(t *testing.T) {
	l := New([]access.Module{{Path: "/lib/libgame.so", Base: 0x10000000, Size: 0x2000}})
	if got := l.Label(0x30000000); got != "0x30000000" {
		t.Errorf("got %q", got)
	}
}

func TestLabelDeterministic(t *testing.T) {
	modules := []access.Module{{Path: "/lib/libgame.so", Base: 0x10000000, Size: 0x2000}}
	l1 := New(modules)
	l2 := New(modules)
	if l1.Label(0x10000500) != l2.Label(0x10000500) {
		t.Errorf("expected deterministic labeling for the same module list")
	}
}
