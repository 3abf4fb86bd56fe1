// Package labeler maps an absolute address to a module+offset label,
// falling back to a bare hex address when no loaded module covers it.
package labeler

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/vondutchi/vondutch-patcher/internal/access"
)

// Labeler resolves addresses against a fixed, sorted module list.
// label(addr) is a pure function of that list — see spec.md §8
// "Labeler determinism".
type Labeler struct {
	modules []access.Module
}

// New sorts modules by base address and returns a Labeler over them.
func New(modules []access.Module) *Labeler {
	sorted := append([]access.Module(nil), modules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })
	return &Labeler{modules: sorted}
}

// Label returns "basename+0xOFFSET" if addr falls within a loaded
// module, or "0xHEX" otherwise.
func (l *Labeler) Label(addr uint64) string {
	// Binary search for the last module whose base is <= addr.
	i := sort.Search(len(l.modules), func(i int) bool {
		return l.modules[i].Base > addr
	})
	if i > 0 {
		m := l.modules[i-1]
		if addr >= m.Base && addr < m.Base+m.Size {
			return fmt.Sprintf("%s+0x%X", filepath.Base(m.Path), addr-m.Base)
		}
	}
	return fmt.Sprintf("0x%X", addr)
}

// LabelAll is a convenience for labeling a slice of addresses in order.
func (l *Labeler) LabelAll(addrs []uint64) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = l.Label(a)
	}
	return out
}
