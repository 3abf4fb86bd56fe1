// Package tracer implements the Reference Tracer: a breadth-first
// search for pointer-sized little-endian words that encode one of a
// set of seed addresses, building chains back from a seed through
// however many levels of indirection are found.
package tracer

import (
	"encoding/binary"

	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/memlog"
)

// MaxChains bounds the total number of chains this implementation will
// collect, to keep cyclic pointer graphs from growing without bound
// (spec.md §9 design note permits an implementation-chosen cap).
const MaxChains = 8192

// Chain is one discovered reference path, ordered from the outermost
// reference down to the seed address it ultimately points to:
// chain[0] is a region offset holding a pointer to chain[1], and so
// on, with chain[len-1] always a seed.
type Chain []uint64

// Trace performs the breadth-first reference search described in
// spec.md §4.8, to at most maxDepth levels of indirection.
func Trace(backend access.Backend, regions []access.Region, seeds []uint64, maxDepth int) []Chain {
	var chains []Chain
	capped := false

	frontier := make(map[uint64][]Chain, len(seeds))
	for _, s := range seeds {
		frontier[s] = []Chain{{s}}
	}

	pointerSize := backend.PointerSize()

	for depth := 0; depth < maxDepth && len(frontier) > 0 && !capped; depth++ {
		nextFrontier := make(map[uint64][]Chain)

		for target, paths := range frontier {
			refs := findReferences(backend, regions, target, pointerSize)
			for _, ref := range refs {
				for _, p := range paths {
					if len(chains) >= MaxChains {
						capped = true
						break
					}
					extended := make(Chain, 0, len(p)+1)
					extended = append(extended, ref)
					extended = append(extended, p...)
					chains = append(chains, extended)
					nextFrontier[ref] = append(nextFrontier[ref], extended)
				}
				if capped {
					break
				}
			}
			if capped {
				break
			}
		}

		frontier = nextFrontier
	}

	if capped {
		memlog.L.Info("reference chain cap reached", memlog.Count("cap", MaxChains))
	}

	return chains
}

// findReferences scans regions in pointer-size-aligned strides for
// little-endian words equal to target.
func findReferences(backend access.Backend, regions []access.Region, target uint64, pointerSize int) []uint64 {
	var refs []uint64
	for _, r := range regions {
		var offset uint64
		for offset+uint64(pointerSize) <= r.Size {
			addr := r.Base + offset
			data, err := backend.Read(addr, pointerSize)
			if err != nil {
				memlog.L.ChunkSkipped("tracer", addr, err)
				offset += uint64(pointerSize)
				continue
			}
			var v uint64
			switch pointerSize {
			case 4:
				v = uint64(binary.LittleEndian.Uint32(data))
			default:
				v = binary.LittleEndian.Uint64(data)
			}
			if v == target {
				refs = append(refs, addr)
			}
			offset += uint64(pointerSize)
		}
	}
	return refs
}
