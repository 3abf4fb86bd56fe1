// Package search implements the Value Searcher: given a region list,
// a target value, and a value type, it finds every address whose
// bytes match the packed target.
package search

import (
	"bytes"
	"runtime"
	"sync"

	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/codec"
	"github.com/vondutchi/vondutch-patcher/internal/memlog"
)

// DefaultChunkSize is the default read chunk size for scanning, per
// spec.md §4.4.
const DefaultChunkSize = 16 * 1024

// Search scans regions for every occurrence of target (packed as t),
// streaming each region in DefaultChunkSize chunks with byte-level
// overlap allowed across chunk boundaries. Addresses are returned in
// ascending order within each region, and region order follows the
// input slice (spec.md §5 ordering guarantees). A chunk that fails to
// read is skipped, not fatal.
func Search(backend access.Backend, regions []access.Region, target float64, t codec.Type) ([]uint64, error) {
	pattern, err := codec.PackFloat(target, t)
	if err != nil {
		return nil, err
	}
	var found []uint64
	for _, r := range regions {
		found = append(found, scanRegion(backend, r, pattern)...)
	}
	return found, nil
}

// scanRegion streams one region in fixed-size logical windows, each
// read with an extra lookahead of len(pattern)-1 bytes so a pattern
// straddling a window boundary is still found. A hit is only reported
// if it starts inside the window's own logical span (not the
// lookahead), so no address is ever reported twice.
func scanRegion(backend access.Backend, r access.Region, pattern []byte) []uint64 {
	var found []uint64
	overlap := uint64(len(pattern) - 1)
	var offset uint64
	for offset < r.Size {
		window := uint64(DefaultChunkSize)
		if window > r.Size-offset {
			window = r.Size - offset
		}
		toRead := window + overlap
		if remaining := r.Size - offset; toRead > remaining {
			toRead = remaining
		}
		readStart := r.Base + offset
		data, err := backend.Read(readStart, int(toRead))
		if err != nil {
			memlog.L.ChunkSkipped("search", readStart, err)
			offset += window
			continue
		}
		for idx := bytes.Index(data, pattern); idx != -1 && uint64(idx) < window; {
			found = append(found, readStart+uint64(idx))
			next := bytes.Index(data[idx+1:], pattern)
			if next == -1 {
				break
			}
			idx = idx + 1 + next
		}
		offset += window
	}
	return found
}

// SearchParallel is the concurrent counterpart of Search, grounded on
// the worker-pool pattern for scanning regions across goroutines
// (bounded by runtime.NumCPU()). Unlike Search, it does not preserve
// ordering across regions — only within a single region's own result
// slice before the merge, and even that is not load-bearing since the
// combined result is explicitly unordered. Callers that need the
// ordering guarantee from spec.md §5 must use Search.
func SearchParallel(backend access.Backend, regions []access.Region, target float64, t codec.Type, maxdop int) ([]uint64, error) {
	if maxdop <= 1 {
		return Search(backend, regions, target, t)
	}
	if cpu := runtime.NumCPU(); maxdop > cpu {
		maxdop = cpu
	}
	pattern, err := codec.PackFloat(target, t)
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, maxdop)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var found []uint64

	for _, r := range regions {
		wg.Add(1)
		sem <- struct{}{}
		go func(region access.Region) {
			defer func() { <-sem; wg.Done() }()
			hits := scanRegion(backend, region, pattern)
			if len(hits) == 0 {
				return
			}
			mu.Lock()
			found = append(found, hits...)
			mu.Unlock()
		}(r)
	}
	wg.Wait()
	return found, nil
}
