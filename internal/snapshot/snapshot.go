// Package snapshot implements the Snapshot Engine: capturing an
// address->value map over a region set for a chosen numeric type.
package snapshot

import (
	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/codec"
	"github.com/vondutchi/vondutch-patcher/internal/memlog"
)

// Snapshot is an unordered address->value mapping for a single value
// type, captured at one instant. Every key is aligned to the value
// size within whichever region produced it (spec.md §8 "Alignment").
type Snapshot struct {
	Type   codec.Type
	Values map[uint64]codec.Value
}

// Take captures a Snapshot of regions for value type t, reading in
// chunkSize-byte chunks (lower-bounded by the value's own size and
// rounded down to a multiple of it). Each
// chunk is consumed in size-aligned groups starting from the chunk's
// own start, so alignment holds within a region but not necessarily
// across regions that don't share a common base. A chunk that fails
// to read is skipped, not fatal.
func Take(backend access.Backend, regions []access.Region, t codec.Type, chunkSize int) (Snapshot, error) {
	size, err := codec.Size(t)
	if err != nil {
		return Snapshot{}, err
	}
	if chunkSize < size {
		chunkSize = size
	}
	chunkSize -= chunkSize % size

	values := make(map[uint64]codec.Value)
	for _, r := range regions {
		var offset uint64
		for offset < r.Size {
			toRead := chunkSize
			if remaining := r.Size - offset; uint64(toRead) > remaining {
				toRead = int(remaining)
			}
			addr := r.Base + offset
			data, err := backend.Read(addr, toRead)
			if err != nil {
				memlog.L.ChunkSkipped("snapshot", addr, err)
				offset += uint64(chunkSize)
				continue
			}
			usable := len(data) - (len(data) % size)
			for i := 0; i < usable; i += size {
				v, err := codec.Unpack(data[i:i+size], t)
				if err != nil {
					continue
				}
				values[addr+uint64(i)] = v
			}
			offset += uint64(chunkSize)
		}
	}
	return Snapshot{Type: t, Values: values}, nil
}

// Restrict returns the subset of s whose addresses fall within one of
// windows (used when the dynamic controller narrows regions mid-run).
func (s Snapshot) Restrict(windows []access.Region) Snapshot {
	out := make(map[uint64]codec.Value, len(s.Values))
	for addr, v := range s.Values {
		for _, w := range windows {
			if w.Contains(addr) {
				out[addr] = v
				break
			}
		}
	}
	return Snapshot{Type: s.Type, Values: out}
}
