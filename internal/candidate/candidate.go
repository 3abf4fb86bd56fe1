// Package candidate implements the Candidate Filter: differentially
// comparing two snapshots (or a candidate set against a fresh
// snapshot) and keeping addresses whose values satisfy a trend.
package candidate

import (
	"fmt"

	"github.com/vondutchi/vondutch-patcher/internal/codec"
	"github.com/vondutchi/vondutch-patcher/internal/snapshot"
)

// Pair is an (old, new) value observed at one address across two
// rounds.
type Pair struct {
	Old, New codec.Value
}

// Trend is the observer-supplied relation between two snapshots at
// one address.
type Trend string

const (
	Increased Trend = "increased"
	Decreased Trend = "decreased"
	Unchanged Trend = "unchanged"
)

// ErrUnknownTrend is returned when Filter is given a Trend it does not
// recognize. The controller never silently picks a relation.
type ErrUnknownTrend struct{ Trend Trend }

func (e ErrUnknownTrend) Error() string {
	return fmt.Sprintf("candidate: unknown trend %q", e.Trend)
}

// Compare produces (old, new) pairs for every address present in both
// prev and curr. It iterates whichever map is smaller to reduce cost.
func Compare(prev, curr snapshot.Snapshot) map[uint64]Pair {
	pairs := make(map[uint64]Pair)
	if len(prev.Values) <= len(curr.Values) {
		for addr, old := range prev.Values {
			if new, ok := curr.Values[addr]; ok {
				pairs[addr] = Pair{Old: old, New: new}
			}
		}
	} else {
		for addr, new := range curr.Values {
			if old, ok := prev.Values[addr]; ok {
				pairs[addr] = Pair{Old: old, New: new}
			}
		}
	}
	return pairs
}

// CompareCandidates produces (old, new) pairs for a previously-held
// candidate set against a fresh snapshot, keyed by the candidates'
// own addresses (spec.md §4.7 step d, "else" branch).
func CompareCandidates(candidates map[uint64]codec.Value, curr snapshot.Snapshot) map[uint64]Pair {
	pairs := make(map[uint64]Pair)
	for addr, old := range candidates {
		if new, ok := curr.Values[addr]; ok {
			pairs[addr] = Pair{Old: old, New: new}
		}
	}
	return pairs
}

// Filter keeps only the addresses in pairs whose (old, new) values
// satisfy relation.
func Filter(pairs map[uint64]Pair, relation Trend) (map[uint64]codec.Value, error) {
	out := make(map[uint64]codec.Value)
	for addr, p := range pairs {
		var keep bool
		switch relation {
		case Increased:
			keep = codec.Compare(p.Old, p.New) < 0
		case Decreased:
			keep = codec.Compare(p.Old, p.New) > 0
		case Unchanged:
			keep = codec.Equal(p.Old, p.New)
		default:
			return nil, ErrUnknownTrend{Trend: relation}
		}
		if keep {
			out[addr] = p.New
		}
	}
	return out, nil
}
