// Package dynamic implements the Dynamic Scan Controller: the
// snapshot/trend/filter loop that narrows a candidate set over
// successive steps until it collapses to a small set or the step
// budget runs out.
package dynamic

import (
	"time"

	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/candidate"
	"github.com/vondutchi/vondutch-patcher/internal/codec"
	"github.com/vondutchi/vondutch-patcher/internal/memlog"
	"github.com/vondutchi/vondutch-patcher/internal/snapshot"
)

// SnapshotWarnThreshold is the wall-clock snapshot duration (spec.md
// §4.7 step c) past which the controller asks whether to narrow the
// scanned region window.
const SnapshotWarnThreshold = 6 * time.Second

// successThreshold is the candidate-count ceiling at which the
// controller declares success (spec.md §4.7 step h).
const successThreshold = 3

// Collaborator is the external, interactive counterpart the core
// consumes but never implements (spec.md §1 Out of scope): it drives
// step pacing, trend observations, and optional region narrowing.
type Collaborator interface {
	// AwaitStepReady blocks until the operator signals the watched
	// value should have changed, or signals they want to quit.
	AwaitStepReady() (ready bool)
	// ConfirmRegionNarrow is asked only when a snapshot pass took at
	// least SnapshotWarnThreshold.
	ConfirmRegionNarrow(elapsed time.Duration) bool
	// RequestBounds asks for a new [start, end) address window.
	RequestBounds(regions []access.Region) (start, end uint64, ok bool)
	// RequestTrend asks whether the watched value increased,
	// decreased, or stayed the same. ok is false on quit.
	RequestTrend() (trend candidate.Trend, ok bool)
}

// MockAdvancer lets a Scan Context built in mock mode simulate a value
// changing between snapshots. Per spec.md §9's open question, the
// mock-dynamic simulator only advances when the active scan's type
// matches the mock's own declared type; callers outside that case
// observe no change between snapshots, which is preserved here
// verbatim rather than treated as a bug.
type MockAdvancer interface {
	AdvanceMockDynamic(t codec.Type)
}

// Result is the outcome of a dynamic scan run.
type Result struct {
	Candidates map[uint64]codec.Value
	Regions    []access.Region // final, possibly narrowed region set
	Steps      int
}

// Run executes the dynamic scan algorithm from spec.md §4.7.
func Run(
	backend access.Backend,
	regions []access.Region,
	t codec.Type,
	chunkSize int,
	maxSteps int,
	collab Collaborator,
	mock MockAdvancer,
) (Result, error) {
	activeRegions := append([]access.Region(nil), regions...)

	previous, err := snapshot.Take(backend, activeRegions, t, chunkSize)
	if err != nil {
		return Result{}, err
	}

	var candidates map[uint64]codec.Value
	steps := 0

	for steps < maxSteps {
		if ready := collab.AwaitStepReady(); !ready {
			return Result{Steps: steps, Regions: activeRegions}, nil
		}
		steps++

		if mock != nil {
			mock.AdvanceMockDynamic(t)
		}

		start := time.Now()
		current, err := snapshot.Take(backend, activeRegions, t, chunkSize)
		if err != nil {
			return Result{}, err
		}
		elapsed := time.Since(start)

		if elapsed >= SnapshotWarnThreshold {
			if collab.ConfirmRegionNarrow(elapsed) {
				if lo, hi, ok := collab.RequestBounds(activeRegions); ok {
					activeRegions = windowRegions(activeRegions, lo, hi)
					previous = previous.Restrict(activeRegions)
					current = current.Restrict(activeRegions)
				}
			}
		}

		var pairs map[uint64]candidate.Pair
		if candidates == nil {
			pairs = candidate.Compare(previous, current)
		} else {
			pairs = candidate.CompareCandidates(candidates, current)
		}

		if len(pairs) == 0 {
			previous = current
			continue
		}

		trend, ok := collab.RequestTrend()
		if !ok {
			return Result{Steps: steps, Regions: activeRegions}, nil
		}

		filtered, err := candidate.Filter(pairs, trend)
		if err != nil {
			return Result{}, err
		}
		memlog.L.Info("candidates narrowed", memlog.Count("candidates", len(filtered)), memlog.Count("step", steps))

		switch {
		case len(filtered) > 0 && len(filtered) <= successThreshold:
			return Result{Candidates: filtered, Steps: steps, Regions: activeRegions}, nil
		case len(filtered) == 0:
			candidates = nil
			previous = current
		default:
			candidates = filtered
			previous = current
		}
	}

	return Result{Steps: steps, Regions: activeRegions}, nil
}

// windowRegions keeps the regions that overlap [lo, hi). Kept regions
// are not clipped to the window.
func windowRegions(regions []access.Region, lo, hi uint64) []access.Region {
	var out []access.Region
	for _, r := range regions {
		if r.Base < hi && r.End() > lo {
			out = append(out, r)
		}
	}
	return out
}
