package dynamic

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/candidate"
	"github.com/vondutchi/vondutch-patcher/internal/codec"
)

// stepAdvancer decrements a single int32 cell by 1 on every call,
// mirroring spec.md §8 scenario 2's mock dynamic value (initial 30,
// step -1).
type stepAdvancer struct {
	backend access.Backend
	addr    uint64
}

func (a *stepAdvancer) AdvanceMockDynamic(t codec.Type) {
	if t != codec.Int32 {
		return
	}
	raw, err := a.backend.Read(a.addr, 4)
	if err != nil {
		return
	}
	v := int32(binary.LittleEndian.Uint32(raw))
	v--
	out, _ := codec.Pack(codec.FromInt32(v))
	_ = a.backend.Write(a.addr, out)
}

// scriptedCollaborator always stays ready, never narrows, and always
// reports "decreased".
type scriptedCollaborator struct {
	steps int
}

func (s *scriptedCollaborator) AwaitStepReady() bool { return true }
func (s *scriptedCollaborator) ConfirmRegionNarrow(time.Duration) bool { return false }
func (s *scriptedCollaborator) RequestBounds([]access.Region) (uint64, uint64, bool) {
	return 0, 0, false
}
func (s *scriptedCollaborator) RequestTrend() (candidate.Trend, bool) {
	s.steps++
	return candidate.Decreased, true
}

func TestRunNarrowsMockDynamicWithinBudget(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{
		{Base: 0x10000000, Size: 0x1000, Description: "heap"},
	}, nil)

	seed, _ := codec.Pack(codec.FromInt32(30))
	if err := mock.Write(0x10000900, seed); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	regions, _ := mock.EnumerateRegions()
	collab := &scriptedCollaborator{}
	adv := &stepAdvancer{backend: mock, addr: 0x10000900}

	result, err := Run(mock, regions, codec.Int32, 16384, 4, collab, adv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Steps > 3 {
		t.Errorf("expected narrowing within 3 steps, took %d", result.Steps)
	}
	if len(result.Candidates) == 0 || len(result.Candidates) > 3 {
		t.Fatalf("expected 1-3 candidates, got %d", len(result.Candidates))
	}
	if _, ok := result.Candidates[0x10000900]; !ok {
		t.Errorf("expected 0x10000900 among candidates, got %v", result.Candidates)
	}
}

// quittingCollaborator quits on the first trend request.
type quittingCollaborator struct{}

func (quittingCollaborator) AwaitStepReady() bool                          { return true }
func (quittingCollaborator) ConfirmRegionNarrow(time.Duration) bool        { return false }
func (quittingCollaborator) RequestBounds([]access.Region) (uint64, uint64, bool) {
	return 0, 0, false
}
func (quittingCollaborator) RequestTrend() (candidate.Trend, bool) { return "", false }

func TestRunQuitReturnsEmptyResult(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{
		{Base: 0x10000000, Size: 0x100},
	}, nil)
	seed, _ := codec.Pack(codec.FromInt32(1))
	_ = mock.Write(0x10000000, seed)

	regions, _ := mock.EnumerateRegions()
	adv := &stepAdvancer{backend: mock, addr: 0x10000000}

	result, err := Run(mock, regions, codec.Int32, 4096, 4, quittingCollaborator{}, adv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("expected empty candidates on quit, got %v", result.Candidates)
	}
}

// neverReadyCollaborator declines the very first step.
type neverReadyCollaborator struct{}

func (neverReadyCollaborator) AwaitStepReady() bool                   { return false }
func (neverReadyCollaborator) ConfirmRegionNarrow(time.Duration) bool { return false }
func (neverReadyCollaborator) RequestBounds([]access.Region) (uint64, uint64, bool) {
	return 0, 0, false
}
func (neverReadyCollaborator) RequestTrend() (candidate.Trend, bool) { return "", false }

func TestRunAbortBeforeFirstStep(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x10}}, nil)
	regions, _ := mock.EnumerateRegions()

	result, err := Run(mock, regions, codec.Int32, 4096, 4, neverReadyCollaborator{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Steps != 0 || len(result.Candidates) != 0 {
		t.Errorf("expected zero-step abort, got %+v", result)
	}
}
