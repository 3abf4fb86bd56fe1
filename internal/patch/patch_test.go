package patch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/codec"
	"github.com/vondutchi/vondutch-patcher/internal/domainerr"
)

func TestWriteRejectedWithoutConfirmation(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x10}}, nil)
	sess := NewSession(mock, nil)

	result := sess.Write(0x10000000, codec.FromInt32(1), false, false)
	if result.Success {
		t.Fatalf("expected write to be rejected without confirmation")
	}
	if _, ok := result.Err.(domainerr.ConfirmationMissingError); !ok {
		t.Errorf("expected ConfirmationMissingError, got %v", result.Err)
	}
}

func TestDryRunNeverTouchesMemory(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x10}}, nil)
	sess := NewSession(mock, nil)

	result := sess.Write(0x10000000, codec.FromInt32(99), true, false)
	if !result.Success || !result.DryRun {
		t.Fatalf("expected successful dry run, got %+v", result)
	}
	raw, err := mock.Read(0x10000000, 4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, b := range raw {
		if b != 0 {
			t.Fatalf("dry run must not touch memory, found %v", raw)
		}
	}
}

func TestWriteAndVerifyAfterConfirmation(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x10}}, nil)
	sess := NewSession(mock, nil)
	if !sess.Confirm(ConfirmationPhrase) {
		t.Fatalf("confirmation should be recorded")
	}

	result := sess.Write(0x10000000, codec.FromInt32(42), false, true)
	if !result.Success || !result.Verified {
		t.Fatalf("expected successful verified write, got %+v", result)
	}
}

func TestBatchAggregatesIndependentOutcomes(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x10}}, nil)
	sess := NewSession(mock, nil)
	sess.Confirm(ConfirmationPhrase)

	addrs := []uint64{0x10000000, 0x30000000} // second is out of bounds
	results, err := sess.Batch(addrs, codec.FromInt32(7), false, false)
	if err == nil {
		t.Fatalf("expected aggregated error from the out-of-bounds address")
	}
	if !results[0].Success {
		t.Errorf("expected first address to succeed, got %+v", results[0])
	}
	if results[1].Success {
		t.Errorf("expected second address to fail, got %+v", results[1])
	}
}

func TestGateBlocksOnThresholdWithNoWrites(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x10}}, nil)
	before, _ := mock.Read(0x10000000, 4)

	gate := EvaluateGate(true, 5, 3, true)
	if gate.Allowed {
		t.Fatalf("expected gate to block when candidates exceed threshold")
	}
	if gate.Reason != "threshold" {
		t.Errorf("expected reason=threshold, got %q", gate.Reason)
	}

	after, _ := mock.Read(0x10000000, 4)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("memory must be unchanged when the gate blocks a batch")
		}
	}
}

func TestGateRequiresDynamicOrigin(t *testing.T) {
	gate := EvaluateGate(false, 1, 3, true)
	if gate.Allowed || gate.Reason != "not_dynamic" {
		t.Errorf("expected not_dynamic block, got %+v", gate)
	}
}

func TestWriteAppendsPatchLogLine(t *testing.T) {
	mock := access.NewMock(8, []access.MockRegion{{Base: 0x10000000, Size: 0x10}}, nil)
	sess := NewSession(mock, nil)
	sess.Confirm(ConfirmationPhrase)

	logPath := filepath.Join(t.TempDir(), "nested", "addon_patch_log.txt")
	sess.SetLogPath(logPath)

	if result := sess.Write(0x10000000, codec.FromInt32(42), false, true); !result.Success {
		t.Fatalf("expected successful write, got %+v", result)
	}
	if result := sess.Write(0x10000000, codec.FromInt32(7), true, false); !result.Success {
		t.Fatalf("expected successful dry run, got %+v", result)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one log line per attempt, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "action=write") || !strings.Contains(lines[0], "address=0x10000000") {
		t.Errorf("expected write attempt logged, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "action=dry_run") {
		t.Errorf("expected dry run attempt logged, got %q", lines[1])
	}
	if !strings.Contains(lines[0], "timestamp=") {
		t.Errorf("expected a timestamp field, got %q", lines[0])
	}
}

func TestResolveValuePrefersExplicitThenConfigThenDiscovered(t *testing.T) {
	explicit := 1.5
	if v, ok := ResolveValue(&explicit, nil, nil); !ok || v != 1.5 {
		t.Errorf("expected explicit value, got %v %v", v, ok)
	}
	configured := 2.5
	if v, ok := ResolveValue(nil, &configured, nil); !ok || v != 2.5 {
		t.Errorf("expected configured value, got %v %v", v, ok)
	}
	discovered := map[uint64]codec.Value{0x1000: codec.FromInt32(9)}
	if v, ok := ResolveValue(nil, nil, discovered); !ok || v != 9 {
		t.Errorf("expected discovered value, got %v %v", v, ok)
	}
	if _, ok := ResolveValue(nil, nil, nil); ok {
		t.Errorf("expected no value resolvable")
	}
}
