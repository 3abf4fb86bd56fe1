// Package patch implements the Write & Enforcement component: single
// and batch writes through Platform Memory Access, a session-scoped
// consent gate, verification read-back, and a long-lived enforcement
// loop.
package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/codec"
	"github.com/vondutchi/vondutch-patcher/internal/domainerr"
	"github.com/vondutchi/vondutch-patcher/internal/memlog"
)

// ConfirmationPhrase is the exact consent string an operator must
// type before any write reaches a live target.
const ConfirmationPhrase = "YES I OWN THIS COPY"

// MinEnforceInterval is the shortest allowed enforcement loop period.
const MinEnforceInterval = 100 * time.Millisecond

// Result is the outcome of one address write attempt.
type Result struct {
	Address  uint64
	Label    string
	Value    codec.Value
	DryRun   bool
	Success  bool
	Verified bool
	Err      error
}

// Labeler renders an address for display; satisfied by
// *labeler.Labeler or a trivial hex formatter.
type Labeler func(addr uint64) string

// Session is the Write & Enforcement component. backend is the
// capability variant from spec.md §9: a nil backend means this
// session was constructed without write capability, and every write
// attempt fails closed rather than panicking.
type Session struct {
	backend   access.Backend
	confirmed bool
	label     Labeler
	logPath   string
}

// NewSession builds a write session. Pass a nil backend to construct
// a session with no write capability (e.g., a read-only inspection
// run); label may be nil, in which case addresses render as plain hex.
// The session logs nothing to disk until SetLogPath is called.
func NewSession(backend access.Backend, label Labeler) *Session {
	return &Session{backend: backend, label: label}
}

// SetLogPath points the session at the append-only Patch Log file
// every subsequent Write/Batch/Enforce attempt appends a line to,
// mirroring log_patch_attempt in the original tool's addon/utils.py.
// An empty path (the zero value) disables logging.
func (s *Session) SetLogPath(path string) { s.logPath = path }

// Confirm records the session-scoped consent phrase. Tests may
// construct a session and call Confirm once up front rather than
// prompting interactively.
func (s *Session) Confirm(phrase string) bool {
	if phrase == ConfirmationPhrase {
		s.confirmed = true
	}
	return s.confirmed
}

// Confirmed reports whether consent has already been recorded.
func (s *Session) Confirmed() bool { return s.confirmed }

func (s *Session) labelFor(addr uint64) string {
	if s.label != nil {
		return s.label(addr)
	}
	return memlog.Hex(addr)
}

// Write applies the single-write contract from spec.md §4.10: packs
// value, writes through the backend (respecting mock vs native via
// whichever Backend was configured), and optionally verifies via
// read-back. dryRun logs intent without touching memory.
func (s *Session) Write(addr uint64, value codec.Value, dryRun, verify bool) Result {
	result := Result{Address: addr, Label: s.labelFor(addr), Value: value, DryRun: dryRun}

	if !dryRun && s.backend == nil {
		result.Err = domainerr.ConfirmationMissingError{}
		memlog.L.Info("patch skipped", memlog.Addr(addr))
		s.logAttempt("skip", result)
		return result
	}
	if !dryRun && !s.confirmed {
		result.Err = domainerr.ConfirmationMissingError{}
		memlog.L.Info("patch skipped", memlog.Addr(addr))
		s.logAttempt("skip", result)
		return result
	}

	if dryRun {
		result.Success = true
		memlog.L.Info("patch dry run", memlog.Addr(addr))
		s.logAttempt("dry_run", result)
		return result
	}

	packed, err := codec.Pack(value)
	if err != nil {
		result.Err = err
		s.logAttempt("write", result)
		return result
	}
	if err := s.backend.Write(addr, packed); err != nil {
		result.Err = err
		s.logAttempt("write", result)
		return result
	}
	result.Success = true

	if verify {
		raw, err := s.backend.Read(addr, len(packed))
		if err == nil {
			if readBack, err := codec.Unpack(raw, value.Type); err == nil {
				result.Verified = codec.Equal(value, readBack)
			}
		}
	}
	memlog.L.Info("patch applied", memlog.Addr(addr))
	s.logAttempt("write", result)
	return result
}

// logAttempt appends one line to the Patch Log in the original tool's
// "key=value | key=value | ..." shape, with a trailing UTC timestamp.
// Logging failures are swallowed (at Debug) rather than surfaced: a
// full disk or unwritable log path must never abort a patch attempt.
func (s *Session) logAttempt(action string, result Result) {
	if s.logPath == "" {
		return
	}

	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}
	fields := []string{
		fmt.Sprintf("address=0x%X", result.Address),
		fmt.Sprintf("label=%s", result.Label),
		fmt.Sprintf("value=%v", result.Value.AsFloat64()),
		fmt.Sprintf("value_type=%s", result.Value.Type),
		fmt.Sprintf("dry_run=%t", result.DryRun),
		fmt.Sprintf("success=%t", result.Success),
		fmt.Sprintf("verified=%t", result.Verified),
		fmt.Sprintf("error=%s", errText),
		fmt.Sprintf("action=%s", action),
		fmt.Sprintf("timestamp=%s", time.Now().UTC().Format(time.RFC3339)),
	}
	line := strings.Join(fields, " | ") + "\n"

	if dir := filepath.Dir(s.logPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			memlog.L.ChunkSkipped("patch log mkdir", result.Address, err)
			return
		}
	}
	f, err := os.OpenFile(s.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		memlog.L.ChunkSkipped("patch log open", result.Address, err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		memlog.L.ChunkSkipped("patch log write", result.Address, err)
	}
}

// Batch applies Write independently across addrs, aggregating every
// per-address error with multierr so one bad address never masks the
// others' outcomes.
func (s *Session) Batch(addrs []uint64, value codec.Value, dryRun, verify bool) ([]Result, error) {
	results := make([]Result, 0, len(addrs))
	var errs error
	for _, addr := range addrs {
		r := s.Write(addr, value, dryRun, verify)
		results = append(results, r)
		if r.Err != nil {
			errs = multierr.Append(errs, r.Err)
		}
	}
	return results, errs
}

// Enforce repeatedly invokes Batch at interval (raised to
// MinEnforceInterval if lower) until ctx is cancelled. Confirmation,
// once recorded on Confirm, is never re-prompted within the loop.
func (s *Session) Enforce(ctx context.Context, addrs []uint64, value codec.Value, interval time.Duration, dryRun bool) {
	if interval < MinEnforceInterval {
		interval = MinEnforceInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Batch(addrs, value, dryRun, false)
		}
	}
}

// Gate is the precondition check from spec.md §4.10's "surface-level"
// gate: writing is permitted only when all three conditions hold.
type Gate struct {
	Allowed bool
	Reason  string // "not_dynamic", "threshold", or "no_value" when not allowed
}

// EvaluateGate applies the precondition gate. isDynamic reports
// whether the candidate set came from a dynamic scan rather than a
// manual literal search (manual literals make enforcement a no-op).
func EvaluateGate(isDynamic bool, candidateCount, autoThreshold int, haveValue bool) Gate {
	if !isDynamic {
		return Gate{Reason: "not_dynamic"}
	}
	if !ShouldAutoPatch(candidateCount, autoThreshold) {
		memlog.L.Info("patch gate", memlog.Count("candidates", candidateCount), memlog.Count("threshold", autoThreshold))
		return Gate{Reason: "threshold"}
	}
	if !haveValue {
		return Gate{Reason: "no_value"}
	}
	return Gate{Allowed: true}
}

// ShouldAutoPatch reports whether candidateCount falls within
// [1, max(1, autoThreshold)].
func ShouldAutoPatch(candidateCount, autoThreshold int) bool {
	if autoThreshold < 1 {
		autoThreshold = 1
	}
	return candidateCount > 0 && candidateCount <= autoThreshold
}

// ResolveValue picks a patch value per spec.md §4.10(c): an explicit
// value wins, then a configured one, then the first discovered value
// (iteration order over discovered is undefined, matching the
// original's "first" semantics over an unordered source).
func ResolveValue(explicit, configured *float64, discovered map[uint64]codec.Value) (float64, bool) {
	if explicit != nil {
		return *explicit, true
	}
	if configured != nil {
		return *configured, true
	}
	for _, v := range discovered {
		return v.AsFloat64(), true
	}
	return 0, false
}

// ResolveType picks a patch type: explicit, then configured, then the
// fallback (the type the originating scan already used).
func ResolveType(explicit, configured, fallback codec.Type) codec.Type {
	if explicit != "" {
		return explicit
	}
	if configured != "" {
		return configured
	}
	return fallback
}
