// Package session implements the Scan Context: the object that owns
// a target's Platform Memory Access handle and its module list,
// runs manual searches and rescans, and assembles the Scan Result
// JSON described in spec.md §6. Dynamic scans run through
// dynamic.Run, not through Context.
package session

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/candidate"
	"github.com/vondutchi/vondutch-patcher/internal/codec"
	"github.com/vondutchi/vondutch-patcher/internal/labeler"
	"github.com/vondutchi/vondutch-patcher/internal/memlog"
	"github.com/vondutchi/vondutch-patcher/internal/search"
	"github.com/vondutchi/vondutch-patcher/internal/signature"
	"github.com/vondutchi/vondutch-patcher/internal/tracer"
)

// ScanMode tags how a Scan Result's candidate set was produced.
type ScanMode string

const (
	Manual  ScanMode = "manual"
	Dynamic ScanMode = "dynamic"
)

// Context owns a target's memory access handle and region/module
// inventory for the lifetime of one session. SessionID correlates
// every log line this Context emits with one run, without changing
// the persisted Scan Result schema (spec.md §6 defines that shape
// exactly and SessionID is never part of it).
type Context struct {
	PID       int
	Name      string
	Backend   access.Backend
	Regions   []access.Region
	Labels    *labeler.Labeler
	SessionID string

	log *memlog.Logger
}

// Open builds a Context from an already-constructed Backend,
// enumerating its regions and modules up front and minting a fresh
// session-correlation ID.
func Open(pid int, name string, backend access.Backend) (*Context, error) {
	regions, err := backend.EnumerateRegions()
	if err != nil {
		return nil, err
	}
	modules, err := backend.Modules()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &Context{
		PID:       pid,
		Name:      name,
		Backend:   backend,
		Regions:   regions,
		Labels:    labeler.New(modules),
		SessionID: id,
		log:       memlog.L.WithSession(id),
	}, nil
}

// Close releases the underlying backend, idempotently.
func (c *Context) Close() error { return c.Backend.Close() }

// AddressEntry is one matched address in a Scan Result.
type AddressEntry struct {
	Address      uint64
	Label        string
	StillValid   *bool
	CurrentValue *float64
}

// ReferenceEntry is one pointer chain, rendered as a label sequence
// from outermost reference to seed.
type ReferenceEntry struct {
	Chain []string
}

// SignatureEntry is one extracted byte window.
type SignatureEntry struct {
	Address uint64
	Start   uint64
	Pattern string
	Mask    string
}

// Result is the in-memory form of the Scan Result JSON (spec.md §6).
type Result struct {
	PID         int
	Name        string
	Timestamp   time.Time
	Value       *float64
	ValueType   codec.Type
	ScanMode    ScanMode
	Addresses   []AddressEntry
	References  []ReferenceEntry
	Signatures  []SignatureEntry
}

// wireResult mirrors the exact JSON shape from spec.md §6.
type wireResult struct {
	Process struct {
		PID  int    `json:"pid"`
		Name string `json:"name"`
	} `json:"process"`
	Timestamp  string            `json:"timestamp"`
	Value      *float64          `json:"value"`
	ValueType  string            `json:"value_type"`
	ScanMode   string            `json:"scan_mode"`
	Addresses  []wireAddress     `json:"addresses"`
	References []wireReference   `json:"references"`
	Signatures []wireSignature   `json:"signatures"`
}

type wireAddress struct {
	Address      uint64   `json:"address"`
	Label        string   `json:"label"`
	StillValid   *bool    `json:"still_valid"`
	CurrentValue *float64 `json:"current_value"`
}

type wireReference struct {
	Chain []string `json:"chain"`
}

type wireSignature struct {
	Address uint64 `json:"address"`
	Start   uint64 `json:"start"`
	Pattern string `json:"pattern"`
	Mask    string `json:"mask"`
}

// MarshalJSON renders Result in the canonical wire shape.
func (r Result) MarshalJSON() ([]byte, error) {
	w := wireResult{
		Timestamp: r.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		Value:     r.Value,
		ValueType: string(r.ValueType),
		ScanMode:  string(r.ScanMode),
	}
	w.Process.PID = r.PID
	w.Process.Name = r.Name

	for _, a := range r.Addresses {
		w.Addresses = append(w.Addresses, wireAddress{
			Address:      a.Address,
			Label:        a.Label,
			StillValid:   a.StillValid,
			CurrentValue: a.CurrentValue,
		})
	}
	for _, ref := range r.References {
		w.References = append(w.References, wireReference{Chain: ref.Chain})
	}
	for _, s := range r.Signatures {
		w.Signatures = append(w.Signatures, wireSignature{
			Address: s.Address,
			Start:   s.Start,
			Pattern: s.Pattern,
			Mask:    s.Mask,
		})
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the canonical wire shape back into a Result.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.PID = w.Process.PID
	r.Name = w.Process.Name
	if ts, err := time.Parse("2006-01-02T15:04:05Z", w.Timestamp); err == nil {
		r.Timestamp = ts
	}
	r.Value = w.Value
	r.ValueType = codec.Type(w.ValueType)
	r.ScanMode = ScanMode(w.ScanMode)

	for _, a := range w.Addresses {
		r.Addresses = append(r.Addresses, AddressEntry{
			Address:      a.Address,
			Label:        a.Label,
			StillValid:   a.StillValid,
			CurrentValue: a.CurrentValue,
		})
	}
	for _, ref := range w.References {
		r.References = append(r.References, ReferenceEntry{Chain: ref.Chain})
	}
	for _, s := range w.Signatures {
		r.Signatures = append(r.Signatures, SignatureEntry{
			Address: s.Address,
			Start:   s.Start,
			Pattern: s.Pattern,
			Mask:    s.Mask,
		})
	}
	return nil
}

// Save persists a Result as indented JSON.
func Save(result Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a previously-saved Result.
func Load(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, err
	}
	return r, nil
}

// Search runs a manual scan for target over the context's regions and
// assembles a Result (without references or signatures; callers add
// those separately via Trace/Signatures below).
func (c *Context) Search(target float64, t codec.Type) (Result, error) {
	hits, err := search.Search(c.Backend, c.Regions, target, t)
	if err != nil {
		return Result{}, err
	}
	entries := make([]AddressEntry, 0, len(hits))
	for _, addr := range hits {
		v := target
		entries = append(entries, AddressEntry{
			Address:      addr,
			Label:        c.Labels.Label(addr),
			CurrentValue: &v,
		})
	}
	return Result{
		PID:       c.PID,
		Name:      c.Name,
		Timestamp: now(),
		Value:     &target,
		ValueType: t,
		ScanMode:  Manual,
		Addresses: entries,
	}, nil
}

// Rescan checks whether each of addrs still holds expected, per
// spec.md §8 scenario 5: a read failure at single-address granularity
// marks that address invalid rather than aborting the session.
func (c *Context) Rescan(addrs []uint64, expected float64, t codec.Type) (Result, error) {
	packed, err := codec.PackFloat(expected, t)
	if err != nil {
		return Result{}, err
	}
	entries := make([]AddressEntry, 0, len(addrs))
	for _, addr := range addrs {
		raw, err := c.Backend.Read(addr, len(packed))
		valid := false
		var current *float64
		if err == nil {
			if v, uerr := codec.Unpack(raw, t); uerr == nil {
				cv := v.AsFloat64()
				current = &cv
				valid = bytesEqual(raw, packed)
			}
		} else {
			c.log.ChunkSkipped("rescan", addr, err)
		}
		entries = append(entries, AddressEntry{
			Address:      addr,
			Label:        c.Labels.Label(addr),
			StillValid:   &valid,
			CurrentValue: current,
		})
	}
	return Result{
		PID:       c.PID,
		Name:      c.Name,
		Timestamp: now(),
		Value:     &expected,
		ValueType: t,
		ScanMode:  Manual,
		Addresses: entries,
	}, nil
}

// Trace runs the Reference Tracer against seeds and renders each
// chain's hops as label sequences (spec.md §3), the same
// module+offset-or-hex labeling Search and Rescan use for addresses.
func (c *Context) Trace(seeds []uint64, depth int) []ReferenceEntry {
	chains := tracer.Trace(c.Backend, c.Regions, seeds, depth)
	out := make([]ReferenceEntry, 0, len(chains))
	for _, chain := range chains {
		labels := make([]string, len(chain))
		for i, addr := range chain {
			labels[i] = c.Labels.Label(addr)
		}
		out = append(out, ReferenceEntry{Chain: labels})
	}
	return out
}

// Signatures extracts a byte-window signature for each address.
func (c *Context) Signatures(addrs []uint64, window int) []SignatureEntry {
	out := make([]SignatureEntry, 0, len(addrs))
	for _, addr := range addrs {
		sig := signature.Extract(c.Backend, addr, window)
		out = append(out, SignatureEntry{
			Address: sig.Address,
			Start:   sig.Start,
			Pattern: sig.Pattern,
			Mask:    sig.Mask,
		})
	}
	return out
}

// FilterTrend is a thin re-export of candidate.Trend, so callers of
// this package can name the trend type without importing candidate.
type FilterTrend = candidate.Trend

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// now is overridden in tests that need a fixed timestamp.
var now = time.Now
