// Package fixtures builds the Mock Backend layout used for offline
// demos and tests from a YAML scenario description, the Go equivalent
// of build_mock_context() in original_source's process_inspector.py
// made data-driven so more than one demo scenario can exist.
package fixtures

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/codec"
)

//go:embed default.yaml
var defaultScenarioYAML []byte

// RegionEntry describes one mock memory region.
type RegionEntry struct {
	Base        uint64 `yaml:"base"`
	Size        uint64 `yaml:"size"`
	Description string `yaml:"description"`
}

// ValueEntry describes one static typed value seeded at an address.
type ValueEntry struct {
	Address uint64     `yaml:"address"`
	Type    codec.Type `yaml:"type"`
	Value   float64    `yaml:"value"`
}

// DynamicEntry describes the mock-dynamic cell the Dynamic Scan
// Controller exercises: a value that advances by Step each time
// AdvanceMockDynamic is called with a matching type.
type DynamicEntry struct {
	Address uint64     `yaml:"address"`
	Type    codec.Type `yaml:"type"`
	Initial float64    `yaml:"initial"`
	Step    float64    `yaml:"step"`
}

// PointerEntry describes one pointer-sized cell holding another
// address, used to build reference chains for the tracer.
type PointerEntry struct {
	Address uint64 `yaml:"address"`
	Target  uint64 `yaml:"target"`
}

// Scenario is a complete data-driven mock layout: regions, static
// values, an optional mock-dynamic cell, and pointer chains.
type Scenario struct {
	PID      int            `yaml:"pid"`
	Name     string         `yaml:"name"`
	Regions  []RegionEntry  `yaml:"regions"`
	Values   []ValueEntry   `yaml:"values"`
	Dynamic  *DynamicEntry  `yaml:"dynamic"`
	Pointers []PointerEntry `yaml:"pointers"`
}

// ParseScenario decodes a YAML-encoded Scenario.
func ParseScenario(data []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("fixtures: parse scenario: %w", err)
	}
	return s, nil
}

// defaultScenario is the parsed form of default.yaml, the canonical
// two-region demo layout from spec.md §8.
var defaultScenario = mustParseScenario(defaultScenarioYAML)

func mustParseScenario(data []byte) Scenario {
	s, err := ParseScenario(data)
	if err != nil {
		panic(err)
	}
	return s
}

// Layout constants describing the default scenario's addresses, kept
// for callers and tests that want to reference a specific cell without
// walking the parsed Scenario. Derived from default.yaml at package
// init so they can never drift from the data the mock is actually
// built from.
var (
	MockPID  = defaultScenario.PID
	MockName = defaultScenario.Name

	Region1Base = defaultScenario.Regions[0].Base
	Region2Base = defaultScenario.Regions[1].Base

	Float32Offset = defaultScenario.Values[0].Address - Region1Base
	Uint32Offset  = defaultScenario.Values[1].Address - Region1Base
	DynamicOffset = defaultScenario.Dynamic.Address - Region1Base

	PointerOffset1 = defaultScenario.Pointers[0].Address - Region2Base
	PointerOffset2 = defaultScenario.Pointers[1].Address - Region2Base

	// DynamicAddr is the absolute address of the mock-dynamic cell.
	DynamicAddr = defaultScenario.Dynamic.Address

	DynamicInitial = int32(defaultScenario.Dynamic.Initial)
	DynamicStep    = int32(defaultScenario.Dynamic.Step)
)

// Build constructs the canonical two-region demo layout from
// default.yaml.
func Build() *access.Mock {
	mock, err := BuildFromScenario(defaultScenario)
	if err != nil {
		panic(err)
	}
	return mock
}

// LoadScenario reads and parses a YAML scenario file from disk, for
// callers that want a demo layout other than the built-in default.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	return ParseScenario(data)
}

// BuildFromScenario constructs a Mock Backend from an arbitrary
// Scenario, the same construction Build uses for the default one.
func BuildFromScenario(s Scenario) (*access.Mock, error) {
	regions := make([]access.MockRegion, 0, len(s.Regions))
	for _, r := range s.Regions {
		regions = append(regions, access.MockRegion{Base: r.Base, Size: r.Size, Description: r.Description})
	}
	mock := access.NewMock(8, regions, nil)

	for _, v := range s.Values {
		val, err := codec.New(v.Value, v.Type)
		if err != nil {
			return nil, fmt.Errorf("fixtures: value at 0x%X: %w", v.Address, err)
		}
		if err := writeValue(mock, v.Address, val); err != nil {
			return nil, err
		}
	}

	if s.Dynamic != nil {
		val, err := codec.New(s.Dynamic.Initial, s.Dynamic.Type)
		if err != nil {
			return nil, fmt.Errorf("fixtures: dynamic cell at 0x%X: %w", s.Dynamic.Address, err)
		}
		if err := writeValue(mock, s.Dynamic.Address, val); err != nil {
			return nil, err
		}
	}

	for _, p := range s.Pointers {
		if err := writeValue(mock, p.Address, codec.FromUint64(p.Target)); err != nil {
			return nil, err
		}
	}

	return mock, nil
}

func writeValue(mock *access.Mock, addr uint64, v codec.Value) error {
	raw, err := codec.Pack(v)
	if err != nil {
		return err
	}
	return mock.Write(addr, raw)
}

// DynamicAdvancer advances a mock-dynamic cell by Step each time
// AdvanceMockDynamic is called with a matching type, implementing
// dynamic.MockAdvancer. Per spec.md §9's open question, a mismatched
// type is a silent no-op: preserved deliberately rather than treated
// as a bug.
type DynamicAdvancer struct {
	Backend access.Backend
	Addr    uint64
	Type    codec.Type
	Step    float64
}

// NewDynamicAdvancer builds an advancer bound to the default
// scenario's own dynamic cell.
func NewDynamicAdvancer(backend access.Backend) *DynamicAdvancer {
	return &DynamicAdvancer{
		Backend: backend,
		Addr:    defaultScenario.Dynamic.Address,
		Type:    defaultScenario.Dynamic.Type,
		Step:    defaultScenario.Dynamic.Step,
	}
}

// AdvanceMockDynamic implements dynamic.MockAdvancer.
func (a *DynamicAdvancer) AdvanceMockDynamic(t codec.Type) {
	if t != a.Type {
		return
	}
	size := codec.MustSize(a.Type)
	raw, err := a.Backend.Read(a.Addr, size)
	if err != nil {
		return
	}
	v, err := codec.Unpack(raw, a.Type)
	if err != nil {
		return
	}
	next, err := codec.New(v.AsFloat64()+a.Step, a.Type)
	if err != nil {
		return
	}
	out, err := codec.Pack(next)
	if err != nil {
		return
	}
	_ = a.Backend.Write(a.Addr, out)
}
