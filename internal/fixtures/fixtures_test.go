package fixtures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vondutchi/vondutch-patcher/internal/codec"
	"github.com/vondutchi/vondutch-patcher/internal/search"
)

func TestBuildLayoutMatchesExpectedAddresses(t *testing.T) {
	mock := Build()
	regions, err := mock.EnumerateRegions()
	if err != nil {
		t.Fatalf("EnumerateRegions: %v", err)
	}

	hits, err := search.Search(mock, regions, 3.14159, codec.Float32)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0] != Region1Base+Float32Offset {
		t.Errorf("expected single hit at 0x%X, got %v", Region1Base+Float32Offset, hits)
	}
}

func TestDynamicAdvancerDecrementsOnMatchingType(t *testing.T) {
	mock := Build()
	adv := NewDynamicAdvancer(mock)

	adv.AdvanceMockDynamic(codec.Int32)

	raw, err := mock.Read(DynamicAddr, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	v, err := codec.Unpack(raw, codec.Int32)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if v.Int32() != DynamicInitial+DynamicStep {
		t.Errorf("expected %d, got %d", DynamicInitial+DynamicStep, v.Int32())
	}
}

func TestDynamicAdvancerIgnoresMismatchedType(t *testing.T) {
	mock := Build()
	adv := NewDynamicAdvancer(mock)

	adv.AdvanceMockDynamic(codec.Float32)

	raw, _ := mock.Read(DynamicAddr, 4)
	v, _ := codec.Unpack(raw, codec.Int32)
	if v.Int32() != DynamicInitial {
		t.Errorf("expected unchanged value %d, got %d", DynamicInitial, v.Int32())
	}
}

func TestParseScenarioMatchesEmbeddedDefault(t *testing.T) {
	s, err := ParseScenario(defaultScenarioYAML)
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	if s.PID != MockPID || s.Name != MockName {
		t.Errorf("unexpected identity: %+v", s)
	}
	if len(s.Regions) != 2 || s.Regions[0].Base != Region1Base || s.Regions[1].Base != Region2Base {
		t.Errorf("unexpected regions: %+v", s.Regions)
	}
	if s.Dynamic == nil || s.Dynamic.Address != DynamicAddr || s.Dynamic.Type != codec.Int32 {
		t.Errorf("unexpected dynamic entry: %+v", s.Dynamic)
	}
}

func TestBuildFromScenarioCustomLayout(t *testing.T) {
	s := Scenario{
		PID:  1,
		Name: "custom",
		Regions: []RegionEntry{
			{Base: 0x30000000, Size: 0x1000, Description: "custom-region"},
		},
		Values: []ValueEntry{
			{Address: 0x30000010, Type: codec.Uint32, Value: 42},
		},
	}
	mock, err := BuildFromScenario(s)
	if err != nil {
		t.Fatalf("BuildFromScenario: %v", err)
	}
	regions, err := mock.EnumerateRegions()
	if err != nil {
		t.Fatalf("EnumerateRegions: %v", err)
	}
	hits, err := search.Search(mock, regions, 42, codec.Uint32)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0] != 0x30000010 {
		t.Errorf("expected single hit at 0x30000010, got %v", hits)
	}
}

func TestLoadScenarioFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, defaultScenarioYAML, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if s.PID != MockPID || len(s.Regions) != 2 {
		t.Errorf("unexpected scenario loaded from file: %+v", s)
	}
}
