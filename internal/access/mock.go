package access

import "sort"

// MockRegion seeds a Mock Backend with one region of fixed size.
type MockRegion struct {
	Base        uint64
	Size        uint64
	Description string
}

// Mock is the Mock Backend: Platform Memory Access served over
// in-process byte buffers, used for tests and offline demos. Reads and
// writes outside every known region fail with OutOfBoundsError.
type Mock struct {
	pointerSize int
	regions     []Region
	buffers     map[uint64][]byte // region base -> mutable backing store
	modules     []Module
}

// NewMock creates a Mock Backend with the given regions, each backed
// by a zeroed buffer of its declared size.
func NewMock(pointerSize int, regions []MockRegion, modules []Module) *Mock {
	m := &Mock{
		pointerSize: pointerSize,
		buffers:     make(map[uint64][]byte, len(regions)),
	}
	for _, r := range regions {
		m.regions = append(m.regions, Region{
			Base:        r.Base,
			Size:        r.Size,
			Protection:  "rw-p",
			Committed:   true,
			Guard:       false,
			Type:        "mock",
			Description: r.Description,
		})
		m.buffers[r.Base] = make([]byte, r.Size)
	}
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].Base < m.regions[j].Base })
	mods := append([]Module(nil), modules...)
	sort.Slice(mods, func(i, j int) bool { return mods[i].Base < mods[j].Base })
	m.modules = mods
	return m
}

// PointerSize returns the pointer width configured at construction.
func (m *Mock) PointerSize() int { return m.pointerSize }

// EnumerateRegions returns the regions the mock was constructed with.
func (m *Mock) EnumerateRegions() ([]Region, error) {
	out := make([]Region, len(m.regions))
	copy(out, m.regions)
	return out, nil
}

// Modules returns the configured module list, sorted by base address.
func (m *Mock) Modules() ([]Module, error) {
	out := make([]Module, len(m.modules))
	copy(out, m.modules)
	return out, nil
}

func (m *Mock) find(addr uint64) (Region, []byte, bool) {
	for _, r := range m.regions {
		if r.Contains(addr) {
			return r, m.buffers[r.Base], true
		}
	}
	return Region{}, nil, false
}

// Read returns size bytes starting at addr from the owning region's
// buffer. The whole [addr, addr+size) range must lie within one
// region, or OutOfBoundsError is returned.
func (m *Mock) Read(addr uint64, size int) ([]byte, error) {
	r, buf, ok := m.find(addr)
	if !ok {
		return nil, OutOfBoundsError{Addr: addr}
	}
	offset := addr - r.Base
	end := offset + uint64(size)
	if end > uint64(len(buf)) {
		return nil, OutOfBoundsError{Addr: addr}
	}
	out := make([]byte, size)
	copy(out, buf[offset:end])
	return out, nil
}

// Write writes data into the owning region's buffer, or fails with
// OutOfBoundsError if any byte falls outside a known region.
func (m *Mock) Write(addr uint64, data []byte) error {
	r, buf, ok := m.find(addr)
	if !ok {
		return OutOfBoundsError{Addr: addr}
	}
	offset := addr - r.Base
	end := offset + uint64(len(data))
	if end > uint64(len(buf)) {
		return OutOfBoundsError{Addr: addr}
	}
	copy(buf[offset:end], data)
	return nil
}

// Close is a no-op for the mock backend; always succeeds.
func (m *Mock) Close() error { return nil }
