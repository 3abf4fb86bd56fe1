// Package signature implements the Signature Extractor: capturing a
// small byte window around an address as an uppercase hex pattern
// plus a wildcard mask, for snapshotting an address's surrounding
// bytes independent of the value's own numeric type.
package signature

import "github.com/vondutchi/vondutch-patcher/internal/access"

// DefaultWindow is the extractor's default window size in bytes.
const DefaultWindow = 32

// Signature is the extracted byte window around one address.
type Signature struct {
	Address uint64
	Start   uint64
	Pattern string // uppercase hex bytes, space-joined; empty on read failure
	Mask    string // "x" repeated once per byte; empty on read failure
}

// Extract reads window bytes centered on addr (window/2 bytes before,
// the rest after), clamping the start at 0. If the read fails, Pattern
// and Mask are left empty.
func Extract(backend access.Backend, addr uint64, window int) Signature {
	half := uint64(window / 2)
	var start uint64
	if addr > half {
		start = addr - half
	}

	sig := Signature{Address: addr, Start: start}

	data, err := backend.Read(start, window)
	if err != nil {
		return sig
	}

	pattern := make([]byte, 0, window*3)
	const hexDigits = "0123456789ABCDEF"
	for i, b := range data {
		if i > 0 {
			pattern = append(pattern, ' ')
		}
		pattern = append(pattern, hexDigits[b>>4], hexDigits[b&0xf])
	}
	sig.Pattern = string(pattern)

	mask := make([]byte, len(data))
	for i := range mask {
		mask[i] = 'x'
	}
	sig.Mask = string(mask)

	return sig
}
