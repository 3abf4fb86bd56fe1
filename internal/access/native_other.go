//go:build !linux

package access

import "runtime"

// OpenNative fails on non-Linux platforms; use the Mock Backend
// instead. See spec.md §4.1: "On a non-supported platform, fails with
// UnsupportedPlatform."
func OpenNative(pid int) (Backend, error) {
	return nil, UnsupportedPlatformError{Platform: runtime.GOOS}
}
