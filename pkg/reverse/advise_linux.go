//go:build linux
// +build linux

package reverse

import "golang.org/x/sys/unix"

// adviseReverse disables readahead on a file the reader owns and reads back
// to front in blocks.
func adviseReverse(src any) {
	f, ok := src.(interface{ Fd() uintptr })
	if !ok {
		return
	}
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM)
}
