//go:build darwin

package sync

import (
	"os"
	"strconv"
	"syscall"
	"time"
)

// fileTimes returns created/modified timestamps using the HFS+/APFS birth time.
func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime()
	created = modified
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		created = time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec)
	}
	return created, modified
}

// fileOwner returns the owning uid as a string, empty when unavailable.
func fileOwner(info os.FileInfo) string {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return strconv.FormatUint(uint64(st.Uid), 10)
	}
	return ""
}
