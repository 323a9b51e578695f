//go:build linux

package sync

import (
	"os"
	"strconv"
	"syscall"
	"time"
)

// fileTimes returns best-effort created/modified timestamps. Linux has no
// portable birth time, so the inode change time stands in for creation.
func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime()
	created = modified
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		created = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
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
