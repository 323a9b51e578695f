//go:build windows

package sync

import (
	"os"
	"syscall"
	"time"
)

// fileTimes returns created/modified timestamps from the Win32 file attributes.
func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime()
	created = modified
	if attrs, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		created = time.Unix(0, attrs.CreationTime.Nanoseconds())
	}
	return created, modified
}

// fileOwner is unavailable without an extra SID lookup; owner is best effort.
func fileOwner(_ os.FileInfo) string {
	return ""
}
