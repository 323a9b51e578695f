//go:build !linux && !darwin && !windows

package sync

import (
	"os"
	"time"
)

func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime()
	return modified, modified
}

func fileOwner(_ os.FileInfo) string {
	return ""
}
