package utils

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const sniffLen = 512

// DetectContentType infers a MIME type from the file extension, falling back
// to sniffing the first 512 bytes of content when the extension is unknown.
func DetectContentType(path string) string {
	if isTextLike(path) {
		return "text/plain; charset=utf-8"
	}
	if mimeType := mime.TypeByExtension(filepath.Ext(path)); mimeType != "" {
		return mimeType
	}
	if sniffed := sniffContentType(path); sniffed != "" {
		return sniffed
	}
	return "application/octet-stream"
}

func isTextLike(path string) bool {
	return strings.HasSuffix(path, ".yaml") ||
		strings.HasSuffix(path, ".yml") ||
		strings.HasSuffix(path, ".toml") ||
		strings.HasSuffix(path, ".md")
}

func sniffContentType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if n == 0 || (err != nil && err != io.EOF) {
		return ""
	}
	return http.DetectContentType(buf[:n])
}
