package storage

import (
	"path/filepath"
	"strings"
)

const textContentType = "text/plain; charset=utf-8"

// ContentTypeFor maps a file extension onto the media types the app stores.
func ContentTypeFor(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "m4a":
		return "audio/mp4"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "mp4":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
