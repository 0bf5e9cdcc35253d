package codecpref

import (
	"slices"
	"strings"
)

// Label returns the display name for a codec MIME identifier.
func Label(mime string) string {
	mime = Normalize(mime)
	name := mime
	if _, subtype, ok := strings.Cut(mime, "/"); ok {
		name = subtype
	}

	switch name {
	case "vp8":
		return "VP8"
	case "vp9":
		return "VP9"
	case "av1":
		return "AV1"
	case "h264":
		return "H264"
	case "h265", "hevc":
		return "H265"
	}
	return strings.ToUpper(name)
}

// DefaultPreference picks the codec a selector UI should show: the previous
// choice if it is still offered, otherwise H264, otherwise the first entry.
// It returns "" for an empty list.
func DefaultPreference(ordered []string, previous string) string {
	previous = Normalize(previous)
	if previous != "" && slices.Contains(ordered, previous) {
		return previous
	}
	if slices.Contains(ordered, "video/h264") {
		return "video/h264"
	}
	if len(ordered) > 0 {
		return ordered[0]
	}
	return ""
}
