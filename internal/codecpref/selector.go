// Package codecpref orders the codecs a PeerConnection advertises before an
// offer is created: pseudo-codecs are dropped, the well-known video codecs are
// put in a fixed order, and an optional user choice is promoted to the front.
package codecpref

import (
	"slices"
	"strings"

	"github.com/pion/webrtc/v4"
)

// canonicalOrder is the fixed ranking for the well-known video codecs.
// Anything else follows in discovery order.
var canonicalOrder = []string{
	"video/vp8",
	"video/vp9",
	"video/av1",
	"video/h264",
	"video/h265",
}

// pseudoSubtypes are retransmission / redundancy / FEC payloads, never a
// primary codec.
var pseudoSubtypes = []string{"rtx", "red", "ulpfec", "flexfec"}

// Normalize lower-cases and trims a MIME identifier.
func Normalize(mime string) string {
	return strings.ToLower(strings.TrimSpace(mime))
}

// IsPrimary reports whether mime names a real media codec rather than an
// rtx/red/ulpfec/flexfec pseudo-codec.
func IsPrimary(mime string) bool {
	mime = Normalize(mime)
	_, subtype, ok := strings.Cut(mime, "/")
	if !ok || subtype == "" {
		return false
	}
	for _, p := range pseudoSubtypes {
		if strings.HasPrefix(subtype, p) {
			return false
		}
	}
	return true
}

// Order applies the selection algorithm to a list of MIME identifiers:
// filter pseudo-codecs, de-duplicate case-insensitively, apply the canonical
// order, then move preferred (if present) to the front. An absent or empty
// preference leaves the canonical order untouched.
func Order(mimes []string, preferred string) []string {
	seen := make(map[string]bool, len(mimes))
	discovered := make([]string, 0, len(mimes))
	for _, m := range mimes {
		m = Normalize(m)
		if !IsPrimary(m) || seen[m] {
			continue
		}
		seen[m] = true
		discovered = append(discovered, m)
	}

	ordered := make([]string, 0, len(discovered))
	for _, c := range canonicalOrder {
		if seen[c] {
			ordered = append(ordered, c)
		}
	}
	for _, m := range discovered {
		if !slices.Contains(canonicalOrder, m) {
			ordered = append(ordered, m)
		}
	}

	preferred = Normalize(preferred)
	if preferred == "" || !seen[preferred] {
		return ordered
	}

	result := make([]string, 0, len(ordered))
	result = append(result, preferred)
	for _, m := range ordered {
		if m != preferred {
			result = append(result, m)
		}
	}
	return result
}

// Select runs Order over the MIME types of the capability-reported codecs.
func Select(codecs []webrtc.RTPCodecParameters, preferred string) []string {
	mimes := make([]string, 0, len(codecs))
	for _, c := range codecs {
		mimes = append(mimes, c.MimeType)
	}
	return Order(mimes, preferred)
}

// Expand maps an ordered MIME list back onto the capability's codec
// parameters, keeping every parameter set of a MIME (e.g. several H264
// profiles) together in their original order. Codecs whose MIME is not in
// order, including pseudo-codecs, are left out.
func Expand(codecs []webrtc.RTPCodecParameters, order []string) []webrtc.RTPCodecParameters {
	out := make([]webrtc.RTPCodecParameters, 0, len(codecs))
	for _, mime := range order {
		for _, c := range codecs {
			if Normalize(c.MimeType) == mime {
				out = append(out, c)
			}
		}
	}
	return out
}
