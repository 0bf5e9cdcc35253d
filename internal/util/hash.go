// Package util provides shared utility functions.
package util

import "hash/fnv"

// Fingerprint computes a 4-byte hash of an SDP (or any opaque payload) so logs
// can tell descriptions apart without dumping them. It is not reversible.
func Fingerprint(payload string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(payload))
	return h.Sum32()
}
