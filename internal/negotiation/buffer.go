package negotiation

import "github.com/pion/webrtc/v4"

// candidateSink is anything that accepts remote ICE candidates.
type candidateSink interface {
	AddICECandidate(candidate webrtc.ICECandidateInit) error
}

// CandidateBuffer holds remote candidates that arrived before the remote
// description was applied. It is FIFO and owned by a single session.
type CandidateBuffer struct {
	items []webrtc.ICECandidateInit
}

// Append queues a candidate. It always succeeds.
func (b *CandidateBuffer) Append(c webrtc.ICECandidateInit) {
	b.items = append(b.items, c)
}

// Len returns the number of buffered candidates.
func (b *CandidateBuffer) Len() int {
	return len(b.items)
}

// DrainInto applies every buffered candidate to sink in insertion order and
// empties the buffer. It stops at the first rejection and returns how many
// candidates were applied; the buffer is emptied either way. Draining an
// empty buffer is a no-op.
func (b *CandidateBuffer) DrainInto(sink candidateSink) (int, error) {
	items := b.items
	b.items = nil

	for i, c := range items {
		if err := sink.AddICECandidate(c); err != nil {
			return i, err
		}
	}
	return len(items), nil
}

// Clear drops every buffered candidate.
func (b *CandidateBuffer) Clear() {
	b.items = nil
}
