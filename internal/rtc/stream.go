package rtc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StreamMode controls how remote tracks are grouped for playback.
type StreamMode string

const (
	// StreamShared attaches every track to one stream created with the
	// session.
	StreamShared StreamMode = "shared"
	// StreamRebuild creates a new stream holding all tracks so far each time
	// a track arrives. Some players only pick up tracks on a fresh stream.
	StreamRebuild StreamMode = "rebuild"
)

// ParseStreamMode validates a configured mode. Empty means StreamShared.
func ParseStreamMode(s string) (StreamMode, error) {
	switch StreamMode(s) {
	case "", StreamShared:
		return StreamShared, nil
	case StreamRebuild:
		return StreamRebuild, nil
	default:
		return "", fmt.Errorf("invalid stream mode %q: must be 'shared' or 'rebuild'", s)
	}
}

// streamCollector accumulates the remote tracks of one session.
type streamCollector struct {
	mode StreamMode

	mu     sync.Mutex
	id     string
	tracks []string
}

func newStreamCollector(mode StreamMode) *streamCollector {
	return &streamCollector{mode: mode, id: uuid.NewString()}
}

// add records trackID and returns the stream it now belongs to together with
// a snapshot of that stream's tracks.
func (s *streamCollector) add(trackID string) (string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracks = append(s.tracks, trackID)
	if s.mode == StreamRebuild {
		s.id = uuid.NewString()
	}
	return s.id, append([]string(nil), s.tracks...)
}
