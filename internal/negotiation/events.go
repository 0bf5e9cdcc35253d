package negotiation

import "github.com/pion/webrtc/v4"

// EventKind identifies a lifecycle notification.
type EventKind int

const (
	EventSessionCreated EventKind = iota + 1
	EventDescriptionApplied
	EventCandidateBuffered
	EventCandidateApplied
	EventCandidateSent
	EventConnected
	EventClosed
	EventError
	EventWarning
	EventICEState
	EventTrack
)

var eventKindNames = map[EventKind]string{
	EventSessionCreated:     "session-created",
	EventDescriptionApplied: "description-applied",
	EventCandidateBuffered:  "candidate-buffered",
	EventCandidateApplied:   "candidate-applied",
	EventCandidateSent:      "candidate-sent",
	EventConnected:          "connected",
	EventClosed:             "closed",
	EventError:              "error",
	EventWarning:            "warning",
	EventICEState:           "ice-state",
	EventTrack:              "track",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one lifecycle notification. Role, State and Generation always
// describe the machine right after the transition; the remaining fields are
// set depending on Kind.
type Event struct {
	Kind       EventKind
	Generation uint64
	Role       Role
	State      State

	// EventDescriptionApplied
	Local   bool
	SDPType webrtc.SDPType

	// EventCandidate*
	Candidate *webrtc.ICECandidateInit

	// EventICEState
	ICEState webrtc.ICEConnectionState

	// EventTrack
	Track *Track

	// EventError, EventWarning, EventClosed
	Err    error
	Reason string
}

// Observer receives lifecycle events. The negotiation core renders nothing;
// status displays and metrics hang off this hook.
type Observer func(Event)
