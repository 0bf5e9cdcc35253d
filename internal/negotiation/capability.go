package negotiation

import "github.com/pion/webrtc/v4"

// PeerConnection is the media/transport capability the machine drives. One
// instance backs exactly one session; the machine never reuses it after Close.
//
// Implementations must be safe for concurrent use: SDP steps run on their own
// goroutine while candidates may be applied from the control loop.
type PeerConnection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	// Capabilities lists the codecs the connection can negotiate for kind,
	// possibly including rtx/red/fec pseudo-codecs.
	Capabilities(kind webrtc.RTPCodecType) []webrtc.RTPCodecParameters
	// SetCodecPreferences orders the codecs offered for kind.
	SetCodecPreferences(kind webrtc.RTPCodecType, codecs []webrtc.RTPCodecParameters) error

	// OnICECandidate registers the local candidate callback. A nil candidate
	// signals the end of gathering.
	OnICECandidate(fn func(*webrtc.ICECandidateInit))
	OnTrack(fn func(Track))
	OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState))

	// Close releases the connection. Closing twice is a no-op.
	Close() error
}

// Factory creates a fresh PeerConnection for a new session.
type Factory func() (PeerConnection, error)

// Track describes a remote media track surfaced by the capability.
type Track struct {
	ID    string
	Kind  webrtc.RTPCodecType
	Codec string

	// StreamID identifies the local stream the track was attached to, and
	// Stream lists every track in it so far, including this one.
	StreamID string
	Stream   []string
}

// Relay is the outbound half of the signaling channel to the remote peer.
type Relay interface {
	Send(data []byte) error
	IsOpen() bool
}
