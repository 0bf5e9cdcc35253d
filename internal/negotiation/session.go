package negotiation

import (
	"fmt"
	"sync/atomic"
)

// Role is the negotiation role of a session.
type Role int

const (
	RoleUnset Role = iota
	RoleOfferer
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	default:
		return "unset"
	}
}

// State is the machine's position in Idle → Negotiating → Connected.
// Closed is terminal and only reached when the machine stops.
type State int32

const (
	StateIdle State = iota
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// step is an asynchronous capability call in flight.
type step int

const (
	stepNone step = iota
	stepCreateOffer
	stepSetLocalOffer
	stepSetRemoteOffer
	stepCreateAnswer
	stepSetLocalAnswer
	stepSetRemoteAnswer
)

func (s step) String() string {
	switch s {
	case stepCreateOffer:
		return "CreateOffer"
	case stepSetLocalOffer:
		return "SetLocalDescription(offer)"
	case stepSetRemoteOffer:
		return "SetRemoteDescription(offer)"
	case stepCreateAnswer:
		return "CreateAnswer"
	case stepSetLocalAnswer:
		return "SetLocalDescription(answer)"
	case stepSetRemoteAnswer:
		return "SetRemoteDescription(answer)"
	default:
		return "none"
	}
}

// session is the live aggregate for one connection attempt. It is owned by
// the control loop; only gen is read from capability callbacks.
type session struct {
	gen  uint64
	role Role
	pc   PeerConnection

	candidates    CandidateBuffer
	remoteApplied bool

	// codecs is the video codec order chosen when the session was created.
	codecs []string

	pending step
	seq     uint64

	closed atomic.Bool
}

// close releases the capability. Only the first call reaches it.
func (s *session) close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.pc.Close()
}
