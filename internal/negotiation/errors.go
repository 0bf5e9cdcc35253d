package negotiation

import "errors"

var (
	// ErrCapability wraps every failure reported by the PeerConnection.
	ErrCapability = errors.New("peer connection capability failed")

	// ErrStepTimeout is reported when an SDP step exceeds the configured
	// step timeout.
	ErrStepTimeout = errors.New("negotiation step timed out")

	// ErrMachineStopped is returned by Run when it is called a second time.
	ErrMachineStopped = errors.New("negotiation machine already stopped")
)
