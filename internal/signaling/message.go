// Package signaling handles the wire format and the WebSocket relay used to
// exchange SDP and ICE candidates between two peers.
package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "candidate"
	MsgTypeClose     MessageType = "close"
)

var (
	// ErrUnknownType is returned by Decode when the "type" discriminator is not
	// one of the four known kinds. The message should be discarded, not fatal.
	ErrUnknownType = errors.New("unknown signaling message type")

	// ErrMalformed is returned by Decode when the payload is not valid JSON or
	// a known type is missing its required field.
	ErrMalformed = errors.New("malformed signaling message")
)

// Message is the JSON structure exchanged over the relay. Exactly one of SDP
// (offer/answer) or ICE (candidate) is populated; close carries neither.
type Message struct {
	Type MessageType              `json:"type"`
	SDP  string                   `json:"sdp,omitempty"`
	ICE  *webrtc.ICECandidateInit `json:"ice,omitempty"`
}

// OfferMessage wraps an offer description.
func OfferMessage(desc webrtc.SessionDescription) Message {
	return Message{Type: MsgTypeOffer, SDP: desc.SDP}
}

// AnswerMessage wraps an answer description.
func AnswerMessage(desc webrtc.SessionDescription) Message {
	return Message{Type: MsgTypeAnswer, SDP: desc.SDP}
}

// CandidateMessage wraps a local ICE candidate.
func CandidateMessage(c webrtc.ICECandidateInit) Message {
	return Message{Type: MsgTypeCandidate, ICE: &c}
}

// CloseMessage returns the peer teardown notification.
func CloseMessage() Message {
	return Message{Type: MsgTypeClose}
}

// SessionDescription converts an offer or answer message back into a pion
// description. The boolean is false for candidate and close messages.
func (m Message) SessionDescription() (webrtc.SessionDescription, bool) {
	switch m.Type {
	case MsgTypeOffer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: m.SDP}, true
	case MsgTypeAnswer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: m.SDP}, true
	default:
		return webrtc.SessionDescription{}, false
	}
}

// Encode serializes a Message for the relay.
func Encode(msg Message) ([]byte, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// Decode parses an inbound relay payload. Unrecognized types yield
// ErrUnknownType; the caller logs and drops them and keeps the channel open.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := msg.validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (m Message) validate() error {
	switch m.Type {
	case MsgTypeOffer, MsgTypeAnswer:
		if m.SDP == "" {
			return fmt.Errorf("%w: %s without sdp", ErrMalformed, m.Type)
		}
	case MsgTypeCandidate:
		if m.ICE == nil {
			return fmt.Errorf("%w: candidate without ice", ErrMalformed)
		}
	case MsgTypeClose:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, string(m.Type))
	}
	return nil
}
