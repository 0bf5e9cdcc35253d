package rtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peerlink/internal/negotiation"
	"github.com/1ureka/peerlink/internal/util"
)

// Conn is one pion PeerConnection plus its data channel and receive-only
// transceivers. It implements negotiation.PeerConnection.
type Conn struct {
	pc           *webrtc.PeerConnection
	factory      *Factory
	channel      *channel
	streams      *streamCollector
	transceivers map[webrtc.RTPCodecType]*webrtc.RTPTransceiver

	closeOnce sync.Once
	closeErr  error
}

var _ negotiation.PeerConnection = (*Conn)(nil)

func newConn(pc *webrtc.PeerConnection, f *Factory) (*Conn, error) {
	ch, err := newChannel(pc, f.opts.OnText)
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}

	c := &Conn{
		pc:           pc,
		factory:      f,
		channel:      ch,
		streams:      newStreamCollector(f.opts.StreamMode),
		transceivers: make(map[webrtc.RTPCodecType]*webrtc.RTPTransceiver, 2),
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		tr, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}
		c.transceivers[kind] = tr
	}

	return c, nil
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

func (c *Conn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *Conn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *Conn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *Conn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *Conn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Codecs
// ---------------------------------------------------------------------------

// Capabilities returns the registered codecs for kind in registration order.
func (c *Conn) Capabilities(kind webrtc.RTPCodecType) []webrtc.RTPCodecParameters {
	return c.factory.Codecs(kind)
}

// SetCodecPreferences orders the codecs of the kind's transceiver.
func (c *Conn) SetCodecPreferences(kind webrtc.RTPCodecType, codecs []webrtc.RTPCodecParameters) error {
	tr, ok := c.transceivers[kind]
	if !ok {
		return fmt.Errorf("no %s transceiver", kind)
	}
	return tr.SetCodecPreferences(codecs)
}

// ---------------------------------------------------------------------------
// Callbacks
// ---------------------------------------------------------------------------

// OnICECandidate forwards local candidates in their JSON form. A nil
// candidate marks the end of gathering.
func (c *Conn) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			fn(nil)
			return
		}
		init := cand.ToJSON()
		fn(&init)
	})
}

// OnTrack reports every remote track after adding it to the session's
// stream. The track's RTP is drained so the receive buffers never stall.
func (c *Conn) OnTrack(fn func(negotiation.Track)) {
	c.pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		streamID, tracks := c.streams.add(remote.ID())
		fn(negotiation.Track{
			ID:       remote.ID(),
			Kind:     remote.Kind(),
			Codec:    remote.Codec().MimeType,
			StreamID: streamID,
			Stream:   tracks,
		})

		go drain(remote)
	})
}

func (c *Conn) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	c.pc.OnICEConnectionStateChange(fn)
}

// ---------------------------------------------------------------------------
// Data & lifecycle
// ---------------------------------------------------------------------------

// SendText sends text on the "serial" data channel.
func (c *Conn) SendText(text string) error {
	return c.channel.sendText(text)
}

// Close shuts down the PeerConnection, which also closes the data channel.
// Safe to call multiple times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.pc.Close()
	})
	return c.closeErr
}

func drain(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			util.LogDebug("remote track %s ended: %v", track.ID(), err)
			return
		}
	}
}
