// Package rtc is the pion-backed PeerConnection used by the negotiation
// machine. Each session gets a fresh connection with a "serial" data channel
// and receive-only video and audio transceivers.
package rtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peerlink/internal/negotiation"
)

// DefaultSTUNServers are used when no ICE servers are configured. No TURN:
// the tool targets direct P2P connectivity.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Options configures every connection created by a Factory.
type Options struct {
	STUNServers []string
	StreamMode  StreamMode

	// OnText is called for every text message received on the data channel.
	OnText func(text string)
}

// Factory builds PeerConnections that share one pion API (media engine,
// interceptors and setting engine). It also tracks the most recent
// connection so text can be sent on its data channel.
type Factory struct {
	api    *webrtc.API
	codecs []codecEntry
	opts   Options

	mu      sync.Mutex
	current *Conn
}

// NewFactory registers the codec table and builds the pion API.
func NewFactory(opts Options) (*Factory, error) {
	if len(opts.STUNServers) == 0 {
		opts.STUNServers = DefaultSTUNServers
	}
	if opts.StreamMode == "" {
		opts.StreamMode = StreamShared
	}

	m := &webrtc.MediaEngine{}
	codecs := defaultCodecs()
	for _, c := range codecs {
		if err := m.RegisterCodec(c.params, c.kind); err != nil {
			return nil, fmt.Errorf("failed to register codec %s: %w", c.params.MimeType, err)
		}
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	s := webrtc.SettingEngine{LoggerFactory: loggerFactory{}}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(s),
	)

	return &Factory{api: api, codecs: codecs, opts: opts}, nil
}

// New creates a connection for a new session. It satisfies
// negotiation.Factory.
func (f *Factory) New() (negotiation.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: f.opts.STUNServers}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PeerConnection: %w", err)
	}

	c, err := newConn(pc, f)
	if err != nil {
		return nil, errors.Join(err, pc.Close())
	}

	f.mu.Lock()
	f.current = c
	f.mu.Unlock()
	return c, nil
}

// Current returns the most recently created connection, or nil.
func (f *Factory) Current() *Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// SendText sends text on the current connection's data channel. Empty text
// is ignored.
func (f *Factory) SendText(text string) error {
	if text == "" {
		return nil
	}
	c := f.Current()
	if c == nil {
		return ErrChannelNotOpen
	}
	return c.SendText(text)
}

// Codecs lists the registered codecs of kind in registration order.
func (f *Factory) Codecs(kind webrtc.RTPCodecType) []webrtc.RTPCodecParameters {
	var out []webrtc.RTPCodecParameters
	for _, c := range f.codecs {
		if c.kind == kind {
			out = append(out, c.params)
		}
	}
	return out
}
