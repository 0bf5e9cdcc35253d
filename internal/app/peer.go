package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
	"golang.org/x/sync/errgroup"

	"github.com/1ureka/peerlink/internal/codecpref"
	"github.com/1ureka/peerlink/internal/config"
	"github.com/1ureka/peerlink/internal/negotiation"
	"github.com/1ureka/peerlink/internal/rtc"
	"github.com/1ureka/peerlink/internal/signaling"
	"github.com/1ureka/peerlink/internal/util"
)

// Peer wires the relay client, the pion factory and the negotiation machine
// together.
type Peer struct {
	cfg     *config.Config
	client  *signaling.Client
	factory *rtc.Factory
	machine *negotiation.Machine
	codecs  []string
}

// DialPeer connects to the relay and prepares (but does not start) the
// negotiation machine.
func DialPeer(ctx context.Context, cfg *config.Config) (*Peer, error) {
	mode, err := rtc.ParseStreamMode(cfg.WebRTC.StreamMode)
	if err != nil {
		return nil, err
	}

	factory, err := rtc.NewFactory(rtc.Options{
		STUNServers: cfg.WebRTC.STUNServers,
		StreamMode:  mode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize WebRTC: %w", err)
	}

	util.LogInfo("connecting to relay...")
	client, err := signaling.Connect(ctx, cfg.Peer.URL)
	if err != nil {
		return nil, err
	}
	util.LogSuccess("connected to relay")

	p := &Peer{cfg: cfg, client: client, factory: factory}

	p.codecs = codecpref.Select(factory.Codecs(webrtc.RTPCodecTypeVideo), "")
	preferred := codecpref.DefaultPreference(p.codecs, cfg.Peer.Codec)
	if cfg.Peer.Codec != "" && preferred != codecpref.Normalize(cfg.Peer.Codec) {
		util.LogWarning("codec %q is not available, using %s", cfg.Peer.Codec, codecpref.Label(preferred))
	}
	util.LogInfo("video codecs: %s (preferred: %s)", p.codecLabels(), codecpref.Label(preferred))

	p.machine = negotiation.New(factory.New, client,
		negotiation.WithObserver(p.observe),
		negotiation.WithPreferredCodec(preferred),
		negotiation.WithStepTimeout(cfg.Peer.StepTimeout),
	)
	return p, nil
}

// Machine returns the negotiation machine driven by the peer.
func (p *Peer) Machine() *negotiation.Machine { return p.machine }

// Run drives the machine and the relay read loop until ctx is cancelled or
// the relay goes away. The active session is closed and the peer notified
// before the relay connection is released.
func (p *Peer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := p.machine.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := p.client.Watch(p.machine.HandleMessage)
		p.machine.TransportClosed(err)
		if gctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("relay connection lost: %w", err)
	})

	g.Go(func() error {
		<-p.machine.Done()
		return p.client.Close()
	})

	if p.cfg.Peer.Offer {
		p.machine.Connect()
	}

	return g.Wait()
}

// observe turns lifecycle events into counters and status lines. It runs on
// the machine's control loop.
func (p *Peer) observe(ev negotiation.Event) {
	switch ev.Kind {
	case negotiation.EventSessionCreated:
		util.Stats.AddSession()
	case negotiation.EventClosed:
		util.Stats.AddTeardown()
	case negotiation.EventCandidateSent:
		util.Stats.AddCandidateSent()
	case negotiation.EventCandidateBuffered, negotiation.EventCandidateApplied:
		util.Stats.AddCandidateRecv()
	case negotiation.EventICEState:
		switch ev.ICEState {
		case webrtc.ICEConnectionStateConnected:
			util.LogSuccess("peer connected (session #%d)", ev.Generation)
		case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateFailed:
			util.LogWarning("peer %s (session #%d)", ev.ICEState, ev.Generation)
		}
	case negotiation.EventTrack:
		util.LogDebug("stream %s now has %d tracks", ev.Track.StreamID[:8], len(ev.Track.Stream))
	}
}

func (p *Peer) codecLabels() string {
	labels := make([]string, 0, len(p.codecs))
	for _, c := range p.codecs {
		labels = append(labels, codecpref.Label(c))
	}
	return strings.Join(labels, ", ")
}

// RunPeer dials the relay, starts the console on the given input and runs
// until ctx is cancelled.
func RunPeer(ctx context.Context, cfg *config.Config, console *Console) error {
	p, err := DialPeer(ctx, cfg)
	if err != nil {
		return err
	}

	util.StartStatsReporter(ctx, cfg.StatsInterval)
	if console != nil {
		go console.Serve(ctx, p)
	}
	return p.Run(ctx)
}
