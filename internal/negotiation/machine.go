// Package negotiation sequences the offer/answer/candidate exchange for one
// peer-to-peer session at a time.
//
// All mutation happens on a single control loop (Run); public methods only
// enqueue events. Capability callbacks and SDP step completions come back
// through the same queue, tagged with the session generation that started
// them. Anything tagged with a stale generation or step is dropped.
package negotiation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peerlink/internal/codecpref"
	"github.com/1ureka/peerlink/internal/signaling"
	"github.com/1ureka/peerlink/internal/util"
)

// Machine is the negotiation state machine. Create it with New and drive it
// with Run.
type Machine struct {
	cfg   *config
	newPC Factory
	relay Relay

	events  chan any
	stopped chan struct{}
	started atomic.Bool
	state   atomic.Int32

	// Owned by the control loop.
	session    *session
	generation uint64
	preferred  string
}

// Loop events.
type (
	connectEvent         struct{}
	disconnectEvent      struct{}
	inboundEvent         struct{ data []byte }
	transportClosedEvent struct{ err error }
	preferenceEvent      struct{ mime string }

	localCandidateEvent struct {
		gen       uint64
		candidate *webrtc.ICECandidateInit
	}
	iceStateEvent struct {
		gen   uint64
		state webrtc.ICEConnectionState
	}
	trackEvent struct {
		gen   uint64
		track Track
	}
	stepDoneEvent struct {
		gen, seq uint64
		step     step
		desc     webrtc.SessionDescription
		err      error
	}
	stepTimeoutEvent struct {
		gen, seq uint64
		step     step
	}
)

// New creates an idle machine. newPC is called once per session; relay
// carries encoded signaling messages to the remote peer.
func New(newPC Factory, relay Relay, options ...Option) *Machine {
	cfg := defaultConfig()
	for _, o := range options {
		o(cfg)
	}

	return &Machine{
		cfg:       cfg,
		newPC:     newPC,
		relay:     relay,
		events:    make(chan any, cfg.queueSize),
		stopped:   make(chan struct{}),
		preferred: cfg.preferred,
	}
}

// ---------------------------------------------------------------------------
// Public API (safe from any goroutine)
// ---------------------------------------------------------------------------

// Connect starts a session as offerer. Ignored unless the machine is idle.
func (m *Machine) Connect() { m.post(connectEvent{}) }

// Disconnect tears down the active session and notifies the peer.
func (m *Machine) Disconnect() { m.post(disconnectEvent{}) }

// HandleMessage feeds one raw relay payload into the machine. Messages are
// processed in the order HandleMessage is called.
func (m *Machine) HandleMessage(data []byte) { m.post(inboundEvent{data: data}) }

// TransportClosed reports that the relay failed or closed. The active session
// is torn down as if the peer had sent close.
func (m *Machine) TransportClosed(err error) { m.post(transportClosedEvent{err: err}) }

// SetPreferredCodec changes the preferred video codec. It takes effect when
// the next session is created.
func (m *Machine) SetPreferredCodec(mime string) { m.post(preferenceEvent{mime: mime}) }

// State returns the current state.
func (m *Machine) State() State { return State(m.state.Load()) }

// Done is closed once Run has returned.
func (m *Machine) Done() <-chan struct{} { return m.stopped }

// Run processes events until ctx is cancelled. On exit any active session is
// closed, the peer is notified, and the machine enters StateClosed.
// Run may only be called once.
func (m *Machine) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrMachineStopped
	}
	defer close(m.stopped)

	for {
		select {
		case ev := <-m.events:
			m.dispatch(ev)

		case <-ctx.Done():
			m.teardown(true, "shutdown")
			m.setState(StateClosed)
			return ctx.Err()
		}
	}
}

// post enqueues an event. It gives up once the loop has stopped so that late
// capability callbacks never block.
func (m *Machine) post(ev any) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.stopped:
		return false
	}
}

func (m *Machine) dispatch(ev any) {
	switch ev := ev.(type) {
	case connectEvent:
		m.connect()
	case disconnectEvent:
		m.disconnect()
	case inboundEvent:
		m.onInbound(ev.data)
	case transportClosedEvent:
		util.LogWarning("relay transport closed: %v", ev.err)
		m.onRemoteClose("relay transport closed")
	case preferenceEvent:
		m.preferred = ev.mime
		util.LogDebug("preferred codec set to %q (applies to next session)", ev.mime)
	case localCandidateEvent:
		m.onLocalCandidate(ev)
	case iceStateEvent:
		m.onICEState(ev)
	case trackEvent:
		m.onTrack(ev)
	case stepDoneEvent:
		m.onStepDone(ev)
	case stepTimeoutEvent:
		m.onStepTimeout(ev)
	case func():
		ev()
	}
}

// ---------------------------------------------------------------------------
// Local operations
// ---------------------------------------------------------------------------

func (m *Machine) connect() {
	if m.session != nil {
		m.warn(nil, "peer connection already exists")
		return
	}

	s := m.newSession(RoleOfferer)
	if s == nil {
		return
	}
	m.spawn(s, stepCreateOffer, s.pc.CreateOffer)
}

func (m *Machine) disconnect() {
	if m.session == nil {
		util.LogInfo("peer connection is closed")
		return
	}
	m.teardown(true, "local disconnect")
}

// ---------------------------------------------------------------------------
// Inbound messages
// ---------------------------------------------------------------------------

func (m *Machine) onInbound(data []byte) {
	msg, err := signaling.Decode(data)
	if err != nil {
		m.warn(err, "discarding signaling message")
		return
	}

	switch msg.Type {
	case signaling.MsgTypeOffer:
		desc, _ := msg.SessionDescription()
		m.onRemoteOffer(desc)
	case signaling.MsgTypeAnswer:
		desc, _ := msg.SessionDescription()
		m.onRemoteAnswer(desc)
	case signaling.MsgTypeCandidate:
		m.onRemoteCandidate(*msg.ICE)
	case signaling.MsgTypeClose:
		m.onRemoteClose("closed by peer")
	}
}

// onRemoteOffer always wins: any existing session is replaced.
func (m *Machine) onRemoteOffer(desc webrtc.SessionDescription) {
	util.LogInfo("received offer [%08x]", util.Fingerprint(desc.SDP))

	if m.session != nil {
		util.LogWarning("peer connection already exists, replacing it with a new one")
		m.teardown(false, "replaced by remote offer")
	}

	s := m.newSession(RoleAnswerer)
	if s == nil {
		return
	}
	m.spawn(s, stepSetRemoteOffer, func() (webrtc.SessionDescription, error) {
		return desc, s.pc.SetRemoteDescription(desc)
	})
}

func (m *Machine) onRemoteAnswer(desc webrtc.SessionDescription) {
	util.LogInfo("received answer [%08x]", util.Fingerprint(desc.SDP))

	s := m.session
	switch {
	case s == nil:
		m.warn(nil, "answer without an active session")
		return
	case s.role != RoleOfferer:
		m.warn(nil, "answer received while acting as answerer")
		return
	case s.remoteApplied:
		m.warn(nil, "duplicate answer")
		return
	case s.pending != stepNone:
		m.warn(nil, fmt.Sprintf("answer received during %s", s.pending))
		return
	}

	m.spawn(s, stepSetRemoteAnswer, func() (webrtc.SessionDescription, error) {
		return desc, s.pc.SetRemoteDescription(desc)
	})
}

func (m *Machine) onRemoteCandidate(c webrtc.ICECandidateInit) {
	s := m.session
	if s == nil {
		m.warn(nil, "candidate without an active session")
		return
	}

	if !s.remoteApplied {
		s.candidates.Append(c)
		util.LogDebug("buffered remote candidate (%d pending)", s.candidates.Len())
		m.emit(Event{Kind: EventCandidateBuffered, Candidate: &c})
		return
	}

	if err := s.pc.AddICECandidate(c); err != nil {
		m.fail(s, fmt.Errorf("AddICECandidate: %w", err))
		return
	}
	m.emit(Event{Kind: EventCandidateApplied, Candidate: &c})
}

func (m *Machine) onRemoteClose(reason string) {
	if m.session == nil {
		util.LogDebug("%s with no active session, nothing to do", reason)
		return
	}
	m.teardown(false, reason)
}

// ---------------------------------------------------------------------------
// Capability callbacks
// ---------------------------------------------------------------------------

func (m *Machine) onLocalCandidate(ev localCandidateEvent) {
	s := m.current(ev.gen)
	if s == nil {
		return
	}
	if ev.candidate == nil || ev.candidate.Candidate == "" {
		util.LogDebug("empty ice event, gathering complete")
		return
	}

	m.send(signaling.CandidateMessage(*ev.candidate))
	m.emit(Event{Kind: EventCandidateSent, Candidate: ev.candidate})
}

func (m *Machine) onICEState(ev iceStateEvent) {
	if m.current(ev.gen) == nil {
		return
	}
	util.LogInfo("ICE connection state has changed to %s", ev.state)
	m.emit(Event{Kind: EventICEState, ICEState: ev.state})
}

func (m *Machine) onTrack(ev trackEvent) {
	if m.current(ev.gen) == nil {
		return
	}
	util.LogInfo("remote %s track %s (%s)", ev.track.Kind, ev.track.ID, ev.track.Codec)
	track := ev.track
	m.emit(Event{Kind: EventTrack, Track: &track})
}

// ---------------------------------------------------------------------------
// Asynchronous steps
// ---------------------------------------------------------------------------

// spawn runs fn off the loop and reports its result as a stepDoneEvent.
// Starting a step supersedes any previous one for the session.
func (m *Machine) spawn(s *session, st step, fn func() (webrtc.SessionDescription, error)) {
	s.seq++
	s.pending = st
	gen, seq := s.gen, s.seq

	go func() {
		desc, err := fn()
		m.post(stepDoneEvent{gen: gen, seq: seq, step: st, desc: desc, err: err})
	}()

	if m.cfg.stepTimeout > 0 {
		time.AfterFunc(m.cfg.stepTimeout, func() {
			m.post(stepTimeoutEvent{gen: gen, seq: seq, step: st})
		})
	}
}

func (m *Machine) onStepDone(ev stepDoneEvent) {
	s := m.session
	if s == nil || s.gen != ev.gen || s.seq != ev.seq {
		util.LogDebug("discarding stale %s completion (generation %d)", ev.step, ev.gen)
		return
	}
	s.pending = stepNone

	if ev.err != nil {
		m.fail(s, fmt.Errorf("%s: %w", ev.step, ev.err))
		return
	}

	switch ev.step {
	case stepCreateOffer:
		offer := ev.desc
		m.spawn(s, stepSetLocalOffer, func() (webrtc.SessionDescription, error) {
			return offer, s.pc.SetLocalDescription(offer)
		})

	case stepSetLocalOffer:
		m.emit(Event{Kind: EventDescriptionApplied, Local: true, SDPType: webrtc.SDPTypeOffer})
		util.LogInfo("sending offer [%08x]", util.Fingerprint(ev.desc.SDP))
		m.send(signaling.OfferMessage(ev.desc))

	case stepSetRemoteOffer:
		if !m.remoteApplied(s, webrtc.SDPTypeOffer) {
			return
		}
		m.spawn(s, stepCreateAnswer, s.pc.CreateAnswer)

	case stepCreateAnswer:
		answer := ev.desc
		m.spawn(s, stepSetLocalAnswer, func() (webrtc.SessionDescription, error) {
			return answer, s.pc.SetLocalDescription(answer)
		})

	case stepSetLocalAnswer:
		m.emit(Event{Kind: EventDescriptionApplied, Local: true, SDPType: webrtc.SDPTypeAnswer})
		util.LogInfo("sending answer [%08x]", util.Fingerprint(ev.desc.SDP))
		m.send(signaling.AnswerMessage(ev.desc))
		m.connected()

	case stepSetRemoteAnswer:
		if !m.remoteApplied(s, webrtc.SDPTypeAnswer) {
			return
		}
		m.connected()
	}
}

func (m *Machine) onStepTimeout(ev stepTimeoutEvent) {
	s := m.session
	if s == nil || s.gen != ev.gen || s.seq != ev.seq || s.pending == stepNone {
		return
	}
	m.fail(s, fmt.Errorf("%s after %s: %w", ev.step, m.cfg.stepTimeout, ErrStepTimeout))
}

// remoteApplied marks the remote description as set and drains the buffered
// candidates. It returns false if draining failed and the session is gone.
func (m *Machine) remoteApplied(s *session, typ webrtc.SDPType) bool {
	s.remoteApplied = true
	m.emit(Event{Kind: EventDescriptionApplied, SDPType: typ})

	n, err := s.candidates.DrainInto(s.pc)
	if err != nil {
		m.fail(s, fmt.Errorf("AddICECandidate (buffered #%d): %w", n+1, err))
		return false
	}
	if n > 0 {
		util.LogDebug("applied %d buffered candidates", n)
	}
	return true
}

func (m *Machine) connected() {
	m.setState(StateConnected)
	util.LogSuccess("signaling complete as %s", m.session.role)
	m.emit(Event{Kind: EventConnected})
}

// ---------------------------------------------------------------------------
// Session lifecycle
// ---------------------------------------------------------------------------

// newSession replaces any active session with a fresh one. It returns nil if
// the capability could not be created.
func (m *Machine) newSession(role Role) *session {
	m.teardown(false, "replaced")

	pc, err := m.newPC()
	if err != nil {
		m.report(fmt.Errorf("%w: create peer connection: %w", ErrCapability, err))
		return nil
	}

	m.generation++
	s := &session{gen: m.generation, role: role, pc: pc}
	gen := s.gen

	pc.OnICECandidate(func(c *webrtc.ICECandidateInit) {
		m.post(localCandidateEvent{gen: gen, candidate: c})
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		m.post(iceStateEvent{gen: gen, state: state})
	})
	pc.OnTrack(func(t Track) {
		m.post(trackEvent{gen: gen, track: t})
	})

	m.session = s
	m.applyCodecPreferences(s)
	m.setState(StateNegotiating)

	util.LogInfo("new session #%d as %s", s.gen, role)
	m.emit(Event{Kind: EventSessionCreated})
	return s
}

// applyCodecPreferences fixes the session's video codec order. A capability
// that refuses the preference is not fatal; the offer uses its defaults.
func (m *Machine) applyCodecPreferences(s *session) {
	caps := s.pc.Capabilities(webrtc.RTPCodecTypeVideo)
	s.codecs = codecpref.Select(caps, m.preferred)
	if len(s.codecs) == 0 {
		return
	}

	if err := s.pc.SetCodecPreferences(webrtc.RTPCodecTypeVideo, codecpref.Expand(caps, s.codecs)); err != nil {
		m.warn(err, "codec preferences not applied")
		return
	}
	util.LogDebug("video codec preference: %v", s.codecs)
}

// teardown closes the active session, if any, and returns to idle.
// sendClose notifies the peer when the relay is still open.
func (m *Machine) teardown(sendClose bool, reason string) {
	s := m.session
	if s == nil {
		return
	}

	if err := s.close(); err != nil {
		util.LogWarning("close() error: %v", err)
	}
	s.candidates.Clear()
	s.remoteApplied = false

	if sendClose && m.relay.IsOpen() {
		util.LogInfo("sending close message")
		m.send(signaling.CloseMessage())
	}

	m.setState(StateIdle)
	util.LogInfo("session #%d closed: %s", s.gen, reason)
	m.emit(Event{Kind: EventClosed, Generation: s.gen, Role: s.role, Reason: reason})
	m.session = nil
}

// fail handles a capability failure: the session is torn down and the error
// is reported. It is never retried.
func (m *Machine) fail(s *session, err error) {
	if m.session != s {
		return
	}
	m.report(fmt.Errorf("%w: %w", ErrCapability, err))
	m.teardown(false, "capability failure")
}

// current returns the active session if it matches gen.
func (m *Machine) current(gen uint64) *session {
	if m.session == nil || m.session.gen != gen {
		return nil
	}
	return m.session
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (m *Machine) send(msg signaling.Message) {
	data, err := signaling.Encode(msg)
	if err != nil {
		util.LogError("failed to encode %s message: %v", msg.Type, err)
		return
	}
	if !m.relay.IsOpen() {
		util.LogWarning("relay is closed, dropping %s message", msg.Type)
		return
	}
	if err := m.relay.Send(data); err != nil {
		util.LogWarning("failed to send %s message: %v", msg.Type, err)
	}
}

func (m *Machine) setState(s State) {
	m.state.Store(int32(s))
}

// emit fills in the common fields and hands the event to the observer.
// Closed events carry the generation and role of the session that ended.
func (m *Machine) emit(ev Event) {
	ev.State = m.State()
	if ev.Kind != EventClosed {
		if s := m.session; s != nil {
			ev.Generation = s.gen
			ev.Role = s.role
		}
	}
	if m.cfg.observer != nil {
		m.cfg.observer(ev)
	}
}

func (m *Machine) report(err error) {
	util.LogError("%v", err)
	m.emit(Event{Kind: EventError, Err: err})
}

// warn reports a protocol-sequencing or unknown-message problem. The message
// is discarded and nothing else changes.
func (m *Machine) warn(err error, reason string) {
	if err != nil {
		util.LogWarning("%s: %v", reason, err)
	} else {
		util.LogWarning("%s", reason)
	}
	m.emit(Event{Kind: EventWarning, Err: err, Reason: reason})
}
