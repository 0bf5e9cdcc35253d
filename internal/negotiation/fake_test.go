package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/peerlink/internal/signaling"
)

// ---------------------------------------------------------------------------
// fakePC
// ---------------------------------------------------------------------------

var errRejected = errors.New("rejected")

type fakePC struct {
	id int

	mu          sync.Mutex
	calls       []string
	remoteSet   bool
	closed      bool
	candidates  []webrtc.ICECandidateInit
	prefs       []webrtc.RTPCodecParameters
	caps        []webrtc.RTPCodecParameters
	failOn      map[string]error
	gates       map[string]chan struct{}
	onCandidate func(*webrtc.ICECandidateInit)
	onICE       func(webrtc.ICEConnectionState)
	onTrack     func(Track)
}

func newFakePC(id int) *fakePC {
	return &fakePC{
		id:     id,
		failOn: make(map[string]error),
		gates:  make(map[string]chan struct{}),
		caps: []webrtc.RTPCodecParameters{
			{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, PayloadType: 102},
			{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeRTX, SDPFmtpLine: "apt=102"}, PayloadType: 103},
			{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, PayloadType: 96},
			{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9}, PayloadType: 98},
		},
	}
}

// gate blocks the named call until the returned function is invoked.
func (f *fakePC) gate(call string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[call] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakePC) fail(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[call] = err
}

func (f *fakePC) enter(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate := f.gates[call]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failOn[call]
}

func (f *fakePC) CreateOffer() (webrtc.SessionDescription, error) {
	if err := f.enter("CreateOffer"); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", f.id)}, nil
}

func (f *fakePC) CreateAnswer() (webrtc.SessionDescription, error) {
	if err := f.enter("CreateAnswer"); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", f.id)}, nil
}

func (f *fakePC) SetLocalDescription(desc webrtc.SessionDescription) error {
	return f.enter("SetLocalDescription:" + desc.Type.String())
}

func (f *fakePC) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if err := f.enter("SetRemoteDescription:" + desc.Type.String()); err != nil {
		return err
	}
	f.mu.Lock()
	f.remoteSet = true
	f.mu.Unlock()
	return nil
}

func (f *fakePC) AddICECandidate(c webrtc.ICECandidateInit) error {
	if err := f.enter("AddICECandidate"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.remoteSet {
		return errors.New("remote description not set")
	}
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakePC) Capabilities(webrtc.RTPCodecType) []webrtc.RTPCodecParameters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.caps
}

func (f *fakePC) SetCodecPreferences(_ webrtc.RTPCodecType, codecs []webrtc.RTPCodecParameters) error {
	if err := f.enter("SetCodecPreferences"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs = codecs
	return nil
}

func (f *fakePC) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCandidate = fn
}

func (f *fakePC) OnTrack(fn func(Track)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTrack = fn
}

func (f *fakePC) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onICE = fn
}

func (f *fakePC) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "Close")
	f.closed = true
	return nil
}

// emitCandidate fires the registered local candidate callback.
func (f *fakePC) emitCandidate(c *webrtc.ICECandidateInit) {
	f.mu.Lock()
	fn := f.onCandidate
	f.mu.Unlock()
	fn(c)
}

func (f *fakePC) appliedCandidates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.candidates))
	for _, c := range f.candidates {
		out = append(out, c.Candidate)
	}
	return out
}

func (f *fakePC) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakePC) codecPrefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.prefs))
	for _, c := range f.prefs {
		out = append(out, c.MimeType)
	}
	return out
}

// ---------------------------------------------------------------------------
// fakeRelay
// ---------------------------------------------------------------------------

type fakeRelay struct {
	mu     sync.Mutex
	closed bool
	sent   []signaling.Message
}

func (r *fakeRelay) Send(data []byte) error {
	msg, err := signaling.Decode(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *fakeRelay) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

func (r *fakeRelay) setClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *fakeRelay) types() []signaling.MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]signaling.MessageType, 0, len(r.sent))
	for _, m := range r.sent {
		out = append(out, m.Type)
	}
	return out
}

func (r *fakeRelay) messages() []signaling.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]signaling.Message(nil), r.sent...)
}

// ---------------------------------------------------------------------------
// harness
// ---------------------------------------------------------------------------

type harness struct {
	t      *testing.T
	m      *Machine
	relay  *fakeRelay
	events chan Event

	mu      sync.Mutex
	pcs     []*fakePC
	prepare func(*fakePC)
	newErr  error
}

func newHarness(t *testing.T, options ...Option) *harness {
	t.Helper()

	h := &harness{
		t:      t,
		relay:  &fakeRelay{},
		events: make(chan Event, 256),
	}

	factory := func() (PeerConnection, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.newErr != nil {
			return nil, h.newErr
		}
		pc := newFakePC(len(h.pcs) + 1)
		if h.prepare != nil {
			h.prepare(pc)
		}
		h.pcs = append(h.pcs, pc)
		return pc, nil
	}

	options = append(options, WithObserver(func(ev Event) { h.events <- ev }))
	h.m = New(factory, h.relay, options...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.m.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("machine did not stop")
		}
	})
	return h
}

// pc returns the n-th peer connection created (1-based).
func (h *harness) pc(n int) *fakePC {
	h.t.Helper()
	var pc *fakePC
	require.Eventually(h.t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		if len(h.pcs) >= n {
			pc = h.pcs[n-1]
			return true
		}
		return false
	}, time.Second, 5*time.Millisecond)
	return pc
}

func (h *harness) pcCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pcs)
}

func (h *harness) onNewPC(fn func(*fakePC)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prepare = fn
}

// waitFor consumes events until one matches kind and returns it.
func (h *harness) waitFor(kind EventKind) Event {
	h.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s event", kind)
			return Event{}
		}
	}
}

// sync waits until every event queued before it has been processed.
func (h *harness) sync() {
	h.t.Helper()
	probe := make(chan struct{})
	h.m.post(func() { close(probe) })
	select {
	case <-probe:
	case <-time.After(2 * time.Second):
		h.t.Fatal("control loop did not drain")
	}
}

func (h *harness) deliver(msg signaling.Message) {
	h.t.Helper()
	data, err := signaling.Encode(msg)
	require.NoError(h.t, err)
	h.m.HandleMessage(data)
}

func offer(sdp string) signaling.Message {
	return signaling.OfferMessage(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
}

func answer(sdp string) signaling.Message {
	return signaling.AnswerMessage(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func candidate(c string) signaling.Message {
	return signaling.CandidateMessage(webrtc.ICECandidateInit{Candidate: c})
}
