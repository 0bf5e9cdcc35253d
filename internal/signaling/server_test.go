package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, pin string) (*Server, string) {
	t.Helper()
	s := NewServer(pin)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Connect(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// watch runs c.Watch in the background and exposes frames on a channel.
func watch(c *Client) (<-chan []byte, <-chan error) {
	frames := make(chan []byte, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(func(data []byte) { frames <- data })
	}()
	return frames, done
}

func recv(t *testing.T, frames <-chan []byte) []byte {
	t.Helper()
	select {
	case data := <-frames:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestRelayForwardsFrames(t *testing.T) {
	s, base := startRelay(t, "1234")
	url := base + "/ws?pin=1234"

	a := dial(t, url)
	require.Eventually(t, func() bool { return s.PeerCount() == 1 }, time.Second, 5*time.Millisecond)
	b := dial(t, url)
	require.Eventually(t, func() bool { return s.PeerCount() == 2 }, time.Second, 5*time.Millisecond)

	aFrames, _ := watch(a)
	bFrames, _ := watch(b)

	offer := []byte(`{"type":"offer","sdp":"v=0"}`)
	require.NoError(t, a.Send(offer))
	assert.Equal(t, offer, recv(t, bFrames))

	// Frames are relayed verbatim, even ones the codec would reject.
	bogus := []byte(`{"type":"bogus"}`)
	require.NoError(t, b.Send(bogus))
	assert.Equal(t, bogus, recv(t, aFrames))
}

func TestRelayNotifiesRemainingPeer(t *testing.T) {
	s, base := startRelay(t, "")
	url := base + "/ws"

	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return s.PeerCount() == 2 }, time.Second, 5*time.Millisecond)

	bFrames, _ := watch(b)
	require.NoError(t, a.Close())
	assert.False(t, a.IsOpen())

	msg, err := Decode(recv(t, bFrames))
	require.NoError(t, err)
	assert.Equal(t, MsgTypeClose, msg.Type)
	require.Eventually(t, func() bool { return s.PeerCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRelayRejectsThirdPeer(t *testing.T) {
	s, base := startRelay(t, "")
	url := base + "/ws"

	dial(t, url)
	dial(t, url)
	require.Eventually(t, func() bool { return s.PeerCount() == 2 }, time.Second, 5*time.Millisecond)

	c := dial(t, url)
	_, done := watch(c)

	select {
	case err := <-done:
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("third peer was not rejected")
	}
	assert.False(t, c.IsOpen())
	assert.Equal(t, 2, s.PeerCount())
}

func TestRelayRejectsWrongPIN(t *testing.T) {
	_, base := startRelay(t, "1234")

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws?pin=0000", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, err = Connect(context.Background(), base+"/ws")
	assert.Error(t, err)
}

func TestRelayHealthz(t *testing.T) {
	s := NewServer("")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSendAfterClose(t *testing.T) {
	_, base := startRelay(t, "")
	c := dial(t, base+"/ws")

	require.NoError(t, c.Close())
	assert.Error(t, c.Send([]byte(`{"type":"close"}`)))
	assert.NoError(t, c.Close())
}
