package rtc

import (
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peerlink/internal/util"
)

// ChannelLabel is the label of the text data channel.
const ChannelLabel = "serial"

// highWaterMark is the bufferedAmount above which SendText refuses new text.
const highWaterMark = 256 * 1024

var (
	// ErrChannelNotOpen is returned by SendText before the data channel opens
	// or after it closes.
	ErrChannelNotOpen = errors.New("data channel is not open")

	// ErrSendBufferFull is returned by SendText while the channel is backed up.
	ErrSendBufferFull = errors.New("data channel send buffer is full")
)

// channel wraps the "serial" data channel of one connection.
type channel struct {
	raw *webrtc.DataChannel
}

// newChannel creates a pre-negotiated, ordered data channel. Negotiated mode
// (ID 0) lets both sides create the channel independently without relying on
// OnDataChannel, so offerer and answerer end up on the same channel.
func newChannel(pc *webrtc.PeerConnection, onText func(string)) (*channel, error) {
	negotiated := true
	id := uint16(0)

	raw, err := pc.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		return nil, err
	}

	raw.OnOpen(func() {
		util.LogSuccess("data channel %q is open", ChannelLabel)
	})
	raw.OnClose(func() {
		util.LogDebug("data channel %q closed", ChannelLabel)
	})
	raw.OnMessage(func(msg webrtc.DataChannelMessage) {
		util.Stats.AddTextRecv(len(msg.Data))
		if !msg.IsString {
			util.LogDebug("ignoring %d-byte binary message", len(msg.Data))
			return
		}
		text := string(msg.Data)
		util.LogInfo("received: %s", text)
		if onText != nil {
			onText(text)
		}
	})

	return &channel{raw: raw}, nil
}

func (c *channel) isOpen() bool {
	return c.raw.ReadyState() == webrtc.DataChannelStateOpen
}

func (c *channel) sendText(text string) error {
	if !c.isOpen() {
		return ErrChannelNotOpen
	}
	if c.raw.BufferedAmount() > highWaterMark {
		return ErrSendBufferFull
	}
	if err := c.raw.SendText(text); err != nil {
		return err
	}
	util.Stats.AddTextSent(len(text))
	return nil
}
