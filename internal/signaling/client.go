package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Client is the peer side of the relay: a single WebSocket connection to the
// relay server. Writes are serialized; reads happen in Watch.
type Client struct {
	conn *websocket.Conn

	mu        sync.Mutex
	open      atomic.Bool
	closeOnce sync.Once
}

// Connect dials the given WebSocket URL and returns a ready Client.
// The URL should include the PIN as a query parameter, e.g.:
//
//	wss://example.devtunnels.ms/ws?pin=1234
func Connect(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WS server: %w", err)
	}
	return newClient(conn), nil
}

func newClient(conn *websocket.Conn) *Client {
	c := &Client{conn: conn}
	c.open.Store(true)
	return c
}

// Send writes one text frame to the relay, guarded by a mutex.
func (c *Client) Send(data []byte) error {
	if !c.open.Load() {
		return errors.New("relay connection is closed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// IsOpen reports whether the relay connection is still usable.
func (c *Client) IsOpen() bool {
	return c.open.Load()
}

// Watch runs the read loop, handing every text frame to fn in delivery order.
// It returns when the connection fails or is closed; the Client is unusable
// afterwards.
func (c *Client) Watch(fn func([]byte)) error {
	defer c.open.Store(false)

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read WS message: %w", err)
		}
		if typ != websocket.TextMessage {
			continue
		}
		fn(data)
	}
}

// Close sends a normal-closure frame and shuts down the connection.
// Safe to call multiple times.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.mu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
