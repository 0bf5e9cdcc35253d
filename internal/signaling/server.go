package signaling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/1ureka/peerlink/internal/util"
)

// MaxPeers is the room size. The relay only pairs two endpoints.
const MaxPeers = 2

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the relay: it accepts up to two WebSocket peers and forwards every
// text frame from one to the other without interpreting it.
type Server struct {
	pin      string
	listener net.Listener
	httpSrv  *http.Server

	mu    sync.Mutex
	peers map[string]*relayPeer
}

type relayPeer struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *relayPeer) write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// NewServer creates a relay protected by pin. An empty pin disables the check.
func NewServer(pin string) *Server {
	return &Server{
		pin:   pin,
		peers: make(map[string]*relayPeer),
	}
}

// Handler returns the HTTP routes of the relay (/ws and /healthz).
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", s.handleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"peers": s.PeerCount()})
	})
	return r
}

// Start begins listening on addr (":0" picks a random port) and returns the
// assigned port number.
func (s *Server) Start(addr string) (int, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to start WS server: %w", err)
	}
	s.listener = listener
	s.httpSrv = &http.Server{Handler: s.Handler()}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("relay server stopped: %v", err)
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port, nil
}

// Close shuts down the listener and every peer connection.
func (s *Server) Close() error {
	var errs []error
	if s.httpSrv != nil {
		errs = append(errs, s.httpSrv.Shutdown(context.Background()))
	}

	s.mu.Lock()
	for _, p := range s.peers {
		errs = append(errs, p.conn.Close())
	}
	s.mu.Unlock()

	return errors.Join(errs...)
}

// PeerCount returns the number of connected peers.
func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) handleWS(c *gin.Context) {
	if s.pin != "" && c.Query("pin") != s.pin {
		c.String(http.StatusUnauthorized, "Invalid PIN")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	p := &relayPeer{id: uuid.NewString(), conn: conn}
	if !s.register(p) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "room is full"))
		conn.Close()
		util.LogWarning("rejected peer from %s: room is full", c.ClientIP())
		return
	}
	util.LogInfo("[%s] peer joined from %s", p.id[:8], c.ClientIP())

	s.forward(p)

	s.unregister(p)
	conn.Close()
	util.LogInfo("[%s] peer left", p.id[:8])

	// Tell whoever is left that its counterpart is gone.
	if data, err := Encode(CloseMessage()); err == nil {
		s.broadcast(p.id, data)
	}
}

// forward relays frames from p to the other peer until p's connection fails.
func (s *Server) forward(p *relayPeer) {
	for {
		typ, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		util.LogDebug("[%s] relaying %d bytes", p.id[:8], len(data))
		s.broadcast(p.id, data)
	}
}

func (s *Server) broadcast(from string, data []byte) {
	s.mu.Lock()
	targets := make([]*relayPeer, 0, len(s.peers))
	for id, p := range s.peers {
		if id != from {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	for _, t := range targets {
		if err := t.write(data); err != nil {
			util.LogWarning("[%s] relay write failed: %v", t.id[:8], err)
		}
	}
}

func (s *Server) register(p *relayPeer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.peers) >= MaxPeers {
		return false
	}
	s.peers[p.id] = p
	return true
}

func (s *Server) unregister(p *relayPeer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, p.id)
}
