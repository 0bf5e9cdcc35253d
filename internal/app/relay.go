// Package app contains the top-level orchestration for the relay and peer
// roles.
package app

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/pterm/pterm"

	"github.com/1ureka/peerlink/internal/config"
	"github.com/1ureka/peerlink/internal/signaling"
	"github.com/1ureka/peerlink/internal/util"
)

// RunRelay starts the signaling relay and serves until ctx is cancelled.
// A random 4-digit PIN is generated when none is configured.
func RunRelay(ctx context.Context, cfg *config.Config) error {
	pin := cfg.Relay.PIN
	if pin == "" {
		pin = generatePIN(4)
	}

	server := signaling.NewServer(pin)
	port, err := server.Start(cfg.Relay.Listen)
	if err != nil {
		return err
	}
	defer server.Close()

	pterm.DefaultBox.WithTitle("WebSocket Signaling Relay").Println(
		pterm.Sprintf("Port : %d\nPIN  : %s\nURL  : ws://<host>:%d/ws?pin=%s", port, pin, port, pin),
	)
	util.LogInfo("waiting for peers...")

	<-ctx.Done()
	util.LogInfo("shutting down relay (%d peers connected)", server.PeerCount())
	return nil
}

// generatePIN returns a random numeric PIN of the specified length.
func generatePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
