// Peerlink CLI entry point.
//
// This tool negotiates a WebRTC session between two peers through a small
// WebSocket relay. One process runs the relay; each peer connects to it and
// exchanges offer, answer and ICE candidates, then chats over a data channel.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-role, -config, -listen, -pin, -wsUrl, -offer, -codec).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"

	"github.com/1ureka/peerlink/internal/app"
	"github.com/1ureka/peerlink/internal/config"
	"github.com/1ureka/peerlink/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// .env is optional.
	_ = godotenv.Load()

	// CLI flags.
	configPath := flag.String("config", "", "Path to a YAML config file (default: $CONFIG_PATH)")
	role := flag.String("role", "", "Role: relay or peer")
	listen := flag.String("listen", "", "Relay listen address, e.g. :8080 (relay only)")
	pin := flag.String("pin", "", "Relay PIN (relay only, random if empty)")
	wsURLFlag := flag.String("wsUrl", "", "Relay WebSocket URL including ?pin= (peer only)")
	offer := flag.Bool("offer", false, "Send an offer as soon as connected (peer only)")
	codec := flag.String("codec", "", "Preferred video codec, e.g. video/h264 (peer only)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	// Flags override file and environment values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "role":
			cfg.Role = config.Role(*role)
		case "listen":
			cfg.Relay.Listen = *listen
		case "pin":
			cfg.Relay.PIN = *pin
		case "wsUrl":
			cfg.Peer.URL = *wsURLFlag
		case "offer":
			cfg.Peer.Offer = *offer
		case "codec":
			cfg.Peer.Codec = *codec
		case "debug":
			cfg.Debug = *debugMode
		}
	})

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Peerlink — v%s", version))
	pterm.Println()

	if cfg.Role == "" {
		// No role anywhere: interactive mode.
		runInteractive(ctx, cfg)
		return
	}

	if cfg.Role == config.RolePeer && cfg.Peer.URL != "" {
		wsURL, err := normalizeWSURL(cfg.Peer.URL)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg.Peer.URL = wsURL
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	run(ctx, cfg)
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive falls back to interactive prompts when no role is given.
func runInteractive(ctx context.Context, cfg *config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Relay — Host the signaling relay", "Peer  — Connect to a relay"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Relay") {
		cfg.Role = config.RoleRelay
	} else {
		cfg.Role = config.RolePeer
		cfg.Peer.URL = askURL()
		cfg.Peer.Offer, _ = pterm.DefaultInteractiveConfirm.
			WithDefaultText("Send an offer right away?").
			Show()
		pterm.Println()
	}

	run(ctx, cfg)
}

func run(ctx context.Context, cfg *config.Config) {
	var err error
	switch cfg.Role {
	case config.RoleRelay:
		err = app.RunRelay(ctx, cfg)
	case config.RolePeer:
		err = app.RunPeer(ctx, cfg, app.NewConsole(os.Stdin))
	}

	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	util.LogInfo("successfully closed %s", cfg.Role)
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// normalizeWSURL validates a relay URL, defaulting the scheme to wss and the
// path to /ws. The query (PIN) is kept.
func normalizeWSURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	return u.String(), nil
}

// askURL prompts the user for a valid relay URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Relay URL (e.g. wss://***.asse.devtunnels.ms/ws?pin=1234)").
			Show()

		wsURL, err := normalizeWSURL(raw)
		if err == nil {
			pterm.Println()
			return wsURL
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
