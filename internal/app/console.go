package app

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/peerlink/internal/codecpref"
	"github.com/1ureka/peerlink/internal/rtc"
	"github.com/1ureka/peerlink/internal/util"
)

// ErrUnknownCommand is returned by Execute for an unrecognized /command.
var ErrUnknownCommand = errors.New("unknown command")

// Console reads commands and chat text line by line. Lines starting with "/"
// are commands; anything else is sent on the data channel.
type Console struct {
	in io.Reader
}

// NewConsole creates a console reading from in (usually os.Stdin).
func NewConsole(in io.Reader) *Console {
	return &Console{in: in}
}

// Serve executes lines until the input ends or ctx is cancelled.
func (c *Console) Serve(ctx context.Context, p *Peer) {
	printHelp()

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := Execute(p, scanner.Text()); err != nil {
			util.LogWarning("%v", err)
		}
	}
}

// Execute runs a single console line against p.
func Execute(p *Peer, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if !strings.HasPrefix(line, "/") {
		err := p.factory.SendText(line)
		if errors.Is(err, rtc.ErrChannelNotOpen) {
			return errors.New("not connected: type /connect first")
		}
		return err
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/connect":
		p.machine.Connect()
	case "/disconnect":
		p.machine.Disconnect()
	case "/codec":
		mime := codecMIME(arg)
		if mime == "" {
			return errors.New("usage: /codec <vp8|vp9|av1|h264|h265>")
		}
		p.machine.SetPreferredCodec(mime)
		util.LogInfo("preferred codec: %s (applies to the next session)", codecpref.Label(mime))
	case "/codecs":
		util.LogInfo("video codecs: %s", p.codecLabels())
	case "/state":
		util.LogInfo("state: %s", p.machine.State())
	case "/help":
		printHelp()
	default:
		return ErrUnknownCommand
	}
	return nil
}

// codecMIME accepts either a full MIME identifier or a bare video subtype.
func codecMIME(arg string) string {
	arg = codecpref.Normalize(arg)
	if arg == "" {
		return ""
	}
	if !strings.Contains(arg, "/") {
		arg = "video/" + arg
	}
	return arg
}

func printHelp() {
	pterm.DefaultSection.Println("Commands")
	pterm.Println("  /connect      start a session as offerer")
	pterm.Println("  /disconnect   close the session and notify the peer")
	pterm.Println("  /codec NAME   set the preferred video codec")
	pterm.Println("  /codecs       list available video codecs")
	pterm.Println("  /state        show the negotiation state")
	pterm.Println("  anything else is sent as text on the data channel")
}
