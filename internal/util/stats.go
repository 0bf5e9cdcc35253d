package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide negotiation counter.
var Stats = &stats{}

type stats struct {
	Sessions       atomic.Int64 // sessions created since process start
	Teardowns      atomic.Int64 // sessions torn down since process start
	CandidatesSent atomic.Int64 // local candidates forwarded to the relay
	CandidatesRecv atomic.Int64 // remote candidates applied or buffered
	TextSent       atomic.Int64 // data channel bytes sent
	TextRecv       atomic.Int64 // data channel bytes received
}

func (s *stats) AddSession()       { s.Sessions.Add(1) }
func (s *stats) AddTeardown()      { s.Teardowns.Add(1) }
func (s *stats) AddCandidateSent() { s.CandidatesSent.Add(1) }
func (s *stats) AddCandidateRecv() { s.CandidatesRecv.Add(1) }
func (s *stats) AddTextSent(n int) { s.TextSent.Add(int64(n)) }
func (s *stats) AddTextRecv(n int) { s.TextRecv.Add(int64(n)) }

// snapshot is a point-in-time copy used to detect changes between reports.
type snapshot struct {
	sessions, teardowns int64
	candSent, candRecv  int64
	textSent, textRecv  int64
}

func (s *stats) snapshot() snapshot {
	return snapshot{
		sessions:  s.Sessions.Load(),
		teardowns: s.Teardowns.Load(),
		candSent:  s.CandidatesSent.Load(),
		candRecv:  s.CandidatesRecv.Load(),
		textSent:  s.TextSent.Load(),
		textRecv:  s.TextRecv.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs negotiation statistics
// every interval, but only when something changed. It stops when ctx is
// cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prev snapshot
		for {
			select {
			case <-ticker.C:
				cur := Stats.snapshot()
				if cur != prev {
					pterm.DefaultLogger.Info(formatStats(cur))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(s snapshot) string {
	return fmt.Sprintf("Sessions: %d/%d | ICE: %2d↑ %2d↓ | Text: %s↑ %s↓",
		s.sessions-s.teardowns,
		s.sessions,
		s.candSent,
		s.candRecv,
		formatBytes(float64(s.textSent)),
		formatBytes(float64(s.textRecv)),
	)
}
