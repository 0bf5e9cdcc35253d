package util

import (
	"fmt"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by pterm's default logger.
// All output goes to stderr by default (pterm's default).

func LogDebug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}


// ──────────────────────────────────────────────────────────────────────────────
// Scoped logging
// ──────────────────────────────────────────────────────────────────────────────

// ScopedLogger tags every line with a "scope" field, for library output that
// should stay distinguishable from ours.
type ScopedLogger struct {
	scope string
}

// Scope returns a logger for the named component.
func Scope(name string) ScopedLogger {
	return ScopedLogger{scope: name}
}

func (s ScopedLogger) args() []pterm.LoggerArgument {
	return pterm.DefaultLogger.Args("scope", s.scope)
}

func (s ScopedLogger) Trace(msg string) { pterm.DefaultLogger.Trace(msg, s.args()) }
func (s ScopedLogger) Debug(msg string) { pterm.DefaultLogger.Debug(msg, s.args()) }
func (s ScopedLogger) Info(msg string)  { pterm.DefaultLogger.Info(msg, s.args()) }
func (s ScopedLogger) Warn(msg string)  { pterm.DefaultLogger.Warn(msg, s.args()) }
func (s ScopedLogger) Error(msg string) { pterm.DefaultLogger.Error(msg, s.args()) }
