package rtc

import (
	"fmt"

	"github.com/pion/logging"

	"github.com/1ureka/peerlink/internal/util"
)

// loggerFactory routes pion's internal logs through the pterm logger. pion is
// chatty at debug and info, so those are demoted one level.
type loggerFactory struct{}

func (loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &logger{out: util.Scope("pion/" + scope)}
}

type logger struct {
	out util.ScopedLogger
}

func (l *logger) Trace(msg string) { l.out.Trace(msg) }
func (l *logger) Tracef(format string, args ...interface{}) {
	l.out.Trace(fmt.Sprintf(format, args...))
}

func (l *logger) Debug(msg string) { l.out.Trace(msg) }
func (l *logger) Debugf(format string, args ...interface{}) {
	l.out.Trace(fmt.Sprintf(format, args...))
}

func (l *logger) Info(msg string) { l.out.Debug(msg) }
func (l *logger) Infof(format string, args ...interface{}) {
	l.out.Debug(fmt.Sprintf(format, args...))
}

func (l *logger) Warn(msg string) { l.out.Warn(msg) }
func (l *logger) Warnf(format string, args ...interface{}) {
	l.out.Warn(fmt.Sprintf(format, args...))
}

func (l *logger) Error(msg string) { l.out.Error(msg) }
func (l *logger) Errorf(format string, args ...interface{}) {
	l.out.Error(fmt.Sprintf(format, args...))
}
