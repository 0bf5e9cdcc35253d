package negotiation

import "time"

const defaultQueueSize = 128

type config struct {
	observer    Observer
	preferred   string
	stepTimeout time.Duration
	queueSize   int
}

func defaultConfig() *config {
	return &config{queueSize: defaultQueueSize}
}

// An Option customizes the machine.
type Option func(cfg *config)

// WithObserver installs the lifecycle hook. It is called on the control loop
// and must not block.
func WithObserver(fn Observer) Option {
	return func(cfg *config) {
		cfg.observer = fn
	}
}

// WithPreferredCodec sets the initial user-preferred video codec, in full
// MIME form (e.g. "video/h264").
func WithPreferredCodec(mime string) Option {
	return func(cfg *config) {
		cfg.preferred = mime
	}
}

// WithStepTimeout fails any offer/answer step that does not complete within d.
// Zero disables the timeout.
func WithStepTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.stepTimeout = d
	}
}

// WithQueueSize sets the capacity of the inbound event queue.
func WithQueueSize(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.queueSize = n
		}
	}
}
