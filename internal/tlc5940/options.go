package tlc5940

import (
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	clock   clock.Clock
	log     zerolog.Logger
	onTick  func(TickResult)
	onFatal func(error)
}

func defaultOptions() options {
	return options{
		clock: clock.New(),
		log:   log.Logger,
	}
}

// Option customizes a Scheduler or Device.
type Option func(*options)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTickHook registers fn to run after every tick, once the timer has
// been re-armed. fn runs on the scheduler goroutine and must not block.
func WithTickHook(fn func(TickResult)) Option {
	return func(o *options) { o.onTick = fn }
}

// WithFatalHook registers fn to run once if the scheduler stops on a
// hardware link error.
func WithFatalHook(fn func(error)) Option {
	return func(o *options) { o.onFatal = fn }
}
