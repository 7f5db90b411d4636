package stream

import (
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/adapter/metrics"
)

const (
	DefaultInterval       = 2 * time.Second
	DefaultKeepAliveEvery = 15

	DefaultNotificationInterval = 5 * time.Second
	DefaultStockInterval        = time.Second
)

type settings struct {
	clock          clockwork.Clock
	interval       time.Duration
	keepAliveEvery int
	rng            *rand.Rand
	metrics        *metrics.StreamMetrics
}

type Option func(*settings)

func WithClock(clock clockwork.Clock) Option {
	return func(s *settings) { s.clock = clock }
}

// WithInterval sets the tick period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithKeepAliveEvery emits a keep-alive item after every n-th tick. Zero disables keep-alives.
func WithKeepAliveEvery(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.keepAliveEvery = n
		}
	}
}

// WithRand makes generated payloads deterministic.
func WithRand(rng *rand.Rand) Option {
	return func(s *settings) { s.rng = rng }
}

func WithMetrics(m *metrics.StreamMetrics) Option {
	return func(s *settings) { s.metrics = m }
}

func newSettings(interval time.Duration, keepAliveEvery int, opts []Option) settings {
	s := settings{
		clock:          clockwork.NewRealClock(),
		interval:       interval,
		keepAliveEvery: keepAliveEvery,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}
