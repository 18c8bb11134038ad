// Package monitor is the polling consumer of a capture session: it drains a
// fixed window on every tick and publishes signal levels.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/streamcap/internal/capture"
)

// Source is the consumer side of a capture session.
type Source interface {
	Get(d time.Duration, dst []byte) ([]byte, time.Duration)
	Stats() capture.Stats
}

// Reading is the result of one poll.
type Reading struct {
	At        time.Time
	State     capture.State
	Window    time.Duration // audio actually retrieved
	RMS       float64       // dBFS
	Peak      float64       // dBFS
	Buffered  time.Duration
	Available time.Duration
	Dropped   uint64
}

type Config struct {
	Source   Source
	Interval time.Duration
	Window   time.Duration
	Logger   zerolog.Logger
}

type Monitor struct {
	src      Source
	interval time.Duration
	window   time.Duration
	log      zerolog.Logger

	// buf is reused across polls and carries a trailing partial sample over
	// to the next one.
	buf []byte

	mu        sync.Mutex
	last      Reading
	listeners []func(Reading)
}

func New(cfg Config) *Monitor {
	return &Monitor{
		src:      cfg.Source,
		interval: cfg.Interval,
		window:   cfg.Window,
		log:      cfg.Logger,
		last:     Reading{RMS: Silence, Peak: Silence},
	}
}

// Subscribe registers fn to receive every reading. fn runs on the polling
// goroutine and should return quickly.
func (m *Monitor) Subscribe(fn func(Reading)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Last returns the most recent reading.
func (m *Monitor) Last() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Poll()
		}
	}
}

// Poll drains up to one window from the source and publishes the levels.
func (m *Monitor) Poll() Reading {
	var got time.Duration
	m.buf, got = m.src.Get(m.window, m.buf)

	whole := len(m.buf) - len(m.buf)%capture.SampleWidth
	rms, peak := Levels(m.buf[:whole])
	m.buf = m.buf[:copy(m.buf, m.buf[whole:])]

	st := m.src.Stats()
	r := Reading{
		At:        time.Now(),
		State:     st.State,
		Window:    got,
		RMS:       rms,
		Peak:      peak,
		Buffered:  st.Buffered,
		Available: st.Available,
		Dropped:   st.DroppedBytes,
	}

	m.mu.Lock()
	prev := m.last
	m.last = r
	listeners := append([]func(Reading){}, m.listeners...)
	m.mu.Unlock()

	if r.Dropped > prev.Dropped {
		m.log.Debug().Uint64("dropped_bytes", r.Dropped-prev.Dropped).Msg("Consumer fell behind")
	}
	m.log.Trace().
		Dur("window", r.Window).
		Float64("rms_dbfs", r.RMS).
		Float64("peak_dbfs", r.Peak).
		Dur("buffered", r.Buffered).
		Msg("Level")

	for _, fn := range listeners {
		fn(r)
	}
	return r
}
