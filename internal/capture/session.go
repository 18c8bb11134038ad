// Package capture keeps a sliding window of live audio. A device backend
// pushes raw sample bytes into a Session through Callback, and the embedding
// application drains time spans at its own pace through Get.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petems/streamcap/internal/audio"
	"github.com/petems/streamcap/internal/ring"
)

// ErrInvalidState is returned when an operation is not legal in the session's
// current state, e.g. Start while already running or Clear while paused.
var ErrInvalidState = errors.New("capture: invalid state")

// Config configures a Session.
type Config struct {
	// Retention is the longest span of audio the session holds.
	Retention time.Duration
	Backend   audio.Backend
	Logger    zerolog.Logger
}

// Session owns one ring buffer sized for Retention at the device's obtained
// sample rate.
//
// mu guards the ring and the state together, so a Callback that observes a
// running session appends before any concurrent Stop can complete, and none
// appends after Stop returns. Device calls are made under lifecycle only.
type Session struct {
	id        string
	retention time.Duration
	backend   audio.Backend
	log       zerolog.Logger
	overflow  zerolog.Logger

	lifecycle sync.Mutex
	stream    audio.Stream

	mu         sync.Mutex
	state      State
	sampleRate int
	ring       *ring.Ring

	appended  atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
	overflows atomic.Uint64
}

// New creates an uninitialized session.
func New(cfg Config) *Session {
	id := uuid.NewString()
	log := cfg.Logger.With().Str("session", id).Logger()

	return &Session{
		id:        id,
		retention: cfg.Retention,
		backend:   cfg.Backend,
		log:       log,
		overflow:  log.Sample(&zerolog.BurstSampler{Burst: 1, Period: time.Second}),
		state:     StateUninitialized,
	}
}

// ID returns the session identifier attached to every log line.
func (s *Session) ID() string { return s.id }

// Retention returns the configured window length.
func (s *Session) Retention() time.Duration { return s.retention }

// Init opens the capture device at deviceIndex (audio.DefaultDevice for the
// system default), asking for rate Hz delivered in chunks of about chunk. The
// rate the device reports back is authoritative and sizes the ring.
func (s *Session) Init(deviceIndex, rate int, chunk time.Duration) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if st := s.State(); st != StateUninitialized {
		return fmt.Errorf("%w: init while %s", ErrInvalidState, st)
	}
	if rate <= 0 {
		return fmt.Errorf("capture: requested sample rate must be positive, got %d", rate)
	}

	want := audio.Spec{
		SampleRate:      rate,
		Channels:        1,
		FramesPerBuffer: audio.FramesFor(rate, chunk),
	}

	if devices, err := s.backend.Devices(); err == nil {
		for _, d := range devices {
			s.log.Debug().Int("index", d.Index).Str("name", d.Name).Bool("default", d.Default).Msg("Capture device")
		}
	}

	s.log.Debug().
		Str("backend", s.backend.Name()).
		Int("device", deviceIndex).
		Int("rate", want.SampleRate).
		Int("frames_per_buffer", want.FramesPerBuffer).
		Msg("Opening capture device")

	stream, got, err := s.backend.Open(deviceIndex, want, s.Callback)
	if err != nil {
		return fmt.Errorf("open capture device %d: %w", deviceIndex, err)
	}
	if got.SampleRate <= 0 {
		stream.Close()
		return fmt.Errorf("%w: device reported sample rate %d", audio.ErrDeviceOpen, got.SampleRate)
	}
	if got.Channels != 0 && got.Channels != want.Channels {
		s.log.Warn().Int("channels", got.Channels).Msg("Device did not grant mono capture")
	}

	buf := ring.New(BytesFor(s.retention, got.SampleRate))

	s.mu.Lock()
	s.sampleRate = got.SampleRate
	s.ring = buf
	s.state = StateInitialized
	s.mu.Unlock()
	s.stream = stream

	s.log.Info().
		Int("rate", got.SampleRate).
		Int("requested_rate", rate).
		Int("frames_per_buffer", got.FramesPerBuffer).
		Int("capacity_bytes", buf.Cap()).
		Dur("retention", s.retention).
		Msg("Capture device opened")

	return nil
}

// Start begins delivering audio into the ring. It is legal from the
// initialized and paused states.
func (s *Session) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	prev := s.state
	if prev != StateInitialized && prev != StatePaused {
		s.mu.Unlock()
		return fmt.Errorf("%w: start while %s", ErrInvalidState, prev)
	}
	// Running before the device starts so the first chunk is kept.
	s.state = StateRunning
	s.mu.Unlock()

	if err := s.stream.SetRunning(true); err != nil {
		s.mu.Lock()
		s.state = prev
		s.mu.Unlock()
		return err
	}

	s.log.Info().Msg("Capture started")
	return nil
}

// Resume is an alias for Start.
func (s *Session) Resume() error { return s.Start() }

// Stop pauses capture. Once it returns no further chunk reaches the ring;
// buffered audio stays available to Clear and to a later Start.
func (s *Session) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.state != StateRunning {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: stop while %s", ErrInvalidState, st)
	}
	s.state = StatePaused
	s.mu.Unlock()

	if err := s.stream.SetRunning(false); err != nil {
		return err
	}

	s.log.Info().Msg("Capture paused")
	return nil
}

// Pause is an alias for Stop.
func (s *Session) Pause() error { return s.Stop() }

// Clear discards all buffered audio. The device keeps running.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return fmt.Errorf("%w: clear while %s", ErrInvalidState, s.state)
	}
	s.ring.Clear()
	return nil
}

// Callback is the producer entry point handed to the device backend. It never
// blocks beyond copying p and never fails: a chunk that does not fit loses its
// tail, which is counted in Stats and logged at most once per second.
func (s *Session) Callback(p []byte) {
	if len(p) == 0 {
		return
	}

	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	written, dropped := s.ring.Append(p)
	s.mu.Unlock()

	s.appended.Add(uint64(written))
	if dropped > 0 {
		total := s.dropped.Add(uint64(dropped))
		s.overflows.Add(1)
		s.overflow.Warn().
			Int("dropped_bytes", dropped).
			Int("chunk_bytes", len(p)).
			Uint64("total_dropped_bytes", total).
			Msg("Capture buffer full, skipping audio")
	}
}

// Get moves up to d of the oldest buffered audio onto the end of dst and
// returns the extended slice with the span actually retrieved, which is never
// longer than d. It returns dst and zero unless the session is running.
//
// Growing dst happens under the session lock; callers that poll should reuse
// a buffer with enough capacity.
func (s *Session) Get(d time.Duration, dst []byte) ([]byte, time.Duration) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return dst, 0
	}
	rate := s.sampleRate
	dst, n := s.ring.Consume(dst, BytesFor(d, rate))
	s.mu.Unlock()

	s.consumed.Add(uint64(n))
	return dst, DurationFor(n, rate)
}

// BufferedDuration reports how much audio is waiting to be read.
func (s *Session) BufferedDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring == nil {
		return 0
	}
	return DurationFor(s.ring.Len(), s.sampleRate)
}

// AvailableDuration reports how much more audio fits before chunks are dropped.
func (s *Session) AvailableDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring == nil {
		return 0
	}
	return DurationFor(s.ring.Free(), s.sampleRate)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SampleRate returns the rate obtained from the device, or 0 before Init.
func (s *Session) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// Close releases the device stream and drops buffered audio. It is legal in
// every state and safe to call more than once.
func (s *Session) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	prev := s.state
	if prev == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	if s.ring != nil {
		s.ring.Clear()
	}
	s.mu.Unlock()

	if s.stream == nil {
		return nil
	}

	var errs []error
	if prev == StateRunning {
		errs = append(errs, s.stream.SetRunning(false))
	}
	errs = append(errs, s.stream.Close())
	s.stream = nil

	s.log.Info().
		Uint64("dropped_bytes", s.dropped.Load()).
		Uint64("overflow_events", s.overflows.Load()).
		Msg("Capture session closed")

	return errors.Join(errs...)
}
