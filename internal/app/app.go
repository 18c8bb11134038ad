package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/petems/streamcap/internal/audio"
	"github.com/petems/streamcap/internal/capture"
	"github.com/petems/streamcap/internal/config"
	"github.com/petems/streamcap/internal/monitor"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrNotStarted = errors.New("app: capture not started")

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetPaused()
	SetError()
}

type Config struct {
	Backend       audio.Backend
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

// App owns the capture session for the selected device and the monitor that
// drains it.
type App struct {
	backend audio.Backend
	cfg     *config.Config
	log     zerolog.Logger
	status  StatusUpdater

	mu        sync.Mutex
	session   *capture.Session
	monitor   *monitor.Monitor
	stop      context.CancelFunc
	group     *errgroup.Group
	listeners []func(monitor.Reading)
}

func New(cfg Config) *App {
	return &App{
		backend: cfg.Backend,
		cfg:     cfg.Config,
		log:     cfg.Logger,
		status:  cfg.StatusUpdater,
	}
}

// SetStatusUpdater sets the status sink (for circular dependency resolution)
func (a *App) SetStatusUpdater(s StatusUpdater) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

// Subscribe registers fn for every monitor reading, including those of
// sessions opened later by SetDevice. fn runs on the monitor goroutine and
// must not call back into App.
func (a *App) Subscribe(fn func(monitor.Reading)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
	if a.monitor != nil {
		a.monitor.Subscribe(fn)
	}
}

// Start opens the configured device and begins capturing.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return fmt.Errorf("%w: already started", capture.ErrInvalidState)
	}
	if err := a.openLocked(ctx, a.cfg.Audio.DeviceIndex); err != nil {
		a.setStatus(StatusUpdater.SetError)
		return err
	}
	a.setStatus(StatusUpdater.SetRecording)
	return nil
}

// openLocked creates, initializes and starts a session on device, then runs
// a monitor against it until ctx ends or the session is torn down.
func (a *App) openLocked(ctx context.Context, device int) error {
	audioCfg := a.cfg.Audio
	session := capture.New(capture.Config{
		Retention: audioCfg.Retention(),
		Backend:   a.backend,
		Logger:    a.log,
	})

	if err := session.Init(device, audioCfg.SampleRate, audioCfg.Chunk()); err != nil {
		return err
	}
	if err := session.Start(); err != nil {
		return errors.Join(err, session.Close())
	}

	mon := monitor.New(monitor.Config{
		Source:   session,
		Interval: a.cfg.Monitor.PollInterval(),
		Window:   a.cfg.Monitor.Window(),
		Logger:   a.log.With().Str("session", session.ID()).Logger(),
	})
	for _, fn := range a.listeners {
		mon.Subscribe(fn)
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return mon.Run(gctx) })

	a.session = session
	a.monitor = mon
	a.stop = cancel
	a.group = g
	return nil
}

// closeLocked stops the monitor and releases the session.
func (a *App) closeLocked() error {
	if a.session == nil {
		return nil
	}

	a.stop()
	err := a.group.Wait()
	err = errors.Join(err, a.session.Close())

	a.session = nil
	a.monitor = nil
	a.stop = nil
	a.group = nil
	return err
}

// OnHotkey toggles pause on every press; releases are ignored.
func (a *App) OnHotkey(pressed bool) {
	if !pressed {
		return
	}
	if err := a.TogglePause(); err != nil {
		a.log.Error().Err(err).Msg("Failed to toggle capture")
	}
}

// TogglePause pauses a running session or resumes a paused one. Buffered
// audio survives a pause.
func (a *App) TogglePause() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return ErrNotStarted
	}

	switch st := a.session.State(); st {
	case capture.StateRunning:
		if err := a.session.Pause(); err != nil {
			a.setStatus(StatusUpdater.SetError)
			return err
		}
		a.setStatus(StatusUpdater.SetPaused)
	case capture.StatePaused:
		if err := a.session.Resume(); err != nil {
			a.setStatus(StatusUpdater.SetError)
			return err
		}
		a.setStatus(StatusUpdater.SetRecording)
	default:
		return fmt.Errorf("%w: toggle while %s", capture.ErrInvalidState, st)
	}
	return nil
}

// Clear drops everything buffered so far. Capture must be running.
func (a *App) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return ErrNotStarted
	}
	if err := a.session.Clear(); err != nil {
		return err
	}
	a.log.Info().Msg("Capture buffer cleared")
	return nil
}

// SetDevice moves capture to another input device and persists the choice.
// If the new device cannot be opened, capture falls back to the previous one.
func (a *App) SetDevice(ctx context.Context, index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.cfg.Audio.DeviceIndex
	if a.session != nil && index == prev {
		return nil
	}

	if err := a.closeLocked(); err != nil {
		a.log.Warn().Err(err).Msg("Error closing previous capture session")
	}

	if err := a.openLocked(ctx, index); err != nil {
		a.log.Error().Err(err).Int("device", index).Msg("Failed to open device, reverting")
		if rerr := a.openLocked(ctx, prev); rerr != nil {
			a.setStatus(StatusUpdater.SetError)
			return errors.Join(err, rerr)
		}
		a.setStatus(StatusUpdater.SetRecording)
		return err
	}

	a.setStatus(StatusUpdater.SetRecording)
	a.cfg.Audio.DeviceIndex = index
	a.log.Info().Int("from", prev).Int("to", index).Msg("Changed audio device")
	return a.cfg.Save()
}

// Stats returns a snapshot of the current session.
func (a *App) Stats() (capture.Stats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return capture.Stats{}, ErrNotStarted
	}
	return a.session.Stats(), nil
}

// Status is a one-line human readable summary of the capture state.
func (a *App) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return "Not capturing"
	}
	return FormatStatus(a.session.Stats(), a.monitor.Last())
}

// FormatStatus renders a session snapshot and the latest level reading.
func FormatStatus(st capture.Stats, r monitor.Reading) string {
	s := fmt.Sprintf("%s at %d Hz, %.1fs buffered, %.1fs free",
		st.State, st.SampleRate, st.Buffered.Seconds(), st.Available.Seconds())
	if r.Peak > monitor.Silence {
		s += fmt.Sprintf(", peak %.0f dBFS", r.Peak)
	}
	if st.DroppedBytes > 0 {
		s += fmt.Sprintf(", %d bytes dropped", st.DroppedBytes)
	}
	return s
}

// DeviceIndex returns the selected input device.
func (a *App) DeviceIndex() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Audio.DeviceIndex
}

func (a *App) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil && a.session.State() == capture.StateRunning
}

func (a *App) ListDevices() ([]audio.AudioDevice, error) {
	return a.backend.Devices()
}

// Shutdown stops the monitor and closes the session. Safe to call twice.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.closeLocked()
	a.setStatus(StatusUpdater.SetIdle)
	return err
}

func (a *App) setStatus(fn func(StatusUpdater)) {
	if a.status != nil {
		fn(a.status)
	}
}
