package monitor

import "github.com/petems/streamcap/internal/audio"

// sessionBackend opens a stream that never runs on its own; tests push
// chunks through cb directly.
type sessionBackend struct {
	cb audio.Callback
}

type idleStream struct{}

func (b *sessionBackend) Name() string { return "test" }

func (b *sessionBackend) Devices() ([]audio.AudioDevice, error) { return nil, nil }

func (b *sessionBackend) Open(_ int, want audio.Spec, cb audio.Callback) (audio.Stream, audio.Spec, error) {
	b.cb = cb
	return idleStream{}, want, nil
}

func (b *sessionBackend) Terminate() error { return nil }

func (idleStream) SetRunning(bool) error { return nil }
func (idleStream) Close() error          { return nil }
