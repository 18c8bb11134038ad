package capture

import (
	"errors"
	"sync"

	"github.com/petems/streamcap/internal/audio"
)

// fakeBackend stands in for a capture device. deliver plays the role of the
// device thread: it forwards a chunk only while the stream is running.
type fakeBackend struct {
	mu         sync.Mutex
	obtained   int
	openErr    error
	startErr   error
	opened     audio.Spec
	openIndex  int
	cb         audio.Callback
	stream     *fakeStream
	terminated bool
}

type fakeStream struct {
	mu       sync.Mutex
	running  bool
	closed   bool
	startErr error
	starts   int
	stops    int
}

func newFakeBackend(obtained int) *fakeBackend {
	return &fakeBackend{obtained: obtained}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Devices() ([]audio.AudioDevice, error) {
	return []audio.AudioDevice{{Index: 0, ID: "fake", Name: "Fake Mic", Default: true}}, nil
}

func (f *fakeBackend) Open(index int, want audio.Spec, cb audio.Callback) (audio.Stream, audio.Spec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return nil, audio.Spec{}, f.openErr
	}
	if index > 0 {
		return nil, audio.Spec{}, audio.ErrDeviceUnavailable
	}
	f.openIndex = index
	f.opened = want
	f.cb = cb
	f.stream = &fakeStream{startErr: f.startErr}

	got := want
	got.SampleRate = f.obtained
	return f.stream, got, nil
}

func (f *fakeBackend) Terminate() error {
	f.terminated = true
	return nil
}

func (f *fakeBackend) deliver(p []byte) {
	f.mu.Lock()
	cb, stream := f.cb, f.stream
	f.mu.Unlock()

	if stream == nil || !stream.isRunning() {
		return
	}
	cb(p)
}

func (s *fakeStream) SetRunning(running bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("stream closed")
	}
	if running {
		if s.startErr != nil {
			return s.startErr
		}
		s.starts++
	} else {
		s.stops++
	}
	s.running = running
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.closed = true
	return nil
}

func (s *fakeStream) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
