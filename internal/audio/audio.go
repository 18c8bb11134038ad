package audio

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDevice selects the system default capture device.
const DefaultDevice = -1

// Backend names accepted by New.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
)

var (
	// ErrDeviceUnavailable is returned when the requested device index does not
	// exist or the system has no default capture device.
	ErrDeviceUnavailable = errors.New("audio: no capture device available")
	// ErrDeviceOpen is returned when a device exists but a stream could not be
	// opened on it.
	ErrDeviceOpen = errors.New("audio: failed to open capture device")
)

// Spec describes a mono float32 capture stream.
type Spec struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// Callback receives raw sample bytes on the backend's delivery thread. The
// slice is only valid for the duration of the call.
type Callback func(p []byte)

// Backend opens capture streams on a platform audio API.
type Backend interface {
	Name() string
	Devices() ([]AudioDevice, error)
	// Open prepares a stream on the device at index (DefaultDevice for the
	// system default) and returns the spec the device actually granted. The
	// stream delivers nothing to cb until SetRunning(true).
	Open(index int, want Spec, cb Callback) (Stream, Spec, error)
	// Terminate tears down the audio subsystem. Call once after every stream
	// has been closed.
	Terminate() error
}

// Stream is an open capture stream.
type Stream interface {
	SetRunning(running bool) error
	Close() error
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	Index   int
	ID      string
	Name    string
	Default bool
}

// New initializes the named backend. The caller owns the returned Backend and
// must call Terminate when done.
func New(name string, log zerolog.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendPortAudio:
		return NewPortAudio()
	case BackendMalgo:
		return NewMalgo(log)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", name)
	}
}

// FramesFor converts a chunk duration to a frame count at rate, rounded to the
// nearest frame.
func FramesFor(rate int, chunk time.Duration) int {
	return int(math.Round(float64(rate) * chunk.Seconds()))
}
