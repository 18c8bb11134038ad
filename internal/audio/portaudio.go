package audio

import (
	"fmt"
	"unsafe"

	"github.com/gordonklaus/portaudio"
)

type portAudioBackend struct{}

type portAudioStream struct {
	stream *portaudio.Stream
}

// NewPortAudio initializes PortAudio and returns a Backend backed by it.
func NewPortAudio() (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioBackend{}, nil
}

func (p *portAudioBackend) Name() string { return BackendPortAudio }

func (p *portAudioBackend) Devices() ([]AudioDevice, error) {
	inputs, def, err := p.inputs()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(inputs))
	for i, d := range inputs {
		result = append(result, AudioDevice{
			Index:   i,
			ID:      d.Name,
			Name:    d.Name,
			Default: d == def,
		})
	}

	return result, nil
}

func (p *portAudioBackend) Open(index int, want Spec, cb Callback) (Stream, Spec, error) {
	inputs, def, err := p.inputs()
	if err != nil {
		return nil, Spec{}, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	device, err := selectInput(inputs, def, index)
	if err != nil {
		return nil, Spec{}, err
	}

	// Mono float32; the callback hands the raw sample memory to cb without copying.
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(want.SampleRate),
		FramesPerBuffer: want.FramesPerBuffer,
	}, func(in []float32) {
		cb(float32Bytes(in))
	})
	if err != nil {
		return nil, Spec{}, fmt.Errorf("%w %q: %w", ErrDeviceOpen, device.Name, err)
	}

	got := Spec{
		SampleRate:      int(stream.Info().SampleRate),
		Channels:        1,
		FramesPerBuffer: want.FramesPerBuffer,
	}
	return &portAudioStream{stream: stream}, got, nil
}

func (p *portAudioBackend) Terminate() error {
	return portaudio.Terminate()
}

// inputs returns the devices with at least one input channel, in host order,
// plus the default input device (nil when there is none).
func (p *portAudioBackend) inputs() ([]*portaudio.DeviceInfo, *portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, nil, err
	}

	inputs := make([]*portaudio.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}

	def, err := portaudio.DefaultInputDevice()
	if err != nil {
		def = nil
	}
	return inputs, def, nil
}

// selectInput resolves a capture index against the input device list.
func selectInput(inputs []*portaudio.DeviceInfo, def *portaudio.DeviceInfo, index int) (*portaudio.DeviceInfo, error) {
	if index < 0 {
		if def == nil {
			return nil, fmt.Errorf("%w: no default input device", ErrDeviceUnavailable)
		}
		return def, nil
	}
	if index >= len(inputs) {
		return nil, fmt.Errorf("%w: index %d out of range (%d inputs)", ErrDeviceUnavailable, index, len(inputs))
	}
	return inputs[index], nil
}

func (s *portAudioStream) SetRunning(running bool) error {
	if running {
		if err := s.stream.Start(); err != nil {
			return fmt.Errorf("failed to start audio stream: %w", err)
		}
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	return nil
}

func (s *portAudioStream) Close() error {
	return s.stream.Close()
}

// float32Bytes reinterprets samples as their in-memory bytes.
func float32Bytes(samples []float32) []byte {
	if len(samples) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*4)
}
