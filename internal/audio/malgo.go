package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

type malgoBackend struct {
	ctx *malgo.AllocatedContext
}

type malgoStream struct {
	device *malgo.Device
}

// NewMalgo initializes a miniaudio context. Backend log lines are forwarded to
// log at debug level.
func NewMalgo(log zerolog.Logger) (Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug().Str("backend", BackendMalgo).Msg(strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio: %w", err)
	}
	return &malgoBackend{ctx: ctx}, nil
}

func (m *malgoBackend) Name() string { return BackendMalgo }

func (m *malgoBackend) Devices() ([]AudioDevice, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(infos))
	for i, info := range infos {
		result = append(result, AudioDevice{
			Index:   i,
			ID:      info.ID.String(),
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return result, nil
}

func (m *malgoBackend) Open(index int, want Spec, cb Callback) (Stream, Spec, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, Spec{}, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if len(infos) == 0 {
		return nil, Spec{}, fmt.Errorf("%w: no capture devices", ErrDeviceUnavailable)
	}
	if index >= len(infos) {
		return nil, Spec{}, fmt.Errorf("%w: index %d out of range (%d inputs)", ErrDeviceUnavailable, index, len(infos))
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(want.SampleRate)
	cfg.PeriodSizeInFrames = uint32(want.FramesPerBuffer)
	name := "default"
	if index >= 0 {
		cfg.Capture.DeviceID = infos[index].ID.Pointer()
		name = infos[index].Name()
	}

	device, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			cb(in)
		},
	})
	if err != nil {
		return nil, Spec{}, fmt.Errorf("%w %q: %w", ErrDeviceOpen, name, err)
	}

	got := Spec{
		SampleRate:      int(device.SampleRate()),
		Channels:        int(device.CaptureChannels()),
		FramesPerBuffer: want.FramesPerBuffer,
	}
	return &malgoStream{device: device}, got, nil
}

func (m *malgoBackend) Terminate() error {
	err := m.ctx.Uninit()
	m.ctx.Free()
	return err
}

func (s *malgoStream) SetRunning(running bool) error {
	if running {
		if err := s.device.Start(); err != nil {
			return fmt.Errorf("failed to start capture device: %w", err)
		}
		return nil
	}
	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (s *malgoStream) Close() error {
	s.device.Uninit()
	return nil
}
