package audio

import (
	"errors"
	"testing"
	"time"
	"unsafe"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

func TestFramesFor(t *testing.T) {
	tests := []struct {
		rate  int
		chunk time.Duration
		want  int
	}{
		{16000, 32 * time.Millisecond, 512},
		{44100, 10 * time.Millisecond, 441},
		{48000, 0, 0},
		{22050, 1 * time.Millisecond, 22}, // 22.05 rounds down
		{8000, 1500 * time.Microsecond, 12},
	}

	for _, tt := range tests {
		if got := FramesFor(tt.rate, tt.chunk); got != tt.want {
			t.Errorf("FramesFor(%d, %v) = %d, want %d", tt.rate, tt.chunk, got, tt.want)
		}
	}
}

func TestSelectInput(t *testing.T) {
	mic := &portaudio.DeviceInfo{Name: "USB Mic", MaxInputChannels: 1}
	builtin := &portaudio.DeviceInfo{Name: "Built-in", MaxInputChannels: 2}
	inputs := []*portaudio.DeviceInfo{builtin, mic}

	got, err := selectInput(inputs, builtin, DefaultDevice)
	if err != nil || got != builtin {
		t.Fatalf("default: got %v, %v", got, err)
	}

	got, err = selectInput(inputs, builtin, 1)
	if err != nil || got != mic {
		t.Fatalf("index 1: got %v, %v", got, err)
	}

	if _, err := selectInput(inputs, builtin, 2); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for out of range index, got %v", err)
	}

	if _, err := selectInput(nil, nil, DefaultDevice); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable without a default device, got %v", err)
	}
}

func TestFloat32Bytes(t *testing.T) {
	samples := []float32{0.5, -1}
	raw := float32Bytes(samples)

	if len(raw) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(raw))
	}
	if &raw[0] != (*byte)(unsafe.Pointer(&samples[0])) {
		t.Fatal("expected bytes to alias the sample memory")
	}
	if float32Bytes(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New("jack", zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
