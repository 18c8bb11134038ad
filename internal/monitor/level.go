package monitor

import (
	"encoding/binary"
	"math"
)

// Silence is the floor reported for an empty or all-zero window.
const Silence = -120.0

// Levels returns the RMS and peak of float32 samples as dBFS. samples holds
// native-endian float32 values; a trailing partial sample is ignored.
func Levels(samples []byte) (rms, peak float64) {
	n := len(samples) / 4
	if n == 0 {
		return Silence, Silence
	}

	var sum, hi float64
	for i := 0; i < n; i++ {
		v := float64(math.Float32frombits(binary.NativeEndian.Uint32(samples[i*4:])))
		if math.IsNaN(v) {
			continue
		}
		sum += v * v
		if a := math.Abs(v); a > hi {
			hi = a
		}
	}

	return dBFS(math.Sqrt(sum / float64(n))), dBFS(hi)
}

func dBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return Silence
	}
	return math.Max(20*math.Log10(amplitude), Silence)
}
