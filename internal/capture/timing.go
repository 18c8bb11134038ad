package capture

import "time"

// SampleWidth is the size in bytes of one captured sample (mono float32).
const SampleWidth = 4

// BytesFor returns the number of bytes that hold d of audio at rate Hz,
// floor(ms * SampleWidth * rate / 1000). d is truncated to whole milliseconds
// first.
func BytesFor(d time.Duration, rate int) int {
	if d <= 0 || rate <= 0 {
		return 0
	}
	return int(d.Milliseconds() * SampleWidth * int64(rate) / 1000)
}

// DurationFor returns the whole milliseconds of audio held in n bytes at rate
// Hz. Partial samples and sub-millisecond remainders are discarded.
func DurationFor(n int, rate int) time.Duration {
	if n <= 0 || rate <= 0 {
		return 0
	}
	samples := int64(n / SampleWidth)
	return time.Duration(samples*1000/int64(rate)) * time.Millisecond
}
