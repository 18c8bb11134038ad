package capture

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/streamcap/internal/audio"
)

func newTestSession(t *testing.T, retention time.Duration, obtained int) (*Session, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend(obtained)
	s := New(Config{
		Retention: retention,
		Backend:   backend,
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(func() { s.Close() })
	return s, backend
}

func startedSession(t *testing.T, retention time.Duration, obtained int) (*Session, *fakeBackend) {
	t.Helper()
	s, backend := newTestSession(t, retention, obtained)
	require.NoError(t, s.Init(audio.DefaultDevice, obtained, 32*time.Millisecond))
	require.NoError(t, s.Start())
	return s, backend
}

func pattern(start, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte((start + i) % 251)
	}
	return out
}

func TestInitSizesRingFromObtainedRate(t *testing.T) {
	s, backend := newTestSession(t, time.Second, 16000)

	// Ask for 48kHz; the device only grants 16kHz.
	require.NoError(t, s.Init(audio.DefaultDevice, 48000, 20*time.Millisecond))

	assert.Equal(t, StateInitialized, s.State())
	assert.Equal(t, 16000, s.SampleRate())
	assert.Equal(t, 48000, backend.opened.SampleRate)
	assert.Equal(t, 960, backend.opened.FramesPerBuffer)
	assert.Equal(t, 1, backend.opened.Channels)

	st := s.Stats()
	assert.Equal(t, 64000, st.CapacityBytes)
	assert.Equal(t, time.Second, st.Available)
	assert.Equal(t, time.Second, s.AvailableDuration())
	assert.Zero(t, s.BufferedDuration())
}

func TestInitFailures(t *testing.T) {
	t.Run("invalid index", func(t *testing.T) {
		s, _ := newTestSession(t, time.Second, 16000)
		err := s.Init(3, 16000, 32*time.Millisecond)
		assert.ErrorIs(t, err, audio.ErrDeviceUnavailable)
		assert.Equal(t, StateUninitialized, s.State())
	})

	t.Run("open error", func(t *testing.T) {
		s, backend := newTestSession(t, time.Second, 16000)
		backend.openErr = audio.ErrDeviceOpen
		err := s.Init(audio.DefaultDevice, 16000, 32*time.Millisecond)
		assert.ErrorIs(t, err, audio.ErrDeviceOpen)
		assert.Equal(t, StateUninitialized, s.State())
	})

	t.Run("no usable rate", func(t *testing.T) {
		s, backend := newTestSession(t, time.Second, 0)
		err := s.Init(audio.DefaultDevice, 16000, 32*time.Millisecond)
		assert.ErrorIs(t, err, audio.ErrDeviceOpen)
		assert.Equal(t, StateUninitialized, s.State())
		assert.True(t, backend.stream.closed)
	})

	t.Run("non-positive requested rate", func(t *testing.T) {
		s, _ := newTestSession(t, time.Second, 16000)
		assert.Error(t, s.Init(audio.DefaultDevice, 0, 32*time.Millisecond))
		assert.Equal(t, StateUninitialized, s.State())
	})

	t.Run("init twice", func(t *testing.T) {
		s, _ := newTestSession(t, time.Second, 16000)
		require.NoError(t, s.Init(audio.DefaultDevice, 16000, 32*time.Millisecond))
		assert.ErrorIs(t, s.Init(audio.DefaultDevice, 16000, 32*time.Millisecond), ErrInvalidState)
	})
}

func TestStateTransitions(t *testing.T) {
	s, backend := newTestSession(t, time.Second, 16000)

	assert.ErrorIs(t, s.Start(), ErrInvalidState, "start before init")
	assert.ErrorIs(t, s.Stop(), ErrInvalidState, "stop before init")

	require.NoError(t, s.Init(audio.DefaultDevice, 16000, 32*time.Millisecond))
	assert.ErrorIs(t, s.Stop(), ErrInvalidState, "stop while initialized")

	require.NoError(t, s.Start())
	assert.Equal(t, StateRunning, s.State())
	assert.True(t, backend.stream.isRunning())
	assert.ErrorIs(t, s.Start(), ErrInvalidState, "start while running")

	require.NoError(t, s.Pause())
	assert.Equal(t, StatePaused, s.State())
	assert.False(t, backend.stream.isRunning())
	assert.ErrorIs(t, s.Pause(), ErrInvalidState, "pause while paused")

	require.NoError(t, s.Resume())
	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, 2, backend.stream.starts)
	assert.Equal(t, 1, backend.stream.stops)
}

func TestStartFailureRestoresState(t *testing.T) {
	s, backend := newTestSession(t, time.Second, 16000)
	backend.startErr = errors.New("device busy")
	require.NoError(t, s.Init(audio.DefaultDevice, 16000, 32*time.Millisecond))

	assert.Error(t, s.Start())
	assert.Equal(t, StateInitialized, s.State())

	s.Callback(pattern(0, 64))
	assert.Zero(t, s.Stats().BufferedBytes)
}

func TestBufferedDurationScenario(t *testing.T) {
	s, backend := startedSession(t, time.Second, 16000)
	require.Equal(t, 64000, s.Stats().CapacityBytes)

	backend.deliver(pattern(0, 32000))
	assert.Equal(t, 500*time.Millisecond, s.BufferedDuration())

	out, got := s.Get(300*time.Millisecond, nil)
	assert.Equal(t, 300*time.Millisecond, got)
	assert.Len(t, out, 19200)
	assert.Equal(t, pattern(0, 19200), out)

	assert.Equal(t, 200*time.Millisecond, s.BufferedDuration())
	assert.Equal(t, 12800, s.Stats().BufferedBytes)
}

func TestGetReturnsShorterSpanWhenUnderfilled(t *testing.T) {
	s, backend := startedSession(t, time.Second, 16000)
	backend.deliver(pattern(0, 6400)) // 100ms

	out, got := s.Get(time.Second, make([]byte, 0, 64000))
	assert.Equal(t, 100*time.Millisecond, got)
	assert.Len(t, out, 6400)

	out, got = s.Get(time.Second, out)
	assert.Zero(t, got)
	assert.Len(t, out, 6400)
}

func TestGetAppendsToCallerBuffer(t *testing.T) {
	s, backend := startedSession(t, time.Second, 16000)
	backend.deliver(pattern(10, 640))

	dst := []byte("hdr")
	dst, got := s.Get(10*time.Millisecond, dst)
	assert.Equal(t, 10*time.Millisecond, got)
	assert.Equal(t, append([]byte("hdr"), pattern(10, 640)...), dst)
}

func TestGetWhileNotRunning(t *testing.T) {
	t.Run("never initialized", func(t *testing.T) {
		s, _ := newTestSession(t, time.Second, 16000)
		out, got := s.Get(time.Second, nil)
		assert.Zero(t, got)
		assert.Nil(t, out)
	})

	t.Run("paused", func(t *testing.T) {
		s, backend := startedSession(t, time.Second, 16000)
		backend.deliver(pattern(0, 3200))
		require.NoError(t, s.Stop())

		dst := []byte{1}
		out, got := s.Get(time.Second, dst)
		assert.Zero(t, got)
		assert.Equal(t, []byte{1}, out)
		assert.Equal(t, 3200, s.Stats().BufferedBytes)
		assert.Equal(t, 50*time.Millisecond, s.BufferedDuration())
	})
}

func TestCallbackIgnoredUnlessRunning(t *testing.T) {
	s, _ := newTestSession(t, time.Second, 16000)
	s.Callback(pattern(0, 64))

	require.NoError(t, s.Init(audio.DefaultDevice, 16000, 32*time.Millisecond))
	s.Callback(pattern(0, 64))
	assert.Zero(t, s.Stats().BufferedBytes)

	require.NoError(t, s.Start())
	s.Callback(pattern(0, 64))
	require.NoError(t, s.Stop())
	s.Callback(pattern(0, 64))

	st := s.Stats()
	assert.Equal(t, 64, st.BufferedBytes)
	assert.Equal(t, uint64(64), st.AppendedBytes)
}

func TestOverflowDropsNewestAndCounts(t *testing.T) {
	s, backend := startedSession(t, time.Second, 16000)

	for i := 0; i < 3; i++ {
		backend.deliver(pattern(i*40000, 40000))
		assert.LessOrEqual(t, s.Stats().BufferedBytes, 64000)
	}

	st := s.Stats()
	assert.Equal(t, 64000, st.BufferedBytes)
	assert.Zero(t, st.FreeBytes)
	assert.Equal(t, uint64(64000), st.AppendedBytes)
	assert.Equal(t, uint64(56000), st.DroppedBytes)
	assert.Equal(t, uint64(2), st.OverflowEvents)
	assert.Zero(t, s.AvailableDuration())

	// First chunk intact, then the prefix of the second.
	out, got := s.Get(time.Second, nil)
	assert.Equal(t, time.Second, got)
	assert.Equal(t, pattern(0, 64000), out)
}

func TestClear(t *testing.T) {
	s, backend := newTestSession(t, time.Second, 16000)
	assert.ErrorIs(t, s.Clear(), ErrInvalidState)

	require.NoError(t, s.Init(audio.DefaultDevice, 16000, 32*time.Millisecond))
	require.NoError(t, s.Start())
	backend.deliver(pattern(0, 6400))

	require.NoError(t, s.Clear())
	assert.Zero(t, s.BufferedDuration())
	assert.Equal(t, time.Second, s.AvailableDuration())
	assert.True(t, backend.stream.isRunning())

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Clear(), ErrInvalidState)
}

func TestCloseReleasesDevice(t *testing.T) {
	s, backend := startedSession(t, time.Second, 16000)
	backend.deliver(pattern(0, 6400))

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
	assert.True(t, backend.stream.closed)
	assert.Zero(t, s.Stats().BufferedBytes)

	s.Callback(pattern(0, 64))
	_, got := s.Get(time.Second, nil)
	assert.Zero(t, got)
	assert.ErrorIs(t, s.Start(), ErrInvalidState)

	require.NoError(t, s.Close(), "close is idempotent")
}

func TestCloseUninitialized(t *testing.T) {
	s, _ := newTestSession(t, time.Second, 16000)
	assert.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
}

func TestNoAppendAfterStopReturns(t *testing.T) {
	s, _ := startedSession(t, time.Second, 16000)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				s.Callback(pattern(0, 64))
			}
		}
	}()

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Stop())
	after := s.Stats().AppendedBytes

	time.Sleep(5 * time.Millisecond)
	close(done)
	wg.Wait()

	assert.Equal(t, after, s.Stats().AppendedBytes)
}

// TestConcurrentProducerConsumer streams numbered words through the session
// from a producer goroutine while the test drains it. Overflow may cut the
// tail off a chunk, so the output must be, in order, a prefix of every chunk
// that was kept.
func TestConcurrentProducerConsumer(t *testing.T) {
	s, backend := startedSession(t, 100*time.Millisecond, 16000)
	const words = 128
	const chunks = 2000

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		for i := 0; i < chunks; i++ {
			backend.deliver(numberedChunk(i, words))
		}
	}()

	var out []byte
	buf := make([]byte, 0, 64000)
	for finished := false; !finished; {
		select {
		case <-producerDone:
			finished = true
		default:
		}
		buf, _ = s.Get(7*time.Millisecond, buf[:0])
		out = append(out, buf...)
	}
	buf, _ = s.Get(time.Second, buf[:0])
	out = append(out, buf...)

	st := s.Stats()
	assert.Equal(t, uint64(len(out)), st.AppendedBytes)
	assert.Equal(t, st.AppendedBytes, st.ConsumedBytes)
	assert.Equal(t, uint64(chunks*words*4), st.AppendedBytes+st.DroppedBytes)
	require.Zero(t, len(out)%4)

	lastChunk, nextWord := -1, 0
	for off := 0; off < len(out); off += 4 {
		c := int(binary.LittleEndian.Uint16(out[off:]))
		w := int(binary.LittleEndian.Uint16(out[off+2:]))
		if c != lastChunk {
			require.Greater(t, c, lastChunk, "chunks out of order at byte %d", off)
			require.Zero(t, w, "chunk %d does not start at its first word", c)
			lastChunk, nextWord = c, 0
		}
		require.Equal(t, nextWord, w, "gap inside chunk %d", c)
		nextWord++
	}
}

func numberedChunk(chunk, words int) []byte {
	out := make([]byte, words*4)
	for w := 0; w < words; w++ {
		binary.LittleEndian.PutUint16(out[w*4:], uint16(chunk))
		binary.LittleEndian.PutUint16(out[w*4+2:], uint16(w))
	}
	return out
}
