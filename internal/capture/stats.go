package capture

import "time"

// Stats is a point-in-time snapshot of a session.
type Stats struct {
	State      State
	SampleRate int

	CapacityBytes int
	BufferedBytes int
	FreeBytes     int
	Buffered      time.Duration
	Available     time.Duration

	AppendedBytes  uint64
	ConsumedBytes  uint64
	DroppedBytes   uint64
	OverflowEvents uint64
}

// Stats returns a consistent snapshot of occupancy plus the running counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		State:      s.state,
		SampleRate: s.sampleRate,
	}
	if s.ring != nil {
		st.CapacityBytes = s.ring.Cap()
		st.BufferedBytes = s.ring.Len()
		st.FreeBytes = s.ring.Free()
	}
	s.mu.Unlock()

	st.Buffered = DurationFor(st.BufferedBytes, st.SampleRate)
	st.Available = DurationFor(st.FreeBytes, st.SampleRate)
	st.AppendedBytes = s.appended.Load()
	st.ConsumedBytes = s.consumed.Load()
	st.DroppedBytes = s.dropped.Load()
	st.OverflowEvents = s.overflows.Load()
	return st
}
