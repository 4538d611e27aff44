// Package sampling provides sample-time schedules and the registry that
// associates them with probe sets and callbacks.
package sampling

import "sort"

// Schedule generates sample time points. EventsBetween is stateful: it must
// be called with non-overlapping, monotonically increasing half-open
// intervals, which matches how the engine consumes schedules epoch by
// epoch. Reset rewinds to the start of time.
type Schedule interface {
	// EventsBetween returns all sample times t with t0 <= t < t1.
	EventsBetween(t0, t1 float64) []float64
	Reset()
}

// RegularSchedule samples at every non-negative multiple of its period.
type RegularSchedule struct {
	period float64
	n      int
}

// NewRegularSchedule returns a schedule sampling at 0, period, 2*period...
// The period must be positive.
func NewRegularSchedule(period float64) *RegularSchedule {
	return &RegularSchedule{period: period}
}

func (s *RegularSchedule) EventsBetween(t0, t1 float64) []float64 {
	if s.period <= 0 {
		return nil
	}
	for float64(s.n)*s.period < t0 {
		s.n++
	}
	var times []float64
	for float64(s.n)*s.period < t1 {
		times = append(times, float64(s.n)*s.period)
		s.n++
	}
	return times
}

func (s *RegularSchedule) Reset() { s.n = 0 }

// ExplicitSchedule samples at a fixed list of time points.
type ExplicitSchedule struct {
	times []float64
	next  int
}

// NewExplicitSchedule returns a schedule sampling at the given times, which
// are copied and sorted.
func NewExplicitSchedule(times []float64) *ExplicitSchedule {
	ts := append([]float64(nil), times...)
	sort.Float64s(ts)
	return &ExplicitSchedule{times: ts}
}

func (s *ExplicitSchedule) EventsBetween(t0, t1 float64) []float64 {
	for s.next < len(s.times) && s.times[s.next] < t0 {
		s.next++
	}
	start := s.next
	for s.next < len(s.times) && s.times[s.next] < t1 {
		s.next++
	}
	if start == s.next {
		return nil
	}
	return s.times[start:s.next]
}

func (s *ExplicitSchedule) Reset() { s.next = 0 }
