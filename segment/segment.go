// Package segment implements the pure running-time arithmetic shared by
// every input of the selector: translating buffer timestamps into a
// monotonic running time, and rewriting segment boundaries at a switch.
package segment

import "math"

// Format identifies the unit a Segment's start/stop/time fields are in.
// Only Time segments participate in running-time/sync-streams arithmetic;
// Undefined segments opt an input out of time-based gating entirely.
type Format int

const (
	Undefined Format = iota
	Time
)

// None marks an unset/unknown nanosecond position, mirroring
// GST_CLOCK_TIME_NONE / GST_CLOCK_STIME_NONE in the original element.
const None int64 = math.MinInt64

// Segment describes a contiguous window of stream time being played, at a
// given rate, plus the accumulated running time of every prior segment on
// the owning input (so running time stays monotonic across updates).
type Segment struct {
	Format       Format
	Rate         float64
	AppliedRate  float64
	Start        int64
	Stop         int64 // None if unknown
	Time         int64
	LastStop     int64 // None if never observed
	Accum        int64
}

// New returns a default [0, None) segment at rate 1, the same shape the
// teacher's StreamBuffer uses for its own zero-value defaults.
func New() Segment {
	return Segment{
		Format:      Time,
		Rate:        1,
		AppliedRate: 1,
		Start:       0,
		Stop:        None,
		Time:        0,
		LastStop:    None,
		Accum:       0,
	}
}

// AbsRate returns |Rate|.
func (s Segment) AbsRate() float64 {
	return math.Abs(s.Rate)
}

// RunningTime converts timestamp t, which must lie within this segment,
// into a running time. The second return is false when the segment isn't
// Time-based or t precedes the segment's start — the "outside" case in
// spec.md §4.1.
func (s Segment) RunningTime(t int64) (int64, bool) {
	if s.Format != Time || t == None || t < s.Start {
		return 0, false
	}
	rate := s.AbsRate()
	if rate == 0 {
		rate = 1
	}
	return int64(float64(t-s.Start)/rate) + s.Accum, true
}

// TimestampFor is the inverse of RunningTime: given a running time rt, it
// returns the timestamp within this segment that maps to it. When
// rt <= Accum the result is clamped to Start, per spec.md §4.1.
func (s Segment) TimestampFor(rt int64) int64 {
	if rt <= s.Accum {
		return s.Start
	}
	rate := s.AbsRate()
	if rate == 0 {
		rate = 1
	}
	return int64(float64(rt-s.Accum)*rate) + s.Start
}

// SetStop sets Stop to the timestamp corresponding to running time rt and
// invalidates LastStop, used when closing a segment at a switch-out point.
func SetStop(s *Segment, rt int64) {
	s.Stop = s.TimestampFor(rt)
	s.LastStop = None
}

// SetStart rewrites Start (and Time/Accum alongside it) so that running
// time rt now corresponds to the segment's new Start, used when opening a
// segment at a switch-in point. Accum absorbs the running time that
// elapsed under the old Start so later RunningTime calls stay monotonic.
func SetStart(s *Segment, rt int64) {
	newStart := s.TimestampFor(rt)
	delta := newStart - s.Start
	s.Accum += delta
	s.Time += delta
	s.Start = newStart
}
