package selector

import (
	"context"
	"time"

	"github.com/alesr/inputselector/segment"
)

// Buffer is the opaque media buffer type accepted from and handed back to
// the host framework. The selector never inspects payload bytes; it only
// reads timing through this accessor set (spec.md §6).
type Buffer interface {
	// Timestamp returns the buffer's presentation time, or
	// segment.None if unset.
	Timestamp() int64
	// Duration returns the buffer's duration, or segment.None if unset.
	Duration() int64
	// Discont reports whether the DISCONT flag is currently set.
	Discont() bool
	// SetDiscont sets or clears the DISCONT flag and returns the
	// (possibly copied) buffer carrying the new flag.
	SetDiscont(bool) Buffer
}

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	EventFlushStart EventKind = iota
	EventFlushStop
	EventSegment
	EventTag
	EventEOS
	EventOther
)

// Event is the tagged event variant described in spec.md §6. Only
// EventSegment and EventTag carry a meaningful payload; the rest are
// pure markers.
type Event struct {
	Kind    EventKind
	Segment segment.Segment // valid iff Kind == EventSegment
	Update  bool            // valid iff Kind == EventSegment
	Tags    TagList         // valid iff Kind == EventTag
}

// TagList is the opaque metadata bag carried on tag events. Merge follows
// spec.md §6: the new list wins on key conflicts.
type TagList interface {
	Merge(newer TagList) TagList
}

// Clock is the pipeline clock collaborator used by sync-mode CLOCK.
type Clock interface {
	Time() uint64
	BaseTime() uint64
}

// PushStatus is the discriminated result of a downstream push, per
// spec.md §7.
type PushStatus int

const (
	StatusOK PushStatus = iota
	StatusNotLinked
	StatusFlushing
	StatusUnexpected
	StatusError
)

func (s PushStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotLinked:
		return "NOT_LINKED"
	case StatusFlushing:
		return "FLUSHING"
	case StatusUnexpected:
		return "UNEXPECTED"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Pusher is the downstream collaborator the output port forwards to.
// Implementations live in the host framework; the selector only calls
// these two methods under no lock held (spec.md §5).
type Pusher interface {
	PushEvent(context.Context, Event) PushStatus
	PushBuffer(context.Context, Buffer) PushStatus
}

// LatencyQuery is the result of combining every input's upstream latency
// reply, per spec.md §4.5.
type LatencyQuery struct {
	Live bool
	Min  time.Duration
	Max  time.Duration // negative means "no upper bound"
}
