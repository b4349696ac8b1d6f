// Package selector implements an N-to-1 input stream selector: a
// pipeline node that accepts media buffers and stream events on N
// parallel inputs and forwards exactly one of them at a time through a
// single output, preserving downstream stream-time continuity across
// switches.
//
// The package owns the synchronization and routing logic only; the host
// framework that instantiates ports, negotiates formats, and supplies a
// Clock is an external collaborator (spec.md §1).
package selector

import (
	"log/slog"
	"sync"

	"github.com/alesr/inputselector/segment"
)

// SyncMode selects the reference-running-time source used by the
// sync-streams wait (spec.md §3.3, §4.2).
type SyncMode int

const (
	SyncActiveSegment SyncMode = iota
	SyncClock
)

// Option configures a Selector at construction, the teacher's functional
// option idiom generalized from StreamBufferOption.
type Option func(*Selector)

// WithSyncStreams enables the sync-streams gating branch in InputPort.Chain.
func WithSyncStreams(on bool) Option {
	return func(s *Selector) { s.syncStreams = on }
}

// WithSyncMode selects ACTIVE_SEGMENT or CLOCK as the reference source.
func WithSyncMode(m SyncMode) Option {
	return func(s *Selector) { s.syncMode = m }
}

// WithCacheBuffers enables per-input buffer caching for switch-back replay.
func WithCacheBuffers(on bool) Option {
	return func(s *Selector) { s.cacheBuffers = on }
}

// WithClock supplies the pipeline clock used by SyncClock mode.
func WithClock(c Clock) Option {
	return func(s *Selector) { s.clock = c }
}

// WithLogger overrides the default logger. A nil logger falls back to
// slog.Default(), so this option is never required.
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}

// Selector holds the global lock and condition variable, the active
// input, the block/flush/sync state, the stream-wide segment, and owns
// every input and the single output (spec.md §3.3).
type Selector struct {
	mu   sync.Mutex
	cond *sync.Cond

	active       *InputPort
	segment      segment.Segment
	pendingClose bool
	blocked      bool
	flushing     bool

	syncStreams  bool
	syncMode     SyncMode
	cacheBuffers bool
	clock        Clock

	inputs   []*InputPort
	output   *OutputPort
	padCount int

	logger      *slog.Logger
	activePadCh chan *InputPort
}

// New creates a Selector with one output port and no inputs. Call
// RequestInputPort to add sinks.
func New(pusher Pusher, opts ...Option) *Selector {
	s := &Selector{
		segment:     segment.Segment{Format: segment.Undefined},
		syncMode:    SyncActiveSegment,
		logger:      slog.Default(),
		activePadCh: make(chan *InputPort, 1),
	}
	s.cond = sync.NewCond(&s.mu)
	s.output = newOutputPort(s, pusher)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestInputPort allocates and owns a new InputPort, mirroring the
// framework's request-pad hook (spec.md §6 "Request/release input
// port"; request-based sink allocation itself is an external
// collaborator, but the bookkeeping it drives — n_pads/pad_count,
// ownership — lives here).
func (s *Selector) RequestInputPort(opts ...PortOption) *InputPort {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := newInputPort(s, len(s.inputs), opts...)
	s.inputs = append(s.inputs, p)
	s.padCount++
	return p
}

// ReleaseInputPort removes a port from the selector, per spec.md §3.2
// "destroyed on input-port release". If the released port was active,
// the selector has no active input until the next first-touch or
// explicit switch.
func (s *Selector) ReleaseInputPort(p *InputPort) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cur := range s.inputs {
		if cur == p {
			s.inputs = append(s.inputs[:i], s.inputs[i+1:]...)
			break
		}
	}
	if s.active == p {
		s.active = nil
	}
	s.padCount--
	s.cond.Broadcast()
}

// Pads returns every input port currently owned by the selector, in
// request order.
func (s *Selector) Pads() []*InputPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*InputPort, len(s.inputs))
	copy(out, s.inputs)
	return out
}

// NPads returns the read-only "n-pads" property (spec.md §4.6).
func (s *Selector) NPads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.padCount
}

// ActivePad returns the currently active input, or nil.
func (s *Selector) ActivePad() *InputPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ActivePadChanges returns the channel the "active-pad" change
// notification is delivered on (spec.md §4.6 signals), buffered depth 1
// like InputPort.Tags.
func (s *Selector) ActivePadChanges() <-chan *InputPort { return s.activePadCh }

func (s *Selector) notifyActivePad(p *InputPort) {
	select {
	case <-s.activePadCh:
	default:
	}
	select {
	case s.activePadCh <- p:
	default:
	}
}

// SetReadyState transitions the selector in/out of the flushing state
// that every wait predicate checks (spec.md §5 "Cancellation /
// timeouts"). Call with ready=false before tearing the node down, and
// ready=true to clear it again after a full reset.
func (s *Selector) SetReadyState(ready bool) {
	s.mu.Lock()
	s.flushing = !ready
	if !ready {
		for _, p := range s.inputs {
			p.reset()
		}
		s.active = nil
		s.pendingClose = false
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Block halts forwarding from every input and returns the active
// input's current running time (0 if there is none), per spec.md §4.4.
func (s *Selector) Block() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blocked {
		s.logger.Warn("inputselector: block called while already blocked")
	}
	s.blocked = true

	if s.active == nil {
		return 0
	}
	rt, ok := s.active.runningTimeLocked()
	if !ok {
		return 0
	}
	return rt
}

// Switch performs the block/switch handshake of spec.md §4.4. Precondition:
// the selector must currently be blocked (via Block). stopRT/startRT may
// be segment.None ("unknown").
func (s *Selector) Switch(target *InputPort, stopRT, startRT int64) error {
	s.mu.Lock()

	if !s.blocked {
		s.mu.Unlock()
		return ErrNotBlocked
	}

	old := s.active
	if target == old {
		s.blocked = false
		s.cond.Broadcast()
		s.mu.Unlock()
		return nil
	}

	if stopRT == segment.None && old != nil {
		if rt, ok := old.runningTimeLocked(); ok {
			stopRT = rt
			startRT = rt
		}
	}

	if old != nil && old.activeSeen && stopRT >= 0 && !s.pendingClose {
		s.segment = old.segment
		segment.SetStop(&s.segment, stopRT)
		s.pendingClose = true
	}
	if old != nil {
		old.pushed = false
	}

	if target.activeSeen && startRT >= 0 {
		if s.syncStreams && s.cacheBuffers {
			if rt, ok := target.runningTimeLocked(); ok {
				startRT = rt
			}
		}
		segment.SetStart(&target.segment, startRT)
		target.segmentPending = true
	}

	// a switch is itself a discontinuity for the output stream: the next
	// buffer forwarded from target must carry discont, whether or not it
	// was ever chained while inactive.
	target.discont = true

	s.active = target
	s.blocked = false
	s.cond.Broadcast()
	s.mu.Unlock()

	s.notifyActivePad(target)
	return nil
}

// SetActivePad performs an immediate switch without requiring a prior
// Block, equivalent to switch(target, UNKNOWN, UNKNOWN) per spec.md §4.6.
func (s *Selector) SetActivePad(target *InputPort) error {
	s.mu.Lock()
	if !s.blocked {
		s.blocked = true
	}
	s.mu.Unlock()

	return s.Switch(target, segment.None, segment.None)
}

// closeSegmentEvent derives the pending close-segment update from
// sel.segment (spec.md §4.4 "Emitting pending close-segment"). Caller
// must hold sel.mu.
func (sel *Selector) closeSegmentEvent() Event {
	return Event{
		Kind:    EventSegment,
		Segment: sel.segment,
		Update:  true,
	}
}

// openSegmentEvent derives the pending open-segment event for the newly
// active input p (spec.md §4.4 "Emitting pending open-segment"). Caller
// must hold sel.mu.
func (sel *Selector) openSegmentEvent(p *InputPort) Event {
	update := false
	if sel.syncStreams && sel.cacheBuffers && p.pushed {
		update = p.segmentUpdate
	}
	return Event{
		Kind:    EventSegment,
		Segment: p.segment,
		Update:  update,
	}
}
