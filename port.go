package selector

import (
	"context"

	"github.com/alesr/inputselector/segment"
	"github.com/oklog/ulid/v2"
)

// cacheEntry is one replayable forwarded buffer, snapshotted with the
// segment state it was forwarded under (spec.md §4.3).
type cacheEntry struct {
	buffer        Buffer
	segment       segment.Segment
	segmentUpdate bool
}

// PortOption configures an InputPort at construction, the same functional
// option idiom the teacher uses for StreamBufferOption.
type PortOption func(*InputPort)

// WithAlwaysOK makes a non-active port answer StatusOK instead of
// StatusNotLinked to its producer, per spec.md §3.2/§4.6.
func WithAlwaysOK() PortOption {
	return func(p *InputPort) { p.alwaysOK = true }
}

// InputPort is one of the selector's N sink inputs. All mutable fields
// are guarded by the owning Selector's lock; InputPort holds no lock of
// its own (spec.md §5: a single lock covers selector and per-input
// state alike).
type InputPort struct {
	name  string // ULID identity, §SPEC_FULL domain stack
	index int
	sel   *Selector // non-owning back-reference, spec.md §9

	segment        segment.Segment
	segmentUpdate  bool
	segmentPending bool
	activeSeen     bool
	pushed         bool
	eos            bool
	eosSent        bool
	discont        bool
	flushing       bool
	alwaysOK       bool
	tags           TagList
	cache          []cacheEntry
	sendingCache   bool

	tagsCh chan TagList
}

func newInputPort(sel *Selector, index int, opts ...PortOption) *InputPort {
	p := &InputPort{
		name:    ulid.Make().String(),
		index:   index,
		sel:     sel,
		segment: segment.Segment{Format: segment.Undefined},
		tagsCh:  make(chan TagList, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the port's process-unique identity.
func (p *InputPort) Name() string { return p.name }

// Index returns the port's ordinal position among the selector's inputs.
func (p *InputPort) Index() int { return p.index }

// IsActive reports whether this is currently the selector's active input.
// Takes the selector lock; safe to call from any goroutine.
func (p *InputPort) IsActive() bool {
	p.sel.mu.Lock()
	defer p.sel.mu.Unlock()
	return p.sel.active == p
}

// Tags returns a channel that receives the port's merged tag list
// whenever a tag event is merged in (spec.md §4.6 "tags" change signal).
// Buffered depth 1: a consumer that falls behind only sees the latest
// tags, matching the teacher's best-effort channel notifications.
func (p *InputPort) Tags() <-chan TagList { return p.tagsCh }

// RunningTime returns the running time at this port's current
// LastStop, the read-only "running-time" property from spec.md §4.6.
func (p *InputPort) RunningTime() (int64, bool) {
	p.sel.mu.Lock()
	defer p.sel.mu.Unlock()
	return p.runningTimeLocked()
}

func (p *InputPort) runningTimeLocked() (int64, bool) {
	if p.segment.LastStop == segment.None {
		return 0, false
	}
	return p.segment.RunningTime(p.segment.LastStop)
}

func (p *InputPort) notifyTags() {
	select {
	case <-p.tagsCh:
	default:
	}
	select {
	case p.tagsCh <- p.tags:
	default:
	}
}

// reset restores the port's segment, flags and cache to their
// post-construction values, performed on flush-stop and on a not-ready
// transition (spec.md §3.2 lifecycle). Merged tags and the always-ok
// option are kept.
func (p *InputPort) reset() {
	p.segment = segment.Segment{Format: segment.Undefined}
	p.segmentUpdate = false
	p.segmentPending = false
	p.activeSeen = false
	p.pushed = false
	p.eos = false
	p.eosSent = false
	p.discont = false
	p.flushing = false
	p.cache = nil
	p.sendingCache = false
}

// HandleEvent routes one of the five event kinds against this port's and
// the selector's state (spec.md §4.2 "Event handling").
func (p *InputPort) HandleEvent(ctx context.Context, ev Event) PushStatus {
	sel := p.sel
	sel.mu.Lock()

	switch ev.Kind {
	case EventFlushStart:
		p.flushing = true
		sel.cond.Broadcast()
		active := sel.active == p
		sel.mu.Unlock()
		if active {
			return sel.output.pushEvent(ctx, ev)
		}
		return StatusOK

	case EventFlushStop:
		p.reset()
		sel.pendingClose = false
		active := sel.active == p
		sel.cond.Broadcast()
		sel.mu.Unlock()
		if active {
			return sel.output.pushEvent(ctx, ev)
		}
		return StatusOK

	case EventSegment:
		p.segment = ev.Segment
		p.segmentUpdate = ev.Update
		if sel.active != p {
			p.segmentPending = true
			sel.mu.Unlock()
			return StatusOK
		}
		sel.mu.Unlock()
		return sel.output.pushEvent(ctx, ev)

	case EventTag:
		if p.tags != nil {
			p.tags = p.tags.Merge(ev.Tags)
		} else {
			p.tags = ev.Tags
		}
		p.notifyTags()
		active := sel.active == p
		sel.mu.Unlock()
		if active {
			return sel.output.pushEvent(ctx, ev)
		}
		return StatusOK

	case EventEOS:
		p.eos = true
		forward := sel.active == p
		onBehalf := false
		if !forward && sel.active != nil && sel.active.eos && !sel.active.eosSent {
			forward = true
			onBehalf = true
		}
		if forward {
			// EOS goes downstream at most once in the selector's life.
			for _, in := range sel.inputs {
				if in.eosSent {
					forward = false
					break
				}
			}
		}
		if forward {
			if onBehalf {
				sel.active.eosSent = true
			} else {
				p.eosSent = true
			}
		}
		sel.mu.Unlock()
		if forward {
			return sel.output.pushEvent(ctx, ev)
		}
		return StatusOK

	default: // EventOther
		active := sel.active == p
		sel.mu.Unlock()
		if active {
			return sel.output.pushEvent(ctx, ev)
		}
		return StatusOK
	}
}

// referenceRunningTime computes the time a non-active buffer must stay
// behind, per spec.md §4.2 "Reference running time". ok is false when
// there is no reference (selector should let the caller through).
func (sel *Selector) referenceRunningTime() (rt int64, ok bool) {
	switch sel.syncMode {
	case SyncClock:
		if sel.clock == nil {
			return 0, false
		}
		now := int64(sel.clock.Time())
		base := int64(sel.clock.BaseTime())
		rt = now - base
		if rt < 0 {
			rt = 0
		}
		return rt, true
	default: // SyncActiveSegment
		if sel.active == nil {
			return 0, false
		}
		return sel.active.runningTimeLocked()
	}
}

// Chain ingests one buffer arriving on this port, gating it against the
// selector's block/sync/active state (spec.md §4.2 "Buffer handling").
func (p *InputPort) Chain(ctx context.Context, buf Buffer) PushStatus {
	sel := p.sel
	sel.mu.Lock()

	if sel.flushing || p.flushing {
		sel.mu.Unlock()
		return StatusFlushing
	}

	for sel.blocked && !sel.flushing && !p.flushing {
		sel.cond.Wait()
	}
	if sel.flushing || p.flushing {
		sel.mu.Unlock()
		return StatusFlushing
	}

	if sel.active == nil {
		sel.active = p
	}

	ts := buf.Timestamp()
	if ts != segment.None {
		p.segment.LastStop = ts
	}

	if sel.syncStreams {
		notPushed := sel.active == p && !p.pushed
		if (sel.active != p || notPushed) && sel.cacheBuffers && len(p.cache) > 0 && !p.sendingCache {
			p.replayCache(ctx)
		}
	}

	for sel.active != p {
		refRT, hasRef := sel.referenceRunningTime()
		if !hasRef {
			break
		}
		bufEnd := bufferEndRunningTime(buf, p.segment)
		if bufEnd < refRT {
			break
		}
		if sel.flushing || p.flushing {
			break
		}
		sel.cond.Wait()
	}

	if sel.flushing || p.flushing {
		sel.mu.Unlock()
		return StatusFlushing
	}

	if sel.active != p {
		p.discont = true
		status := StatusNotLinked
		if p.alwaysOK || !sel.active.pushed {
			status = StatusOK
		}
		sel.mu.Unlock()
		return status
	}

	// This port is active: emit any pending close/open segment, stamp
	// discont, forward, then update bookkeeping.
	var events []Event
	if sel.pendingClose {
		events = append(events, sel.closeSegmentEvent())
		sel.pendingClose = false
	}
	if p.segmentPending {
		events = append(events, sel.openSegmentEvent(p))
		p.segmentPending = false
	}

	if p.discont {
		buf = buf.SetDiscont(true)
		p.discont = false
	}

	doCache := sel.syncStreams && sel.cacheBuffers
	sel.mu.Unlock()

	for _, ev := range events {
		if st := sel.output.pushEvent(ctx, ev); st != StatusOK {
			return st
		}
	}
	status := sel.output.pushBuffer(ctx, buf)

	sel.mu.Lock()
	if status == StatusOK {
		p.pushed = true
		p.activeSeen = true
		if doCache {
			// a buffer replayed from the cache is already in it; appending
			// it again would keep replayCache from ever draining the cache.
			if !p.sendingCache {
				entry := cacheEntry{buffer: buf, segment: p.segment, segmentUpdate: p.segmentUpdate}
				p.cache = append(p.cache, entry)
			}
			sel.pruneLocked()
		}
	}
	if sel.syncStreams {
		sel.cond.Broadcast()
	}
	sel.mu.Unlock()
	return status
}

// replayCache re-invokes Chain for every cached buffer in order, as
// described in spec.md §4.3. The lock is released across each replayed
// call (spec.md §9 resolves the "open question" this way: re-acquire and
// re-evaluate active after, never hold the lock across a recursive
// Chain). Must be called with sel.mu held; returns with it held.
func (p *InputPort) replayCache(ctx context.Context) {
	sel := p.sel
	p.sendingCache = true
	defer func() { p.sendingCache = false }()

	savedSegment := p.segment
	savedSegmentUpdate := p.segmentUpdate

	for len(p.cache) > 0 {
		entry := p.cache[0]
		p.segment = entry.segment
		p.segmentUpdate = entry.segmentUpdate
		p.segmentPending = true

		sel.mu.Unlock()
		p.Chain(ctx, entry.buffer)
		sel.mu.Lock()

		if len(p.cache) == 0 {
			break
		}
		// the entry we just replayed may already have been pruned by
		// Chain's own pruneLocked call; only pop it if it's still
		// sitting at the front (identity via buffer pointer equality
		// isn't available generically, so compare by timestamp).
		if p.cache[0].buffer.Timestamp() == entry.buffer.Timestamp() {
			p.cache = p.cache[1:]
		}
		if sel.active != p {
			break
		}
	}

	// restore the segment the real incoming buffer arrived under; the
	// replay loop above overwrote it with each cached entry's own
	// snapshot and must not leak that into the buffer that triggered it.
	p.segment = savedSegment
	p.segmentUpdate = savedSegmentUpdate
	p.segmentPending = true
}

// bufferEndRunningTime is the running time at (timestamp+duration),
// clamped to segment.Stop when defined, used by both the sync wait
// (spec.md §4.2) and the pruner (spec.md §4.3).
func bufferEndRunningTime(buf Buffer, seg segment.Segment) int64 {
	ts := buf.Timestamp()
	if ts == segment.None {
		return segment.None
	}
	end := ts
	if d := buf.Duration(); d != segment.None {
		end += d
	}
	if seg.Stop != segment.None && end > seg.Stop {
		end = seg.Stop
	}
	rt, ok := seg.RunningTime(end)
	if !ok {
		return segment.None
	}
	return rt
}

// RequestBuffer answers the optional upstream allocation hook
// (spec.md §4.2 "Allocation request").
func (p *InputPort) RequestBuffer() PushStatus {
	sel := p.sel
	sel.mu.Lock()
	defer sel.mu.Unlock()
	if sel.active == p {
		return StatusOK
	}
	if p.alwaysOK || sel.active == nil || !sel.active.pushed || sel.cacheBuffers {
		return StatusOK
	}
	return StatusNotLinked
}
