package selector

import "context"

// OutputPort is the selector's single source output: it forwards events
// and buffers handed to it by the currently active input, and answers
// upstream queries by fanning out to every input's peer (spec.md §4.5).
type OutputPort struct {
	sel    *Selector
	pusher Pusher
}

func newOutputPort(sel *Selector, pusher Pusher) *OutputPort {
	return &OutputPort{sel: sel, pusher: pusher}
}

// pushEvent forwards an event downstream. Never called with sel.mu held
// (spec.md §5 "Suspension points").
func (o *OutputPort) pushEvent(ctx context.Context, ev Event) PushStatus {
	return o.pusher.PushEvent(ctx, ev)
}

// pushBuffer forwards a buffer downstream unconditionally; capability
// negotiation is a separate, pull-based concern handled by
// InputAcceptedFormats/OutputAcceptedFormats below, not something
// pushBuffer itself restamps (spec.md §4.5 "Forwarding policy").
func (o *OutputPort) pushBuffer(ctx context.Context, buf Buffer) PushStatus {
	return o.pusher.PushBuffer(ctx, buf)
}

// UpstreamPeer is the per-input collaborator an OutputPort queries for
// latency and pass-through queries (spec.md §4.5 "Queries").
type UpstreamPeer interface {
	QueryLatency(ctx context.Context) (LatencyQuery, bool)
}

// Latency combines every input's upstream latency reply: the largest
// lower bound, the smallest upper bound, and live if any input is live.
// ok is false when no input answered, the "unanswerable" case in
// spec.md §4.5.
func (o *OutputPort) Latency(ctx context.Context, peers map[*InputPort]UpstreamPeer) (LatencyQuery, bool) {
	var (
		result   LatencyQuery
		answered bool
		maxSet   bool
	)
	result.Max = -1

	for _, peer := range peers {
		q, ok := peer.QueryLatency(ctx)
		if !ok {
			continue
		}
		if !answered || q.Min > result.Min {
			result.Min = q.Min
		}
		if q.Max >= 0 {
			if !maxSet || q.Max < result.Max {
				result.Max = q.Max
				maxSet = true
			}
		}
		result.Live = result.Live || q.Live
		answered = true
	}
	if !answered {
		return LatencyQuery{}, false
	}
	if !maxSet {
		result.Max = -1
	}
	return result, true
}

// AcceptedFormats is the capability-negotiation hook of spec.md §4.5:
// the input side reports what the output's peer accepts, and the output
// side reports what the active input's peer accepts (or "ANY" — nil —
// when unlinked).
type AcceptedFormats interface {
	Formats() []string
}

// InputAcceptedFormats returns the output peer's accepted formats, the
// "input side" half of spec.md §4.5 negotiation.
func (s *Selector) InputAcceptedFormats(outputPeer AcceptedFormats) []string {
	if outputPeer == nil {
		return nil
	}
	return outputPeer.Formats()
}

// OutputAcceptedFormats returns the active input's peer's accepted
// formats, or nil ("ANY") when no input is active.
func (s *Selector) OutputAcceptedFormats(activeInputPeer AcceptedFormats) []string {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active == nil || activeInputPeer == nil {
		return nil
	}
	return activeInputPeer.Formats()
}
