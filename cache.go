package selector

import "github.com/alesr/inputselector/segment"

// pruneLocked drops cached entries that have fallen behind the current
// reference running time (spec.md §4.3 "Pruning policy"). Called after
// every successful forward, with sel.mu held. Scans each input's cache
// from the front (oldest first, since entries are appended in arrival
// order) and finds the longest droppable prefix: an entry with a valid
// running time strictly less than the reference extends the prefix;
// entries with no valid timestamp are carried along provisionally
// (the "trailing drop" rule — they're older by queue order, so they
// drop whenever a later entry in the same run is confirmed droppable);
// the first entry at or after the reference stops the scan and is kept,
// along with everything after it.
func (sel *Selector) pruneLocked() {
	ref, ok := sel.referenceRunningTime()
	if !ok {
		return
	}
	for _, p := range sel.inputs {
		if len(p.cache) == 0 {
			continue
		}
		cut := -1
		for i, e := range p.cache {
			rt := bufferEndRunningTime(e.buffer, e.segment)
			if rt == segment.None {
				continue // resolved retroactively if a later entry confirms the drop
			}
			if rt < ref {
				cut = i
				continue
			}
			break // at or after the reference: keep this entry and all after it
		}
		if cut >= 0 {
			rest := make([]cacheEntry, len(p.cache)-cut-1)
			copy(rest, p.cache[cut+1:])
			p.cache = rest
		}
	}
}
