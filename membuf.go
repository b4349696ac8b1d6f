package selector

import (
	"sync"

	"github.com/alesr/inputselector/segment"
)

// memBuffer is a reference Buffer implementation backed by a pooled byte
// slice, used by tests and by the demo producer. Real hosts supply their
// own Buffer; the selector never assumes this concrete type.
type memBuffer struct {
	data    []byte
	ts      int64
	dur     int64
	discont bool
	pool    *BufferPool
}

// NewBuffer wraps payload with timing metadata into a Buffer. If pool is
// non-nil, the returned buffer's backing array was drawn from it and
// should eventually be returned with pool.put via Release.
func NewBuffer(pool *BufferPool, payload []byte, ts, dur int64) Buffer {
	var data []byte
	if pool != nil {
		data = pool.get()
		data = append(data, payload...)
	} else {
		data = append([]byte(nil), payload...)
	}
	return &memBuffer{data: data, ts: ts, dur: dur, pool: pool}
}

func (b *memBuffer) Timestamp() int64 { return b.ts }
func (b *memBuffer) Duration() int64  { return b.dur }
func (b *memBuffer) Discont() bool    { return b.discont }

func (b *memBuffer) SetDiscont(v bool) Buffer {
	clone := *b
	clone.discont = v
	return &clone
}

// Bytes exposes the payload for tests/demo inspection.
func (b *memBuffer) Bytes() []byte { return b.data }

// Release returns the buffer's backing array to its pool, if any. Safe
// to call on buffers created without a pool (no-op).
func (b *memBuffer) Release() {
	if b.pool != nil {
		b.pool.put(b.data)
		b.data = nil
	}
}

// BufferPool recycles byte slices backing memBuffer payloads, adapted
// from the teacher's sync.Pool-based bufferpool (same get/put/maxSize
// shape, scoped here to the reference Buffer implementation rather than
// a library-owned type, since real Buffer payloads belong to the host
// framework).
type BufferPool struct {
	pool    sync.Pool
	maxSize int
}

const defaultMaxPooledBufferSize = 1 << 20 // 1MiB

// NewBufferPool creates a pool sized for payloads around sizeHint bytes.
func NewBufferPool(sizeHint int, maxSize int) *BufferPool {
	if maxSize <= 0 {
		maxSize = defaultMaxPooledBufferSize
	}
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return make([]byte, 0, sizeHint)
			},
		},
		maxSize: maxSize,
	}
}

func (p *BufferPool) get() []byte {
	buf := p.pool.Get().([]byte)
	return buf[:0]
}

func (p *BufferPool) put(buf []byte) {
	if buf != nil && cap(buf) <= p.maxSize {
		p.pool.Put(buf)
	}
}

// SegmentEvent builds an EventSegment event, a small convenience for
// hosts/tests constructing the spec.md §6 segment event variant.
func SegmentEvent(seg segment.Segment, update bool) Event {
	return Event{Kind: EventSegment, Segment: seg, Update: update}
}

// mapTagList is a reference TagList implementation: a string-keyed map
// where Merge replaces on key conflict (spec.md §6 "new-replaces-on-conflict").
type mapTagList map[string]string

func (t mapTagList) Merge(newer TagList) TagList {
	out := make(mapTagList, len(t))
	for k, v := range t {
		out[k] = v
	}
	if nt, ok := newer.(mapTagList); ok {
		for k, v := range nt {
			out[k] = v
		}
	}
	return out
}

// NewTags builds a reference TagList from a flat key/value map.
func NewTags(kv map[string]string) TagList {
	out := make(mapTagList, len(kv))
	for k, v := range kv {
		out[k] = v
	}
	return out
}
