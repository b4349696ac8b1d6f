package selector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alesr/inputselector/segment"
)

// recordingPusher is a test Pusher that keeps one ordered log of
// everything forwarded downstream, so tests can assert on interleaving
// of events and buffers the same way spec.md's scenarios narrate it.
type recordingPusher struct {
	mu  sync.Mutex
	log []any
}

func (r *recordingPusher) PushEvent(_ context.Context, ev Event) PushStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, ev)
	return StatusOK
}

func (r *recordingPusher) PushBuffer(_ context.Context, buf Buffer) PushStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, buf)
	return StatusOK
}

func (r *recordingPusher) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.log))
	copy(out, r.log)
	return out
}

func mkbuf(ts, dur int64) Buffer {
	return NewBuffer(nil, []byte{0x00}, ts, dur)
}

func countBuffers(log []any) int {
	n := 0
	for _, e := range log {
		if _, ok := e.(Buffer); ok {
			n++
		}
	}
	return n
}

func countEOS(log []any) int {
	n := 0
	for _, e := range log {
		if ev, ok := e.(Event); ok && ev.Kind == EventEOS {
			n++
		}
	}
	return n
}

// S1 — Single input: segment then three buffers then EOS, all forwarded
// in arrival order with the segment preceding the first buffer.
func TestScenarioS1SingleInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pusher := &recordingPusher{}
	sel := New(pusher)
	a := sel.RequestInputPort()

	require.Equal(t, StatusOK, a.HandleEvent(ctx, SegmentEvent(segment.New(), false)))
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(0, 40)))
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(40, 40)))
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(80, 40)))
	require.Equal(t, StatusOK, a.HandleEvent(ctx, Event{Kind: EventEOS}))

	log := pusher.snapshot()
	require.Len(t, log, 5)

	seg, ok := log[0].(Event)
	require.True(t, ok)
	assert.Equal(t, EventSegment, seg.Kind)
	assert.Equal(t, int64(0), seg.Segment.Start)

	for i, want := range []int64{0, 40, 80} {
		buf, ok := log[i+1].(Buffer)
		require.True(t, ok)
		assert.Equal(t, want, buf.Timestamp())
	}

	last, ok := log[4].(Event)
	require.True(t, ok)
	assert.Equal(t, EventEOS, last.Kind)
	assert.Equal(t, 1, countEOS(log))
}

// S2 — Clean switch: A forwards two buffers, the controller blocks and
// switches to B, and B's first forwarded buffer carries discont.
func TestScenarioS2CleanSwitch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pusher := &recordingPusher{}
	sel := New(pusher)
	a := sel.RequestInputPort()
	b := sel.RequestInputPort()

	require.Equal(t, StatusOK, a.HandleEvent(ctx, SegmentEvent(segment.New(), false)))
	require.Equal(t, StatusOK, b.HandleEvent(ctx, SegmentEvent(segment.New(), false)))

	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(0, 40)))
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(40, 40)))

	rt := sel.Block()
	assert.Equal(t, int64(40), rt, "block returns the active input's last_stop running time")

	require.NoError(t, sel.Switch(b, segment.None, segment.None))

	require.Equal(t, StatusOK, b.Chain(ctx, mkbuf(80, 40)))
	require.Equal(t, StatusOK, b.Chain(ctx, mkbuf(120, 40)))

	log := pusher.snapshot()

	// sA, A0, A40, close-segment, sB, B80(discont), B120
	require.Len(t, log, 7)
	assertIsSegment(t, log[0])
	assertIsBufferAt(t, log[1], 0)
	assertIsBufferAt(t, log[2], 40)

	closeSeg := assertIsSegment(t, log[3])
	assert.True(t, closeSeg.Update)
	assert.Equal(t, int64(40), closeSeg.Segment.Stop)

	// B never forwarded a buffer before the switch, so Switch leaves its
	// segment untouched and the open segment carries B's own start of 0.
	openSeg := assertIsSegment(t, log[4])
	assert.Equal(t, int64(0), openSeg.Segment.Start)

	firstB, ok := log[5].(Buffer)
	require.True(t, ok)
	assert.Equal(t, int64(80), firstB.Timestamp())
	assert.True(t, firstB.Discont())

	assertIsBufferAt(t, log[6], 120)
}

func assertIsSegment(t *testing.T, v any) Event {
	t.Helper()
	ev, ok := v.(Event)
	require.True(t, ok, "expected a segment event, got %T", v)
	require.Equal(t, EventSegment, ev.Kind)
	return ev
}

func assertIsBufferAt(t *testing.T, v any, ts int64) {
	t.Helper()
	buf, ok := v.(Buffer)
	require.True(t, ok, "expected a buffer, got %T", v)
	assert.Equal(t, ts, buf.Timestamp())
}

// S3 — EOS race: switching away from an input that already sent EOS, to
// one that later also sends EOS, must only forward EOS once.
func TestScenarioS3EOSRace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pusher := &recordingPusher{}
	sel := New(pusher)
	a := sel.RequestInputPort()
	b := sel.RequestInputPort()

	require.Equal(t, StatusOK, a.HandleEvent(ctx, SegmentEvent(segment.New(), false)))
	require.Equal(t, StatusOK, b.HandleEvent(ctx, SegmentEvent(segment.New(), false)))
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(0, 40)))

	require.Equal(t, StatusOK, a.HandleEvent(ctx, Event{Kind: EventEOS}))

	rt := sel.Block()
	require.NoError(t, sel.Switch(b, rt, rt))

	require.Equal(t, StatusOK, b.HandleEvent(ctx, Event{Kind: EventEOS}))

	log := pusher.snapshot()
	assert.Equal(t, 1, countEOS(log), "EOS must be forwarded exactly once")
}

// S4 — Sync-streams drop: with sync_streams on and no cache, a buffer on
// an inactive input waits behind the active input's running time and is
// dropped (not forwarded) once it catches up, returning OK because
// always-ok is set.
func TestScenarioS4SyncStreamsDrop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pusher := &recordingPusher{}
	sel := New(pusher, WithSyncStreams(true), WithSyncMode(SyncActiveSegment))
	a := sel.RequestInputPort()
	b := sel.RequestInputPort(WithAlwaysOK())

	require.Equal(t, StatusOK, a.HandleEvent(ctx, SegmentEvent(segment.New(), false)))
	require.Equal(t, StatusOK, b.HandleEvent(ctx, SegmentEvent(segment.New(), false)))

	// first buffer on A makes it active via first-touch.
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(0, 40)))

	var (
		bStatus PushStatus
		wg      sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		bStatus = b.Chain(ctx, mkbuf(0, 40))
	}()

	// give B's goroutine a chance to block on the sync wait.
	time.Sleep(20 * time.Millisecond)

	// A advances strictly past B's buffer end (40); this wakes B via
	// broadcast. Sync-streams requires the non-active buffer's running
	// time to fall strictly behind the reference, so 41 (not 40) is
	// what actually releases it.
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(41, 40)))

	wg.Wait()
	assert.Equal(t, StatusOK, bStatus, "always_ok makes a dropped inactive buffer return OK")

	log := pusher.snapshot()
	assert.Equal(t, 2, countBuffers(log), "only A's two buffers were forwarded, B's was dropped")
}

// S5 — Cache replay: switching back to an input with a non-empty cache
// replays its buffered entries before the discont flag clears.
func TestScenarioS5CacheReplay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pusher := &recordingPusher{}
	sel := New(pusher, WithSyncStreams(true), WithCacheBuffers(true))
	a := sel.RequestInputPort(WithAlwaysOK())
	b := sel.RequestInputPort(WithAlwaysOK())

	require.Equal(t, StatusOK, a.HandleEvent(ctx, SegmentEvent(segment.New(), false)))
	require.Equal(t, StatusOK, b.HandleEvent(ctx, SegmentEvent(segment.New(), false)))

	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(0, 40)))
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(40, 40)))
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(80, 40)))

	require.Greater(t, len(a.cache), 0, "active input should have accumulated a cache")

	rt := sel.Block()
	require.NoError(t, sel.Switch(b, rt, rt))

	rt2 := sel.Block()
	require.NoError(t, sel.Switch(a, rt2, rt2))

	// A is active again with no buffer pushed since reactivation: the
	// next buffer triggers a cache replay before itself is forwarded.
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(120, 40)))

	log := pusher.snapshot()
	var sawDiscont bool
	var forwardedTS []int64
	for _, e := range log {
		if buf, ok := e.(Buffer); ok {
			forwardedTS = append(forwardedTS, buf.Timestamp())
			if buf.Discont() {
				sawDiscont = true
			}
		}
	}
	assert.True(t, sawDiscont, "first A buffer after reactivation must carry discont")
	assert.Contains(t, forwardedTS, int64(0))
	assert.Contains(t, forwardedTS, int64(40))
	assert.Contains(t, forwardedTS, int64(80))
	assert.Contains(t, forwardedTS, int64(120))
}

// S6 — Flush cancels wait: an inactive input blocked on the sync-streams
// wait must return FLUSHING promptly on flush-start, without the
// controller doing anything.
func TestScenarioS6FlushCancelsWait(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pusher := &recordingPusher{}
	sel := New(pusher, WithSyncStreams(true))
	a := sel.RequestInputPort()
	b := sel.RequestInputPort()

	require.Equal(t, StatusOK, a.HandleEvent(ctx, SegmentEvent(segment.New(), false)))
	require.Equal(t, StatusOK, b.HandleEvent(ctx, SegmentEvent(segment.New(), false)))
	require.Equal(t, StatusOK, a.Chain(ctx, mkbuf(0, 40)))

	done := make(chan PushStatus, 1)
	go func() {
		done <- b.Chain(ctx, mkbuf(0, 40))
	}()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StatusOK, b.HandleEvent(ctx, Event{Kind: EventFlushStart}))

	select {
	case status := <-done:
		assert.Equal(t, StatusFlushing, status)
	case <-time.After(time.Second):
		t.Fatal("Chain did not return after flush-start")
	}
}

func TestBlockReturnsZeroWithoutActiveInput(t *testing.T) {
	t.Parallel()
	sel := New(&recordingPusher{})
	assert.Equal(t, int64(0), sel.Block())
}

func TestSwitchRequiresBlock(t *testing.T) {
	t.Parallel()
	sel := New(&recordingPusher{})
	a := sel.RequestInputPort()
	assert.ErrorIs(t, sel.Switch(a, 0, 0), ErrNotBlocked)
}
