// Package producer drives a single selector input port with synthetic,
// evenly-spaced buffers, standing in for the real capture/decoder thread
// a host framework would attach. Adapted from the teacher's videocapture
// package: same Start/Stop lifecycle and options shape, but generating
// timed payloads instead of reading a webcam (this module has no camera
// hardware to bind to, and none of the retrieved examples supply one
// that fits an in-process selector's buffer-accessor contract).
package producer

import (
	"context"
	"fmt"
	"sync"
	"time"

	selector "github.com/alesr/inputselector"
	"github.com/alesr/inputselector/segment"
)

// Options configures a Producer.
type Options struct {
	FrameInterval time.Duration // spacing between buffers
	FrameDuration int64         // nanoseconds reported as each buffer's Duration
	PayloadSize   int           // bytes per synthetic buffer
}

// DefaultOptions mirrors the teacher's DefaultOptions: sane values for a
// ~30fps feed.
func DefaultOptions() Options {
	return Options{
		FrameInterval: 33 * time.Millisecond,
		FrameDuration: 33_000_000,
		PayloadSize:   188,
	}
}

// Producer feeds one InputPort with buffers on a fixed cadence until
// stopped, maintaining its own running timestamp across the feed.
type Producer struct {
	opts Options
	port *selector.InputPort
	pool *selector.BufferPool

	mu         sync.Mutex
	running    bool
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	framesSent int
	nextTS     int64
}

// New creates a Producer bound to port.
func New(port *selector.InputPort, opts Options) *Producer {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 33 * time.Millisecond
	}
	if opts.FrameDuration <= 0 {
		opts.FrameDuration = opts.FrameInterval.Nanoseconds()
	}
	if opts.PayloadSize <= 0 {
		opts.PayloadSize = 188
	}
	return &Producer{
		opts: opts,
		port: port,
		pool: selector.NewBufferPool(opts.PayloadSize, 0),
	}
}

// Start begins sending buffers in a background goroutine, returning
// immediately. It sends the initial segment event synchronously so the
// caller can rely on ordering against other producers it starts.
func (p *Producer) Start(ctx context.Context, seg segment.Segment) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("producer: already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancelFunc = cancel
	p.running = true
	p.mu.Unlock()

	if status := p.port.HandleEvent(ctx, selector.SegmentEvent(seg, false)); status != selector.StatusOK {
		return fmt.Errorf("producer: initial segment rejected: %s", status)
	}

	p.wg.Add(1)
	go p.run(runCtx)
	return nil
}

// Stop cancels the background goroutine and waits for it to exit.
func (p *Producer) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancelFunc
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Producer) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.port.HandleEvent(context.Background(), selector.Event{Kind: selector.EventEOS})
			return
		case <-ticker.C:
			buf := selector.NewBuffer(p.pool, make([]byte, p.opts.PayloadSize), p.nextTS, p.opts.FrameDuration)
			status := p.port.Chain(ctx, buf)
			p.mu.Lock()
			p.framesSent++
			p.nextTS += p.opts.FrameDuration
			p.mu.Unlock()
			if status == selector.StatusFlushing {
				return
			}
		}
	}
}

// FramesSent reports how many buffers this producer has pushed through
// Chain so far (including dropped ones — Chain was called regardless of
// outcome).
func (p *Producer) FramesSent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.framesSent
}
