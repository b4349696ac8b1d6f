// Command selectordemo drives an in-memory Selector with a handful of
// simulated producers and an interactive console, the same shape as the
// teacher's cmd/videodemo but switching between synthetic inputs instead
// of recording webcam snapshots.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	selector "github.com/alesr/inputselector"
	"github.com/alesr/inputselector/producer"
	"github.com/alesr/inputselector/segment"
)

// consolePusher counts the buffers the selector forwards and their total
// duration, and remembers the last event, for the `stats` command.
type consolePusher struct {
	mu         sync.Mutex
	buffers    int
	durationNS int64
	lastEvent  string
}

func (c *consolePusher) PushEvent(_ context.Context, ev selector.Event) selector.PushStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Kind {
	case selector.EventSegment:
		c.lastEvent = fmt.Sprintf("segment[update=%v start=%d stop=%d]", ev.Update, ev.Segment.Start, ev.Segment.Stop)
	case selector.EventEOS:
		c.lastEvent = "eos"
	default:
		c.lastEvent = "event"
	}
	return selector.StatusOK
}

func (c *consolePusher) PushBuffer(_ context.Context, buf selector.Buffer) selector.PushStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffers++
	if d := buf.Duration(); d != segment.None {
		c.durationNS += d
	}
	return selector.StatusOK
}

func (c *consolePusher) snapshot() (int, int64, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffers, c.durationNS, c.lastEvent
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	fmt.Println("Input Selector Demo")
	fmt.Println("===================")
	fmt.Println("Commands: switch <n> | stats | info | quit")
	fmt.Println()

	pusher := &consolePusher{}
	sel := selector.New(pusher,
		selector.WithSyncStreams(true),
		selector.WithCacheBuffers(true),
		selector.WithLogger(logger),
	)

	const nInputs = 3
	ports := make([]*selector.InputPort, nInputs)
	producers := make([]*producer.Producer, nInputs)
	for i := 0; i < nInputs; i++ {
		ports[i] = sel.RequestInputPort(selector.WithAlwaysOK())
		producers[i] = producer.New(ports[i], producer.DefaultOptions())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	var g errgroup.Group
	for i, p := range producers {
		i, p := i, p
		g.Go(func() error {
			seg := segment.New()
			if err := p.Start(ctx, seg); err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			<-ctx.Done()
			p.Stop()
			return nil
		})
	}

	go func() {
		if err := g.Wait(); err != nil {
			logger.Error("producer failure", "err", err)
		}
	}()

	fmt.Println("Running with inputs 0..2. The first input to deliver a buffer becomes active.")
	fmt.Print("> ")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "quit":
			cancel()
			return
		case line == "stats":
			buffers, durationNS, lastEvent := pusher.snapshot()
			fmt.Printf("forwarded=%s approx_duration=%s last_event=%s\n",
				humanize.Comma(int64(buffers)), time.Duration(durationNS), lastEvent)
		case line == "info":
			for _, p := range ports {
				fmt.Printf("input[%d] name=%s active=%v\n", p.Index(), p.Name(), p.IsActive())
			}
		case strings.HasPrefix(line, "switch "):
			idxStr := strings.TrimSpace(strings.TrimPrefix(line, "switch "))
			idx, err := strconv.Atoi(idxStr)
			if err != nil || idx < 0 || idx >= nInputs {
				fmt.Println("usage: switch <0..2>")
				break
			}
			rt := sel.Block()
			if err := sel.Switch(ports[idx], rt, rt); err != nil {
				fmt.Println("switch failed:", err)
			} else {
				fmt.Printf("switched to input %d at running time %s\n", idx, time.Duration(rt))
			}
		default:
			fmt.Println("commands: switch <n> | stats | info | quit")
		}
		fmt.Print("> ")
	}
}
