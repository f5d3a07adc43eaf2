// Command parsim runs the transfer loop against a simulated bus and checks
// every frame clocked out by the engine decodes to the expected pattern.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/tinygo-org/pario/xfer"
	"github.com/tinygo-org/pario/xfer/simbus"
)

var (
	size       = 256
	freq       = uint(1_000_000)
	delay      = xfer.DefaultDelay
	iterations = 100
	logEvery   = uint64(10)
	pace       bool
)

func init() {
	flag.IntVar(&size, "size", size, "Buffer size in bytes, a multiple of 4.")
	flag.UintVar(&freq, "freq", freq, "Byte clock frequency (Hz).")
	flag.DurationVar(&delay, "delay", delay, "Delay between transfers.")
	flag.IntVar(&iterations, "iterations", iterations, "Frames to verify before exiting, 0 runs until interrupted.")
	flag.Uint64Var(&logEvery, "log-every", logEvery, "Log progress every N transfers (needs -v=1).")
	flag.BoolVar(&pace, "pace", pace, "Take the real bus time for each transfer.")
}

// Pins of the reference board. The simulator does not care about wiring.
var refConfig = xfer.Config{
	Data:  [xfer.BusWidth]xfer.Pin{16, 4, 17, 18, 5, 19, 12, 14},
	Clock: 25,
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if err := checkFlags(); err != nil {
		glog.Exitf("parsim: %v", err)
	}
	if err := run(); err != nil {
		glog.Exitf("parsim: %v", err)
	}
}

// checkFlags rejects values run cannot represent.
func checkFlags() error {
	if freq == 0 || freq > math.MaxUint32 {
		return fmt.Errorf("-freq=%d: want 1..%d Hz", freq, uint32(math.MaxUint32))
	}
	if iterations < 0 {
		return fmt.Errorf("-iterations=%d: want 0 or more", iterations)
	}
	return nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	cfg := refConfig
	cfg.Frequency = uint32(freq)

	frames := make(chan simbus.Frame, 1)
	eng, err := simbus.New(simbus.Options{
		Frequency: cfg.Frequency,
		Pace:      pace,
		Capture: func(f simbus.Frame) {
			select {
			case frames <- f:
			case <-gctx.Done():
			}
		},
	})
	if err != nil {
		return err
	}
	ch, err := xfer.NewChannel(eng, cfg)
	if err != nil {
		return err
	}
	buf, err := xfer.Alloc(size)
	if err != nil {
		return err
	}
	if err := buf.Fill(xfer.FillPattern); err != nil {
		return err
	}
	ch.Dump(glog.V(1))

	loop := xfer.NewLoop(ch, buf)
	loop.Delay = delay
	loop.Log = glog.V(1)
	loop.LogEvery = logEvery

	g.Go(func() error {
		err := loop.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return analyze(gctx, frames, cfg.Frequency, cancel)
	})
	err = g.Wait()

	stats := loop.Stats()
	glog.Infof("parsim: submitted=%d completed=%d bytes=%d pulses=%d",
		stats.Submitted, stats.Completed, stats.Bytes, eng.Pulses())
	ch.Dump(glog.V(1))
	return err
}

// analyze checks frames against the ascending pattern and calls done after
// the requested number of frames.
func analyze(ctx context.Context, frames <-chan simbus.Frame, freq uint32, done func()) error {
	want := make([]byte, size)
	for i := range want {
		want[i] = byte(i)
	}
	for n := 0; iterations == 0 || n < iterations; n++ {
		var f simbus.Frame
		select {
		case <-ctx.Done():
			return nil
		case f = <-frames:
		}
		got, err := f.Decode()
		if err != nil {
			return fmt.Errorf("frame %d: %w", f.Seq, err)
		}
		if !bytes.Equal(got, want) {
			return fmt.Errorf("frame %d: decoded %d bytes do not match pattern", f.Seq, len(got))
		}
		if glog.V(2) {
			glog.Infof("frame %d: %d pulses in %s", f.Seq, len(f.Pulses), f.Duration(freq))
		}
	}
	glog.Infof("parsim: verified %d frames", iterations)
	done()
	return nil
}
