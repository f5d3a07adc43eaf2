// Package simbus simulates a clocked parallel bus and the transfer engine
// feeding it, so xfer channels and loops can run on a host. Every byte is
// recorded as one clock pulse, the way a logic analyzer would sample it.
package simbus

import (
	"errors"
	"time"

	"github.com/tinygo-org/pario/xfer"
)

var (
	ErrMalformedChain = errors.New("simbus: malformed descriptor chain")
	errEngineBusy     = errors.New("simbus: engine busy")
	errNoFrequency    = errors.New("simbus: zero frequency")
)

// Options configure an Engine.
type Options struct {
	// Frequency is the simulated byte clock in Hz.
	Frequency uint32
	// Pace makes the engine take the real transfer duration before completing.
	Pace bool
	// Capture, if set, receives each frame before completion is signalled.
	Capture func(Frame)
	// Reject, if set, is consulted on Start and can refuse a chain.
	Reject func(chain []xfer.Descriptor) error
}

// Pulse is one rising clock edge with the byte present on the data lines.
type Pulse struct {
	At   time.Duration
	Data byte
}

// Frame is everything clocked out by one transfer.
type Frame struct {
	Seq    uint64
	Pulses []Pulse
}

// Bytes returns the bus bytes in clock order.
func (f Frame) Bytes() []byte {
	b := make([]byte, len(f.Pulses))
	for i, p := range f.Pulses {
		b[i] = p.Data
	}
	return b
}

// Decode reverses the bus interleave and returns the logical stream.
func (f Frame) Decode() ([]byte, error) {
	raw := f.Bytes()
	out := make([]byte, len(raw))
	if err := xfer.Deinterleave(out, raw); err != nil {
		return nil, err
	}
	return out, nil
}

// Duration is the time from the first clock edge to the end of the last bit period.
func (f Frame) Duration(freq uint32) time.Duration {
	return time.Duration(len(f.Pulses)) * period(freq)
}

func period(freq uint32) time.Duration {
	return time.Second / time.Duration(freq)
}

// Engine is a simulated transfer engine. It implements xfer.Engine.
type Engine struct {
	opts Options
	done chan struct{}
	seq  uint64

	// written by the transfer goroutine before done is closed.
	last  Frame
	total uint64
}

// New returns an idle simulated engine.
func New(opts Options) (*Engine, error) {
	if opts.Frequency == 0 {
		return nil, errNoFrequency
	}
	done := make(chan struct{})
	close(done)
	return &Engine{opts: opts, done: done}, nil
}

// Start validates chain and clocks it out in the background.
func (e *Engine) Start(chain []xfer.Descriptor) error {
	if e.Busy() {
		return errEngineBusy
	}
	if err := checkChain(chain); err != nil {
		return err
	}
	if e.opts.Reject != nil {
		if err := e.opts.Reject(chain); err != nil {
			return err
		}
	}
	e.seq++
	done := make(chan struct{})
	e.done = done
	go e.run(e.seq, chain, done)
	return nil
}

func (e *Engine) run(seq uint64, chain []xfer.Descriptor, done chan struct{}) {
	per := period(e.opts.Frequency)
	var pulses []Pulse
	for _, d := range chain {
		for _, b := range d.Bytes() {
			pulses = append(pulses, Pulse{At: time.Duration(len(pulses)) * per, Data: b})
		}
	}
	f := Frame{Seq: seq, Pulses: pulses}
	if e.opts.Pace {
		time.Sleep(f.Duration(e.opts.Frequency))
	}
	if e.opts.Capture != nil {
		e.opts.Capture(f)
	}
	e.last = f
	e.total += uint64(len(pulses))
	close(done)
}

// Busy reports whether a transfer is still being clocked out.
func (e *Engine) Busy() bool {
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// LastFrame returns the most recently completed frame. Only valid while the engine is idle.
func (e *Engine) LastFrame() Frame { return e.last }

// Pulses returns the number of clock pulses emitted so far. Only valid while the engine is idle.
func (e *Engine) Pulses() uint64 { return e.total }

// Dump implements xfer.Dumper.
func (e *Engine) Dump(log xfer.Logger) {
	if e.Busy() {
		log.Infof("simbus: freq=%dHz busy transfer=%d", e.opts.Frequency, e.seq)
		return
	}
	log.Infof("simbus: freq=%dHz idle transfers=%d pulses=%d", e.opts.Frequency, e.seq, e.total)
}

func checkChain(chain []xfer.Descriptor) error {
	if len(chain) == 0 {
		return ErrMalformedChain
	}
	for i, d := range chain {
		if d.Len == 0 || int(d.Len) != len(d.Bytes()) || d.Last != (i == len(chain)-1) {
			return ErrMalformedChain
		}
	}
	return nil
}
