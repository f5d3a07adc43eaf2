package xfer

import "runtime"

// BusWidth is the number of data lines driven in unison.
const BusWidth = 8

// Pin identifies a GPIO by number.
type Pin uint8

// Priority is the transfer engine's arbitration priority, 0 being the lowest.
type Priority uint8

// Config is the fixed peripheral configuration of a Channel.
type Config struct {
	// Data lists the data lines, least significant bit first.
	Data [BusWidth]Pin
	// Clock pulses once per byte written to Data.
	Clock Pin
	// Frequency is the byte rate in Hz.
	Frequency uint32
	Priority  Priority
}

// Validate checks that pins are distinct and the frequency is set.
func (cfg Config) Validate() error {
	if cfg.Frequency == 0 {
		return ErrInvalidConfig
	}
	var used uint64
	for _, p := range cfg.Data {
		if p >= 64 || used&(1<<p) != 0 {
			return ErrInvalidConfig
		}
		used |= 1 << p
	}
	if cfg.Clock >= 64 || used&(1<<cfg.Clock) != 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Engine is the hardware behind a Channel: a clocked parallel bus and the
// DMA-like engine feeding it.
type Engine interface {
	// Start programs the hardware with chain and begins clocking it out.
	// A non-nil error means nothing was started.
	Start(chain []Descriptor) error
	// Busy reports whether the last started transfer is still running.
	Busy() bool
}

// Dumper is implemented by engines that can print their hardware state.
type Dumper interface {
	Dump(Logger)
}

// State of a Channel.
type State uint8

const (
	Idle State = iota
	Transmitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Transmitting:
		return "Transmitting"
	}
	return "State(?)"
}

// Channel is the exclusive right to drive one parallel bus.
type Channel struct {
	engine Engine
	cfg    Config
	state  State
}

// NewChannel returns an idle Channel driving e with cfg.
func NewChannel(e Engine, cfg Config) (*Channel, error) {
	if e == nil {
		panic(badNilEngine)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Channel{engine: e, cfg: cfg}, nil
}

// Config returns the channel configuration.
func (ch *Channel) Config() Config { return ch.cfg }

// State returns Transmitting from a successful Submit until the resulting
// Transfer is waited on.
func (ch *Channel) State() State { return ch.state }

// Submit hands buf to the hardware and starts clocking it out.
// On success both ch and buf belong to the returned Transfer until its
// Wait returns them. On failure neither is modified.
func (ch *Channel) Submit(buf *Buffer) (*Transfer, error) {
	if ch.state != Idle {
		return nil, ErrChannelBusy
	}
	if buf.inFlight {
		return nil, ErrBufferInFlight
	}
	if err := ch.engine.Start(buf.chain); err != nil {
		return nil, &RejectedError{Err: err}
	}
	ch.state = Transmitting
	buf.inFlight = true
	return &Transfer{ch: ch, buf: buf}, nil
}

// Dump logs the channel configuration and, if the engine supports it, the
// hardware state.
func (ch *Channel) Dump(log Logger) {
	log = loggerOrNop(log)
	log.Infof("xfer: channel state=%s freq=%dHz prio=%d clock=%d data=%v",
		ch.state, ch.cfg.Frequency, ch.cfg.Priority, ch.cfg.Clock, ch.cfg.Data)
	if d, ok := ch.engine.(Dumper); ok {
		d.Dump(log)
	}
}

// Transfer is an in-flight transfer of a Buffer on a Channel.
type Transfer struct {
	ch  *Channel
	buf *Buffer
}

// IsDone reports whether the hardware has finished without blocking.
func (t *Transfer) IsDone() bool {
	if t.ch == nil {
		panic(badTransferResolved)
	}
	return !t.ch.engine.Busy()
}

// Wait blocks until the hardware has clocked out the whole buffer and returns
// ownership of the channel and buffer. It must be called exactly once.
func (t *Transfer) Wait() (*Channel, *Buffer) {
	ch, buf := t.ch, t.buf
	if ch == nil {
		panic(badTransferResolved)
	}
	for ch.engine.Busy() {
		gosched()
	}
	t.ch, t.buf = nil, nil
	ch.state = Idle
	buf.inFlight = false
	return ch, buf
}

func gosched() {
	runtime.Gosched()
}
