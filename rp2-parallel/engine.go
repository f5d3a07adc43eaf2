//go:build rp2040

package parallel

import (
	"machine"

	pio "github.com/tinygo-org/pario/rp2-pio"
	"github.com/tinygo-org/pario/xfer"
)

// Engine clocks a descriptor chain out of eight consecutive GPIOs with a
// PIO state machine fed by a DMA channel. The clock pin is the state
// machine's side-set pin and pulses once per byte. It implements xfer.Engine.
type Engine struct {
	sm   pio.StateMachine
	dma  *dmaChannel
	cfg  xfer.Config
	base uint8
	seq  sequencer
}

// New claims a PIO state machine and a DMA channel and configures them for cfg.
// Data pins must be consecutive GPIOs, least significant bit first.
func New(cfg xfer.Config) (_ *Engine, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := dataBase(cfg)
	if err != nil {
		return nil, err
	}
	whole, frac, err := pio.ClkDivFromFrequency(cfg.Frequency*cyclesPerByte, machine.CPUFrequency())
	if err != nil {
		return nil, err
	}

	var undo releaser
	defer func() {
		if err != nil {
			undo.release()
		}
	}()

	sm, err := claimStateMachine()
	if err != nil {
		return nil, err
	}
	undo.add(sm.Unclaim)

	Pio := sm.PIO()
	program := parallelProgram()
	offset, err := Pio.AddProgram(program[:])
	if err != nil {
		return nil, err
	}
	undo.add(func() { Pio.ClearProgramSection(offset, uint8(len(program))) })

	dma, ok := claimDMA(sm.TxReg(), sm.TxDREQ(), cfg.Priority > 0)
	if !ok {
		return nil, errDMAUnavail
	}
	undo.add(dma.unclaim)

	// Configure pins.
	clock := machine.Pin(cfg.Clock)
	pinCfg := machine.PinConfig{Mode: Pio.PinMode()}
	for i := uint8(0); i < xfer.BusWidth; i++ {
		machine.Pin(base + i).Configure(pinCfg)
	}
	clock.Configure(pinCfg)
	mask := pinMask(base, cfg.Clock)
	sm.SetPinsMasked(0, mask)
	sm.SetPindirsMasked(mask, mask)

	pcfg := pio.DefaultStateMachineConfig()
	pcfg.SetWrap(offset, offset+cyclesPerByte-1)
	pcfg.SetSidesetParams(sidesetBits, false, false)
	pcfg.SetOutPins(machine.Pin(base), xfer.BusWidth)
	pcfg.SetSidesetPins(clock)
	pcfg.SetFIFOJoin(pio.FifoJoinTx)
	pcfg.SetOutShift(true, true, xfer.BusWidth)
	pcfg.SetClkDivIntFrac(whole, frac)

	sm.Init(offset, pcfg)
	sm.SetEnabled(true)

	return &Engine{
		sm:   sm,
		dma:  dma,
		cfg:  cfg,
		base: base,
		seq:  sequencer{dma: dma, tx: stateMachineTx{sm}},
	}, nil
}

// claimStateMachine returns the first free state machine on PIO0, then PIO1.
func claimStateMachine() (pio.StateMachine, error) {
	for _, block := range []*pio.PIO{pio.PIO0, pio.PIO1} {
		if sm, err := block.ClaimStateMachine(); err == nil {
			return sm, nil
		}
	}
	return pio.StateMachine{}, errNoStateMachine
}

// Open builds an Engine for cfg and wraps it in a Channel.
func Open(cfg xfer.Config) (*xfer.Channel, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return xfer.NewChannel(e, cfg)
}

// Start hands the first descriptor of chain to the DMA. The rest are
// queued by Busy as each one drains.
func (e *Engine) Start(chain []xfer.Descriptor) error { return e.seq.start(chain) }

// Busy reports whether bytes remain to be clocked out. The transfer is
// complete once the DMA has consumed the whole chain, the TX FIFO is empty
// and the state machine has stalled waiting for more data.
func (e *Engine) Busy() bool { return e.seq.busy() }

// Dump implements xfer.Dumper.
func (e *Engine) Dump(log xfer.Logger) {
	sm := e.sm.HW()
	log.Infof("parallel: pio%d sm%d base=GP%d clock=GP%d clkdiv=%#08x pinctrl=%#08x shiftctrl=%#08x",
		e.sm.PIO().BlockIndex(), e.sm.StateMachineIndex(), e.base, e.cfg.Clock,
		sm.CLKDIV.Get(), sm.PINCTRL.Get(), sm.SHIFTCTRL.Get())
	fstat, fdebug, flevel := e.sm.PIO().FIFOStatus()
	log.Infof("parallel: fstat=%#08x fdebug=%#08x flevel=%#08x", fstat, fdebug, flevel)
	dma := e.dma.hw
	log.Infof("parallel: dma%d read=%#08x write=%#08x count=%d ctrl=%#08x busy=%t descriptors=%d/%d",
		e.dma.idx, dma.READ_ADDR.Get(), dma.WRITE_ADDR.Get(), dma.TRANS_COUNT.Get(), dma.CTRL_TRIG.Get(),
		e.dma.busy(), e.seq.next, len(e.seq.chain))
}

// stateMachineTx adapts a state machine to txPort.
type stateMachineTx struct {
	sm pio.StateMachine
}

func (t stateMachineTx) clearTxStalled() { t.sm.ClearTxStalled() }

func (t stateMachineTx) drained() bool {
	return t.sm.IsTxFIFOEmpty() && t.sm.HasTxStalled()
}
