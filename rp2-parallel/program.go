package parallel

import (
	"errors"

	pio "github.com/tinygo-org/pario/rp2-pio"
	"github.com/tinygo-org/pario/xfer"
)

var (
	errPinsNotConsecutive = errors.New("parallel: data pins must be consecutive GPIOs")
	errPinRange           = errors.New("parallel: pin out of GPIO range")
	errMalformedChain     = errors.New("parallel: malformed descriptor chain")
	errBusy               = errors.New("parallel: engine busy")
	errNoStateMachine     = errors.New("parallel: no free PIO state machine")
	errDMAUnavail         = errors.New("parallel: DMA channel unavailable")
)

// numGPIO is the number of user GPIOs on the RP2040.
const numGPIO = 30

const (
	// sidesetBits is the single side-set bit driving the clock pin.
	sidesetBits = 1
	// cyclesPerByte is the length of the program below in state machine cycles.
	cyclesPerByte = 2
)

// parallelProgram shifts one byte onto the data pins with the clock low and
// raises the clock on the next cycle. With autopull at 8 bits the state
// machine stalls with the clock low once the TX FIFO runs dry.
//
//	.side_set 1
//	.wrap_target
//	    out pins, 8   side 0
//	    nop           side 1
//	.wrap
func parallelProgram() [cyclesPerByte]uint16 {
	return [cyclesPerByte]uint16{
		pio.EncodeOut(pio.SrcDestPins, xfer.BusWidth) | pio.EncodeSideSet(sidesetBits, 0),
		pio.EncodeNOP() | pio.EncodeSideSet(sidesetBits, 1),
	}
}

// dataBase returns the first data pin. The PIO OUT mapping drives a run of
// consecutive GPIOs, so Data[i] must be Data[0]+i.
func dataBase(cfg xfer.Config) (uint8, error) {
	base := uint8(cfg.Data[0])
	for i, p := range cfg.Data {
		if uint8(p) != base+uint8(i) {
			return 0, errPinsNotConsecutive
		}
	}
	if int(base)+xfer.BusWidth > numGPIO || cfg.Clock >= numGPIO {
		return 0, errPinRange
	}
	return base, nil
}

// pinMask returns the GPIO mask of the data and clock pins.
func pinMask(base uint8, clock xfer.Pin) uint32 {
	mask := uint32(1) << clock
	for i := uint8(0); i < xfer.BusWidth; i++ {
		mask |= 1 << (base + i)
	}
	return mask
}

func checkChain(chain []xfer.Descriptor) error {
	if len(chain) == 0 {
		return errMalformedChain
	}
	for i, d := range chain {
		if d.Len == 0 || d.Addr == 0 || d.Last != (i == len(chain)-1) {
			return errMalformedChain
		}
	}
	return nil
}

// releaser collects undo steps while resources are claimed one by one.
type releaser []func()

func (r *releaser) add(undo func()) { *r = append(*r, undo) }

// release runs the undo steps in reverse order of acquisition.
func (r releaser) release() {
	for i := len(r) - 1; i >= 0; i-- {
		r[i]()
	}
}
