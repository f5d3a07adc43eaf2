//go:build rp2040

package parallel

import (
	"device/rp"
	"runtime/volatile"
	"unsafe"

	"github.com/tinygo-org/pario/xfer"
)

// dmaRegs is the register block of one DMA channel. Channels are 0x40 apart.
type dmaRegs struct {
	READ_ADDR   volatile.Register32
	WRITE_ADDR  volatile.Register32
	TRANS_COUNT volatile.Register32
	CTRL_TRIG   volatile.Register32
	_           [12]volatile.Register32 // aliases
}

const numDMA = 12

var (
	dmaBlock   = (*[numDMA]dmaRegs)(unsafe.Pointer(rp.DMA))
	dmaClaimed uint16
)

// dmaChannel pushes bytes into one PIO TX FIFO.
type dmaChannel struct {
	hw   *dmaRegs
	idx  uint8
	dst  *volatile.Register32
	ctrl uint32
}

// claimDMA returns the first unclaimed DMA channel set up to write bytes to
// dst as dreq asks for them.
func claimDMA(dst *volatile.Register32, dreq uint32, highPriority bool) (*dmaChannel, bool) {
	for i := uint8(0); i < numDMA; i++ {
		if dmaClaimed&(1<<i) != 0 {
			continue
		}
		dmaClaimed |= 1 << i
		ch := &dmaChannel{hw: &dmaBlock[i], idx: i, dst: dst}
		ch.ctrl = ch.pushCtrl(dreq, highPriority)
		return ch, true
	}
	return nil, false
}

func (ch *dmaChannel) unclaim() { dmaClaimed &^= 1 << ch.idx }

// pushCtrl returns the CTRL_TRIG value for a byte-wide push into a
// peripheral FIFO paced by dreq. The read address increments, the write
// address is fixed, and the channel chains to itself so nothing else is
// triggered.
func (ch *dmaChannel) pushCtrl(dreq uint32, highPriority bool) uint32 {
	const size8 = 0
	ctrl := (dreq << rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos) & rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Msk
	ctrl |= (uint32(ch.idx) << rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos) & rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Msk
	ctrl |= size8 << rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos
	ctrl |= 1 << rp.DMA_CH0_CTRL_TRIG_INCR_READ_Pos
	if highPriority {
		ctrl |= 1 << rp.DMA_CH0_CTRL_TRIG_HIGH_PRIORITY_Pos
	}
	ctrl |= 1 << rp.DMA_CH0_CTRL_TRIG_EN_Pos
	return ctrl
}

// push starts copying d into the FIFO and returns at once. The channel must
// not be busy.
func (ch *dmaChannel) push(d xfer.Descriptor) {
	hw := ch.hw
	hw.CTRL_TRIG.ClearBits(rp.DMA_CH0_CTRL_TRIG_EN_Msk)
	hw.READ_ADDR.Set(uint32(d.Addr))
	hw.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(ch.dst))))
	hw.TRANS_COUNT.Set(uint32(d.Len))
	// Writing CTRL_TRIG starts the transfer.
	hw.CTRL_TRIG.Set(ch.ctrl)
}

func (ch *dmaChannel) busy() bool {
	return ch.hw.CTRL_TRIG.HasBits(rp.DMA_CH0_CTRL_TRIG_BUSY)
}
