package parallel

import "github.com/tinygo-org/pario/xfer"

// dmaPort copies one descriptor into the state machine's TX FIFO.
type dmaPort interface {
	push(d xfer.Descriptor)
	busy() bool
}

// txPort is the TX side of the state machine.
type txPort interface {
	clearTxStalled()
	// drained reports that the TX FIFO is empty and the state machine has
	// stalled on it since clearTxStalled.
	drained() bool
}

// sequencer feeds a descriptor chain to the DMA one descriptor at a time
// and detects when the last byte has left the state machine.
type sequencer struct {
	dma dmaPort
	tx  txPort

	chain []xfer.Descriptor
	// next is the index of the next descriptor to hand to the DMA.
	next     int
	draining bool
}

func (s *sequencer) start(chain []xfer.Descriptor) error {
	if s.chain != nil {
		return errBusy
	}
	if err := checkChain(chain); err != nil {
		return err
	}
	s.chain = chain
	s.next = 1
	s.draining = false
	s.dma.push(chain[0])
	return nil
}

// busy advances the chain and reports whether bytes remain to be clocked out.
func (s *sequencer) busy() bool {
	if s.chain == nil {
		return false
	}
	if s.dma.busy() {
		return true
	}
	if s.next < len(s.chain) {
		s.dma.push(s.chain[s.next])
		s.next++
		return true
	}
	if !s.draining {
		s.tx.clearTxStalled()
		s.draining = true
		return true
	}
	if !s.tx.drained() {
		return true
	}
	s.chain = nil
	s.draining = false
	return false
}
