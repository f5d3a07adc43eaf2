//go:build rp2040

package pio

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/volatile"
	"unsafe"
)

// RP2040 PIO peripheral handles.
var (
	PIO0 = &PIO{
		hw: rp.PIO0,
	}
	PIO1 = &PIO{
		hw: rp.PIO1,
	}
)

// PIO errors.
var (
	ErrOutOfProgramSpace   = errors.New("pio: out of program space")
	errStateMachineClaimed = errors.New("pio: state machine already claimed")
)

const (
	badStateMachineIndex = "invalid state machine index"
	badPIO               = "invalid PIO"
	badProgramBounds     = "invalid program bounds"
)

// PIO represents one of the two PIO peripherals in the RP2040
type PIO struct {
	// hw points to the PIO hardware registers.
	hw *rp.PIO0_Type
	// Bitmask of used instruction space. Each PIO has 32 slots for instructions.
	usedSpaceMask uint32
	// Bitmask of used state machines. Each PIO has 4 state machines.
	claimedSMMask uint8
}

// BlockIndex returns 0 or 1 depending on whether the underlying device is PIO0 or PIO1.
func (pio *PIO) BlockIndex() uint8 {
	switch pio.hw {
	case rp.PIO0:
		return 0
	case rp.PIO1:
		return 1
	}
	panic(badPIO)
}

// StateMachine returns a state machine by index.
func (pio *PIO) StateMachine(index uint8) StateMachine {
	if index > 3 {
		panic(badStateMachineIndex)
	}
	return StateMachine{
		pio:   pio,
		index: index,
	}
}

// ClaimStateMachine returns an unused state machine
// or an error if all state machines on this PIO are claimed.
func (pio *PIO) ClaimStateMachine() (sm StateMachine, err error) {
	for i := uint8(0); i < 4; i++ {
		sm = pio.StateMachine(i)
		if sm.TryClaim() {
			return sm, nil
		}
	}
	return StateMachine{}, errStateMachineClaimed
}

// AddProgram loads position independent instructions into the highest free
// slot of program memory and returns the offset where it was loaded.
func (pio *PIO) AddProgram(instructions []uint16) (offset uint8, _ error) {
	programLen := uint32(len(instructions))
	programMask := uint32((1 << programLen) - 1)
	// work down from the top always
	for i := int8(32 - programLen); i >= 0; i-- {
		if pio.usedSpaceMask&(programMask<<uint32(i)) != 0 {
			continue
		}
		offset = uint8(i)
		for j, instr := range instructions {
			pio.writeInstructionMemory(offset+uint8(j), Relocate(instr, offset))
		}
		pio.usedSpaceMask |= programMask << uint32(offset)
		return offset, nil
	}
	return 0, ErrOutOfProgramSpace
}

// ClearProgramSection fills a section of program memory with jumps to its
// first slot and makes it available to AddProgram again.
func (pio *PIO) ClearProgramSection(offset, len uint8) {
	if offset+len > 32 { // 32 instructions max
		panic(badProgramBounds)
	}
	for i := offset; i < offset+len; i++ {
		pio.writeInstructionMemory(i, EncodeJmp(offset, JmpAlways))
	}
	pio.usedSpaceMask &^= uint32((1<<len)-1) << offset
}

func (pio *PIO) writeInstructionMemory(offset uint8, value uint16) {
	// Instruction Memory registers are 32-bit, with only lower 16 used
	start := unsafe.Pointer(&pio.hw.INSTR_MEM0)
	reg := (*volatile.Register32)(unsafe.Pointer(uintptr(start) + uintptr(offset)*4))
	reg.Set(uint32(value))
}

type statemachineHW struct {
	CLKDIV    volatile.Register32 // 0xC8 for SM0
	EXECCTRL  volatile.Register32 // 0xCC for SM0
	SHIFTCTRL volatile.Register32 // 0xD0 for SM0
	ADDR      volatile.Register32 // 0xD4 for SM0
	INSTR     volatile.Register32 // 0xD8 for SM0
	PINCTRL   volatile.Register32 // 0xDC for SM0
}

func (pio *PIO) smHW(index uint8) *statemachineHW {
	if index > 3 {
		panic(badStateMachineIndex)
	}
	// 24 bytes (6 registers) per state machine
	const size = unsafe.Sizeof(statemachineHW{})
	ptr := uintptr(unsafe.Pointer(&pio.hw.SM0_CLKDIV)) + uintptr(index)*size
	return (*statemachineHW)(unsafe.Pointer(ptr))
}

// PinMode returns the PinMode for a PIO state machine, PIO0 or PIO1.
func (pio *PIO) PinMode() machine.PinMode {
	return machine.PinPIO0 + machine.PinMode(pio.BlockIndex())
}

// FIFOStatus returns the FSTAT, FDEBUG and FLEVEL registers for diagnostics.
func (pio *PIO) FIFOStatus() (fstat, fdebug, flevel uint32) {
	return pio.hw.FSTAT.Get(), pio.hw.FDEBUG.Get(), pio.hw.FLEVEL.Get()
}
