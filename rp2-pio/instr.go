// Package pio drives the RP2040 programmable I/O blocks: program memory,
// state machines and their configuration. Instruction encoding and clock
// divider math build on any host.
package pio

import (
	"errors"
	"math"
)

// Clock divider errors.
var (
	ErrClkDivTooLarge = errors.New("pio: ClkDiv: frequency too low for CPU clock")
	ErrClkDivTooSmall = errors.New("pio: ClkDiv: frequency too high for CPU clock")
)

// This file contains the primitives for creating instructions dynamically
const (
	_INSTR_BITS_JMP = 0x0000
	_INSTR_BITS_OUT = 0x6000
	_INSTR_BITS_MOV = 0xa000
	_INSTR_BITS_SET = 0xe000

	// Bit mask for instruction code
	_INSTR_BITS_Msk = 0xe000
)

// SrcDest selects the source or destination of OUT, SET and MOV.
type SrcDest uint8

const (
	SrcDestPins    SrcDest = 0
	SrcDestX       SrcDest = 1
	SrcDestY       SrcDest = 2
	SrcDestPinDirs SrcDest = 4
)

type JmpCond uint8

const (
	// No condition, always jumps.
	JmpAlways JmpCond = iota
	// Jump if X is zero.
	JmpXZero
	// Jump if X is not zero, prior to decrement of X.
	JmpXNZeroDec
)

func encodeInstrAndArgs(instr uint16, arg1 uint8, arg2 uint8) uint16 {
	return instr | (uint16(arg1) << 5) | uint16(arg2&0x1f)
}

func encodeInstrAndSrcDest(instr uint16, dest SrcDest, value uint8) uint16 {
	return encodeInstrAndArgs(instr, uint8(dest)&7, value)
}

// EncodeSideSet returns the side-set field for value with bitCount
// non-optional side-set bits, to be ORed onto an instruction.
func EncodeSideSet(bitCount, value uint8) uint16 {
	return uint16(value) << (13 - bitCount)
}

func EncodeJmp(addr uint8, condition JmpCond) uint16 {
	return encodeInstrAndArgs(_INSTR_BITS_JMP, uint8(condition&0b111), addr)
}

func EncodeOut(dest SrcDest, value uint8) uint16 {
	return encodeInstrAndSrcDest(_INSTR_BITS_OUT, dest, value)
}

func EncodeMov(dest SrcDest, src SrcDest) uint16 {
	return encodeInstrAndSrcDest(_INSTR_BITS_MOV, dest, uint8(src)&7)
}

func EncodeSet(dest SrcDest, value uint8) uint16 {
	return encodeInstrAndSrcDest(_INSTR_BITS_SET, dest, value)
}

func EncodeNOP() uint16 {
	return EncodeMov(SrcDestY, SrcDestY)
}

// Relocate patches the target of a jump instruction for a program loaded
// at offset. Other instructions are returned unchanged.
func Relocate(instr uint16, offset uint8) uint16 {
	if instr&_INSTR_BITS_Msk == _INSTR_BITS_JMP {
		return instr + uint16(offset)
	}
	return instr
}

// ClkDivFromFrequency calculates the CLKDIV register values
// to reach a given StateMachine cycle frequency. freq and cpuFreq are expected to be in Hz.
func ClkDivFromFrequency(freq, cpuFreq uint32) (whole uint16, frac uint8, err error) {
	//  freq = 256*clockfreq / (256*whole + frac)
	//  256*whole + frac = 256*clockfreq / freq
	return splitClkdiv(256 * uint64(cpuFreq) / uint64(freq))
}

func splitClkdiv(clkdiv uint64) (whole uint16, frac uint8, err error) {
	if clkdiv > 256*math.MaxUint16 {
		return 0, 0, ErrClkDivTooLarge
	} else if clkdiv < 256 {
		return 0, 0, ErrClkDivTooSmall
	}
	return uint16(clkdiv / 256), uint8(clkdiv % 256), nil
}
