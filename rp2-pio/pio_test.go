package pio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	var program = []uint16{
		EncodeOut(SrcDestPins, 8) | EncodeSideSet(1, 0), //  0: out    pins, 8         side 0
		EncodeNOP() | EncodeSideSet(1, 1),               //  1: nop                    side 1
		EncodeSet(SrcDestPinDirs, 0),                    //  2: set    pindirs, 0
		EncodeSet(SrcDestPins, 1),                       //  3: set    pins, 1
		EncodeJmp(7, JmpAlways),                         //  4: jmp    7
		EncodeJmp(0, JmpXNZeroDec),                      //  5: jmp    x--, 0
	}
	var expectedProgram = []uint16{
		0x6008,
		0xb042,
		0xe080,
		0xe001,
		0x0007,
		0x0040,
	}
	for i := range program {
		if program[i] != expectedProgram[i] {
			t.Errorf("instr %d mismatch got!=expected: %#x != %#x", i, program[i], expectedProgram[i])
		}
	}
}

func TestRelocate(t *testing.T) {
	assert.Equal(t, uint16(0x001c), Relocate(EncodeJmp(2, JmpAlways), 26))
	assert.Equal(t, uint16(0x005c), Relocate(EncodeJmp(2, JmpXNZeroDec), 26))
	nop := EncodeNOP() | EncodeSideSet(1, 1)
	assert.Equal(t, nop, Relocate(nop, 26))
}

func TestClkDivFromFrequency(t *testing.T) {
	tests := []struct {
		freq, cpu uint32
		whole     uint16
		frac      uint8
		err       error
	}{
		{freq: 2_000_000, cpu: 125_000_000, whole: 62, frac: 128},
		{freq: 2_000_000, cpu: 133_000_000, whole: 66, frac: 128},
		{freq: 125_000_000, cpu: 125_000_000, whole: 1, frac: 0},
		{freq: 250_000_000, cpu: 125_000_000, err: ErrClkDivTooSmall},
		{freq: 1_000, cpu: 125_000_000, err: ErrClkDivTooLarge},
	}
	for _, tc := range tests {
		whole, frac, err := ClkDivFromFrequency(tc.freq, tc.cpu)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, "freq=%d", tc.freq)
			continue
		}
		require.NoError(t, err, "freq=%d", tc.freq)
		assert.Equal(t, tc.whole, whole, "freq=%d", tc.freq)
		assert.Equal(t, tc.frac, frac, "freq=%d", tc.freq)
	}
}
