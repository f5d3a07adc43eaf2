package main

import (
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinygo-org/pario/xfer/simbus"
)

func frameOf(seq uint64, data ...byte) simbus.Frame {
	f := simbus.Frame{Seq: seq}
	for _, b := range data {
		f.Pulses = append(f.Pulses, simbus.Pulse{Data: b})
	}
	return f
}

func withFlags(t *testing.T, n, iter int) {
	savedSize, savedIter := size, iterations
	size, iterations = n, iter
	t.Cleanup(func() { size, iterations = savedSize, savedIter })
}

func TestAnalyze(t *testing.T) {
	withFlags(t, 8, 2)
	frames := make(chan simbus.Frame, 2)
	frames <- frameOf(1, 2, 3, 0, 1, 6, 7, 4, 5)
	frames <- frameOf(2, 2, 3, 0, 1, 6, 7, 4, 5)

	done := false
	require.NoError(t, analyze(context.Background(), frames, 1_000_000, func() { done = true }))
	assert.True(t, done)
}

func TestAnalyzeMismatch(t *testing.T) {
	withFlags(t, 8, 2)
	frames := make(chan simbus.Frame, 1)
	// Not interleaved.
	frames <- frameOf(1, 0, 1, 2, 3, 4, 5, 6, 7)

	done := false
	err := analyze(context.Background(), frames, 1_000_000, func() { done = true })
	assert.ErrorContains(t, err, "frame 1")
	assert.False(t, done)
}

func TestAnalyzeCanceled(t *testing.T) {
	withFlags(t, 8, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := false
	assert.NoError(t, analyze(ctx, make(chan simbus.Frame), 1_000_000, func() { done = true }))
	assert.False(t, done)
}

func TestCheckFlags(t *testing.T) {
	savedFreq, savedIter := freq, iterations
	t.Cleanup(func() { freq, iterations = savedFreq, savedIter })

	tests := []struct {
		freq uint
		iter int
		ok   bool
	}{
		{freq: 1_000_000, iter: 100, ok: true},
		{freq: 1_000_000, iter: 0, ok: true},
		{freq: math.MaxUint32, iter: 1, ok: true},
		{freq: 0, iter: 1},
		{freq: 1_000_000, iter: -1},
	}
	if strconv.IntSize == 64 {
		tooHigh := uint64(math.MaxUint32) + 1
		tests = append(tests, struct {
			freq uint
			iter int
			ok   bool
		}{freq: uint(tooHigh), iter: 1})
	}
	for _, tc := range tests {
		freq, iterations = tc.freq, tc.iter
		err := checkFlags()
		if tc.ok {
			assert.NoError(t, err, "freq=%d iterations=%d", tc.freq, tc.iter)
		} else {
			assert.Error(t, err, "freq=%d iterations=%d", tc.freq, tc.iter)
		}
	}
}
