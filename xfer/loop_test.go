package xfer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stopAfter returns an after func that records a delay event and cancels the
// loop on the n-th delay.
func stopAfter(t *testing.T, n int, events *[]string, cancel context.CancelFunc) func(time.Duration) <-chan time.Time {
	var calls int
	return func(d time.Duration) <-chan time.Time {
		assert.Equal(t, DefaultDelay, d)
		*events = append(*events, "delay")
		calls++
		if calls == n {
			cancel()
			return nil
		}
		c := make(chan time.Time, 1)
		c <- time.Time{}
		return c
	}
}

func TestLoopInterleaving(t *testing.T) {
	for _, k := range []int{1, 2, 5, 50} {
		var events []string
		eng := &fakeEngine{events: &events, busyFor: 2}
		ch := newTestChannel(t, eng)
		buf := newTestBuffer(t, 256)

		ctx, cancel := context.WithCancel(context.Background())
		l := NewLoop(ch, buf)
		l.after = stopAfter(t, k, &events, cancel)

		err := l.Run(ctx)
		cancel()
		require.ErrorIs(t, err, context.Canceled)

		require.Len(t, events, 3*k)
		for i := 0; i < k; i++ {
			assert.Equal(t, []string{"submit", "complete", "delay"}, events[3*i:3*i+3], "k=%d iteration %d", k, i)
		}
		assert.Equal(t, Stats{
			Submitted: uint64(k),
			Completed: uint64(k),
			Delays:    uint64(k),
			Bytes:     uint64(256 * k),
		}, l.Stats())

		// Ownership returns to the loop once Run stops.
		assert.Equal(t, Idle, ch.State())
		assert.False(t, buf.InFlight())
		assert.Same(t, ch, l.ch)
		assert.Same(t, buf, l.buf)
	}
}

func TestLoopSubmitFailure(t *testing.T) {
	cause := errors.New("descriptor refused")
	ch := newTestChannel(t, &fakeEngine{reject: cause})
	l := NewLoop(ch, newTestBuffer(t, 8))
	l.after = func(time.Duration) <-chan time.Time {
		t.Fatal("delay reached after failed submit")
		return nil
	}

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHardwareRejected)
	assert.ErrorIs(t, err, cause)
	assert.True(t, strings.HasPrefix(err.Error(), "xfer: submit: "), err.Error())
	assert.Zero(t, l.Stats().Submitted)
}

func TestLoopChannelBusy(t *testing.T) {
	ch := newTestChannel(t, &fakeEngine{busyFor: 10})
	_, err := ch.Submit(newTestBuffer(t, 8))
	require.NoError(t, err)

	l := NewLoop(ch, newTestBuffer(t, 8))
	err = l.Run(context.Background())
	assert.ErrorIs(t, err, ErrChannelBusy)
}

func TestLoopMissingResources(t *testing.T) {
	l := NewLoop(nil, nil)
	assert.ErrorIs(t, l.Run(context.Background()), errLoopOwnership)
}

func TestLoopRunOrFail(t *testing.T) {
	ch := newTestChannel(t, &fakeEngine{reject: errors.New("nope")})
	l := NewLoop(ch, newTestBuffer(t, 8))
	assert.PanicsWithValue(t,
		"xfer: transfer loop stopped: xfer: submit: xfer: hardware rejected descriptor chain: nope",
		l.RunOrFail)
}

func TestLoopLogEvery(t *testing.T) {
	var events []string
	var log lineLogger
	ch := newTestChannel(t, &fakeEngine{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLoop(ch, newTestBuffer(t, 16))
	l.Log = &log
	l.LogEvery = 2
	l.after = stopAfter(t, 5, &events, cancel)
	require.ErrorIs(t, l.Run(ctx), context.Canceled)

	assert.Equal(t, []string{
		"xfer: sending 16 bytes every 10ms",
		"xfer: 2 transfers, 32 bytes",
		"xfer: 4 transfers, 64 bytes",
	}, log.lines)
}

func TestLoopRealDelay(t *testing.T) {
	ch := newTestChannel(t, &fakeEngine{})
	l := NewLoop(ch, newTestBuffer(t, 8))
	l.Delay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	st := l.Stats()
	assert.Equal(t, st.Submitted, st.Completed)
	assert.Equal(t, st.Completed, st.Delays)
	assert.NotZero(t, st.Submitted)
}
