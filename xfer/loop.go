package xfer

import (
	"context"
	"fmt"
	"time"
)

// DefaultDelay paces consecutive transfers.
const DefaultDelay = 10 * time.Millisecond

// Stats counts loop progress.
type Stats struct {
	Submitted uint64
	Completed uint64
	// Delays counts delay waits begun, including one interrupted by cancellation.
	Delays uint64
	Bytes  uint64
}

// Loop owns one Channel and one Buffer and transmits the buffer forever:
// submit, wait for completion, wait Delay, repeat.
type Loop struct {
	// Delay between the end of one transfer and the next submission.
	Delay time.Duration
	// Log receives progress lines every LogEvery transfers. Zero disables them.
	Log      Logger
	LogEvery uint64

	ch    *Channel
	buf   *Buffer
	stats Stats
	after func(time.Duration) <-chan time.Time
}

// NewLoop returns a Loop that takes ownership of ch and buf.
func NewLoop(ch *Channel, buf *Buffer) *Loop {
	return &Loop{
		Delay: DefaultDelay,
		ch:    ch,
		buf:   buf,
		after: time.After,
	}
}

// Run transmits until ctx is done or a submission fails. The context is only
// checked while waiting out the delay: a submitted transfer always completes.
func (l *Loop) Run(ctx context.Context) error {
	log := loggerOrNop(l.Log)
	ch, buf := l.ch, l.buf
	if ch == nil || buf == nil {
		return errLoopOwnership
	}
	l.ch, l.buf = nil, nil
	defer func() { l.ch, l.buf = ch, buf }()

	log.Infof("xfer: sending %d bytes every %s", buf.Len(), l.Delay)
	for {
		t, err := ch.Submit(buf)
		if err != nil {
			return fmt.Errorf("xfer: submit: %w", err)
		}
		l.stats.Submitted++

		ch, buf = t.Wait()
		l.stats.Completed++
		l.stats.Bytes += uint64(buf.Len())
		if l.LogEvery != 0 && l.stats.Completed%l.LogEvery == 0 {
			log.Infof("xfer: %d transfers, %d bytes", l.stats.Completed, l.stats.Bytes)
		}

		l.stats.Delays++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.after(l.Delay):
		}
	}
}

// RunOrFail runs the loop forever and panics if it ever stops.
func (l *Loop) RunOrFail() {
	err := l.Run(context.Background())
	panic("xfer: transfer loop stopped: " + err.Error())
}

// Stats returns the loop counters. It must not be called while Run is active.
func (l *Loop) Stats() Stats { return l.stats }
