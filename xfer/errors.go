package xfer

import (
	"errors"
	"strconv"
)

// Transfer errors.
var (
	ErrBufferConfig     = errors.New("xfer: invalid buffer configuration")
	ErrChannelBusy      = errors.New("xfer: channel busy")
	ErrHardwareRejected = errors.New("xfer: hardware rejected descriptor chain")
	ErrBufferInFlight   = errors.New("xfer: buffer owned by in-flight transfer")
	ErrInvalidConfig    = errors.New("xfer: invalid channel configuration")

	errLoopOwnership = errors.New("xfer: loop already running or missing channel/buffer")
)

const (
	badTransferResolved = "xfer: transfer already resolved"
	badNilEngine        = "xfer: nil engine"
)

// BufferConfigError is returned when a region or descriptor chain has a shape
// the transfer engine cannot address. It matches ErrBufferConfig.
type BufferConfigError struct {
	Reason string
	Len    int
	Addr   uintptr
}

func (e *BufferConfigError) Error() string {
	msg := "xfer: buffer configuration: " + e.Reason + " (len=" + strconv.Itoa(e.Len)
	if e.Addr != 0 {
		msg += " addr=0x" + strconv.FormatUint(uint64(e.Addr), 16)
	}
	return msg + ")"
}

func (e *BufferConfigError) Is(target error) bool { return target == ErrBufferConfig }

// RejectedError wraps the reason an Engine refused to start a transfer.
// It matches ErrHardwareRejected.
type RejectedError struct {
	Err error
}

func (e *RejectedError) Error() string {
	if e.Err == nil {
		return ErrHardwareRejected.Error()
	}
	return ErrHardwareRejected.Error() + ": " + e.Err.Error()
}

func (e *RejectedError) Is(target error) bool { return target == ErrHardwareRejected }

func (e *RejectedError) Unwrap() error { return e.Err }
