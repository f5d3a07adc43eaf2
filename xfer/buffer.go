package xfer

import "unsafe"

const (
	// MaxDescriptorLen is the largest region a single descriptor may address.
	// It is the 12-bit length field rounded down to a whole word.
	MaxDescriptorLen = 4092
	// Alignment is the required alignment of a buffer's first byte.
	Alignment = 4
)

// Descriptor addresses one contiguous segment of a Buffer, the way a DMA
// descriptor does. Descriptors of a buffer form a chain terminated by Last.
type Descriptor struct {
	Addr uintptr
	Len  uint16
	Last bool

	seg []byte
}

// Bytes returns a copy of the memory the descriptor addresses.
func (d Descriptor) Bytes() []byte { return append([]byte(nil), d.seg...) }

// DescriptorCount returns the number of descriptors needed to address n bytes.
func DescriptorCount(n int) int {
	return (n + MaxDescriptorLen - 1) / MaxDescriptorLen
}

// Buffer is the memory backing one transfer together with the descriptor
// chain the hardware uses to address it. At any time it is owned either by
// the application or by a single in-flight Transfer.
type Buffer struct {
	region   []byte
	chain    []Descriptor
	inFlight bool
}

// NewBuffer links descs over region and returns the resulting Buffer.
// The region must be non-empty, a multiple of 4 bytes long, 4-byte aligned,
// and descs must have room for DescriptorCount(len(region)) entries.
func NewBuffer(descs []Descriptor, region []byte) (*Buffer, error) {
	n := len(region)
	if n == 0 {
		return nil, &BufferConfigError{Reason: "empty region", Len: n}
	}
	if err := checkGroups(n); err != nil {
		return nil, err
	}
	addr := uintptr(unsafe.Pointer(&region[0]))
	if addr%Alignment != 0 {
		return nil, &BufferConfigError{Reason: "region not word aligned", Len: n, Addr: addr}
	}
	need := DescriptorCount(n)
	if len(descs) < need {
		return nil, &BufferConfigError{Reason: "descriptor chain too short", Len: n, Addr: addr}
	}
	chain := descs[:need]
	for i := range chain {
		start := i * MaxDescriptorLen
		end := start + MaxDescriptorLen
		if end > n {
			end = n
		}
		chain[i] = Descriptor{
			Addr: addr + uintptr(start),
			Len:  uint16(end - start),
			Last: i == need-1,
			seg:  region[start:end:end],
		}
	}
	return &Buffer{region: region, chain: chain}, nil
}

// Alloc makes a single word-aligned allocation of n bytes with its
// descriptor array and links them. It is meant to be called once at startup.
func Alloc(n int) (*Buffer, error) {
	if n <= 0 {
		return nil, &BufferConfigError{Reason: "empty region", Len: n}
	}
	if err := checkGroups(n); err != nil {
		return nil, err
	}
	words := make([]uint32, n/4)
	region := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), n)
	return NewBuffer(make([]Descriptor, DescriptorCount(n)), region)
}

// Len returns the buffer length in bytes.
func (b *Buffer) Len() int { return len(b.region) }

// InFlight reports whether a Transfer currently owns the buffer.
func (b *Buffer) InFlight() bool { return b.inFlight }

// Fill calls fn with the buffer contents so they can be rewritten.
// It fails with ErrBufferInFlight while a transfer owns the buffer.
func (b *Buffer) Fill(fn func(p []byte) error) error {
	if b.inFlight {
		return ErrBufferInFlight
	}
	return fn(b.region)
}

// Copy copies the buffer contents into dst and returns the number of bytes copied.
func (b *Buffer) Copy(dst []byte) (int, error) {
	if b.inFlight {
		return 0, ErrBufferInFlight
	}
	return copy(dst, b.region), nil
}

// Chain returns a copy of the descriptor chain addressing the buffer.
// Editing it does not affect the buffer. Only Channel.Submit hands the
// buffer's own chain to an Engine.
func (b *Buffer) Chain() []Descriptor { return append([]Descriptor(nil), b.chain...) }
