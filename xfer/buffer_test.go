package xfer

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlloc(t *testing.T) {
	buf, err := Alloc(256)
	require.NoError(t, err)
	assert.Equal(t, 256, buf.Len())
	assert.False(t, buf.InFlight())

	chain := buf.Chain()
	require.Len(t, chain, 1)
	assert.Equal(t, uint16(256), chain[0].Len)
	assert.True(t, chain[0].Last)
	assert.Zero(t, chain[0].Addr%Alignment)
	assert.Len(t, chain[0].Bytes(), 256)
}

func TestNewBufferChain(t *testing.T) {
	const n = 2*MaxDescriptorLen + 16
	words := make([]uint32, n/4)
	region := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), n)

	buf, err := NewBuffer(make([]Descriptor, 4), region)
	require.NoError(t, err)
	chain := buf.Chain()
	require.Len(t, chain, 3)

	base := uintptr(unsafe.Pointer(&region[0]))
	var total int
	for i, d := range chain {
		assert.Equal(t, base+uintptr(i*MaxDescriptorLen), d.Addr, "descriptor %d", i)
		assert.Equal(t, i == len(chain)-1, d.Last, "descriptor %d", i)
		assert.Len(t, d.Bytes(), int(d.Len))
		total += int(d.Len)
	}
	assert.Equal(t, n, total)
	assert.Equal(t, uint16(16), chain[2].Len)
}

func TestNewBufferRejects(t *testing.T) {
	words := make([]uint32, 4)
	region := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), 16)

	raw := make([]byte, 32)
	var misaligned []byte
	for off := 0; off < Alignment; off++ {
		if uintptr(unsafe.Pointer(&raw[off]))%Alignment != 0 {
			misaligned = raw[off : off+8]
			break
		}
	}
	require.NotNil(t, misaligned)

	tests := []struct {
		name   string
		descs  int
		region []byte
	}{
		{name: "empty", descs: 1, region: region[:0]},
		{name: "length not multiple of 4", descs: 1, region: region[:6]},
		{name: "misaligned address", descs: 1, region: misaligned},
		{name: "no descriptors", descs: 0, region: region},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := NewBuffer(make([]Descriptor, tc.descs), tc.region)
			assert.Nil(t, buf)
			assert.ErrorIs(t, err, ErrBufferConfig)
			var cfgErr *BufferConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestAllocRejects(t *testing.T) {
	for _, n := range []int{0, -4, 3, 258} {
		_, err := Alloc(n)
		assert.ErrorIs(t, err, ErrBufferConfig, "n=%d", n)
	}
}

func TestBufferOwnership(t *testing.T) {
	buf, err := Alloc(8)
	require.NoError(t, err)
	require.NoError(t, buf.Fill(FillPattern))

	buf.inFlight = true
	called := false
	assert.ErrorIs(t, buf.Fill(func([]byte) error { called = true; return nil }), ErrBufferInFlight)
	assert.False(t, called)
	_, err = buf.Copy(make([]byte, 8))
	assert.ErrorIs(t, err, ErrBufferInFlight)

	buf.inFlight = false
	out := make([]byte, 8)
	n, err := buf.Copy(out)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{2, 3, 0, 1, 6, 7, 4, 5}, out)
}

func TestDescriptorCount(t *testing.T) {
	assert.Equal(t, 1, DescriptorCount(4))
	assert.Equal(t, 1, DescriptorCount(MaxDescriptorLen))
	assert.Equal(t, 2, DescriptorCount(MaxDescriptorLen+4))
}

func TestBufferConfigErrorMessage(t *testing.T) {
	err := &BufferConfigError{Reason: "region not word aligned", Len: 8, Addr: 0x1001}
	assert.Equal(t, "xfer: buffer configuration: region not word aligned (len=8 addr=0x1001)", err.Error())
}

func TestChainEditsDoNotReachBuffer(t *testing.T) {
	eng := &fakeEngine{busyFor: 2}
	ch := newTestChannel(t, eng)
	buf := newTestBuffer(t, 8)

	tr, err := ch.Submit(buf)
	require.NoError(t, err)

	chain := buf.Chain()
	chain[0].Bytes()[0] = 0xff
	chain[0].Len = 0
	chain[0].Last = false

	_, buf = tr.Wait()
	out := make([]byte, 8)
	_, err = buf.Copy(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 0, 1, 6, 7, 4, 5}, out)

	own := buf.Chain()
	require.Len(t, own, 1)
	assert.Equal(t, uint16(8), own[0].Len)
	assert.True(t, own[0].Last)
}
