package xfer

// GroupSize is the number of bytes permuted together by the bus interleave.
const GroupSize = 4

// interleave maps a physical slot within a group to the logical byte it carries.
// The output hardware shifts 16-bit halves of each word swapped, so slot 0 holds
// logical byte 2, slot 1 holds 3, slot 2 holds 0 and slot 3 holds 1.
var interleave = [GroupSize]int{2, 3, 0, 1}

func checkGroups(n int) error {
	if n%GroupSize != 0 {
		return &BufferConfigError{Reason: "length not a multiple of 4", Len: n}
	}
	return nil
}

// FillPattern fills dst with the ascending test pattern in physical order:
// the group starting at offset carries offset..offset+3 as
// offset+2, offset+3, offset, offset+1. Values wrap at 256.
// dst is left untouched if its length is not a multiple of GroupSize.
func FillPattern(dst []byte) error {
	if err := checkGroups(len(dst)); err != nil {
		return err
	}
	for offset := 0; offset < len(dst); offset += GroupSize {
		for slot, logical := range interleave {
			dst[offset+slot] = byte(offset + logical)
		}
	}
	return nil
}

// Interleave encodes the logical byte sequence src into dst in the physical
// order expected by the bus. dst and src must have the same length, a
// multiple of GroupSize, and must not overlap.
func Interleave(dst, src []byte) error {
	if err := checkPair(dst, src); err != nil {
		return err
	}
	for offset := 0; offset < len(src); offset += GroupSize {
		for slot, logical := range interleave {
			dst[offset+slot] = src[offset+logical]
		}
	}
	return nil
}

// Deinterleave reverses Interleave, recovering the logical sequence from
// bytes observed on the bus.
func Deinterleave(dst, src []byte) error {
	if err := checkPair(dst, src); err != nil {
		return err
	}
	for offset := 0; offset < len(src); offset += GroupSize {
		for slot, logical := range interleave {
			dst[offset+logical] = src[offset+slot]
		}
	}
	return nil
}

func checkPair(dst, src []byte) error {
	if len(dst) != len(src) {
		return &BufferConfigError{Reason: "destination and source lengths differ", Len: len(dst)}
	}
	return checkGroups(len(src))
}
