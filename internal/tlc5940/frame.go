package tlc5940

import "github.com/pkg/errors"

// FrameSize is the length in bytes of a packed grayscale frame for the
// given channel count.
func FrameSize(channels int) int {
	return (channels*GSBits + 7) / 8
}

// Encode packs snap into dst using the chip's 12-bit layout: channel 0
// takes the most significant bits of the frame, channel N-1 the least.
// Each even/odd channel pair (a, b) fills three bytes:
//
//	byte0 = a>>4
//	byte1 = a<<4&0xf0 | b>>8
//	byte2 = b&0xff
//
// dst must be exactly FrameSize(len(snap)) bytes. Encode does not allocate.
func Encode(dst []byte, snap Snapshot) error {
	n := len(snap)
	if n%2 != 0 {
		return errors.Errorf("tlc5940: cannot pack odd channel count %d", n)
	}
	if len(dst) != FrameSize(n) {
		return errors.Errorf("tlc5940: frame buffer is %d bytes, want %d", len(dst), FrameSize(n))
	}
	for i, o := 0, 0; i < n; i, o = i+2, o+3 {
		a := snap[i] & MaxBrightness
		b := snap[i+1] & MaxBrightness
		dst[o] = byte(a >> 4)
		dst[o+1] = byte(a<<4)&0xf0 | byte(b>>8)
		dst[o+2] = byte(b)
	}
	return nil
}

// Decode is the inverse of Encode.
func Decode(frame []byte, channels int) (Snapshot, error) {
	if channels%2 != 0 {
		return nil, errors.Errorf("tlc5940: cannot unpack odd channel count %d", channels)
	}
	if len(frame) != FrameSize(channels) {
		return nil, errors.Errorf("tlc5940: frame is %d bytes, want %d", len(frame), FrameSize(channels))
	}
	s := make(Snapshot, channels)
	for i, o := 0, 0; i < channels; i, o = i+2, o+3 {
		s[i] = uint16(frame[o])<<4 | uint16(frame[o+1]>>4)
		s[i+1] = uint16(frame[o+1]&0x0f)<<8 | uint16(frame[o+2])
	}
	return s, nil
}
