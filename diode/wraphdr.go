// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package diode

import "encoding/binary"

const (
	// WrapHeaderSize is the fixed size, in bytes, of a CloakedDagger wrap
	// header embedded at the front of a wrapped frame's payload.
	WrapHeaderSize = 48

	// MaskLength is the width, in bytes, of the cyclic XOR mask.
	MaskLength = 8

	// cloakedDaggerSniffByte is magic1's first byte, used as a cheap
	// is-this-wrapped test without fully parsing the header.
	cloakedDaggerSniffByte = 0xD1
)

var (
	wrapMagic1                 = [4]byte{0xD1, 0xDF, 0x5F, 0xFF}
	wrapMagic2                 = [4]byte{0xFF, 0x5F, 0xDF, 0xD1}
	wrapExpectedMajorVersion   = uint16(0x0001)
	wrapExpectedMinorVersion   = uint16(0x0000)
	wrapExpectedTotalLength    = uint32(0x00000030)
	wrapExpectedEncapType      = uint32(0x00000001)
	wrapExpectedEncapConfig    = uint16(0x0003)
	wrapExpectedEncapDataLen   = uint16(0x0008)
	wrapExpectedChecksumZeroes = [16]byte{}
)

// WrapHeader is the decoded form of a 48-byte CloakedDagger wrap header.
// All multibyte fields are big-endian, per spec §6.2.
type WrapHeader struct {
	Mask [MaskLength]byte
}

// LooksWrapped reports whether the first byte of payload matches the
// CloakedDagger sniff byte. It is a fast, non-authoritative check; callers
// that need to trust the header must still call ParseWrapHeader.
func LooksWrapped(payload []byte) bool {
	return len(payload) > 0 && payload[0] == cloakedDaggerSniffByte
}

// ParseWrapHeader validates and decodes the 48-byte CloakedDagger header at
// the front of payload. It fails with ErrBadWrapHeader if payload is
// shorter than WrapHeaderSize or any fixed field does not match its
// expected constant value (spec §6.2).
func ParseWrapHeader(payload []byte) (WrapHeader, error) {
	if len(payload) < WrapHeaderSize {
		return WrapHeader{}, ErrBadWrapHeader
	}

	if [4]byte(payload[0:4]) != wrapMagic1 {
		return WrapHeader{}, ErrBadWrapHeader
	}
	if binary.BigEndian.Uint16(payload[4:6]) != wrapExpectedMajorVersion {
		return WrapHeader{}, ErrBadWrapHeader
	}
	if binary.BigEndian.Uint16(payload[6:8]) != wrapExpectedMinorVersion {
		return WrapHeader{}, ErrBadWrapHeader
	}
	if binary.BigEndian.Uint32(payload[8:12]) != wrapExpectedTotalLength {
		return WrapHeader{}, ErrBadWrapHeader
	}
	if binary.BigEndian.Uint32(payload[12:16]) != wrapExpectedEncapType {
		return WrapHeader{}, ErrBadWrapHeader
	}
	if binary.BigEndian.Uint16(payload[16:18]) != wrapExpectedEncapConfig {
		return WrapHeader{}, ErrBadWrapHeader
	}
	if binary.BigEndian.Uint16(payload[18:20]) != wrapExpectedEncapDataLen {
		return WrapHeader{}, ErrBadWrapHeader
	}
	if [16]byte(payload[28:44]) != wrapExpectedChecksumZeroes {
		return WrapHeader{}, ErrBadWrapHeader
	}
	if [4]byte(payload[44:48]) != wrapMagic2 {
		return WrapHeader{}, ErrBadWrapHeader
	}

	var h WrapHeader
	copy(h.Mask[:], payload[20:28])
	return h, nil
}

// WriteWrapHeader serializes a CloakedDagger header carrying mask into the
// front of dst, which must be at least WrapHeaderSize bytes. Used by the
// sender when --import is set.
func WriteWrapHeader(dst []byte, mask [MaskLength]byte) {
	copy(dst[0:4], wrapMagic1[:])
	binary.BigEndian.PutUint16(dst[4:6], wrapExpectedMajorVersion)
	binary.BigEndian.PutUint16(dst[6:8], wrapExpectedMinorVersion)
	binary.BigEndian.PutUint32(dst[8:12], wrapExpectedTotalLength)
	binary.BigEndian.PutUint32(dst[12:16], wrapExpectedEncapType)
	binary.BigEndian.PutUint16(dst[16:18], wrapExpectedEncapConfig)
	binary.BigEndian.PutUint16(dst[18:20], wrapExpectedEncapDataLen)
	copy(dst[20:28], mask[:])
	for i := 28; i < 44; i++ {
		dst[i] = 0
	}
	copy(dst[44:48], wrapMagic2[:])
}
