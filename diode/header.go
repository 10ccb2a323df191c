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

// Package diode implements the wire-level and streaming-transform pieces of
// the enterprise diode file-transfer protocol that are shared between the
// sender and the receiver: the frame header codec, the CloakedDagger wrap
// header, the streaming re-wrap transform, and the SISL descriptor decoder.
package diode

import "encoding/binary"

const (
	// HeaderSize is the fixed size, in bytes, of a frame header.
	HeaderSize = 16

	// MinMTU is the smallest MTU the header codec will derive a payload
	// budget from.
	MinMTU = 576

	// ipUDPOverhead is the 20-byte IPv4 header plus 8-byte UDP header
	// budget every datagram pays before the application ever sees it.
	ipUDPOverhead = 28
)

// Header is the fixed 16-byte frame header, decoded in wire order.
// All multibyte fields are little-endian.
type Header struct {
	SessionID  uint32
	FrameCount uint32
	EOF        bool
}

// ParseHeader decodes the fixed header from the front of datagram and
// returns it along with a payload slice aliasing datagram's backing array —
// no payload bytes are ever copied here.
//
// It fails with ErrMalformedFrame if datagram is shorter than HeaderSize, or
// if the decoded header marks an eof-frame whose payload is empty.
func ParseHeader(datagram []byte) (Header, []byte, error) {
	if len(datagram) < HeaderSize {
		return Header{}, nil, ErrMalformedFrame
	}

	h := Header{
		SessionID:  binary.LittleEndian.Uint32(datagram[0:4]),
		FrameCount: binary.LittleEndian.Uint32(datagram[4:8]),
		EOF:        datagram[8] != 0,
	}
	payload := datagram[HeaderSize:]

	if h.EOF && len(payload) == 0 {
		return Header{}, nil, ErrMalformedFrame
	}

	return h, payload, nil
}

// WriteHeader serializes h into the front of dst, which must be at least
// HeaderSize bytes. Reserved bytes are zeroed.
func WriteHeader(dst []byte, h Header) {
	binary.LittleEndian.PutUint32(dst[0:4], h.SessionID)
	binary.LittleEndian.PutUint32(dst[4:8], h.FrameCount)
	if h.EOF {
		dst[8] = 1
	} else {
		dst[8] = 0
	}
	for i := 9; i < HeaderSize; i++ {
		dst[i] = 0
	}
}

// MaxApplicationPayload returns the largest application payload, in bytes,
// that fits within a single datagram of the given MTU: the MTU minus the
// 20-byte IP header, 8-byte UDP header, and HeaderSize.
//
// It returns ErrMTUTooSmall if mtu is below MinMTU.
func MaxApplicationPayload(mtu int) (int, error) {
	if mtu < MinMTU {
		return 0, ErrMTUTooSmall
	}
	return mtu - ipUDPOverhead - HeaderSize, nil
}
