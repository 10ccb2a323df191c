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

import "github.com/templexxx/xorsimd"

// Rewrap holds the per-import-session state needed to re-align every
// chunk's CloakedDagger mask onto the first chunk's continuous mask cycle.
// It is not safe for concurrent use; each import session owns exactly one.
type Rewrap struct {
	mask      [MaskLength]byte
	maskIndex int
}

// Transform re-wraps one frame's payload for an import session.
//
// The first frame (frameCount == 1) is returned verbatim — its wrap header
// and masked payload are passed straight through — while its mask and the
// downstream byte count it implies become this Rewrap's session mask and
// starting mask-cycle offset. Every later frame has its own 48-byte wrap
// header stripped and its data re-masked to be continuous with the first
// frame's mask cycle, regardless of how the sender chunked the file.
//
// It returns ErrBadWrapHeader, without mutating state, if a non-first
// frame's embedded wrap header fails structural validation.
func (r *Rewrap) Transform(payload []byte, frameCount uint32) ([]byte, error) {
	if frameCount == 1 {
		wh, err := ParseWrapHeader(payload)
		if err != nil {
			return nil, err
		}
		r.mask = wh.Mask
		r.maskIndex = len(payload) - WrapHeaderSize
		return payload, nil
	}

	wh, err := ParseWrapHeader(payload)
	if err != nil {
		return nil, ErrBadWrapHeader
	}

	newMask := r.rotatedMask(wh.Mask)
	data := payload[WrapHeaderSize:]
	out := make([]byte, len(data))
	xorsimd.Encode(out, [][]byte{data, r.expandMask(newMask, len(data))})
	r.maskIndex += len(data)
	return out, nil
}

// rotatedMask computes the per-byte rotation-corrected XOR mask described
// in spec §4.3: newMask[(i+maskIndex) mod 8] = chunkMask[i] XOR
// sessionMask[(i+maskIndex) mod 8].
func (r *Rewrap) rotatedMask(chunkMask [MaskLength]byte) [MaskLength]byte {
	var newMask [MaskLength]byte
	for i := 0; i < MaskLength; i++ {
		out := (i + r.maskIndex) % MaskLength
		newMask[out] = chunkMask[i] ^ r.mask[out]
	}
	return newMask
}

// expandMask tiles mask, starting at the Rewrap's current phase, into a
// buffer of length n so the cyclic XOR can be applied in one bulk call.
func (r *Rewrap) expandMask(mask [MaskLength]byte, n int) []byte {
	out := make([]byte, n)
	for j := 0; j < n; j++ {
		out[j] = mask[(r.maskIndex+j)%MaskLength]
	}
	return out
}
