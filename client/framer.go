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

package client

import (
	"io"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/oakdoor/enterprisediode/diode"
)

// FrameSink transmits one already-framed datagram. Real network I/O is an
// external collaborator; Framer only builds the bytes.
type FrameSink interface {
	SendFrame(datagram []byte) error
}

// Framer reads a file in MTU-sized chunks and emits one frame per chunk
// under a single randomly chosen session id, followed by a terminator
// frame carrying the descriptor. Grounded on Client.cpp's chunk/emit loop
// in original_source/, with the wall-clock-seeded session id matching its
// std::default_random_engine(seed) idiom via math/rand.
type Framer struct {
	src          io.Reader
	filename     string
	sessionID    uint32
	payloadSize  int
	frameCount   uint32
	wrapImported bool
	rng          *rand.Rand
	done         bool
}

// NewFramer builds a Framer for src, chunking at the MTU's maximum
// application payload. If importMode is true, every chunk is pre-wrapped
// with a fresh CloakedDagger header before being framed.
func NewFramer(src io.Reader, filename string, mtu int, importMode bool) (*Framer, error) {
	payloadSize, err := diode.MaxApplicationPayload(mtu)
	if err != nil {
		return nil, err
	}
	if importMode {
		payloadSize -= diode.WrapHeaderSize
	}
	if payloadSize <= 0 {
		return nil, errors.New("mtu too small to carry a wrapped payload")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	f := &Framer{
		src:          src,
		filename:     filepath.Base(filename),
		sessionID:    rng.Uint32(),
		payloadSize:  payloadSize,
		frameCount:   1,
		wrapImported: importMode,
		rng:          rng,
	}
	return f, nil
}

// SessionID returns the session id this transfer's frames share.
func (f *Framer) SessionID() uint32 { return f.sessionID }

// Done reports whether Next has already returned the terminator frame.
func (f *Framer) Done() bool { return f.done }

// Next reads one chunk and returns its framed datagram, or io.EOF once the
// terminator frame has been returned. Each data frame advances frameCount;
// the terminator carries the count after the last data frame.
func (f *Framer) Next() ([]byte, error) {
	if f.done {
		return nil, io.EOF
	}
	chunk := make([]byte, f.payloadSize)
	n, err := io.ReadFull(f.src, chunk)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Wrap(err, "read source file")
	}
	if n == 0 {
		return f.buildTerminator(), nil
	}

	payload := chunk[:n]
	if f.wrapImported {
		payload = f.wrapChunk(payload)
	}

	datagram := make([]byte, diode.HeaderSize+len(payload))
	diode.WriteHeader(datagram, diode.Header{SessionID: f.sessionID, FrameCount: f.frameCount})
	copy(datagram[diode.HeaderSize:], payload)
	f.frameCount++
	return datagram, nil
}

func (f *Framer) buildTerminator() []byte {
	descriptor := []byte(`{name: !str "` + f.filename + `"}`)
	datagram := make([]byte, diode.HeaderSize+len(descriptor))
	diode.WriteHeader(datagram, diode.Header{SessionID: f.sessionID, FrameCount: f.frameCount, EOF: true})
	copy(datagram[diode.HeaderSize:], descriptor)
	f.done = true
	return datagram
}

// wrapChunk prepends a fresh CloakedDagger header over a freshly generated
// mask and XOR-masks plaintext under it from position 0, matching how
// every sender-side chunk after the first is wrapped per spec §4.3.
func (f *Framer) wrapChunk(plaintext []byte) []byte {
	var mask [diode.MaskLength]byte
	f.rng.Read(mask[:])

	out := make([]byte, diode.WrapHeaderSize+len(plaintext))
	diode.WriteWrapHeader(out, mask)
	for i, b := range plaintext {
		out[diode.WrapHeaderSize+i] = b ^ mask[i%diode.MaskLength]
	}
	return out
}

// PacingInterval returns the delay between frame emissions for rateMbps
// megabits per second at the given MTU, per spec §4.7: T = round(MTU * 8 *
// 1e6 / (rateMbps * 2^20)) microseconds. rateMbps <= 0 means unlimited —
// the caller should not pace at all.
func PacingInterval(mtu int, rateMbps float64) time.Duration {
	if rateMbps <= 0 {
		return 0
	}
	microseconds := math.Round(float64(mtu) * 8 * 1e6 / (rateMbps * 1024 * 1024))
	return time.Duration(microseconds) * time.Microsecond
}
