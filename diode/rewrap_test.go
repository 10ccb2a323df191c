package diode

import "testing"

// buildWrappedChunk XOR-masks plaintext with mask cycling from phase 0 and
// prepends a CloakedDagger wrap header carrying that mask — exactly what a
// sender chunking at an arbitrary byte boundary does for every chunk after
// the first.
func buildWrappedChunk(plaintext []byte, mask [MaskLength]byte) []byte {
	out := make([]byte, WrapHeaderSize+len(plaintext))
	WriteWrapHeader(out, mask)
	for i, b := range plaintext {
		out[WrapHeaderSize+i] = b ^ mask[i%MaskLength]
	}
	return out
}

// TestRewrapContinuityAcrossTwoChunks is scenario S5 from spec §8: a 10-byte
// plaintext chunked 5/5 with independent fresh masks per chunk. Rewrapping
// then continuously XOR-unmasking with the first chunk's mask must recover
// the original plaintext (testable property 6).
func TestRewrapContinuityAcrossTwoChunks(t *testing.T) {
	plaintext := []byte("PPPPPPPPPP")
	sessionMask := [MaskLength]byte{0xAA, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}
	chunkMask2 := [MaskLength]byte{0x9F, 0x01, 0xEE, 0x80, 0x12, 0x34, 0x56, 0x78}

	frame1 := buildWrappedChunk(plaintext[:5], sessionMask)
	frame2 := buildWrappedChunk(plaintext[5:], chunkMask2)

	var r Rewrap
	out1, err := r.Transform(frame1, 1)
	if err != nil {
		t.Fatalf("frame 1 transform failed: %v", err)
	}
	if string(out1) != string(frame1) {
		t.Fatalf("first frame must pass through verbatim")
	}

	out2, err := r.Transform(frame2, 2)
	if err != nil {
		t.Fatalf("frame 2 transform failed: %v", err)
	}

	// Assemble the continuous downstream byte stream: frame1's data bytes
	// (after its own wrap header) followed by frame2's rewrapped bytes.
	var continuous []byte
	continuous = append(continuous, out1[WrapHeaderSize:]...)
	continuous = append(continuous, out2...)

	if len(continuous) != len(plaintext) {
		t.Fatalf("expected %d continuous bytes, got %d", len(plaintext), len(continuous))
	}

	for i, b := range continuous {
		got := b ^ sessionMask[i%MaskLength]
		if got != plaintext[i] {
			t.Fatalf("byte %d: got %q want %q", i, got, plaintext[i])
		}
	}
}

func TestRewrapRejectsBadWrapHeaderOnLaterFrame(t *testing.T) {
	sessionMask := [MaskLength]byte{1, 2, 3, 4, 5, 6, 7, 8}
	frame1 := buildWrappedChunk([]byte("hello"), sessionMask)

	var r Rewrap
	if _, err := r.Transform(frame1, 1); err != nil {
		t.Fatalf("frame 1 transform failed: %v", err)
	}

	badFrame := make([]byte, WrapHeaderSize+3)
	badFrame[0] = 0x00 // corrupt magic
	if _, err := r.Transform(badFrame, 2); err != ErrBadWrapHeader {
		t.Fatalf("expected ErrBadWrapHeader, got %v", err)
	}
}

func TestRewrapSingleChunkIsIdentityUnderSessionMask(t *testing.T) {
	plaintext := []byte("single-chunk-payload")
	sessionMask := [MaskLength]byte{9, 8, 7, 6, 5, 4, 3, 2}
	frame1 := buildWrappedChunk(plaintext, sessionMask)

	var r Rewrap
	out, err := r.Transform(frame1, 1)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}

	data := out[WrapHeaderSize:]
	for i, b := range data {
		if got := b ^ sessionMask[i%MaskLength]; got != plaintext[i] {
			t.Fatalf("byte %d: got %q want %q", i, got, plaintext[i])
		}
	}
}
