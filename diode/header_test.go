package diode

import "testing"

func TestParseHeaderOrdersFieldsLittleEndian(t *testing.T) {
	datagram := []byte{
		0x03, 0x00, 0x00, 0x00, // sessionId = 3
		0x02, 0x00, 0x00, 0x00, // frameCount = 2
		0x01,                   // eofFlag
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // reserved
		'p', 'a', 'y', 'l', 'o', 'a', 'd',
	}

	h, payload, err := ParseHeader(datagram)
	if err != nil {
		t.Fatalf("ParseHeader returned error: %v", err)
	}
	if h.SessionID != 3 || h.FrameCount != 2 || !h.EOF {
		t.Fatalf("unexpected header: %+v", h)
	}
	if string(payload) != "payload" {
		t.Fatalf("unexpected payload: %q", payload)
	}
}

func TestParseHeaderFieldsAtMaximum(t *testing.T) {
	datagram := []byte{
		0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF,
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		'x',
	}
	h, _, err := ParseHeader(datagram)
	if err != nil {
		t.Fatalf("ParseHeader returned error: %v", err)
	}
	if h.SessionID != 0xFFFFFFFF || h.FrameCount != 0xFFFFFFFF || !h.EOF {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestParseHeaderShortDatagramIsMalformed(t *testing.T) {
	datagram := make([]byte, HeaderSize-1)
	if _, _, err := ParseHeader(datagram); err != ErrMalformedFrame {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestParseHeaderEmptyEOFPayloadIsMalformed(t *testing.T) {
	datagram := make([]byte, HeaderSize)
	datagram[8] = 1
	if _, _, err := ParseHeader(datagram); err != ErrMalformedFrame {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestWriteHeaderRoundTrips(t *testing.T) {
	dst := make([]byte, HeaderSize)
	WriteHeader(dst, Header{SessionID: 42, FrameCount: 7, EOF: true})

	h, _, err := ParseHeader(append(dst, 'z'))
	if err != nil {
		t.Fatalf("ParseHeader returned error: %v", err)
	}
	if h.SessionID != 42 || h.FrameCount != 7 || !h.EOF {
		t.Fatalf("round trip mismatch: %+v", h)
	}
}

func TestMaxApplicationPayload(t *testing.T) {
	got, err := MaxApplicationPayload(1500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1456 {
		t.Fatalf("expected 1456, got %d", got)
	}

	got, err = MaxApplicationPayload(9000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 8956 {
		t.Fatalf("expected 8956, got %d", got)
	}
}

func TestMaxApplicationPayloadRejectsSmallMTU(t *testing.T) {
	if _, err := MaxApplicationPayload(0); err != ErrMTUTooSmall {
		t.Fatalf("expected ErrMTUTooSmall, got %v", err)
	}
	if _, err := MaxApplicationPayload(MinMTU - 1); err != ErrMTUTooSmall {
		t.Fatalf("expected ErrMTUTooSmall, got %v", err)
	}
	if _, err := MaxApplicationPayload(MinMTU); err != nil {
		t.Fatalf("unexpected error at floor: %v", err)
	}
}
