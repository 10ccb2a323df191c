package server

import (
	"context"
	"testing"
	"time"

	"github.com/oakdoor/enterprisediode/diode"
)

func newTestManager(t *testing.T, timeout time.Duration) (*SessionManager, map[uint32]*memSink) {
	t.Helper()
	sinks := make(map[uint32]*memSink)
	factory := func(sessionID uint32) (Sink, error) {
		s := &memSink{}
		sinks[sessionID] = s
		return s, nil
	}
	m := NewSessionManager(factory, timeout, 16, Basic)
	return m, sinks
}

func TestSessionManagerIsolatesConcurrentSessions(t *testing.T) {
	m, sinks := newTestManager(t, time.Minute)
	ctx := context.Background()

	m.Accept(ctx, diode.Header{SessionID: 1, FrameCount: 1}, []byte("one"))
	m.Accept(ctx, diode.Header{SessionID: 2, FrameCount: 1}, []byte("two"))
	m.Accept(ctx, diode.Header{SessionID: 1, FrameCount: 2, EOF: true}, []byte(`{name: !str "a"}`))
	m.Accept(ctx, diode.Header{SessionID: 2, FrameCount: 2, EOF: true}, []byte(`{name: !str "b"}`))

	time.Sleep(20 * time.Millisecond)

	data1, name1, _, _ := sinks[1].snapshot()
	data2, name2, _, _ := sinks[2].snapshot()
	if string(data1) != "one" || name1 != "a" {
		t.Fatalf("session 1 cross-contaminated: data=%q name=%q", data1, name1)
	}
	if string(data2) != "two" || name2 != "b" {
		t.Fatalf("session 2 cross-contaminated: data=%q name=%q", data2, name2)
	}
}

func TestSessionManagerRemovesSessionOnCompletion(t *testing.T) {
	m, _ := newTestManager(t, time.Minute)
	ctx := context.Background()

	m.Accept(ctx, diode.Header{SessionID: 9, FrameCount: 1, EOF: true}, []byte(`{name: !str "a"}`))
	time.Sleep(20 * time.Millisecond)
	// The first write after the eof-frame processes is the one that
	// observes completion and removes the session from the table.
	m.Accept(ctx, diode.Header{SessionID: 9, FrameCount: 2}, []byte("late"))

	if got := m.Stats().ActiveSessions; got != 0 {
		t.Fatalf("expected 0 active sessions after completion, got %d", got)
	}
}

func TestSessionManagerStatsFoldCountersAfterCompletion(t *testing.T) {
	m, _ := newTestManager(t, time.Minute)
	ctx := context.Background()

	// Frame 3 arrives before frame 2, so both frame 3 and frame 2 count as
	// out-of-order arrivals, and the buffer briefly holds both pending
	// frames at once.
	m.Accept(ctx, diode.Header{SessionID: 7, FrameCount: 1}, []byte("a"))
	m.Accept(ctx, diode.Header{SessionID: 7, FrameCount: 3}, []byte("c"))
	m.Accept(ctx, diode.Header{SessionID: 7, FrameCount: 2}, []byte("b"))
	m.Accept(ctx, diode.Header{SessionID: 7, FrameCount: 4, EOF: true}, []byte(`{name: !str "a"}`))

	time.Sleep(20 * time.Millisecond)
	// Observe completion and remove the session from the table.
	m.Accept(ctx, diode.Header{SessionID: 7, FrameCount: 5}, []byte("late"))

	stats := m.Stats()
	if stats.ActiveSessions != 0 {
		t.Fatalf("expected 0 active sessions, got %d", stats.ActiveSessions)
	}
	if stats.OutOfOrderFrames == 0 {
		t.Fatalf("expected the out-of-order arrival to be counted after the session was retired")
	}
	if stats.PeakQueueDepth < 2 {
		t.Fatalf("expected peak queue depth to reflect both pending frames, got %d", stats.PeakQueueDepth)
	}
}

func TestSessionManagerExpiresSessionOnAccess(t *testing.T) {
	m, sinks := newTestManager(t, time.Millisecond)
	ctx := context.Background()

	m.Accept(ctx, diode.Header{SessionID: 3, FrameCount: 1}, []byte("first"))
	time.Sleep(5 * time.Millisecond)
	m.Accept(ctx, diode.Header{SessionID: 3, FrameCount: 2}, []byte("too late"))

	if got := m.Stats().ActiveSessions; got != 0 {
		t.Fatalf("expected expired session to be removed, got %d active", got)
	}
	if _, _, _, deleted := sinks[3].snapshot(); !deleted {
		t.Fatalf("expected staged output to be deleted on timeout")
	}
}
