package server

import (
	"context"
	"testing"
	"time"

	"github.com/oakdoor/enterprisediode/diode"
)

func waitClosed(t *testing.T, w *orderedWriter) {
	t.Helper()
	select {
	case <-w.closed:
	case <-time.After(time.Second):
		t.Fatalf("drain task never closed")
	}
}

func TestOrderedWriterReassemblesOutOfOrderFramesAndFinalizes(t *testing.T) {
	sink := &memSink{}
	w := newOrderedWriter(sink, Basic, 16, nil)
	ctx := context.Background()

	descriptor := []byte(`{name: !str "result.bin"}`)
	frames := []frame{
		{header: diode.Header{SessionID: 1, FrameCount: 2}, payload: []byte("world")},
		{header: diode.Header{SessionID: 1, FrameCount: 1}, payload: []byte("hello ")},
		{header: diode.Header{SessionID: 1, FrameCount: 3, EOF: true}, payload: descriptor},
	}
	for _, f := range frames {
		w.Write(ctx, f)
	}

	waitClosed(t, w)

	data, name, renamed, deleted := sink.snapshot()
	if string(data) != "hello world" {
		t.Fatalf("unexpected reassembled data: %q", data)
	}
	if name != "result.bin" || !renamed || deleted {
		t.Fatalf("unexpected finalize outcome: name=%q renamed=%v deleted=%v", name, renamed, deleted)
	}
}

func TestOrderedWriterReportsCompletionOnNextWriteAfterEOF(t *testing.T) {
	sink := &memSink{}
	w := newOrderedWriter(sink, Basic, 16, nil)
	ctx := context.Background()

	descriptor := []byte(`{name: !str "x"}`)
	completed := w.Write(ctx, frame{header: diode.Header{SessionID: 1, FrameCount: 1, EOF: true}, payload: descriptor})
	if completed {
		t.Fatalf("write that triggers the eof frame must not itself report completion")
	}

	waitClosed(t, w)

	// A later write for the same session (e.g. a duplicate arrival) must
	// observe completion without blocking.
	completed = w.Write(ctx, frame{header: diode.Header{SessionID: 1, FrameCount: 5}, payload: []byte("late")})
	if !completed {
		t.Fatalf("expected completion to be observed on a later write")
	}
}

func TestOrderedWriterRejectsDescriptorFallsBackToRejectedName(t *testing.T) {
	sink := &memSink{}
	w := newOrderedWriter(sink, Basic, 16, nil)
	ctx := context.Background()

	w.Write(ctx, frame{header: diode.Header{SessionID: 1, FrameCount: 1, EOF: true}, payload: []byte("not a descriptor")})
	waitClosed(t, w)

	_, name, renamed, _ := sink.snapshot()
	if name != diode.RejectedName || !renamed {
		t.Fatalf("expected fallback to rejected name, got %q renamed=%v", name, renamed)
	}
}

func TestOrderedWriterImportSessionDropsBadWrapHeaderButContinues(t *testing.T) {
	sink := &memSink{}
	w := newOrderedWriter(sink, Import, 16, nil)
	ctx := context.Background()

	mask := [diode.MaskLength]byte{1, 2, 3, 4, 5, 6, 7, 8}
	good := make([]byte, diode.WrapHeaderSize+3)
	diode.WriteWrapHeader(good, mask)
	for i, b := range []byte("abc") {
		good[diode.WrapHeaderSize+i] = b ^ mask[i%diode.MaskLength]
	}

	bad := make([]byte, diode.WrapHeaderSize+1)
	bad[0] = 0x00 // corrupt magic

	w.Write(ctx, frame{header: diode.Header{SessionID: 1, FrameCount: 1}, payload: good})
	w.Write(ctx, frame{header: diode.Header{SessionID: 1, FrameCount: 2}, payload: bad})
	w.Write(ctx, frame{header: diode.Header{SessionID: 1, FrameCount: 3, EOF: true}, payload: []byte(`{name: !str "ok"}`)})

	waitClosed(t, w)

	data, _, renamed, deleted := sink.snapshot()
	// Frame 1 of an import session passes through verbatim: its wrap
	// header followed by its masked data.
	if string(data) != string(good) {
		t.Fatalf("expected only the good frame's bytes, got %q", data)
	}
	if !renamed || deleted {
		t.Fatalf("session should have completed normally despite the dropped frame")
	}
}

func TestOrderedWriterAbortsAndDeletesOnSinkError(t *testing.T) {
	sink := &memSink{failOn: "write"}
	w := newOrderedWriter(sink, Basic, 16, nil)
	ctx := context.Background()

	w.Write(ctx, frame{header: diode.Header{SessionID: 1, FrameCount: 1}, payload: []byte("x")})
	waitClosed(t, w)

	_, _, renamed, deleted := sink.snapshot()
	if renamed || !deleted {
		t.Fatalf("expected abort-and-delete on sink write error, renamed=%v deleted=%v", renamed, deleted)
	}
}

func TestOrderedWriterDeleteFileWaitsForDrainTaskToStop(t *testing.T) {
	sink := newBlockingSink()
	w := newOrderedWriter(sink, Basic, 16, nil)
	ctx := context.Background()

	w.Write(ctx, frame{header: diode.Header{SessionID: 1, FrameCount: 1}, payload: []byte("x")})

	deadline := time.Now().Add(time.Second)
	for len(sink.eventsSnapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(sink.eventsSnapshot()) == 0 {
		t.Fatalf("drain task never entered sink.Write")
	}

	done := make(chan struct{})
	go func() {
		w.DeleteFile()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("DeleteFile returned while sink.Write was still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(sink.release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("DeleteFile never returned after sink.Write unblocked")
	}

	events := sink.eventsSnapshot()
	if len(events) != 3 || events[1] != "write-end" || events[2] != "delete" {
		t.Fatalf("expected [write-start write-end delete], got %v", events)
	}
}

func TestOrderedWriterQueueOverflowDropsSilently(t *testing.T) {
	sink := &memSink{}
	w := newOrderedWriter(sink, Basic, 1, nil)
	ctx := context.Background()

	// Fill the one-frame queue with a frame that is never drained because
	// FrameCount 1 never arrives.
	w.Write(ctx, frame{header: diode.Header{SessionID: 1, FrameCount: 5}, payload: []byte("a")})
	completed := w.Write(ctx, frame{header: diode.Header{SessionID: 1, FrameCount: 6}, payload: []byte("b")})
	if completed {
		t.Fatalf("overflowed write must not report completion")
	}
}
