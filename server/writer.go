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

package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/oakdoor/enterprisediode/diode"
)

// SessionType selects how a session's drain task turns queued frames into
// sink writes: a plain pass-through, or a CloakedDagger stream rewrap.
type SessionType int

const (
	Basic SessionType = iota
	Import
)

type writerState int32

const (
	stateIdle writerState = iota
	stateActive
	stateFinalizing
	stateAborted
	stateClosed
)

// orderedWriter is the per-session reassembly state machine: a
// priorityBuffer feeding a single drain goroutine that writes frames to a
// Sink strictly in FrameCount order. Write, DeleteFile and the diagnostic
// counters are called from the session manager; everything else belongs to
// the drain goroutine Write starts on first use.
type orderedWriter struct {
	buffer *priorityBuffer
	sink   Sink
	rewrap *diode.Rewrap // non-nil only for Import sessions

	sessionType    SessionType
	nextFrameCount uint32
	lastFrameWritten uint32

	lastFrameReceived uint32
	outOfOrder        atomic.Uint64

	timeLastUpdated time.Time

	state   atomic.Int32
	started bool
	closed  chan struct{}
	stopped chan struct{}
	cancel  context.CancelFunc

	warn func(format string, args ...interface{})
}

func newOrderedWriter(sink Sink, sessionType SessionType, maxQueueLength int, warn func(string, ...interface{})) *orderedWriter {
	w := &orderedWriter{
		buffer:          newPriorityBuffer(maxQueueLength),
		sink:            sink,
		sessionType:     sessionType,
		nextFrameCount:  1,
		timeLastUpdated: time.Now(),
		closed:          make(chan struct{}),
		stopped:         make(chan struct{}),
		warn:            warn,
	}
	if sessionType == Import {
		w.rewrap = &diode.Rewrap{}
	}
	w.state.Store(int32(stateIdle))
	return w
}

// Write queues f for reassembly and lazily starts the drain goroutine. It
// is non-blocking beyond the buffer's brief critical section and does not
// derive completion from f itself — it reports whether the drain task had
// already reached Closed by the time of this call, the same bounded check
// the session manager repeats on every subsequent arrival for this session.
func (w *orderedWriter) Write(ctx context.Context, f frame) (completed bool) {
	w.timeLastUpdated = time.Now()
	w.trackOutOfOrder(f.header.FrameCount)

	accepted, firstOverflow := w.buffer.push(f)
	if !accepted {
		if firstOverflow {
			w.logf("session queue full at frame %d, dropping", f.header.FrameCount)
		}
	} else {
		w.ensureDrainStarted(ctx)
	}

	select {
	case <-w.closed:
		return true
	default:
		return false
	}
}

func (w *orderedWriter) trackOutOfOrder(frameCount uint32) {
	if w.lastFrameReceived != 0 && frameCount != w.lastFrameReceived+1 {
		w.outOfOrder.Add(1)
	}
	w.lastFrameReceived = frameCount
}

func (w *orderedWriter) ensureDrainStarted(ctx context.Context) {
	if w.started {
		return
	}
	w.started = true
	w.state.Store(int32(stateActive))
	drainCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.drainLoop(drainCtx)
}

// drainLoop pops frames in sequence and writes them to the sink until it
// either finalizes on the eof-frame, aborts on a sink error, or is
// cancelled externally on session timeout. It never returns without
// closing stopped, which is the signal DeleteFile waits on before it is
// safe for the manager to touch the sink itself.
func (w *orderedWriter) drainLoop(ctx context.Context) {
	defer close(w.stopped)

	for {
		select {
		case <-ctx.Done():
			// Cancelled externally (session timed out). The session
			// manager owns sink cleanup for that path; the drain task
			// must not touch the sink after this point.
			return
		default:
		}

		outcome, f := w.buffer.popInSequence(w.nextFrameCount, w.lastFrameWritten)
		switch outcome {
		case popFound:
			if f.header.EOF {
				w.finalize(f)
				return
			}
			if err := w.emit(f); err != nil {
				w.abort(err)
				return
			}
			w.nextFrameCount++
			w.lastFrameWritten = f.header.FrameCount
		case popDiscarded, popWaitOrEmpty:
			// Duplicate discarded, or nothing ready yet; popInSequence
			// already performed its bounded wait.
		}
	}
}

// emit writes one non-terminal frame's payload to the sink, applying the
// stream rewrap for Import sessions. A frame that doesn't even sniff as
// CloakedDagger-wrapped, or whose wrap header fails full validation, drops
// that frame's bytes but is not a sink error — the session continues.
func (w *orderedWriter) emit(f frame) error {
	if w.sessionType == Import {
		if !diode.LooksWrapped(f.payload) {
			w.logf("frame %d missing CloakedDagger wrap header, dropping payload", f.header.FrameCount)
			return nil
		}
		out, err := w.rewrap.Transform(f.payload, f.header.FrameCount)
		if err != nil {
			w.logf("bad wrap header on frame %d, dropping payload", f.header.FrameCount)
			return nil
		}
		return w.sink.Write(out)
	}
	return w.sink.Write(f.payload)
}

// finalize decodes the terminating descriptor, names and renames the sink,
// and transitions the session to Closed.
func (w *orderedWriter) finalize(f frame) {
	name, ok := diode.DecodeDescriptor(f.payload)
	if !ok {
		name = diode.RejectedName
	}

	w.state.Store(int32(stateFinalizing))
	if err := w.sink.SetName(name); err != nil {
		w.abort(err)
		return
	}
	if err := w.sink.Rename(); err != nil {
		w.abort(err)
		return
	}
	w.state.Store(int32(stateClosed))
	close(w.closed)
}

// abort retires the session on a sink error: the partial output is
// deleted and the drain task exits without ever writing again.
func (w *orderedWriter) abort(err error) {
	w.logf("sink error, retiring session: %v", err)
	w.state.Store(int32(stateAborted))
	_ = w.sink.Delete()
	w.state.Store(int32(stateClosed))
	close(w.closed)
}

// DeleteFile is called by the session manager when a session is found
// expired on access. It cancels the drain task and blocks until that task
// has actually observed the cancellation and exited drainLoop — signalled
// by stopped, closed via defer on every drainLoop return path — before
// deleting the staged output itself. This is what keeps the sink touched
// by exactly one of the drain task or the manager at any instant: the
// manager never calls sink.Delete while the drain task could still be
// mid-emit or mid-finalize.
func (w *orderedWriter) DeleteFile() {
	if w.cancel != nil {
		w.cancel()
		<-w.stopped
	}
	if err := w.sink.Delete(); err != nil {
		w.logf("delete on timeout failed: %v", err)
	}
}

// outOfOrderCount reports how many frames this session has received whose
// FrameCount did not immediately follow the previous arrival.
func (w *orderedWriter) outOfOrderCount() uint64 {
	return w.outOfOrder.Load()
}

// peakQueueDepth reports the largest pending-frame count this session's
// buffer has ever held.
func (w *orderedWriter) peakQueueDepth() int {
	return w.buffer.peakSize()
}

func (w *orderedWriter) logf(format string, args ...interface{}) {
	if w.warn != nil {
		w.warn(format, args...)
	}
}
