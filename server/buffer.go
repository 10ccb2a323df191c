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
	"container/heap"
	"sync"
	"time"

	"github.com/oakdoor/enterprisediode/diode"
)

// popBoundedWait is the maximum time popInSequence blocks waiting for a new
// arrival before reporting popWaitOrEmpty, per spec §4.2.
const popBoundedWait = 100 * time.Microsecond

// frame is one parsed datagram queued for a session, with its payload
// already copied out of the socket's reusable read buffer.
type frame struct {
	header  diode.Header
	payload []byte
}

// frameHeap is a container/heap min-heap ordered by ascending FrameCount —
// the corpus's own idiomatic priority queue primitive (see the teacher's
// vendored smux package, which keeps its stream bookkeeping on
// container/heap rather than a third-party priority queue).
type frameHeap []frame

func (h frameHeap) Len() int            { return len(h) }
func (h frameHeap) Less(i, j int) bool  { return h[i].header.FrameCount < h[j].header.FrameCount }
func (h frameHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *frameHeap) Push(x interface{}) { *h = append(*h, x.(frame)) }
func (h *frameHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// popOutcome is the result of popInSequence, mirroring
// ConcurrentOrderedPacketQueue::sequencedPacketStatus in original_source/.
type popOutcome int

const (
	popFound popOutcome = iota
	popWaitOrEmpty
	popDiscarded
)

// priorityBuffer is the thread-safe, ordered pending-frame container for
// one session: a min-heap guarded by one mutex and one condition variable,
// with a bounded-queue admission policy. This is the condition-variable
// variant spec §9 names as the one correct draft among several seen in the
// original source; the polling/status-enum variants are not implemented.
type priorityBuffer struct {
	mu             sync.Mutex
	cond           *sync.Cond
	heap           frameHeap
	maxQueueLength int
	exceeded       bool // one-shot guard, mirrors queueAlreadyExceeded
	peak           int
}

func newPriorityBuffer(maxQueueLength int) *priorityBuffer {
	b := &priorityBuffer{maxQueueLength: maxQueueLength}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// push inserts f, waking any blocked popInSequence caller. If the buffer is
// already at maxQueueLength, f is dropped silently; firstOverflow reports
// whether this is the first drop observed for this buffer, so the caller
// can log a one-shot QueueFull warning rather than flooding its log.
func (b *priorityBuffer) push(f frame) (accepted bool, firstOverflow bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.heap) >= b.maxQueueLength {
		firstOverflow = !b.exceeded
		b.exceeded = true
		return false, firstOverflow
	}

	heap.Push(&b.heap, f)
	if len(b.heap) > b.peak {
		b.peak = len(b.heap)
	}
	b.cond.Broadcast()
	return true, false
}

// popInSequence implements spec §4.2's pop_in_sequence: wait up to
// popBoundedWait for an arrival that makes progress possible, then either
// return the frame matching next, silently discard and report a frame at
// or before lastWritten (a duplicate), or report WaitOrEmpty for an empty
// buffer or a gap ahead. The bounded wait runs on every call whose top
// frame cannot be popped or discarded at once, not only when the buffer is
// empty, so a held-open gap backs off for popBoundedWait each cycle instead
// of busy-spinning until it closes — matching
// ConcurrentOrderedPacketQueue::nextInSequencePacket's cv.wait_for on every
// invocation.
func (b *priorityBuffer) popInSequence(next, lastWritten uint32) (popOutcome, frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.readyLocked(next, lastWritten) {
		b.waitBounded(popBoundedWait, next, lastWritten)
	}

	if len(b.heap) == 0 {
		return popWaitOrEmpty, frame{}
	}

	top := b.heap[0]
	if top.header.FrameCount == next {
		heap.Pop(&b.heap)
		return popFound, top
	}
	if top.header.FrameCount <= lastWritten {
		heap.Pop(&b.heap)
		return popDiscarded, frame{}
	}
	return popWaitOrEmpty, frame{}
}

// readyLocked reports whether the heap's top frame can be popped without
// waiting: it matches next, or it is a duplicate behind lastWritten that
// popInSequence will discard. Callers must hold b.mu.
func (b *priorityBuffer) readyLocked(next, lastWritten uint32) bool {
	if len(b.heap) == 0 {
		return false
	}
	top := b.heap[0]
	return top.header.FrameCount == next || top.header.FrameCount <= lastWritten
}

// waitBounded blocks on the condition variable for at most d, or until the
// heap becomes ready per readyLocked, whichever comes first. Callers must
// hold b.mu.
func (b *priorityBuffer) waitBounded(d time.Duration, next, lastWritten uint32) {
	timer := time.AfterFunc(d, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer timer.Stop()

	deadline := time.Now().Add(d)
	for !b.readyLocked(next, lastWritten) && time.Now().Before(deadline) {
		b.cond.Wait()
	}
}

// size reports the current queue depth. Used for diagnostics only.
func (b *priorityBuffer) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.heap)
}

// peakSize reports the largest queue depth this buffer has ever reached.
func (b *priorityBuffer) peakSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}
