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
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/oakdoor/enterprisediode/diode"
)

// Stats is a snapshot of the session table, exposed for operator
// diagnostics; it carries no protocol meaning.
type Stats struct {
	ActiveSessions int

	// OutOfOrderFrames counts, across every session this manager has ever
	// seen, frames that arrived with a FrameCount that did not immediately
	// follow the previous arrival for that session.
	OutOfOrderFrames uint64

	// PeakQueueDepth is the largest pending-frame count any single
	// session's reorder buffer has ever reached.
	PeakQueueDepth int
}

// SessionManager is the single-writer map from session id to its
// orderedWriter. accept is expected to be called exclusively from the
// socket's receive goroutine; Stats may be read from anywhere.
type SessionManager struct {
	mu             sync.Mutex
	sessions       map[uint32]*orderedWriter
	sinkFactory    SinkFactory
	now            func() time.Time
	timeout        time.Duration
	maxQueueLength int
	sessionType    SessionType
	warn           func(format string, args ...interface{})

	// outOfOrderTotal and peakDepthSeen fold in a session's final counters
	// when it is retired, so a completed or expired session's diagnostics
	// survive its removal from the table.
	outOfOrderTotal atomic.Uint64
	peakDepthSeen   atomic.Int64
}

// NewSessionManager builds a manager that creates sinks via sinkFactory,
// retires a session once it goes timeout without activity, and bounds
// each session's pending queue at maxQueueLength frames.
func NewSessionManager(sinkFactory SinkFactory, timeout time.Duration, maxQueueLength int, sessionType SessionType) *SessionManager {
	return &SessionManager{
		sessions:       make(map[uint32]*orderedWriter),
		sinkFactory:    sinkFactory,
		now:            time.Now,
		timeout:        timeout,
		maxQueueLength: maxQueueLength,
		sessionType:    sessionType,
		warn:           func(format string, args ...interface{}) { log.Printf(format, args...) },
	}
}

// Accept routes one parsed datagram to its session, creating the session
// on first sight. A session found expired on access is aborted and its
// staged output deleted, without forwarding this frame; per spec, a
// session is only ever checked for expiry when a frame for it arrives —
// there is no background sweeper.
func (m *SessionManager) Accept(ctx context.Context, h diode.Header, payload []byte) error {
	m.mu.Lock()
	w, existed := m.sessions[h.SessionID]
	if !existed {
		sink, err := m.sinkFactory(h.SessionID)
		if err != nil {
			m.mu.Unlock()
			return errors.Wrap(err, "create sink")
		}
		w = newOrderedWriter(sink, m.sessionType, m.maxQueueLength, m.warn)
		m.sessions[h.SessionID] = w
	}

	if w.timeLastUpdated.Add(m.timeout).Before(m.now()) {
		delete(m.sessions, h.SessionID)
		m.mu.Unlock()
		w.DeleteFile()
		m.foldCounters(w)
		m.warn("session %d timed out, deleting staged output", h.SessionID)
		return nil
	}
	m.mu.Unlock()

	// payload aliases the socket's reusable read buffer; it must be
	// copied before handing it to a goroutine that may still be holding
	// it long after this call returns.
	owned := make([]byte, len(payload))
	copy(owned, payload)

	if w.Write(ctx, frame{header: h, payload: owned}) {
		m.mu.Lock()
		delete(m.sessions, h.SessionID)
		m.mu.Unlock()
		m.foldCounters(w)
	}
	return nil
}

// foldCounters absorbs a just-retired session's diagnostic counters into
// the manager's running totals, so they remain visible through Stats after
// the session itself has been dropped from the table.
func (m *SessionManager) foldCounters(w *orderedWriter) {
	m.outOfOrderTotal.Add(w.outOfOrderCount())
	if depth := int64(w.peakQueueDepth()); depth > m.peakDepthSeen.Load() {
		m.peakDepthSeen.Store(depth)
	}
}

// Stats reports the current session table size plus cumulative diagnostic
// counters, folding in every still-active session's live counters on top
// of the totals already folded in from retired sessions.
func (m *SessionManager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	outOfOrder := m.outOfOrderTotal.Load()
	peak := m.peakDepthSeen.Load()
	for _, w := range m.sessions {
		outOfOrder += w.outOfOrderCount()
		if depth := int64(w.peakQueueDepth()); depth > peak {
			peak = depth
		}
	}

	return Stats{
		ActiveSessions:   len(m.sessions),
		OutOfOrderFrames: outOfOrder,
		PeakQueueDepth:   int(peak),
	}
}
