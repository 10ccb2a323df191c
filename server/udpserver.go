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
	"net"

	"github.com/pkg/errors"

	"github.com/oakdoor/enterprisediode/diode"
)

// Listener reads datagrams off one UDP socket and routes each to the
// session manager. Grounded on the teacher's vendored kcp-go read loop
// (defaultMonitor): one goroutine, one reusable receive buffer, no
// back-pressure, no retransmission — a malformed datagram is logged and
// skipped, never surfaced as a fatal error.
type Listener struct {
	conn     *net.UDPConn
	sessions *SessionManager
	mtu      int
	warn     func(format string, args ...interface{})
}

// NewListener opens a UDP socket bound to port and wires it to sessions.
func NewListener(port int, mtu int, sessions *SessionManager) (*Listener, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, errors.Wrap(err, "listen udp")
	}
	return &Listener{
		conn:     conn,
		sessions: sessions,
		mtu:      mtu,
		warn:     func(format string, args ...interface{}) { log.Printf(format, args...) },
	}, nil
}

// Close releases the underlying socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Serve reads datagrams until ctx is cancelled or the socket errors. Each
// read's payload is parsed and handed to the session manager before the
// buffer is reused for the next read — Accept copies whatever it needs to
// keep.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	buf := make([]byte, l.mtu)
	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.Wrap(err, "read udp")
			}
		}

		h, payload, err := diode.ParseHeader(buf[:n])
		if err != nil {
			l.warn("malformed frame dropped: %v", err)
			continue
		}

		if err := l.sessions.Accept(ctx, h, payload); err != nil {
			l.warn("session accept failed: %v", err)
		}
	}
}
