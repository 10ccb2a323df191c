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
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Sink receives a session's reassembled bytes in order. Implementations are
// touched only by their owning session's drain task, except for Delete,
// which the session manager also calls directly on a timed-out session —
// never both at once, since orderedWriter.DeleteFile blocks until the
// drain task has fully exited before the manager deletes the sink itself.
type Sink interface {
	Write(p []byte) error
	SetName(name string) error
	Rename() error
	Delete() error
}

// SinkFactory builds the Sink for a newly observed session id.
type SinkFactory func(sessionID uint32) (Sink, error)

// fileSink stages incoming bytes to a hidden dotfile in the configured
// output directory and renames it to the descriptor-supplied name on
// completion, so a reader never observes a partially written file under
// its final name.
type fileSink struct {
	dir         string
	stagingPath string
	finalName   string
	file        *os.File
}

// FileSinkFactory builds Sinks that stage and rename files under dir.
func FileSinkFactory(dir string) SinkFactory {
	return func(sessionID uint32) (Sink, error) {
		return newFileSink(dir, sessionID)
	}
}

func newFileSink(dir string, sessionID uint32) (*fileSink, error) {
	staging := filepath.Join(dir, fmt.Sprintf(".%d.part", sessionID))
	f, err := os.OpenFile(staging, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open staging file")
	}
	return &fileSink{dir: dir, stagingPath: staging, file: f}, nil
}

func (s *fileSink) Write(p []byte) error {
	_, err := s.file.Write(p)
	return errors.Wrap(err, "write staging file")
}

func (s *fileSink) SetName(name string) error {
	s.finalName = name
	return nil
}

func (s *fileSink) Rename() error {
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, "close staging file")
	}
	target := filepath.Join(s.dir, s.finalName)
	return errors.Wrap(os.Rename(s.stagingPath, target), "rename staging file")
}

func (s *fileSink) Delete() error {
	_ = s.file.Close()
	if err := os.Remove(s.stagingPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove staging file")
	}
	return nil
}

// dropSink discards everything it receives, only counting bytes. It backs
// the operator diagnostic mode that exercises reassembly without touching
// the filesystem.
type dropSink struct {
	bytes uint64
}

// DropSinkFactory builds Sinks that discard all written bytes.
func DropSinkFactory() SinkFactory {
	return func(sessionID uint32) (Sink, error) {
		return &dropSink{}, nil
	}
}

func (s *dropSink) Write(p []byte) error {
	s.bytes += uint64(len(p))
	return nil
}

func (s *dropSink) SetName(name string) error { return nil }
func (s *dropSink) Rename() error             { return nil }
func (s *dropSink) Delete() error             { return nil }
