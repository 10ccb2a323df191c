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
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"

	"github.com/oakdoor/enterprisediode/diode"
)

// Config holds the client's command-line surface.
type Config struct {
	Filename   string
	Address    string
	ClientPort int
	MTU        int
	DataRate   float64 // Mbit/s; <= 0 means unlimited
	LogLevel   string
	Import     bool
}

// DefaultConfig mirrors the flag defaults declared on the cmd/diode-client
// urfave/cli app.
func DefaultConfig() Config {
	return Config{
		MTU:      1500,
		LogLevel: "info",
	}
}

var validFilename = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateFilename rejects anything that doesn't match
// `[A-Za-z0-9._-]+` within diode.MaxFilenameLength characters, matching
// Client::parseFilename. Only the base name is checked; callers should
// reject before any network activity.
func ValidateFilename(name string) error {
	base := filepath.Base(name)
	if len(base) == 0 || len(base) > diode.MaxFilenameLength {
		return errors.Errorf("filename must be 1-%d characters", diode.MaxFilenameLength)
	}
	if !validFilename.MatchString(base) {
		return errors.New("filename must match [A-Za-z0-9._-]+")
	}
	return nil
}
