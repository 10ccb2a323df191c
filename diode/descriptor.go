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

package diode

import "regexp"

const (
	// MaxFilenameLength is the maximum length, in characters, of the
	// filename carried in a SISL descriptor (spec §3).
	MaxFilenameLength = 65

	// MaxDescriptorLength is the maximum length, in bytes, of the whole
	// eof-frame payload before it is even attempted to be parsed as
	// SISL. Open Question 3 left this unspecified by the original
	// source; DESIGN.md fixes it here.
	MaxDescriptorLength = 4096

	// RejectedName is the sentinel filename a session is finalized
	// under when its descriptor is missing or fails validation.
	RejectedName = "rejected."
)

// sislName matches a SISL descriptor of the form {name: !str "FILENAME"},
// tolerating the loose whitespace the sender is free to emit around ':' and
// the value.
var sislName = regexp.MustCompile(`^\{\s*name\s*:\s*!str\s*"([^"]*)"\s*\}$`)

// validFilename matches the filename character class spec §3 requires.
var validFilename = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// DecodeDescriptor extracts and validates the filename carried by an
// eof-frame's payload. It never returns an error: any parse failure,
// missing key, length violation, or character-class violation simply
// yields ok == false, per spec §4.4 ("no filename", not a fatal error).
func DecodeDescriptor(payload []byte) (filename string, ok bool) {
	if len(payload) == 0 || len(payload) > MaxDescriptorLength {
		return "", false
	}

	m := sislName.FindSubmatch(payload)
	if m == nil {
		return "", false
	}

	name := string(m[1])
	if name == "" || len(name) > MaxFilenameLength {
		return "", false
	}
	if !validFilename.MatchString(name) {
		return "", false
	}
	return name, true
}
