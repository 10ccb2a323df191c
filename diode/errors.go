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

import "errors"

// Sentinel error kinds. Of the error table in spec §7, only MalformedFrame
// and BadWrapHeader are sentinel errors; ErrMTUTooSmall covers the MTU
// floor.
var (
	// ErrMalformedFrame is returned by ParseHeader when a datagram is
	// shorter than the fixed header, or an eof-frame arrives with an
	// empty payload.
	ErrMalformedFrame = errors.New("diode: malformed frame")

	// ErrBadWrapHeader is returned by Rewrap.Transform when a non-first
	// frame's embedded CloakedDagger header fails structural validation.
	ErrBadWrapHeader = errors.New("diode: bad cloakeddagger wrap header")

	// ErrMTUTooSmall is returned when a configured MTU is below the
	// 576-octet floor spec §4.1 requires.
	ErrMTUTooSmall = errors.New("diode: mtu below 576 octet floor")
)
