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
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Config holds the server's command-line surface, with defaults matching
// the values the teacher always wires literally rather than leaving unset.
type Config struct {
	ServerPort  int    `json:"serverPort"`
	MTU         int    `json:"mtu"`
	QueueLength int    `json:"queueLength"`
	DropPackets bool   `json:"dropPackets"`
	ImportDiode bool   `json:"importDiode"`
	Log         string `json:"log"`
	Timeout     int    `json:"timeout"`
	OutputDir   string `json:"outputDir"`
}

// DefaultConfig mirrors the flag defaults declared on the cmd/diode-server
// urfave/cli app.
func DefaultConfig() Config {
	return Config{
		ServerPort:  45000,
		MTU:         1500,
		QueueLength: 1024,
		Timeout:     15,
		OutputDir:   ".",
	}
}

// LoadConfigFile overlays a JSON config file's fields onto cfg, matching
// the pattern in the teacher's own server/config.go: an explicit config
// file wins over whatever the flags defaulted to.
func LoadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return errors.Wrap(err, "parse config file")
	}
	return nil
}
