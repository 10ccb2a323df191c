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

package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/oakdoor/enterprisediode/client"
)

// VERSION is injected by build flags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "diode-client"
	app.Usage = "one-way diode file sender"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "filename", Usage: "file to send (required)"},
		cli.StringFlag{Name: "address", Usage: "destination host or IP (required)"},
		cli.IntFlag{Name: "clientPort", Usage: "destination UDP port (required)"},
		cli.IntFlag{Name: "mtu", Value: 1500, Usage: "maximum datagram size to send"},
		cli.Float64Flag{Name: "datarate", Value: 0, Usage: "send rate in Mbit/s, 0 means as fast as possible"},
		cli.StringFlag{Name: "logLevel", Value: "info", Usage: "log verbosity"},
		cli.BoolFlag{Name: "import", Usage: "wrap each chunk with a CloakedDagger header before sending"},
	}

	app.Action = func(c *cli.Context) error {
		cfg := client.DefaultConfig()
		cfg.Filename = c.String("filename")
		cfg.Address = c.String("address")
		cfg.ClientPort = c.Int("clientPort")
		cfg.MTU = c.Int("mtu")
		cfg.DataRate = c.Float64("datarate")
		cfg.LogLevel = c.String("logLevel")
		cfg.Import = c.Bool("import")

		if cfg.Filename == "" || cfg.Address == "" || cfg.ClientPort == 0 {
			return cli.NewExitError("filename, address and clientPort are required", 1)
		}
		if err := client.ValidateFilename(cfg.Filename); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		f, err := os.Open(cfg.Filename)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer f.Close()

		framer, err := client.NewFramer(f, cfg.Filename, cfg.MTU, cfg.Import)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		conn, err := net.Dial("udp", fmt.Sprintf("%s:%d", cfg.Address, cfg.ClientPort))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer conn.Close()

		interval := client.PacingInterval(cfg.MTU, cfg.DataRate)
		if interval == 0 {
			color.Red("datarate unset: sending as fast as possible, unthrottled")
		}

		log.Printf("sending %q to %s:%d as session %d", cfg.Filename, cfg.Address, cfg.ClientPort, framer.SessionID())
		for {
			datagram, err := framer.Next()
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			if _, err := conn.Write(datagram); err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			if interval > 0 {
				time.Sleep(interval)
			}
			if framer.Done() {
				break
			}
		}
		log.Println("transfer complete")
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
