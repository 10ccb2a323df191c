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
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/oakdoor/enterprisediode/server"
)

// VERSION is injected by build flags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "diode-server"
	app.Usage = "one-way diode file receiver"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "serverPort", Value: 45000, Usage: "UDP port to listen on"},
		cli.IntFlag{Name: "mtu", Value: 1500, Usage: "maximum datagram size to read"},
		cli.IntFlag{Name: "queueLength", Value: 1024, Usage: "maximum pending frames per session"},
		cli.BoolFlag{Name: "dropPackets", Usage: "diagnostic: reassemble but discard output instead of writing files"},
		cli.BoolFlag{Name: "importDiode", Usage: "treat every session as a CloakedDagger import, applying the streaming rewrap"},
		cli.StringFlag{Name: "log", Usage: "write logs to this file instead of stderr"},
		cli.IntFlag{Name: "timeout", Value: 15, Usage: "session inactivity timeout, in seconds"},
		cli.StringFlag{Name: "outputDir", Value: ".", Usage: "directory completed files are written to"},
		cli.StringFlag{Name: "c", Usage: "config from json file, which will override the command from shell"},
	}

	app.Action = func(c *cli.Context) error {
		cfg := server.DefaultConfig()
		cfg.ServerPort = c.Int("serverPort")
		cfg.MTU = c.Int("mtu")
		cfg.QueueLength = c.Int("queueLength")
		cfg.DropPackets = c.Bool("dropPackets")
		cfg.ImportDiode = c.Bool("importDiode")
		cfg.Log = c.String("log")
		cfg.Timeout = c.Int("timeout")
		cfg.OutputDir = c.String("outputDir")

		if path := c.String("c"); path != "" {
			if err := server.LoadConfigFile(path, &cfg); err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
		}

		if cfg.Log != "" {
			f, err := os.OpenFile(cfg.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer f.Close()
			log.SetOutput(f)
		}

		if cfg.DropPackets {
			color.Red("dropPackets is set: reassembled files will be discarded, not written")
		}

		sessionType := server.Basic
		if cfg.ImportDiode {
			sessionType = server.Import
		}

		sinkFactory := server.FileSinkFactory(cfg.OutputDir)
		if cfg.DropPackets {
			sinkFactory = server.DropSinkFactory()
		}

		sessions := server.NewSessionManager(sinkFactory, time.Duration(cfg.Timeout)*time.Second, cfg.QueueLength, sessionType)

		listener, err := server.NewListener(cfg.ServerPort, cfg.MTU, sessions)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer listener.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			log.Println("shutting down")
			cancel()
		}()

		log.Printf("listening on UDP :%d (mtu=%d queueLength=%d import=%v)", cfg.ServerPort, cfg.MTU, cfg.QueueLength, cfg.ImportDiode)
		return listener.Serve(ctx)
	}

	if err := app.Run(os.Args); err != nil {
		log.Printf("%+v\n", err)
		os.Exit(1)
	}
}
