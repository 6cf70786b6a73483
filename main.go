package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "pixel-stream"
	app.Usage = "capture the screen and stream frames over websocket"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "config.json",
			Usage: "configuration file (.json, .yaml or .yml); missing file means defaults",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging and runtime memory logs",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "json",
			Usage: "log output format: json or text",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "stream",
			Usage: "capture frames and deliver them to a websocket endpoint",
			Description: `
Capture frames from the screen (or a synthetic pattern), encode them and push
the most recent one to the endpoint at the target rate. Runs until the remote
side closes the connection or the process is interrupted.`,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "addr", Usage: "websocket endpoint, e.g. ws://localhost:8080"},
				cli.Float64Flag{Name: "fps", Usage: "target delivery rate"},
				cli.Float64Flag{Name: "capture-fps", Usage: "capture rate"},
				cli.StringFlag{Name: "mode", Usage: "frame codec: text or jpeg"},
				cli.StringFlag{Name: "wire", Usage: "websocket message type: text or binary"},
				cli.Float64Flag{Name: "scale", Usage: "jpeg resize factor in (0,1]"},
				cli.IntFlag{Name: "quality", Usage: "jpeg quality in (0,100]"},
				cli.StringFlag{Name: "color", Usage: "jpeg color mode: rgb or gray"},
				cli.StringFlag{Name: "source", Usage: "frame source: screen or pattern"},
			},
			Action: runStream,
		},
		{
			Name:  "receive",
			Usage: "accept a stream and log throughput",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "listen", Usage: "listen address, e.g. :8080"},
				cli.IntFlag{Name: "max-frames", Usage: "close each connection after this many frames (0 = unlimited)"},
				cli.StringFlag{Name: "snapshot", Usage: "write the last received frame as PNG on shutdown"},
			},
			Action: runReceive,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
