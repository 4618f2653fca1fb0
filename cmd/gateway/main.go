// Command gateway implements the stream-consumer pattern (spec §4.7):
// one wait per iteration, no drain, forwarding every frame it manages
// to read before the producer overwrites the slot again.
package main

import (
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/edge-sentry/ipcbridge/internal/config"
	"github.com/edge-sentry/ipcbridge/internal/frame"
	"github.com/edge-sentry/ipcbridge/internal/metrics"
	"github.com/edge-sentry/ipcbridge/internal/procsignal"
	"github.com/edge-sentry/ipcbridge/internal/pubsub"
	"github.com/edge-sentry/ipcbridge/internal/shmslot"
	"github.com/edge-sentry/ipcbridge/internal/signalqueue"
)

var version = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "gateway"
	app.Usage = "stream-consumer: forwards every observable published frame"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to TOML config file", EnvVar: "SENTRY_CONFIG"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		log.Printf("%+v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	log.Println("version:", version)

	slot, err := shmslot.OpenReadOnly(cfg.FrameBufferPath)
	if err != nil {
		return fatal(err)
	}
	defer slot.Close()
	reader := frame.NewReader(slot, pubsub.SkipFirstObservation())

	q, err := signalqueue.Open(cfg.FrameToGatewayQueue)
	if err != nil {
		return fatal(err)
	}
	defer q.Close()

	counters := &metrics.Counters{}
	done := procsignal.Watch(counters)
	if cfg.MetricsCSVDir != "" {
		go metrics.RunLogger(nil, cfg.MetricsCSVDir, 60*time.Second, counters)
	}

	streamLoop(reader, q, forwardStdout, counters, done)
	log.Println("gateway: shutdown complete")
	return nil
}

// forwardStdout is the opaque `forward()` of spec §4.7's pseudocode; a
// real deployment replaces this with a network push to subscribers.
func forwardStdout(f frame.Frame) {
	log.Printf("gateway: forward frame_number=%d camera_id=%d %dx%d", f.FrameNumber, f.CameraID, f.Width, f.Height)
}

func streamLoop(reader *frame.Reader, q *signalqueue.Queue, forward func(frame.Frame), counters *metrics.Counters, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		if err := q.Wait(); err != nil {
			log.Println("gateway: wait error:", err)
			continue
		}

		f, status, err := reader.ReadNext()
		if err != nil {
			log.Println("gateway: read error:", err)
			continue
		}
		switch status {
		case pubsub.Torn:
			counters.AddReadsDiscardedTorn(1)
			continue
		case pubsub.NoData, pubsub.NotNew:
			continue
		}
		counters.AddFramesRead(1)
		forward(f)
	}
}

func fatal(err error) error {
	return cli.NewExitError(errors.Wrap(err, "gateway: setup").Error(), 1)
}
