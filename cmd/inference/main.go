// Command inference implements the drain-consumer pattern (spec §4.6):
// always process the newest frame, tolerating arbitrarily slow
// downstream inference work.
package main

import (
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/edge-sentry/ipcbridge/internal/config"
	"github.com/edge-sentry/ipcbridge/internal/detection"
	"github.com/edge-sentry/ipcbridge/internal/frame"
	"github.com/edge-sentry/ipcbridge/internal/inferengine"
	"github.com/edge-sentry/ipcbridge/internal/metrics"
	"github.com/edge-sentry/ipcbridge/internal/procsignal"
	"github.com/edge-sentry/ipcbridge/internal/pubsub"
	"github.com/edge-sentry/ipcbridge/internal/shmslot"
	"github.com/edge-sentry/ipcbridge/internal/signalqueue"
)

var version = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "inference"
	app.Usage = "drain-consumer: reads the newest frame, publishes detections"
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

	frameSlot, err := shmslot.OpenReadOnly(cfg.FrameBufferPath)
	if err != nil {
		return fatal(err)
	}
	defer frameSlot.Close()
	reader := frame.NewReader(frameSlot, pubsub.SkipFirstObservation())

	detSlot, err := shmslot.CreateOrOpen(cfg.DetectionBufferPath, cfg.DetectionBufferBytes)
	if err != nil {
		return fatal(err)
	}
	defer detSlot.Close()
	writer := detection.NewWriter(detSlot)

	q, err := signalqueue.Open(cfg.FrameToInferenceQueue)
	if err != nil {
		return fatal(err)
	}
	defer q.Close()

	detQ, err := signalqueue.Create(cfg.DetectionToControllerQueue, cfg.SignalQueueCapacity)
	if err != nil {
		return fatal(err)
	}
	defer detQ.Close()

	engine := inferengine.NewSimulated(inferengine.SimConfig{PersonClassID: cfg.PersonClassID})
	defer engine.Close()

	counters := &metrics.Counters{}
	done := procsignal.Watch(counters)
	if cfg.MetricsCSVDir != "" {
		go metrics.RunLogger(nil, cfg.MetricsCSVDir, 60*time.Second, counters)
	}

	drainLoop(reader, writer, engine, q, detQ, counters, done)
	log.Println("inference: shutdown complete")
	return nil
}

// drainLoop implements spec §4.6's pseudocode.
func drainLoop(reader *frame.Reader, writer *detection.Writer, engine inferengine.Engine, q, detQ *signalqueue.Queue, counters *metrics.Counters, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		if err := q.Wait(); err != nil {
			log.Println("inference: wait error:", err)
			continue
		}
		skipped, err := q.Drain()
		if err != nil {
			log.Println("inference: drain error:", err)
		}
		counters.AddSignalsDrained(uint64(skipped))

		f, status, err := reader.ReadLatest()
		if err != nil {
			log.Println("inference: read error:", err)
			continue
		}
		if status == pubsub.Torn {
			counters.AddReadsDiscardedTorn(1)
			continue
		}
		if status != pubsub.OK {
			continue
		}
		counters.AddFramesRead(1)

		boxes, err := engine.Infer(inferengine.FrameView{
			FrameNumber: f.FrameNumber,
			Width:       f.Width,
			Height:      f.Height,
			Pixels:      f.Pixels,
		})
		if err != nil {
			log.Println("inference: infer error:", err)
			continue
		}

		det := detection.Detection{
			FrameNumber: f.FrameNumber,
			TimestampNs: f.TimestampNs,
			CameraID:    f.CameraID,
			Boxes:       boxes,
		}
		if err := writer.Publish(det); err != nil {
			log.Println("inference: publish error:", err)
			continue
		}

		if err := detQ.Post(); err != nil && err != signalqueue.ErrOverflow {
			log.Println("inference: post error:", err)
		} else {
			counters.AddSignalsPosted(1)
		}
	}
}

func fatal(err error) error {
	return cli.NewExitError(errors.Wrap(err, "inference: setup").Error(), 1)
}
