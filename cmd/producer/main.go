// Command producer implements the capture loop (spec §4.5): acquire a
// frame from the camera adapter, publish it into the frame slot, notify
// every registered consumer queue, and sleep a mode-dependent interval.
// Flag-table/Action structure grounded on the teacher's client/main.go.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/edge-sentry/ipcbridge/internal/camera"
	"github.com/edge-sentry/ipcbridge/internal/config"
	"github.com/edge-sentry/ipcbridge/internal/controlbyte"
	"github.com/edge-sentry/ipcbridge/internal/frame"
	"github.com/edge-sentry/ipcbridge/internal/metrics"
	"github.com/edge-sentry/ipcbridge/internal/procsignal"
	"github.com/edge-sentry/ipcbridge/internal/shmslot"
	"github.com/edge-sentry/ipcbridge/internal/signalqueue"
)

var version = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "producer"
	app.Usage = "camera capture loop writing into the frame slot"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to TOML config file", EnvVar: "SENTRY_CONFIG"},
		cli.IntFlag{Name: "camera-id", Value: 0, Usage: "camera_id stamped on every published frame"},
		cli.IntFlag{Name: "width", Value: 1280, Usage: "simulated frame width"},
		cli.IntFlag{Name: "height", Value: 720, Usage: "simulated frame height"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		log.Printf("%+v", err)
		os.Exit(exitCode(err))
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	log.Println("version:", version)
	log.Println("frame_buffer:", cfg.FrameBufferPath, "bytes:", cfg.FrameBufferBytes)
	log.Println("standby_period_ms:", cfg.StandbyPeriodMs, "alarmed_period_ms:", cfg.AlarmedPeriodMs)

	slot, err := shmslot.CreateOrOpen(cfg.FrameBufferPath, cfg.FrameBufferBytes)
	if err != nil {
		return fatal(err)
	}
	defer slot.Close()
	writer := frame.NewWriter(slot)

	control, err := controlbyte.OpenReadOnly(cfg.ControlPath)
	if err != nil {
		return fatal(err)
	}
	defer control.Close()

	inferenceQ, err := signalqueue.Create(cfg.FrameToInferenceQueue, cfg.SignalQueueCapacity)
	if err != nil {
		return fatal(err)
	}
	defer inferenceQ.Close()

	gatewayQ, err := signalqueue.Create(cfg.FrameToGatewayQueue, cfg.SignalQueueCapacity)
	if err != nil {
		return fatal(err)
	}
	defer gatewayQ.Close()

	cam := camera.NewSimulated(camera.SimConfig{
		CameraID: uint32(c.Int("camera-id")),
		Width:    uint32(c.Int("width")),
		Height:   uint32(c.Int("height")),
		Format:   frame.FormatBGR,
	})
	defer cam.Close()

	counters := &metrics.Counters{}
	done := procsignal.Watch(counters)
	if cfg.MetricsCSVDir != "" {
		go metrics.RunLogger(nil, cfg.MetricsCSVDir, 60*time.Second, counters)
	}

	captureLoop(context.Background(), cfg, cam, writer, control, []*signalqueue.Queue{inferenceQ, gatewayQ}, counters, done)
	log.Println("producer: shutdown complete")
	return nil
}

// captureLoop implements spec §4.5's per-iteration algorithm.
func captureLoop(ctx context.Context, cfg config.Config, cam camera.Source, writer *frame.Writer, control *controlbyte.ControlByte, queues []*signalqueue.Queue, counters *metrics.Counters, done <-chan struct{}) {
	var frameNumber uint64
	lastMode := control.Load()
	freshness := time.Duration(cfg.FreshnessThresholdMsOnWake) * time.Millisecond

	for {
		select {
		case <-done:
			return
		default:
		}

		mode := control.Load()
		if lastMode == controlbyte.Standby && mode == controlbyte.Alarmed {
			cam.Flush(freshness)
		}
		lastMode = mode

		f, err := cam.Acquire(ctx)
		if err != nil {
			log.Println("producer: capture error, skipping iteration:", err)
			time.Sleep(period(mode, cfg))
			continue
		}
		frameNumber++
		f.FrameNumber = frameNumber

		if err := writer.Publish(f); err != nil {
			log.Println("producer: publish error, skipping iteration:", err)
			time.Sleep(period(mode, cfg))
			continue
		}
		counters.AddFramesWritten(1)

		for _, q := range queues {
			if err := q.Post(); err != nil && err != signalqueue.ErrOverflow {
				log.Println("producer: post error:", err)
			} else {
				counters.AddSignalsPosted(1)
			}
		}

		time.Sleep(period(mode, cfg))
	}
}

func period(mode controlbyte.Mode, cfg config.Config) time.Duration {
	base := time.Duration(cfg.StandbyPeriodMs) * time.Millisecond
	if mode == controlbyte.Alarmed {
		base = time.Duration(cfg.AlarmedPeriodMs) * time.Millisecond
	}
	return camera.JitterInterval(base)
}

func fatal(err error) error {
	return cli.NewExitError(errors.Wrap(err, "producer: setup").Error(), 1)
}

func exitCode(err error) int {
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	return 1
}
