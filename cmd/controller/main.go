// Command controller drains the detection queue, classifies each
// Detection as person-present/absent, and steps the sentry state
// machine (spec §4.8), writing the resulting mode to ControlByte and
// persisting a status snapshot on every state change.
package main

import (
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/edge-sentry/ipcbridge/internal/config"
	"github.com/edge-sentry/ipcbridge/internal/controlbyte"
	"github.com/edge-sentry/ipcbridge/internal/detection"
	"github.com/edge-sentry/ipcbridge/internal/metrics"
	"github.com/edge-sentry/ipcbridge/internal/procsignal"
	"github.com/edge-sentry/ipcbridge/internal/pubsub"
	"github.com/edge-sentry/ipcbridge/internal/sentry"
	"github.com/edge-sentry/ipcbridge/internal/shmslot"
	"github.com/edge-sentry/ipcbridge/internal/signalqueue"
	"github.com/edge-sentry/ipcbridge/internal/status"
)

var version = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "controller"
	app.Usage = "drains detections, drives the sentry state machine"
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
	log.Println("validation_frames:", cfg.ValidationFrames, "tracking_exit_frames:", cfg.TrackingExitFrames)

	detSlot, err := shmslot.OpenReadOnly(cfg.DetectionBufferPath)
	if err != nil {
		return fatal(err)
	}
	defer detSlot.Close()
	reader := detection.NewReader(detSlot, pubsub.SkipFirstObservation())

	control, err := controlbyte.CreateOrOpen(cfg.ControlPath)
	if err != nil {
		return fatal(err)
	}
	defer control.Close()

	q, err := signalqueue.Open(cfg.DetectionToControllerQueue)
	if err != nil {
		return fatal(err)
	}
	defer q.Close()

	machine := sentry.New(sentry.Config{
		ValidationFrames:   cfg.ValidationFrames,
		TrackingExitFrames: cfg.TrackingExitFrames,
	}, control)

	statusWriter := status.NewWriter(cfg.StatusPath)
	counters := &metrics.Counters{}
	done := procsignal.Watch(counters)
	if cfg.MetricsCSVDir != "" {
		go metrics.RunLogger(nil, cfg.MetricsCSVDir, 60*time.Second, counters)
	}

	controlLoop(reader, q, machine, statusWriter, counters, float32(cfg.PersonConfidenceThreshold), cfg.PersonClassID, done)
	log.Println("controller: shutdown complete")
	return nil
}

func controlLoop(reader *detection.Reader, q *signalqueue.Queue, machine *sentry.Machine, statusWriter *status.Writer, counters *metrics.Counters, threshold float32, personClassID uint32, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		if err := q.Wait(); err != nil {
			log.Println("controller: wait error:", err)
			continue
		}

		det, stat, err := reader.ReadLatest()
		if err != nil {
			log.Println("controller: read error:", err)
			continue
		}
		switch stat {
		case pubsub.Torn:
			counters.AddReadsDiscardedTorn(1)
			continue
		case pubsub.NoData, pubsub.NotNew:
			continue
		}
		counters.AddFramesRead(1)

		present := personPresent(det, threshold, personClassID)
		before := machine.StateTransitions
		st, mode := machine.Step(present)

		if machine.StateTransitions != before {
			_, k := machine.State()
			if err := statusWriter.Write(st.String(), k, mode, counters.Copy()); err != nil {
				log.Println("controller: status write error:", err)
			}
		}
		counters.SetModeTransitions(machine.ModeTransitions)
	}
}

// personPresent implements the "external predicate" of spec §4.8: any
// bounding box of the configured class at or above threshold confidence.
func personPresent(det detection.Detection, threshold float32, classID uint32) bool {
	for _, b := range det.Boxes {
		if b.ClassID == classID && b.Confidence >= threshold {
			return true
		}
	}
	return false
}

func fatal(err error) error {
	return cli.NewExitError(errors.Wrap(err, "controller: setup").Error(), 1)
}
