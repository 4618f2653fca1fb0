// Command simulate runs producer, inference, gateway, and controller as
// goroutines in one process over real mmap files under a scratch
// directory — convenience-only, not part of the core's correctness
// surface (SPEC_FULL.md §5). Setup errors are returned before any loop
// starts; golang.org/x/sync/errgroup then starts the four loops together
// and waits until all of them stop, generalizing the teacher's std/copy.go Pipe (a
// sync.WaitGroup fan-in over exactly two goroutines) to N goroutines via
// the ecosystem's errgroup.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/edge-sentry/ipcbridge/internal/camera"
	"github.com/edge-sentry/ipcbridge/internal/config"
	"github.com/edge-sentry/ipcbridge/internal/controlbyte"
	"github.com/edge-sentry/ipcbridge/internal/detection"
	"github.com/edge-sentry/ipcbridge/internal/frame"
	"github.com/edge-sentry/ipcbridge/internal/inferengine"
	"github.com/edge-sentry/ipcbridge/internal/pubsub"
	"github.com/edge-sentry/ipcbridge/internal/sentry"
	"github.com/edge-sentry/ipcbridge/internal/shmslot"
	"github.com/edge-sentry/ipcbridge/internal/signalqueue"
)

var version = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "simulate"
	app.Usage = "run the full pipeline in one process for local testing"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "scratch-dir", Value: "/tmp/ipcbridge-simulate", Usage: "directory backing the mmap slots and control byte"},
		cli.DurationFlag{Name: "duration", Value: 5 * time.Second, Usage: "how long to run before stopping"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		log.Printf("%+v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	dir := c.String("scratch-dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	cfg := config.Defaults()
	cfg.TmpfsRoot = dir
	cfg.FrameBufferPath = dir + "/frame_buffer"
	cfg.DetectionBufferPath = dir + "/detection_buffer"
	cfg.ControlPath = dir + "/sentry_control"
	cfg.FrameToInferenceQueue = fmt.Sprintf("/sim_frame_to_inference_%d", os.Getpid())
	cfg.FrameToGatewayQueue = fmt.Sprintf("/sim_frame_to_gateway_%d", os.Getpid())
	cfg.DetectionToControllerQueue = fmt.Sprintf("/sim_detection_to_controller_%d", os.Getpid())

	frameSlot, err := shmslot.CreateOrOpen(cfg.FrameBufferPath, cfg.FrameBufferBytes)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer frameSlot.Close()

	detSlot, err := shmslot.CreateOrOpen(cfg.DetectionBufferPath, cfg.DetectionBufferBytes)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer detSlot.Close()

	control, err := controlbyte.CreateOrOpen(cfg.ControlPath)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer control.Close()

	toInference, err := signalqueue.Create(cfg.FrameToInferenceQueue, cfg.SignalQueueCapacity)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer toInference.Close()

	toGateway, err := signalqueue.Create(cfg.FrameToGatewayQueue, cfg.SignalQueueCapacity)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer toGateway.Close()

	toController, err := signalqueue.Create(cfg.DetectionToControllerQueue, cfg.SignalQueueCapacity)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer toController.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("duration"))
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error { return runProducer(gctx, cfg, frameSlot, control, toInference, toGateway) })
	group.Go(func() error { return runInference(gctx, frameSlot, detSlot, toInference, toController, cfg) })
	group.Go(func() error { return runGateway(gctx, frameSlot, toGateway) })
	group.Go(func() error { return runController(gctx, detSlot, control, toController, cfg) })

	if err := group.Wait(); err != nil && err != context.DeadlineExceeded {
		return cli.NewExitError(err.Error(), 1)
	}
	log.Println("simulate: run complete")
	return nil
}

func runProducer(ctx context.Context, cfg config.Config, frameSlot *shmslot.Slot, control *controlbyte.ControlByte, queues ...*signalqueue.Queue) error {
	writer := frame.NewWriter(frameSlot)
	cam := camera.NewSimulated(camera.SimConfig{Width: 320, Height: 240, Format: frame.FormatBGR})
	defer cam.Close()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		f, err := cam.Acquire(ctx)
		if err != nil {
			return nil
		}
		n++
		f.FrameNumber = n
		if err := writer.Publish(f); err != nil {
			log.Println("simulate/producer: publish:", err)
			continue
		}
		for _, q := range queues {
			_ = q.Post()
		}
		mode := control.Load()
		interval := time.Duration(cfg.StandbyPeriodMs) * time.Millisecond
		if mode == controlbyte.Alarmed {
			interval = time.Duration(cfg.AlarmedPeriodMs) * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func runInference(ctx context.Context, frameSlot, detSlot *shmslot.Slot, in, out *signalqueue.Queue, cfg config.Config) error {
	reader := frame.NewReader(frameSlot, pubsub.SkipFirstObservation())
	writer := detection.NewWriter(detSlot)
	engine := inferengine.NewSimulated(inferengine.SimConfig{PersonClassID: cfg.PersonClassID})

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := waitOrDone(ctx, in); err != nil {
			return nil
		}
		_, _ = in.Drain()

		f, status, err := reader.ReadLatest()
		if err != nil || status != pubsub.OK {
			continue
		}
		boxes, err := engine.Infer(inferengine.FrameView{FrameNumber: f.FrameNumber, Width: f.Width, Height: f.Height, Pixels: f.Pixels})
		if err != nil {
			continue
		}
		det := detection.Detection{FrameNumber: f.FrameNumber, TimestampNs: f.TimestampNs, CameraID: f.CameraID, Boxes: boxes}
		if err := writer.Publish(det); err != nil {
			continue
		}
		_ = out.Post()
	}
}

func runGateway(ctx context.Context, frameSlot *shmslot.Slot, q *signalqueue.Queue) error {
	reader := frame.NewReader(frameSlot, pubsub.SkipFirstObservation())
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := waitOrDone(ctx, q); err != nil {
			return nil
		}
		if _, status, err := reader.ReadLatest(); err == nil && status == pubsub.OK {
			// forwarding target is opaque (spec §4.7); simulate discards.
		}
	}
}

func runController(ctx context.Context, detSlot *shmslot.Slot, control *controlbyte.ControlByte, q *signalqueue.Queue, cfg config.Config) error {
	reader := detection.NewReader(detSlot, pubsub.SkipFirstObservation())
	machine := sentry.New(sentry.Config{ValidationFrames: cfg.ValidationFrames, TrackingExitFrames: cfg.TrackingExitFrames}, control)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := waitOrDone(ctx, q); err != nil {
			return nil
		}
		det, status, err := reader.ReadLatest()
		if err != nil || status != pubsub.OK {
			continue
		}
		present := false
		for _, b := range det.Boxes {
			if b.ClassID == cfg.PersonClassID && float64(b.Confidence) >= cfg.PersonConfidenceThreshold {
				present = true
				break
			}
		}
		machine.Step(present)
	}
}

// waitOrDone blocks on q.Wait() in a helper goroutine so the caller can
// still observe ctx cancellation, since SignalQueue.Wait has no context
// parameter (spec §5: the only blocking primitive is a kernel wait).
func waitOrDone(ctx context.Context, q *signalqueue.Queue) error {
	done := make(chan error, 1)
	go func() { done <- q.Wait() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
