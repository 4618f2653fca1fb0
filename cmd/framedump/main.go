// Command framedump is a debug tool: it attaches read-only to the frame
// slot, reads the current contents, and writes the snappy-compressed
// pixel bytes to disk for offline inspection (the header fields are only
// logged).
// Snappy usage grounded on the teacher's std/comp.go (CompStream),
// adapted here from a streaming net.Conn wrapper to a one-shot buffer
// encode since a debug dump has no ongoing connection to wrap.
package main

import (
	"log"
	"os"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/edge-sentry/ipcbridge/internal/config"
	"github.com/edge-sentry/ipcbridge/internal/frame"
	"github.com/edge-sentry/ipcbridge/internal/pubsub"
	"github.com/edge-sentry/ipcbridge/internal/shmslot"
)

var version = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "framedump"
	app.Usage = "dump the current frame slot to a snappy-compressed file"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to TOML config file", EnvVar: "SENTRY_CONFIG"},
		cli.StringFlag{Name: "out, o", Value: "frame.snap", Usage: "output file path"},
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

	slot, err := shmslot.OpenReadOnly(cfg.FrameBufferPath)
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "framedump: open").Error(), 1)
	}
	defer slot.Close()

	reader := frame.NewReader(slot)
	f, status, err := reader.ReadLatest()
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "framedump: read").Error(), 1)
	}
	if status != pubsub.OK {
		return cli.NewExitError("framedump: no readable frame (status="+statusName(status)+")", 1)
	}

	compressed := snappy.Encode(nil, f.Pixels)
	if err := os.WriteFile(c.String("out"), compressed, 0o644); err != nil {
		return cli.NewExitError(errors.Wrap(err, "framedump: write").Error(), 1)
	}

	log.Printf("framedump: wrote frame_number=%d %dx%d raw=%d compressed=%d -> %s",
		f.FrameNumber, f.Width, f.Height, len(f.Pixels), len(compressed), c.String("out"))
	return nil
}

func statusName(s pubsub.ReadStatus) string {
	switch s {
	case pubsub.NoData:
		return "no_data"
	case pubsub.Torn:
		return "torn"
	case pubsub.NotNew:
		return "not_new"
	default:
		return "ok"
	}
}
