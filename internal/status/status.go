// Package status persists the controller's sentry state as a small
// JSON snapshot file on every state transition (SPEC_FULL.md §4.10),
// grounded on calvinalkan-agent-task's use of github.com/natefinch/atomic
// to avoid a reader ever observing a half-written file — the same
// torn-read hazard the core mmap protocol solves, solved here for a
// plain file with the idiomatic tool for it.
package status

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/edge-sentry/ipcbridge/internal/controlbyte"
	"github.com/edge-sentry/ipcbridge/internal/metrics"
)

// Snapshot is the JSON document written to disk on every sentry state
// transition.
type Snapshot struct {
	WrittenAt time.Time         `json:"written_at"`
	State     string            `json:"state"`
	Counter   int               `json:"debounce_counter"`
	Mode      string            `json:"mode"`
	Metrics   metrics.Snapshot  `json:"metrics"`
}

// Writer persists Snapshot values to a fixed path.
type Writer struct {
	path string
}

// NewWriter builds a Writer. An empty path makes Write a no-op,
// matching config.Config.StatusPath's "empty disables" convention.
func NewWriter(path string) *Writer { return &Writer{path: path} }

// Write atomically replaces the status file's contents. It never
// blocks other readers on a partially-written file.
func (w *Writer) Write(state string, counter int, mode controlbyte.Mode, m metrics.Snapshot) error {
	if w.path == "" {
		return nil
	}
	snap := Snapshot{
		WrittenAt: time.Now(),
		State:     state,
		Counter:   counter,
		Mode:      mode.String(),
		Metrics:   m,
	}
	buf, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "status: marshal")
	}
	return errors.Wrap(atomic.WriteFile(w.path, bytes.NewReader(buf)), "status: write")
}
