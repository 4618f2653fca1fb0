// Package procsignal wires the process signal handling shared by every
// cmd/* binary, grounded on the teacher's client/signal.go: SIGUSR1
// dumps counters, SIGPIPE is ignored, and SIGINT/SIGTERM trigger
// graceful shutdown with exit code 0 (spec §6).
package procsignal

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/edge-sentry/ipcbridge/internal/metrics"
)

// Watch installs the standard handler set and returns a channel that
// closes once SIGINT or SIGTERM is received. Callers select on it to
// begin graceful shutdown.
func Watch(counters *metrics.Counters) <-chan struct{} {
	done := make(chan struct{})

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	signal.Ignore(syscall.SIGPIPE)

	term := make(chan os.Signal, 1)
	signal.Notify(term, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-usr1:
				log.Printf("counters: %+v", counters.Copy())
			case <-term:
				close(done)
				return
			}
		}
	}()

	return done
}
