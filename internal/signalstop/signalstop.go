// Package signalstop turns OS termination signals into a "stop after the
// current batch" flag the coordinator polls between batches, instead of
// tearing down a batch mid-flight.
package signalstop

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Signal satisfies coordinator.StopSignal. Zero value is ready to use.
type Signal struct {
	stopped atomic.Bool
}

// Watch registers for SIGINT/SIGTERM/SIGHUP and flips Stop() to true on the
// first one received. Call the returned function to stop watching.
func Watch() (*Signal, func()) {
	s := &Signal{}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		if _, ok := <-ch; ok {
			s.stopped.Store(true)
		}
	}()

	return s, func() { signal.Stop(ch); close(ch) }
}

// Stop reports whether a termination signal has been received.
func (s *Signal) Stop() bool {
	return s.stopped.Load()
}
