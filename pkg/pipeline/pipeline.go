// Package pipeline runs the six-stage aim pipeline: camera, IMU, detection,
// particle filter, prediction and the USB link, exchanging latest-value
// snapshots through the shared registry. Workers are goroutines; data flows
// strictly forward by version sampling, never by channels.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	. "github.com/nusrobomaster/autoaim/pkg/logger"
)

// Worker is one pipeline stage. Run loops until ctx is cancelled and must
// not let a panic escape; transient errors are logged inside the loop.
type Worker interface {
	Name() string
	Run(ctx context.Context)
}

// WaitNew polls version until it differs from last, backing off 1 ms per
// miss. Returns the new version, or ok=false when ctx was cancelled first.
func WaitNew(ctx context.Context, version func() uint64, last uint64) (uint64, bool) {
	for ctx.Err() == nil {
		if v := version(); v != last {
			return v, true
		}
		time.Sleep(time.Millisecond)
	}
	return last, false
}

// Supervisor starts workers in dependency order and joins them in reverse on
// shutdown. All workers observe the same cancelled context; the join order
// sets the order in which their exits are awaited and logged.
type Supervisor struct {
	workers []Worker
	runID   uuid.UUID
}

// NewSupervisor creates a supervisor over the given workers, listed in
// dependency order (producers first).
func NewSupervisor(workers ...Worker) *Supervisor {
	return &Supervisor{workers: workers, runID: uuid.New()}
}

// Run blocks until ctx is cancelled and every worker has exited.
func (s *Supervisor) Run(ctx context.Context) {
	Log.Info().Str("run_id", s.runID.String()).Int("workers", len(s.workers)).Msg("pipeline starting")

	done := make([]chan struct{}, len(s.workers))
	for i, w := range s.workers {
		done[i] = make(chan struct{})
		go func(w Worker, ch chan struct{}) {
			defer close(ch)
			defer func() {
				if r := recover(); r != nil {
					Log.Error().Str("worker", w.Name()).Interface("panic", r).Msg("worker panicked")
				}
			}()
			w.Run(ctx)
		}(w, done[i])
	}

	<-ctx.Done()
	for i := len(s.workers) - 1; i >= 0; i-- {
		<-done[i]
		Log.Info().Str("worker", s.workers[i].Name()).Msg("worker stopped")
	}
	Log.Info().Str("run_id", s.runID.String()).Msg("pipeline stopped")
}
