package pipeline

import (
	"context"
	"time"

	. "github.com/nusrobomaster/autoaim/pkg/logger"
	"github.com/nusrobomaster/autoaim/pkg/pf"
	"github.com/nusrobomaster/autoaim/pkg/share"
	"github.com/nusrobomaster/autoaim/pkg/state"
)

// kDt is the particle-filter tick, 100 Hz.
const kDt = 10 * time.Millisecond

// PFWorker ticks the filter at a fixed rate: a measurement step when the
// detection slot advanced since the last tick, a predict-only step
// otherwise. Deadlines are absolute so jitter does not accumulate; an
// overrun tick proceeds immediately without skipping.
type PFWorker struct {
	latest *share.Latest
	kernel pf.Kernel
}

func NewPFWorker(latest *share.Latest, kernel pf.Kernel) *PFWorker {
	return &PFWorker{latest: latest, kernel: kernel}
}

func (w *PFWorker) Name() string { return "pf" }

func (w *PFWorker) Run(ctx context.Context) {
	var detVer, ver uint64
	seeded := false

	next := time.Now()
	for ctx.Err() == nil {
		next = next.Add(kDt)
		if d := time.Until(next); d > 0 {
			time.Sleep(d)
		}

		meas, v := w.latest.Detection.Snapshot()
		dtSec := kDt.Seconds()
		switch {
		case v != detVer && meas != nil:
			detVer = v
			if meas.PFState == state.PFReset || !seeded {
				w.kernel.Reset(*meas)
				seeded = true
			} else {
				w.kernel.Step(*meas, dtSec)
			}
		case seeded:
			w.kernel.Predict(dtSec)
		default:
			continue // nothing to track yet
		}

		mean := w.kernel.Mean()
		ver = w.latest.PF.Publish(&mean)
	}
	Log.Info().Uint64("version", ver).Msg("pf final version")
}
