package pipeline

import (
	"context"
	"sync"
	"time"

	. "github.com/nusrobomaster/autoaim/pkg/logger"
	"github.com/nusrobomaster/autoaim/pkg/share"
	"github.com/nusrobomaster/autoaim/pkg/transport/mcu"
)

// USBWorker owns the MCU link: TX edge-triggered on predictions, RX draining
// bullet-speed reports into the shared scalars.
type USBWorker struct {
	latest  *share.Latest
	scalars *share.Scalars
	link    *mcu.Link
}

func NewUSBWorker(latest *share.Latest, scalars *share.Scalars, link *mcu.Link) *USBWorker {
	return &USBWorker{latest: latest, scalars: scalars, link: link}
}

func (w *USBWorker) Name() string { return "usb" }

func (w *USBWorker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.runRX(ctx)
	}()

	var predVer, ver uint64
	for {
		next, ok := WaitNew(ctx, w.latest.Prediction.Version, predVer)
		if !ok {
			break
		}
		predVer = next

		pred, _ := w.latest.Prediction.Snapshot()
		if pred == nil {
			continue
		}
		if err := w.link.SendCommand(float32(pred.YawCmd), float32(pred.PitchCmd), pred.Fire); err != nil {
			Log.Error().Err(err).Msg("command write failed")
			continue
		}
		ver = predVer
	}

	wg.Wait()
	Log.Info().Uint64("version", ver).Msg("usb final version")
}

// runRX parses bullet-speed frames from the MCU. The port's poll timeout
// keeps the loop responsive to cancellation.
func (w *USBWorker) runRX(ctx context.Context) {
	for ctx.Err() == nil {
		speeds, err := w.link.ReadSpeeds()
		if err != nil {
			Log.Warn().Err(err).Msg("mcu read failed")
			continue
		}
		if len(speeds) == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		for _, v := range speeds {
			w.scalars.SetBulletSpeed(float64(v))
			Log.Debug().Float32("speed", v).Msg("bullet speed updated")
		}
	}
}
