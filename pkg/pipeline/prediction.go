package pipeline

import (
	"context"
	"time"

	"github.com/nusrobomaster/autoaim/pkg/aim"
	. "github.com/nusrobomaster/autoaim/pkg/logger"
	"github.com/nusrobomaster/autoaim/pkg/share"
)

// PredictionWorker is edge-triggered on filter output: it projects the state
// over the lead horizon and publishes the gimbal command.
type PredictionWorker struct {
	latest    *share.Latest
	scalars   *share.Scalars
	predictor *aim.Predictor
}

func NewPredictionWorker(latest *share.Latest, scalars *share.Scalars, predictor *aim.Predictor) *PredictionWorker {
	return &PredictionWorker{latest: latest, scalars: scalars, predictor: predictor}
}

func (w *PredictionWorker) Name() string { return "prediction" }

func (w *PredictionWorker) Run(ctx context.Context) {
	var pfVer, ver uint64
	for {
		next, ok := WaitNew(ctx, w.latest.PF.Version, pfVer)
		if !ok {
			break
		}
		pfVer = next

		rs, _ := w.latest.PF.Snapshot()
		if rs == nil {
			continue
		}
		imu, _ := w.latest.IMU.Snapshot()
		if imu == nil {
			continue
		}

		pred := w.predictor.Predict(*rs, *imu, w.scalars.BulletSpeed(), time.Now())
		ver = w.latest.Prediction.Publish(&pred)
	}
	Log.Info().Uint64("version", ver).Msg("prediction final version")
}
