package pipeline

import (
	"context"

	"github.com/nusrobomaster/autoaim/pkg/devices"
	. "github.com/nusrobomaster/autoaim/pkg/logger"
	"github.com/nusrobomaster/autoaim/pkg/share"
	"github.com/nusrobomaster/autoaim/pkg/state"
)

// IMUWorker publishes inertial samples as fast as the driver yields them.
// The driver's poll timeout paces the loop; a timed-out read just loops.
type IMUWorker struct {
	dev    devices.IMU
	latest *share.Latest
}

func NewIMUWorker(dev devices.IMU, latest *share.Latest) *IMUWorker {
	return &IMUWorker{dev: dev, latest: latest}
}

func (w *IMUWorker) Name() string { return "imu" }

func (w *IMUWorker) Run(ctx context.Context) {
	var ver uint64
	for ctx.Err() == nil {
		sample := &state.IMUState{}
		if !w.dev.Read(sample) {
			continue
		}
		ver = w.latest.IMU.Publish(sample)
	}
	Log.Info().Uint64("version", ver).Msg("imu final version")
}
