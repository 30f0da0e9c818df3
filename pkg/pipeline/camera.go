package pipeline

import (
	"context"
	"time"

	"github.com/nusrobomaster/autoaim/pkg/devices"
	. "github.com/nusrobomaster/autoaim/pkg/logger"
	"github.com/nusrobomaster/autoaim/pkg/share"
	"github.com/nusrobomaster/autoaim/pkg/state"
)

// CameraWorker grabs frames as fast as the SDK delivers them and publishes
// each with a grab-return timestamp. No throttling on this side.
type CameraWorker struct {
	dev    devices.Camera
	latest *share.Latest
}

func NewCameraWorker(dev devices.Camera, latest *share.Latest) *CameraWorker {
	return &CameraWorker{dev: dev, latest: latest}
}

func (w *CameraWorker) Name() string { return "camera" }

func (w *CameraWorker) Run(ctx context.Context) {
	var ver uint64
	for ctx.Err() == nil {
		frame := &state.CameraFrame{}
		if !w.dev.Grab(frame) {
			Log.Warn().Msg("camera grab failed, retrying")
			time.Sleep(time.Millisecond)
			continue
		}
		frame.Timestamp = time.Now()
		ver = w.latest.Camera.Publish(frame)
	}
	Log.Info().Uint64("version", ver).Msg("camera final version")
}
