package pipeline

import (
	"context"
	"time"

	. "github.com/nusrobomaster/autoaim/pkg/logger"
	"github.com/nusrobomaster/autoaim/pkg/share"
	"github.com/nusrobomaster/autoaim/pkg/state"
	"github.com/nusrobomaster/autoaim/pkg/vision/armor"
	"github.com/nusrobomaster/autoaim/pkg/vision/detect"
)

// DetectionConfig are the detection-stage tunables.
type DetectionConfig struct {
	Confidence    float32
	MaxTTL        float64 // selector grace window, seconds
	DefaultRadius float64 // seed ring radius on fresh acquisition, metres
}

// DetectionWorker is edge-triggered on camera frames: inference, refinement,
// pose solve, grouping, target selection, world-frame rotation, robot-pose
// reconstruction, publish.
type DetectionWorker struct {
	latest   *share.Latest
	detector detect.Detector
	refiner  detect.KeypointRefiner
	solver   detect.PoseSolver
	cfg      DetectionConfig

	selector  *armor.Selector
	prev      *state.RobotState
	lastFrame time.Time
}

func NewDetectionWorker(latest *share.Latest, detector detect.Detector, refiner detect.KeypointRefiner, solver detect.PoseSolver, cfg DetectionConfig) *DetectionWorker {
	if cfg.MaxTTL == 0 {
		cfg.MaxTTL = 0.5
	}
	if cfg.DefaultRadius == 0 {
		cfg.DefaultRadius = 0.25
	}
	return &DetectionWorker{
		latest:   latest,
		detector: detector,
		refiner:  refiner,
		solver:   solver,
		cfg:      cfg,
		selector: armor.NewSelector(cfg.MaxTTL),
	}
}

func (w *DetectionWorker) Name() string { return "detection" }

func (w *DetectionWorker) Run(ctx context.Context) {
	var camVer, ver uint64
	for {
		next, ok := WaitNew(ctx, w.latest.Camera.Version, camVer)
		if !ok {
			break
		}
		camVer = next

		frame, _ := w.latest.Camera.Snapshot()
		if frame == nil {
			continue
		}
		imu, _ := w.latest.IMU.Snapshot()
		if imu == nil {
			// Detections cannot be placed in the world without attitude.
			Log.Debug().Msg("no imu sample yet, skipping frame")
			continue
		}

		if v := w.process(frame, imu); v != 0 {
			ver = v
		}
	}
	Log.Info().Uint64("version", ver).Msg("detection final version")
}

func (w *DetectionWorker) process(frame *state.CameraFrame, imu *state.IMUState) uint64 {
	started := time.Now()
	dt := 0.0
	if !w.lastFrame.IsZero() {
		dt = frame.Timestamp.Sub(w.lastFrame).Seconds()
	}
	w.lastFrame = frame.Timestamp

	dets, err := w.detector.Predict(frame.Raw, frame.Width, frame.Height)
	if err != nil {
		Log.Error().Err(err).Msg("inference failed")
		return 0
	}
	w.refiner.Refine(dets, frame.Raw, frame.Width, frame.Height)
	dets = detect.FilterConfidence(dets, w.cfg.Confidence)
	if err := w.solver.Solve(dets); err != nil {
		Log.Error().Err(err).Msg("pose solve failed")
		return 0
	}

	groups := armor.FormRobot(dets)
	group, ok, reacquired := w.selector.Select(groups, dt)
	if !ok {
		if len(groups) > 0 {
			Log.Debug().Int("groups", len(groups)).Msg("holding lost target through grace window")
		}
		return 0
	}

	world := make([]state.Detection, len(group.Armors))
	for i, a := range group.Armors {
		world[i] = armor.ToWorld(a, *imu)
	}

	prev := w.prev
	if reacquired {
		prev = nil
	}
	var rs state.RobotState
	switch len(world) {
	case 1:
		rs = armor.FromOneArmor(prev, world[0], w.cfg.DefaultRadius)
	case 2:
		rs = armor.FromTwoArmors(prev, world[0], world[1], w.cfg.DefaultRadius)
	default:
		return 0
	}
	rs.Timestamp = frame.Timestamp
	if reacquired {
		rs.PFState = state.PFReset
	}
	w.prev = &rs

	ver := w.latest.Detection.Publish(&rs)
	Log.Debug().
		Int("class", rs.ClassID).
		Int("armors", len(world)).
		Dur("latency", time.Since(started)).
		Msg("measurement published")
	return ver
}
