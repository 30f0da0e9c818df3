// autoaim is the aim-and-fire controller: it detects armor plates in the
// camera stream, tracks the opposing robot through a particle filter, leads
// the target and drives the gimbal over the serial link.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nusrobomaster/autoaim/pkg/aim"
	"github.com/nusrobomaster/autoaim/pkg/calib"
	"github.com/nusrobomaster/autoaim/pkg/config"
	"github.com/nusrobomaster/autoaim/pkg/devices"
	. "github.com/nusrobomaster/autoaim/pkg/logger"
	"github.com/nusrobomaster/autoaim/pkg/pf/cpu"
	"github.com/nusrobomaster/autoaim/pkg/pipeline"
	"github.com/nusrobomaster/autoaim/pkg/share"
	"github.com/nusrobomaster/autoaim/pkg/transport/mcu"
	"github.com/nusrobomaster/autoaim/pkg/vision/detect"
)

var configPath = flag.String("config", "autoaim.yaml", "configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		Log.Fatal().Err(err).Msg("configuration load failed")
	}
	if err := cfg.ApplyLogs(); err != nil {
		Log.Error().Err(err).Msg("logger configuration invalid, keeping defaults")
	}
	cfg.OnChange("logs", func(r *config.Registry) {
		if err := r.ApplyLogs(); err != nil {
			Log.Error().Err(err).Msg("logger reconfiguration invalid, keeping previous")
		}
	})
	cfg.Watch()

	limits, err := calib.Load(cfg.String("calib.path"))
	if err != nil {
		Log.Fatal().Err(err).Msg("calibration artifact load failed")
	}

	// The serial channel is mandatory: without it there is no gimbal.
	port, err := devices.OpenSerial(cfg.String("serial.device"), devices.SerialConfig{
		BaudRate:   cfg.Int("serial.baud"),
		PollTenths: 1,
	})
	if err != nil {
		Log.Fatal().Err(err).Str("device", cfg.String("serial.device")).Msg("serial open failed")
	}
	link := mcu.NewLink(port)
	defer link.Close()

	camera, err := devices.OpenCamera(cfg.Int("camera.index"), cfg.Int("camera.width"), cfg.Int("camera.height"))
	if err != nil {
		Log.Fatal().Err(err).Msg("camera open failed")
	}
	defer camera.Close()

	imuPort, err := devices.OpenSerial(cfg.String("imu.device"), devices.SerialConfig{
		BaudRate:   cfg.Int("imu.baud"),
		PollTenths: 1,
	})
	if err != nil {
		Log.Fatal().Err(err).Str("device", cfg.String("imu.device")).Msg("imu open failed")
	}
	imu := devices.NewSerialIMU(imuPort)
	defer imu.Close()

	detector, err := detect.NewTFLiteDetector(cfg.String("detector.model"), 4)
	if err != nil {
		Log.Fatal().Err(err).Msg("detector load failed")
	}
	defer detector.Close()
	refiner := detect.NewGoCVRefiner()
	defer refiner.Close()
	solver := detect.NewGoCVPnP(detect.Intrinsics{
		Fx: cfg.Float("camera.fx"), Fy: cfg.Float("camera.fy"),
		Cx: cfg.Float("camera.cx"), Cy: cfg.Float("camera.cy"),
	})
	defer solver.Close()

	latest := share.New()
	scalars := &share.Scalars{}
	kernel := cpu.New(cfg.Int("pf.particles"), cpu.Noise{})
	predictor := aim.NewPredictor(aim.Config{
		Alpha:       cfg.Float("predict.alpha"),
		TGimbal:     cfg.Float("predict.t_gimbal"),
		TolCoeff:    cfg.Float("predict.tol_coeff"),
		BulletSpeed: cfg.Float("predict.bullet_speed"),
	}, *limits)

	sup := pipeline.NewSupervisor(
		pipeline.NewCameraWorker(camera, latest),
		pipeline.NewIMUWorker(imu, latest),
		pipeline.NewDetectionWorker(latest, detector, refiner, solver, pipeline.DetectionConfig{
			Confidence:    float32(cfg.Float("detector.confidence")),
			MaxTTL:        cfg.Float("detector.max_ttl"),
			DefaultRadius: cfg.Float("predict.default_radius"),
		}),
		pipeline.NewPFWorker(latest, kernel),
		pipeline.NewPredictionWorker(latest, scalars, predictor),
		pipeline.NewUSBWorker(latest, scalars, link),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	sup.Run(ctx)
}
