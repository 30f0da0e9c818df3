// gimbalcalib records the gimbal travel limits: drive the gimbal to each
// mechanical stop, press enter, and the median of 50 IMU samples is taken as
// the limit. Writes the YAML artifact autoaim loads at startup.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/nusrobomaster/autoaim/pkg/calib"
	"github.com/nusrobomaster/autoaim/pkg/devices"
	"github.com/nusrobomaster/autoaim/pkg/geom"
	. "github.com/nusrobomaster/autoaim/pkg/logger"
	"github.com/nusrobomaster/autoaim/pkg/state"
)

const samplesPerPose = 50

var (
	imuDevice = flag.String("imu", "/dev/ttyACM0", "IMU serial device")
	imuBaud   = flag.Int("baud", 921600, "IMU baud rate")
	outPath   = flag.String("out", "gimbal_limits.yaml", "artifact path")
	margin    = flag.Float64("margin", 0.02, "safety margin, radians")
	yawLimits = flag.Bool("yaw-limits", false, "record yaw stops too (no slip ring)")
)

func main() {
	flag.Parse()

	port, err := devices.OpenSerial(*imuDevice, devices.SerialConfig{BaudRate: *imuBaud, PollTenths: 1})
	if err != nil {
		Log.Fatal().Err(err).Str("device", *imuDevice).Msg("imu open failed")
	}
	imu := devices.NewSerialIMU(port)
	defer imu.Close()

	stdin := bufio.NewReader(os.Stdin)
	prompt := func(msg string) {
		fmt.Printf("%s, then press enter... ", msg)
		stdin.ReadString('\n')
	}

	limits := &calib.Limits{
		ID:           uuid.NewString(),
		CalibratedAt: time.Now(),
		SafetyMargin: *margin,
		HasYawLimits: *yawLimits,
	}

	prompt("Drive the gimbal to its MINIMUM pitch (lowest)")
	limits.PitchMin = medianAngle(imu, func(s *state.IMUState) float64 { return s.Pitch })
	fmt.Printf("pitch_min = %.4f rad\n", limits.PitchMin)

	prompt("Drive the gimbal to its MAXIMUM pitch (highest)")
	limits.PitchMax = medianAngle(imu, func(s *state.IMUState) float64 { return s.Pitch })
	fmt.Printf("pitch_max = %.4f rad\n", limits.PitchMax)

	if *yawLimits {
		prompt("Drive the gimbal to its MINIMUM yaw (full right)")
		limits.YawMin = medianAngle(imu, func(s *state.IMUState) float64 { return s.Yaw })
		fmt.Printf("yaw_min = %.4f rad\n", limits.YawMin)

		prompt("Drive the gimbal to its MAXIMUM yaw (full left)")
		limits.YawMax = medianAngle(imu, func(s *state.IMUState) float64 { return s.Yaw })
		fmt.Printf("yaw_max = %.4f rad\n", limits.YawMax)
	}

	if err := limits.Save(*outPath); err != nil {
		Log.Fatal().Err(err).Msg("artifact save failed")
	}
	fmt.Printf("wrote %s\n", *outPath)
}

// medianAngle collects samples and returns their median in radians. The
// median shrugs off the occasional glitched frame that a mean would absorb.
func medianAngle(imu devices.IMU, pick func(*state.IMUState) float64) float64 {
	samples := make([]float64, 0, samplesPerPose)
	deadline := time.Now().Add(10 * time.Second)
	for len(samples) < samplesPerPose {
		if time.Now().After(deadline) {
			Log.Fatal().Err(devices.ErrReadTimeout).Msg("imu produced no samples")
		}
		var s state.IMUState
		if !imu.Read(&s) {
			continue
		}
		samples = append(samples, geom.Deg2Rad(pick(&s)))
	}
	sort.Float64s(samples)
	return stat.Quantile(0.5, stat.Empirical, samples, nil)
}
