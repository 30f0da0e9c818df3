// Package aim turns a filtered robot state into a gimbal command: lead-time
// convergence against the motion model, ballistic drop compensation, and the
// gimbal-limit policy.
package aim

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/nusrobomaster/autoaim/pkg/calib"
	"github.com/nusrobomaster/autoaim/pkg/geom"
	"github.com/nusrobomaster/autoaim/pkg/state"
)

const (
	gravity = 9.81

	leadEps      = 0.01
	leadMaxIters = 10

	// Armor plate extent used for the fire window, metres.
	plateSize = 0.13

	chaseDistance = 6.0
)

// Config are the tunables read from the configuration registry.
type Config struct {
	// Alpha is the exponential smoothing factor for bullet speed and
	// processing latency.
	Alpha float64
	// TGimbal is the actuator lag added to the lead horizon, seconds.
	TGimbal float64
	// TolCoeff scales the fire window.
	TolCoeff float64
	// BulletSpeed seeds the smoothed speed before the MCU reports one, m/s.
	BulletSpeed float64
}

// Predictor holds the smoothed quantities carried between cycles. Owned by
// the prediction worker; not safe for concurrent use.
type Predictor struct {
	cfg    Config
	limits calib.Limits

	bulletSpeed float64
	tProcessing float64
}

// NewPredictor creates a predictor with the given limits and tunables.
func NewPredictor(cfg Config, limits calib.Limits) *Predictor {
	if cfg.Alpha == 0 {
		cfg.Alpha = 0.1
	}
	if cfg.TolCoeff == 0 {
		cfg.TolCoeff = 1
	}
	if cfg.BulletSpeed == 0 {
		cfg.BulletSpeed = 25
	}
	return &Predictor{cfg: cfg, limits: limits, bulletSpeed: cfg.BulletSpeed}
}

// Predict computes the gimbal command for one filtered state. measuredSpeed
// is the latest MCU-reported muzzle speed (0 when none yet); imu is the
// attitude used to rotate the aim point back into the gimbal frame.
func (p *Predictor) Predict(rs state.RobotState, imu state.IMUState, measuredSpeed float64, now time.Time) state.Prediction {
	if measuredSpeed > 0 {
		p.bulletSpeed = p.cfg.Alpha*measuredSpeed + (1-p.cfg.Alpha)*p.bulletSpeed
	}
	proc := now.Sub(rs.Timestamp).Seconds()
	if proc > 0 {
		p.tProcessing = p.cfg.Alpha*proc + (1-p.cfg.Alpha)*p.tProcessing
	}

	// Lead-time convergence: aim where the target will be when the round
	// arrives, which itself depends on how far away that is.
	lead := rs.Pos().Len()/p.bulletSpeed + p.tProcessing + p.cfg.TGimbal
	pos := MotionModel(rs.State, lead)
	for i := 0; i < leadMaxIters; i++ {
		next := pos.Len()/p.bulletSpeed + p.tProcessing + p.cfg.TGimbal
		converged := math.Abs(next-lead) < leadEps
		lead = next
		pos = MotionModel(rs.State, lead)
		if converged {
			break
		}
	}

	yawRad := geom.Deg2Rad(imu.Yaw)
	pitchRad := geom.Deg2Rad(imu.Pitch)
	posCam := geom.RWorldToCam(yawRad, pitchRad).Mul3x1(pos)

	// Ballistic drop over the camera-frame range.
	d := posCam.Len()
	drop := gravity * d * d / (2 * p.bulletSpeed * p.bulletSpeed)
	posCam = mgl64.Vec3{posCam.X(), posCam.Y() + drop, posCam.Z()}

	yawCmd := math.Atan2(posCam.X(), posCam.Z())
	pitchCmd := math.Atan2(posCam.Y(), posCam.Z())
	yawCmd, pitchCmd = p.ApplyLimits(yawCmd, pitchCmd)

	tol := plateSize * p.cfg.TolCoeff / 2
	fire := math.Abs(posCam.X()) < tol && math.Abs(posCam.Y()) < tol

	return state.Prediction{
		YawCmd:    yawCmd,
		PitchCmd:  pitchCmd,
		Fire:      fire,
		Chase:     posCam.Z() > chaseDistance,
		Aim:       true,
		Timestamp: rs.Timestamp,
	}
}

// MotionModel projects the armor aim point t seconds ahead: constant
// acceleration on the centre, constant yaw acceleration on the spin, then
// the ring offset of whichever armor faces the shooter at that yaw.
func MotionModel(s [state.StateDim]float64, t float64) mgl64.Vec3 {
	half := t * t / 2
	x := s[state.IX] + s[state.IVX]*t + s[state.IAX]*half
	y := s[state.IY] + s[state.IVY]*t + s[state.IAY]*half
	z := s[state.IZ] + s[state.IVZ]*t + s[state.IAZ]*half

	yawT := s[state.IYaw] + s[state.IYawRate]*t + s[state.IYawAcc]*half

	r := s[state.IR1]
	if geom.Sector(yawT)%2 == 1 {
		r = s[state.IR2]
	}

	yawRestrict := geom.YawRestrict(yawT)
	x += r * math.Sin(yawRestrict)
	z -= r * math.Cos(yawRestrict)
	y += s[state.IH]

	return mgl64.Vec3{x, y, z}
}

// ApplyLimits clamps pitch into the calibrated travel minus the safety
// margin, and either wraps or clamps yaw depending on whether the gimbal has
// a slip ring.
func (p *Predictor) ApplyLimits(yaw, pitch float64) (float64, float64) {
	pitch = geom.Clamp(pitch, p.limits.PitchMin+p.limits.SafetyMargin, p.limits.PitchMax-p.limits.SafetyMargin)
	if p.limits.HasYawLimits {
		yaw = geom.Clamp(yaw, p.limits.YawMin+p.limits.SafetyMargin, p.limits.YawMax-p.limits.SafetyMargin)
	} else {
		yaw = geom.WrapPi(yaw)
	}
	return yaw, pitch
}

// BulletSpeed exposes the smoothed speed for logging.
func (p *Predictor) BulletSpeed() float64 { return p.bulletSpeed }

// ProcessingLatency exposes the smoothed camera-to-prediction latency for
// logging.
func (p *Predictor) ProcessingLatency() float64 { return p.tProcessing }
