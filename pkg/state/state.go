// Package state holds the typed snapshots exchanged between pipeline stages.
// Every value published into the shared registry is one of these types and is
// treated as immutable after publication.
package state

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// CameraFrame is a single grabbed frame. Raw is tightly packed BGR,
// len(Raw) == Width*Height*3. The worker stamps Timestamp on grab return.
type CameraFrame struct {
	Timestamp time.Time
	Width     int
	Height    int
	Raw       []byte
}

// IMUState is one inertial sample. Angles are in degrees in the world frame,
// exactly as the driver reports them; consumers convert to radians.
type IMUState struct {
	Timestamp time.Time
	Time      float64 // device clock, seconds
	Roll      float64
	Pitch     float64
	Yaw       float64
}

// Keypoint is an image-space armor corner, refined to sub-pixel accuracy.
type Keypoint struct {
	X, Y float32
}

// Detection is a single armor-plate observation. TVec and Yaw start in the
// camera frame and are rotated into the world frame before robots are formed.
type Detection struct {
	ClassID    int
	Keypoints  [4]Keypoint
	Confidence float32
	TVec       mgl64.Vec3 // metres
	Yaw        float64    // radians
}

// PFState tells the particle filter what to do with a measurement.
type PFState uint8

const (
	// PFTrack is a regular predict-then-update measurement.
	PFTrack PFState = iota
	// PFReset instructs the filter to reinitialise its particle set from
	// this measurement.
	PFReset
)

// Indices into RobotState.State.
const (
	IX = iota
	IY
	IZ
	IVX
	IVY
	IVZ
	IAX
	IAY
	IAZ
	IYaw
	IYawRate
	IYawAcc
	IR1
	IR2
	IH

	StateDim = 15
)

// RobotState is the tracked robot: position, velocity and acceleration of the
// centre, armor yaw with its derivatives, the two armor-ring radii and the
// ring height offset. Timestamp carries the camera timestamp of the
// measurement that produced it, all the way through the particle filter.
type RobotState struct {
	State     [StateDim]float64
	ClassID   int
	Timestamp time.Time
	PFState   PFState
}

// Pos returns the robot centre position.
func (r *RobotState) Pos() mgl64.Vec3 {
	return mgl64.Vec3{r.State[IX], r.State[IY], r.State[IZ]}
}

// Prediction is one gimbal command: where to point and whether to shoot.
// Angles are in the camera/gimbal frame, radians.
type Prediction struct {
	YawCmd    float64
	PitchCmd  float64
	Fire      bool
	Chase     bool
	Aim       bool
	Timestamp time.Time
}
