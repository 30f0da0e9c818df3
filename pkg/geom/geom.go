// Package geom provides the angle and frame conversions shared by the
// detection and prediction stages. All rotations commit to the Z-up camera
// convention: R_y(yaw) rotates about the vertical axis (positive yaw = left
// turn), R_x(pitch) tilts about the camera right axis (positive pitch =
// camera tilts down).
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WrapPi wraps an angle to (-pi, pi].
func WrapPi(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// PosMod returns x mod m in [0, m).
func PosMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sector maps an armor yaw onto one of the four quadrants of the robot.
// Odd sectors sit on ring 2, even sectors on ring 1.
func Sector(yaw float64) int {
	s := int(PosMod(WrapPi(yaw)+math.Pi/4, 2*math.Pi) / (math.Pi / 2))
	if s == 4 {
		s = 0
	}
	return s
}

// YawRestrict folds an armor yaw into [-pi/4, 3*pi/4), the range in which the
// currently visible armor faces the shooter.
func YawRestrict(yaw float64) float64 {
	return PosMod(yaw+math.Pi/4, math.Pi) - math.Pi/4
}

// RCamToWorld builds the rotation taking camera-frame vectors into the world
// frame for the given gimbal yaw and pitch (radians).
func RCamToWorld(yaw, pitch float64) mgl64.Mat3 {
	return mgl64.Rotate3DY(yaw).Mul3(mgl64.Rotate3DX(pitch))
}

// RWorldToCam is the inverse of RCamToWorld.
func RWorldToCam(yaw, pitch float64) mgl64.Mat3 {
	return RCamToWorld(yaw, pitch).Transpose()
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 { return d * math.Pi / 180 }

// Rad2Deg converts radians to degrees.
func Rad2Deg(r float64) float64 { return r * 180 / math.Pi }
