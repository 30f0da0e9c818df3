package armor

import (
	"math"

	"github.com/nusrobomaster/autoaim/pkg/geom"
	"github.com/nusrobomaster/autoaim/pkg/state"
)

// Radius bounds keep a degenerate two-armor solve from poisoning the track.
const (
	radiusMin = 0.1
	radiusMax = 0.5
)

// FromOneArmor reconstructs the robot measurement from a single world-frame
// detection. prev carries the radii and yaw continuity from the previous
// measurement of the same robot; pass nil on fresh acquisition.
func FromOneArmor(prev *state.RobotState, det state.Detection, defaultRadius float64) state.RobotState {
	var rs state.RobotState
	rs.ClassID = det.ClassID

	var yaw, chosen float64
	if prev == nil || prev.ClassID != det.ClassID {
		rs.State[state.IR1] = defaultRadius
		rs.State[state.IR2] = defaultRadius
		yaw = det.Yaw
		chosen = yaw
	} else {
		rs.State[state.IR1] = prev.State[state.IR1]
		rs.State[state.IR2] = prev.State[state.IR2]
		rs.State[state.IH] = prev.State[state.IH]

		// The robot may have rotated a different armor face into view:
		// the candidate set is the previous yaw and its quarter turns.
		base := prev.State[state.IYaw]
		chosen = base
		bestErr := math.Abs(geom.WrapPi(base - det.Yaw))
		for _, d := range []float64{math.Pi / 2, -math.Pi / 2, math.Pi} {
			cand := base + d
			if e := math.Abs(geom.WrapPi(cand - det.Yaw)); e < bestErr {
				chosen, bestErr = cand, e
			}
		}
		// Keep the measurement but unwrap it into the prior's continuity
		// class so downstream yaw-rate estimates never see quarter-turn
		// jumps.
		yaw = chosen + geom.WrapPi(det.Yaw-chosen)
	}

	// The ring follows the armor identity picked by the chosen yaw.
	r := rs.State[state.IR1]
	if geom.Sector(chosen)%2 == 1 {
		r = rs.State[state.IR2]
	}

	rs.State[state.IX] = det.TVec.X() - r*math.Sin(det.Yaw)
	rs.State[state.IY] = det.TVec.Y()
	rs.State[state.IZ] = det.TVec.Z() + r*math.Cos(det.Yaw)
	rs.State[state.IYaw] = yaw
	return rs
}

// FromTwoArmors fits the robot frame to two simultaneously visible armors of
// the same robot. The two ring radii and the centre drop out of the armor
// positions and yaws directly; the even-sector armor owns ring 1 so that
// swapping the input pair produces the same state.
func FromTwoArmors(prev *state.RobotState, a, b state.Detection, defaultRadius float64) state.RobotState {
	// Normalise ordering: a on the even sector.
	sa, sb := geom.Sector(a.Yaw), geom.Sector(b.Yaw)
	if sa%2 == 1 {
		a, b = b, a
		sa, sb = sb, sa
	}
	if sa%2 == sb%2 {
		// Both armors claim the same ring parity; the yaw pair is too far
		// from the quarter-turn geometry to trust.
		return fromNearer(prev, a, b, defaultRadius)
	}

	det := math.Sin(a.Yaw - b.Yaw)
	if math.Abs(det) < 0.2 {
		return fromNearer(prev, a, b, defaultRadius)
	}

	s0, c0 := math.Sin(a.Yaw), math.Cos(a.Yaw)
	s1, c1 := math.Sin(b.Yaw), math.Cos(b.Yaw)
	bx := b.TVec.X() - a.TVec.X()
	bz := b.TVec.Z() - a.TVec.Z()

	// Solve for the two radii:
	//   -s0*r1 + s1*r2 = bx
	//    c0*r1 - c1*r2 = bz
	r1 := -(bx*c1 + s1*bz) / det
	r2 := -(s0*bz + c0*bx) / det
	if r1 < radiusMin || r1 > radiusMax || r2 < radiusMin || r2 > radiusMax {
		return fromNearer(prev, a, b, defaultRadius)
	}

	var rs state.RobotState
	rs.ClassID = a.ClassID
	rs.State[state.IR1] = r1
	rs.State[state.IR2] = r2
	rs.State[state.IX] = a.TVec.X() - r1*s0
	rs.State[state.IY] = a.TVec.Y()
	rs.State[state.IZ] = a.TVec.Z() + r1*c0
	rs.State[state.IH] = b.TVec.Y() - a.TVec.Y()

	yaw := a.Yaw
	if prev != nil && prev.ClassID == a.ClassID {
		// Unwrap against the prior as in the one-armor path.
		yaw = prev.State[state.IYaw] + geom.WrapPi(a.Yaw-prev.State[state.IYaw])
	}
	rs.State[state.IYaw] = yaw
	return rs
}

func fromNearer(prev *state.RobotState, a, b state.Detection, defaultRadius float64) state.RobotState {
	if b.TVec.Len() < a.TVec.Len() {
		a = b
	}
	return FromOneArmor(prev, a, defaultRadius)
}
