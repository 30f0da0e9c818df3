package armor

import (
	"github.com/nusrobomaster/autoaim/pkg/geom"
	"github.com/nusrobomaster/autoaim/pkg/state"
)

// ToWorld rotates a camera-frame detection into the world frame using the
// given IMU attitude; the detection worker passes the latest IMU snapshot
// when it processes the frame. Applied to the selected group only, after
// selection.
func ToWorld(det state.Detection, imu state.IMUState) state.Detection {
	yaw := geom.Deg2Rad(imu.Yaw)
	pitch := geom.Deg2Rad(imu.Pitch)
	det.TVec = geom.RCamToWorld(yaw, pitch).Mul3x1(det.TVec)
	det.Yaw = det.Yaw + yaw
	return det
}
