package detect

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/nusrobomaster/autoaim/pkg/state"
)

// Light-bar quad dimensions, metres. Corners are ordered top-left,
// top-right, bottom-right, bottom-left as the network emits them.
const (
	armorWidth  = 0.135
	armorHeight = 0.055
)

// GoCVRefiner sharpens keypoints to sub-pixel accuracy on the grayscale
// frame.
type GoCVRefiner struct {
	gray gocv.Mat
}

func NewGoCVRefiner() *GoCVRefiner {
	return &GoCVRefiner{gray: gocv.NewMat()}
}

func (r *GoCVRefiner) Refine(dets []state.Detection, raw []byte, width, height int) {
	if len(dets) == 0 {
		return
	}
	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, raw)
	if err != nil {
		return
	}
	defer src.Close()
	gocv.CvtColor(src, &r.gray, gocv.ColorBGRToGray)

	// CornerSubPix refines a CV32FC2 point Mat in place.
	cornersMat := gocv.NewMatWithSize(len(dets)*4, 1, gocv.MatTypeCV32FC2)
	defer cornersMat.Close()
	for i, d := range dets {
		for k, kp := range d.Keypoints {
			cornersMat.SetFloatAt(i*4+k, 0, kp.X)
			cornersMat.SetFloatAt(i*4+k, 1, kp.Y)
		}
	}

	winSize := image.Point{X: 5, Y: 5}
	zeroZone := image.Point{X: -1, Y: -1}
	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, 20, 0.01)
	if err := gocv.CornerSubPix(r.gray, &cornersMat, winSize, zeroZone, criteria); err != nil {
		return
	}

	refined := gocv.NewPoint2fVectorFromMat(cornersMat)
	defer refined.Close()
	out := refined.ToPoints()
	if len(out) != len(dets)*4 {
		return
	}
	for i := range dets {
		for k := 0; k < 4; k++ {
			p := out[i*4+k]
			dets[i].Keypoints[k] = state.Keypoint{X: p.X, Y: p.Y}
		}
	}
}

func (r *GoCVRefiner) Close() {
	r.gray.Close()
}

// Intrinsics are the pinhole camera parameters from the camera calibration.
type Intrinsics struct {
	Fx, Fy, Cx, Cy float64
	Dist           [5]float64
}

// GoCVPnP solves armor pose from the four refined corners.
type GoCVPnP struct {
	cameraMatrix gocv.Mat
	distCoeffs   gocv.Mat
	objPoints    gocv.Point3fVector
}

func NewGoCVPnP(in Intrinsics) *GoCVPnP {
	k := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	k.SetDoubleAt(0, 0, in.Fx)
	k.SetDoubleAt(1, 1, in.Fy)
	k.SetDoubleAt(0, 2, in.Cx)
	k.SetDoubleAt(1, 2, in.Cy)
	k.SetDoubleAt(2, 2, 1)

	d := gocv.NewMatWithSize(1, 5, gocv.MatTypeCV64F)
	for i, v := range in.Dist {
		d.SetDoubleAt(0, i, v)
	}

	w, h := float32(armorWidth/2), float32(armorHeight/2)
	obj := gocv.NewPoint3fVectorFromPoints([]gocv.Point3f{
		{X: -w, Y: -h, Z: 0},
		{X: w, Y: -h, Z: 0},
		{X: w, Y: h, Z: 0},
		{X: -w, Y: h, Z: 0},
	})

	return &GoCVPnP{cameraMatrix: k, distCoeffs: d, objPoints: obj}
}

// Solve fills TVec and Yaw for every detection. It stops at the first
// detection whose solve fails and returns an error naming its class; the
// detections after it are left unsolved.
func (p *GoCVPnP) Solve(dets []state.Detection) error {
	for i := range dets {
		pts := make([]gocv.Point2f, 4)
		for k, kp := range dets[i].Keypoints {
			pts[k] = gocv.Point2f{X: kp.X, Y: kp.Y}
		}
		imgPoints := gocv.NewPoint2fVectorFromPoints(pts)

		rvec := gocv.NewMat()
		tvec := gocv.NewMat()
		ok := gocv.SolvePnP(p.objPoints, imgPoints, p.cameraMatrix, p.distCoeffs, &rvec, &tvec, false, 0)
		if !ok {
			imgPoints.Close()
			rvec.Close()
			tvec.Close()
			return fmt.Errorf("detect: pnp solve failed for class %d", dets[i].ClassID)
		}

		dets[i].TVec = mgl64.Vec3{
			tvec.GetDoubleAt(0, 0),
			tvec.GetDoubleAt(1, 0),
			tvec.GetDoubleAt(2, 0),
		}

		rmat := gocv.NewMat()
		gocv.Rodrigues(rvec, &rmat)
		// Armor normal in the camera frame; its bearing is the armor yaw.
		nx := rmat.GetDoubleAt(0, 2)
		nz := rmat.GetDoubleAt(2, 2)
		dets[i].Yaw = math.Atan2(nx, nz)

		rmat.Close()
		imgPoints.Close()
		rvec.Close()
		tvec.Close()
	}
	return nil
}

func (p *GoCVPnP) Close() {
	p.cameraMatrix.Close()
	p.distCoeffs.Close()
	p.objPoints.Close()
}
