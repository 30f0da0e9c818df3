package devices

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

// GoCVCamera implements Camera on top of a gocv VideoCapture device. The SDK
// paces Grab; there is no throttling on this side.
type GoCVCamera struct {
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// OpenCamera opens capture device id and requests the given resolution.
func OpenCamera(id, width, height int) (*GoCVCamera, error) {
	cap, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %v", ErrUnavailable, id, err)
	}
	if width > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		cap.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &GoCVCamera{cap: cap, mat: gocv.NewMat()}, nil
}

// Grab reads one frame and copies it out as tightly packed BGR bytes. The
// copy keeps published frames immutable while the Mat is reused.
func (c *GoCVCamera) Grab(frame *state.CameraFrame) bool {
	if !c.cap.Read(&c.mat) || c.mat.Empty() {
		return false
	}
	buf := c.mat.ToBytes()
	frame.Width = c.mat.Cols()
	frame.Height = c.mat.Rows()
	frame.Raw = append(frame.Raw[:0], buf...)
	return true
}

func (c *GoCVCamera) Close() error {
	c.mat.Close()
	return c.cap.Close()
}
