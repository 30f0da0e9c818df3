// Package devices holds the device contracts the pipeline consumes and their
// Linux implementations. The pipeline never talks to hardware directly;
// workers own one device each and publish snapshots.
package devices

import (
	"errors"
	"io"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

var (
	ErrUnavailable = errors.New("devices: device unavailable")
	ErrReadTimeout = errors.New("devices: read timed out")
)

// Camera grabs frames. Grab fills Width, Height and Raw and returns false on
// a failed grab; the caller stamps the timestamp. Implementations must not
// retain Raw after returning.
type Camera interface {
	Grab(frame *state.CameraFrame) bool
	Close() error
}

// IMU reads one inertial sample per call. Euler angles are degrees in the
// world frame. Read returns false on a failed or timed-out read.
type IMU interface {
	Read(imu *state.IMUState) bool
	Close() error
}

// Serial is a byte-stream port. Reads return within the configured poll
// timeout even when no data arrives, so worker loops can observe
// cancellation.
type Serial interface {
	io.Reader
	io.Writer
	io.Closer
}
