// Package share implements the lock-free latest-value exchange between
// pipeline workers: one slot per stage output, each slot a pair of an
// atomically publishable snapshot pointer and a monotonically increasing
// version counter. Publishes replace, never mutate; readers never block.
package share

import (
	"math"
	"sync/atomic"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

// Slot is a single-producer multi-consumer latest-value cell. A published
// value must never be mutated afterwards; consumers copy before modifying.
//
// Publish stores the pointer before bumping the version, so a reader that
// observed version v is guaranteed to load the snapshot published at v or a
// newer one.
type Slot[T any] struct {
	ptr atomic.Pointer[T]
	ver atomic.Uint64
}

// Publish replaces the slot value and returns the new version.
func (s *Slot[T]) Publish(v *T) uint64 {
	s.ptr.Store(v)
	return s.ver.Add(1)
}

// Snapshot returns the current value (nil before the first publish) and its
// version.
func (s *Slot[T]) Snapshot() (*T, uint64) {
	v := s.ver.Load()
	return s.ptr.Load(), v
}

// Version samples the version counter without touching the value.
func (s *Slot[T]) Version() uint64 {
	return s.ver.Load()
}

// Latest is the process-wide registry of stage outputs.
type Latest struct {
	Camera     Slot[state.CameraFrame]
	IMU        Slot[state.IMUState]
	Detection  Slot[state.RobotState]
	PF         Slot[state.RobotState]
	Prediction Slot[state.Prediction]
}

// New creates an empty registry.
func New() *Latest {
	return &Latest{}
}

// Scalars are loose atomics updated out-of-band by the USB RX path.
// Approximate freshness is fine; no ordering is implied.
type Scalars struct {
	bulletSpeed atomic.Uint64
}

// SetBulletSpeed stores the latest measured muzzle speed, m/s.
func (s *Scalars) SetBulletSpeed(v float64) {
	s.bulletSpeed.Store(math.Float64bits(v))
}

// BulletSpeed returns the latest measured muzzle speed, m/s. Zero until the
// MCU has reported one.
func (s *Scalars) BulletSpeed() float64 {
	return math.Float64frombits(s.bulletSpeed.Load())
}
