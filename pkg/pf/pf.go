// Package pf defines the particle-filter kernel contract the PF worker
// drives. No GPU kernel ships in this module; the cpu subpackage carries the
// reference implementation, which the tests and cmd/autoaim both use.
package pf

import "github.com/nusrobomaster/autoaim/pkg/state"

// Kernel is the filter over the 15-dimensional robot state. The particle set
// is owned by the kernel and never shared; all calls come from the single PF
// worker goroutine.
type Kernel interface {
	// Reset reinitialises the particle set from a measurement.
	Reset(meas state.RobotState)
	// Predict advances the particle set by dt with no measurement.
	Predict(dt float64)
	// Step advances by dt and updates weights against the measurement.
	Step(meas state.RobotState, dt float64)
	// Mean returns the weighted mean state.
	Mean() state.RobotState
}
