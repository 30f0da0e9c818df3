package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

func measurement(x, z, yaw float64) state.RobotState {
	var rs state.RobotState
	rs.ClassID = 4
	rs.State[state.IX] = x
	rs.State[state.IZ] = z
	rs.State[state.IYaw] = yaw
	rs.State[state.IR1] = 0.25
	rs.State[state.IR2] = 0.20
	return rs
}

func TestResetCentresOnMeasurement(t *testing.T) {
	k := New(2000, Noise{})
	meas := measurement(0.5, 4, 0.3)
	k.Reset(meas)

	mean := k.Mean()
	assert.Equal(t, 4, mean.ClassID)
	assert.InDelta(t, 0.5, mean.State[state.IX], 0.01)
	assert.InDelta(t, 4, mean.State[state.IZ], 0.01)
	assert.InDelta(t, 0.3, mean.State[state.IYaw], 0.02)
	assert.InDelta(t, 0.25, mean.State[state.IR1], 1e-9)
	assert.Equal(t, state.PFTrack, mean.PFState)
}

func TestPredictHoldsStaticTarget(t *testing.T) {
	k := New(2000, Noise{})
	k.Reset(measurement(0, 5, 0))

	for i := 0; i < 20; i++ {
		k.Predict(0.01)
	}
	mean := k.Mean()
	// Process noise diffuses the cloud but the mean stays near the target.
	assert.InDelta(t, 0, mean.State[state.IX], 0.15)
	assert.InDelta(t, 5, mean.State[state.IZ], 0.15)
}

func TestStepTracksMovingTarget(t *testing.T) {
	k := New(5000, Noise{})
	k.Reset(measurement(0, 5, 0))

	// Target slides along +x at 1 m/s, measured at 100 Hz.
	x := 0.0
	for i := 0; i < 100; i++ {
		x += 0.01
		k.Step(measurement(x, 5, 0), 0.01)
	}

	mean := k.Mean()
	assert.InDelta(t, x, mean.State[state.IX], 0.1)
	assert.InDelta(t, 5, mean.State[state.IZ], 0.1)
	// The velocity estimate should have picked up the drift direction.
	assert.Greater(t, mean.State[state.IVX], 0.0)
}

func TestStepIncompatibleMeasurementResets(t *testing.T) {
	k := New(1000, Noise{})
	k.Reset(measurement(0, 5, 0))

	// A measurement tens of metres away zeroes every weight; the kernel
	// must recover by reseeding rather than dividing by zero.
	far := measurement(80, 90, 0)
	k.Step(far, 0.01)

	mean := k.Mean()
	require.False(t, math.IsNaN(mean.State[state.IX]))
	assert.InDelta(t, 80, mean.State[state.IX], 0.5)
}

func TestMeanCarriesMeasurementTimestamp(t *testing.T) {
	k := New(100, Noise{})
	meas := measurement(0, 5, 0)
	k.Reset(meas)
	assert.Equal(t, meas.Timestamp, k.Mean().Timestamp)
}
