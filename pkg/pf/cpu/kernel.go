// Package cpu is the reference particle-filter kernel: a bootstrap filter
// over the 15-dimensional robot state with Gaussian process noise on the
// kinematic derivatives and a position/yaw measurement model.
package cpu

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"

	"github.com/nusrobomaster/autoaim/pkg/geom"
	"github.com/nusrobomaster/autoaim/pkg/state"
)

// Noise configures the kernel's distributions. Zero values fall back to the
// defaults below.
type Noise struct {
	ProcAccel  float64 // m/s^2 per sqrt(s) on linear acceleration
	ProcYawAcc float64 // rad/s^2 per sqrt(s) on yaw acceleration
	ProcRadius float64 // m per sqrt(s) on the ring radii
	MeasPos    float64 // m, measurement sigma on position
	MeasYaw    float64 // rad, measurement sigma on yaw
}

func (n *Noise) defaults() {
	if n.ProcAccel == 0 {
		n.ProcAccel = 2.0
	}
	if n.ProcYawAcc == 0 {
		n.ProcYawAcc = 8.0
	}
	if n.ProcRadius == 0 {
		n.ProcRadius = 0.005
	}
	if n.MeasPos == 0 {
		n.MeasPos = 0.05
	}
	if n.MeasYaw == 0 {
		n.MeasYaw = 0.1
	}
}

// Kernel implements pf.Kernel on the CPU.
type Kernel struct {
	n         int
	particles *tensor.Dense // (n, StateDim) float64
	weights   []float64
	scratch   []float64 // resampling staging, same layout as particles

	noise Noise

	class    int
	lastMeas state.RobotState
}

// New creates a kernel with n particles.
func New(n int, noise Noise) *Kernel {
	noise.defaults()
	return &Kernel{
		n:         n,
		particles: tensor.New(tensor.WithShape(n, state.StateDim), tensor.Of(tensor.Float64)),
		weights:   make([]float64, n),
		scratch:   make([]float64, n*state.StateDim),
		noise:     noise,
	}
}

func (k *Kernel) data() []float64 {
	return k.particles.Data().([]float64)
}

// Reset seeds every particle from the measurement, jittered by the
// measurement noise.
func (k *Kernel) Reset(meas state.RobotState) {
	pos := distuv.Normal{Mu: 0, Sigma: k.noise.MeasPos}
	yawN := distuv.Normal{Mu: 0, Sigma: k.noise.MeasYaw}

	d := k.data()
	for i := 0; i < k.n; i++ {
		row := d[i*state.StateDim : (i+1)*state.StateDim]
		copy(row, meas.State[:])
		row[state.IX] += pos.Rand()
		row[state.IY] += pos.Rand()
		row[state.IZ] += pos.Rand()
		row[state.IYaw] += yawN.Rand()
		k.weights[i] = 1 / float64(k.n)
	}
	k.class = meas.ClassID
	k.lastMeas = meas
}

// Predict advances every particle by dt under the constant-acceleration
// motion model, with process noise injected at the acceleration level.
func (k *Kernel) Predict(dt float64) {
	acc := distuv.Normal{Mu: 0, Sigma: k.noise.ProcAccel * math.Sqrt(dt)}
	yacc := distuv.Normal{Mu: 0, Sigma: k.noise.ProcYawAcc * math.Sqrt(dt)}
	rad := distuv.Normal{Mu: 0, Sigma: k.noise.ProcRadius * math.Sqrt(dt)}

	half := dt * dt / 2
	d := k.data()
	for i := 0; i < k.n; i++ {
		row := d[i*state.StateDim : (i+1)*state.StateDim]

		row[state.IAX] += acc.Rand()
		row[state.IAY] += acc.Rand()
		row[state.IAZ] += acc.Rand()
		row[state.IYawAcc] += yacc.Rand()

		row[state.IX] += row[state.IVX]*dt + row[state.IAX]*half
		row[state.IY] += row[state.IVY]*dt + row[state.IAY]*half
		row[state.IZ] += row[state.IVZ]*dt + row[state.IAZ]*half
		row[state.IVX] += row[state.IAX] * dt
		row[state.IVY] += row[state.IAY] * dt
		row[state.IVZ] += row[state.IAZ] * dt

		row[state.IYaw] += row[state.IYawRate]*dt + row[state.IYawAcc]*half
		row[state.IYawRate] += row[state.IYawAcc] * dt

		row[state.IR1] = geom.Clamp(row[state.IR1]+rad.Rand(), 0.05, 0.6)
		row[state.IR2] = geom.Clamp(row[state.IR2]+rad.Rand(), 0.05, 0.6)
	}
}

// Step is predict followed by a weight update against the measurement and,
// when the effective particle count collapses, a systematic resample.
func (k *Kernel) Step(meas state.RobotState, dt float64) {
	k.Predict(dt)

	invPos := 1 / (2 * k.noise.MeasPos * k.noise.MeasPos)
	invYaw := 1 / (2 * k.noise.MeasYaw * k.noise.MeasYaw)

	d := k.data()
	var sum float64
	for i := 0; i < k.n; i++ {
		row := d[i*state.StateDim : (i+1)*state.StateDim]
		dx := row[state.IX] - meas.State[state.IX]
		dy := row[state.IY] - meas.State[state.IY]
		dz := row[state.IZ] - meas.State[state.IZ]
		dyaw := geom.WrapPi(row[state.IYaw] - meas.State[state.IYaw])

		ll := -(dx*dx+dy*dy+dz*dz)*invPos - dyaw*dyaw*invYaw
		k.weights[i] *= math.Exp(ll)
		sum += k.weights[i]
	}

	if sum <= 0 || math.IsNaN(sum) {
		// Degenerate weight set: the measurement is incompatible with
		// every particle. Start over from the measurement.
		k.Reset(meas)
		return
	}
	var neff float64
	for i := range k.weights {
		k.weights[i] /= sum
		neff += k.weights[i] * k.weights[i]
	}
	neff = 1 / neff
	if neff < float64(k.n)/2 {
		k.resample()
	}

	k.class = meas.ClassID
	k.lastMeas = meas
}

// resample draws a fresh uniform-weight particle set with systematic
// resampling.
func (k *Kernel) resample() {
	d := k.data()
	u := distuv.Uniform{Min: 0, Max: 1 / float64(k.n)}.Rand()
	var cum float64
	src := 0
	for i := 0; i < k.n; i++ {
		target := u + float64(i)/float64(k.n)
		for cum+k.weights[src] < target && src < k.n-1 {
			cum += k.weights[src]
			src++
		}
		copy(k.scratch[i*state.StateDim:(i+1)*state.StateDim], d[src*state.StateDim:(src+1)*state.StateDim])
	}
	copy(d, k.scratch)
	for i := range k.weights {
		k.weights[i] = 1 / float64(k.n)
	}
}

// Mean returns the weighted mean state. Yaw is averaged on the circle so a
// particle cloud straddling the wrap boundary does not cancel itself out.
func (k *Kernel) Mean() state.RobotState {
	var rs state.RobotState
	d := k.data()
	var sinYaw, cosYaw float64
	for i := 0; i < k.n; i++ {
		row := d[i*state.StateDim : (i+1)*state.StateDim]
		w := k.weights[i]
		for j := 0; j < state.StateDim; j++ {
			if j == state.IYaw {
				continue
			}
			rs.State[j] += w * row[j]
		}
		sinYaw += w * math.Sin(row[state.IYaw])
		cosYaw += w * math.Cos(row[state.IYaw])
	}
	rs.State[state.IYaw] = math.Atan2(sinYaw, cosYaw)

	rs.ClassID = k.class
	rs.Timestamp = k.lastMeas.Timestamp
	rs.PFState = state.PFTrack
	return rs
}
