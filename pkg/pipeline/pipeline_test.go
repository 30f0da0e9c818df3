package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusrobomaster/autoaim/pkg/share"
	"github.com/nusrobomaster/autoaim/pkg/state"
	"github.com/nusrobomaster/autoaim/pkg/transport/mcu"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestWaitNew(t *testing.T) {
	var slot share.Slot[int]
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		v := 1
		slot.Publish(&v)
	}()

	ver, ok := WaitNew(ctx, slot.Version, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(1), ver)
}

func TestWaitNewCancelled(t *testing.T) {
	var slot share.Slot[int]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := WaitNew(ctx, slot.Version, 0)
	assert.False(t, ok)
}

// fakeKernel records calls and echoes the last measurement as the mean.
type fakeKernel struct {
	mu       sync.Mutex
	resets   int
	steps    int
	predicts int
	last     state.RobotState
}

func (k *fakeKernel) Reset(meas state.RobotState) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.resets++
	k.last = meas
}

func (k *fakeKernel) Predict(dt float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.predicts++
}

func (k *fakeKernel) Step(meas state.RobotState, dt float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.steps++
	k.last = meas
}

func (k *fakeKernel) Mean() state.RobotState {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := k.last
	out.PFState = state.PFTrack
	return out
}

func (k *fakeKernel) counts() (resets, steps, predicts int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.resets, k.steps, k.predicts
}

func TestPFWorkerResetThenTrack(t *testing.T) {
	latest := share.New()
	kernel := &fakeKernel{}
	w := NewPFWorker(latest, kernel)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	stamp := time.Now()
	first := &state.RobotState{ClassID: 7, PFState: state.PFReset, Timestamp: stamp}
	latest.Detection.Publish(first)

	waitFor(t, func() bool { r, _, _ := kernel.counts(); return r == 1 })
	waitFor(t, func() bool { return latest.PF.Version() > 0 })

	// The published mean carries the measurement's camera timestamp.
	mean, _ := latest.PF.Snapshot()
	require.NotNil(t, mean)
	assert.Equal(t, stamp, mean.Timestamp)
	assert.Equal(t, 7, mean.ClassID)

	// A regular measurement becomes a step; silence becomes predicts.
	second := &state.RobotState{ClassID: 7, PFState: state.PFTrack, Timestamp: stamp.Add(20 * time.Millisecond)}
	latest.Detection.Publish(second)
	waitFor(t, func() bool { _, s, _ := kernel.counts(); return s == 1 })
	waitFor(t, func() bool { _, _, p := kernel.counts(); return p > 2 })

	cancel()
	<-done
}

// fixedDetector emits one armor per frame with a preset pose.
type fixedDetector struct {
	det state.Detection
}

func (d *fixedDetector) Predict(raw []byte, w, h int) ([]state.Detection, error) {
	return []state.Detection{d.det}, nil
}
func (d *fixedDetector) Close() error { return nil }

type nopRefiner struct{}

func (nopRefiner) Refine(dets []state.Detection, raw []byte, w, h int) {}

type nopSolver struct{}

func (nopSolver) Solve(dets []state.Detection) error { return nil }

func TestDetectionWorkerPublishesMeasurement(t *testing.T) {
	latest := share.New()
	det := state.Detection{
		ClassID:    3,
		Confidence: 0.9,
		TVec:       mgl64.Vec3{0, 0, 4},
		Yaw:        0.1,
	}
	w := NewDetectionWorker(latest, &fixedDetector{det: det}, nopRefiner{}, nopSolver{}, DetectionConfig{
		Confidence:    0.5,
		MaxTTL:        0.5,
		DefaultRadius: 0.25,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	latest.IMU.Publish(&state.IMUState{Timestamp: time.Now()})
	stamp := time.Now()
	latest.Camera.Publish(&state.CameraFrame{Timestamp: stamp, Width: 8, Height: 8, Raw: make([]byte, 8*8*3)})

	waitFor(t, func() bool { return latest.Detection.Version() > 0 })
	rs, _ := latest.Detection.Snapshot()
	require.NotNil(t, rs)

	assert.Equal(t, 3, rs.ClassID)
	assert.Equal(t, state.PFReset, rs.PFState)
	assert.Equal(t, stamp, rs.Timestamp)
	assert.Equal(t, 0.25, rs.State[state.IR1])

	// A second frame of the same robot is a tracking measurement.
	latest.Camera.Publish(&state.CameraFrame{Timestamp: stamp.Add(10 * time.Millisecond), Width: 8, Height: 8, Raw: make([]byte, 8*8*3)})
	waitFor(t, func() bool { return latest.Detection.Version() > 1 })
	rs, _ = latest.Detection.Snapshot()
	assert.Equal(t, state.PFTrack, rs.PFState)

	cancel()
	<-done
}

// loopPort is an in-memory serial endpoint: reads yield the canned RX
// stream once; writes accumulate.
type loopPort struct {
	mu      sync.Mutex
	rx      []byte
	written []byte
}

func (p *loopPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rx) == 0 {
		return 0, nil
	}
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *loopPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *loopPort) Close() error { return nil }

func (p *loopPort) snapshotWritten() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written...)
}

func TestUSBWorkerRoundTrip(t *testing.T) {
	latest := share.New()
	scalars := &share.Scalars{}

	speed := mcu.EncodeSpeed(23.5)
	port := &loopPort{rx: speed[:]}
	w := NewUSBWorker(latest, scalars, mcu.NewLink(port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	latest.Prediction.Publish(&state.Prediction{YawCmd: 0.5, PitchCmd: -0.25, Fire: true})

	waitFor(t, func() bool { return len(port.snapshotWritten()) >= mcu.CommandFrameSize })
	yaw, pitch, fire, err := mcu.DecodeCommand(port.snapshotWritten()[:mcu.CommandFrameSize])
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), yaw)
	assert.Equal(t, float32(-0.25), pitch)
	assert.True(t, fire)

	waitFor(t, func() bool { return scalars.BulletSpeed() == 23.5 })

	cancel()
	<-done
}

type recordingWorker struct {
	name    string
	mu      *sync.Mutex
	stopped *[]string
}

func (w recordingWorker) Name() string { return w.name }

func (w recordingWorker) Run(ctx context.Context) {
	<-ctx.Done()
	w.mu.Lock()
	*w.stopped = append(*w.stopped, w.name)
	w.mu.Unlock()
}

func TestSupervisorJoinsAllWorkers(t *testing.T) {
	var mu sync.Mutex
	var stopped []string
	sup := NewSupervisor(
		recordingWorker{"a", &mu, &stopped},
		recordingWorker{"b", &mu, &stopped},
		recordingWorker{"c", &mu, &stopped},
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	sup.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, stopped)
}
