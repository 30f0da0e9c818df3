package devices

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

type cannedPort struct {
	chunks [][]byte
}

func (p *cannedPort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *cannedPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *cannedPort) Close() error                { return nil }

func eulerFrame(roll, pitch, yaw, tm float32) []byte {
	f := make([]byte, imuFrameSize)
	f[0] = imuFrameStart
	binary.LittleEndian.PutUint32(f[1:5], math.Float32bits(roll))
	binary.LittleEndian.PutUint32(f[5:9], math.Float32bits(pitch))
	binary.LittleEndian.PutUint32(f[9:13], math.Float32bits(yaw))
	binary.LittleEndian.PutUint32(f[13:17], math.Float32bits(tm))
	f[17] = xor8(f[:17])
	return f
}

func TestSerialIMUReadsFrame(t *testing.T) {
	frame := eulerFrame(1.5, -3.25, 178.0, 12.5)
	imu := NewSerialIMU(&cannedPort{chunks: [][]byte{frame}})

	var s state.IMUState
	require.True(t, imu.Read(&s))
	assert.Equal(t, 1.5, s.Roll)
	assert.Equal(t, -3.25, s.Pitch)
	assert.Equal(t, 178.0, s.Yaw)
	assert.Equal(t, 12.5, s.Time)
	assert.False(t, s.Timestamp.IsZero())
}

func TestSerialIMUResyncsOnGarbage(t *testing.T) {
	frame := eulerFrame(0, 1, 2, 3)
	noisy := append([]byte{0x00, 0xFF, 0x13}, frame...)
	imu := NewSerialIMU(&cannedPort{chunks: [][]byte{noisy}})

	var s state.IMUState
	require.True(t, imu.Read(&s))
	assert.Equal(t, 1.0, s.Pitch)
}

func TestSerialIMUSplitFrame(t *testing.T) {
	frame := eulerFrame(4, 5, 6, 7)
	imu := NewSerialIMU(&cannedPort{chunks: [][]byte{frame[:7], frame[7:]}})

	var s state.IMUState
	assert.False(t, imu.Read(&s)) // half a frame is not enough
	require.True(t, imu.Read(&s))
	assert.Equal(t, 6.0, s.Yaw)
}

func TestSerialIMURejectsBadChecksum(t *testing.T) {
	frame := eulerFrame(1, 2, 3, 4)
	frame[5] ^= 0xFF
	imu := NewSerialIMU(&cannedPort{chunks: [][]byte{frame}})

	var s state.IMUState
	assert.False(t, imu.Read(&s))
}
