package devices

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

// Serial IMU frame: start byte, four little-endian float32 fields
// (roll, pitch, yaw in degrees, device time in seconds), xor checksum of all
// preceding bytes.
const (
	imuFrameStart = 0xCC
	imuFrameSize  = 18
)

// SerialIMU implements IMU for gimbal boards that stream Euler frames over a
// UART. Reads resynchronise on the start byte, so a frame boundary is
// recovered after line noise.
type SerialIMU struct {
	port Serial
	buf  []byte
}

// NewSerialIMU wraps an open port.
func NewSerialIMU(port Serial) *SerialIMU {
	return &SerialIMU{port: port, buf: make([]byte, 0, 4*imuFrameSize)}
}

// Read performs one port read (bounded by the port's poll timeout) and
// returns true when the buffered bytes then hold a valid frame. A partial
// frame stays buffered for the next call and Read returns false.
func (s *SerialIMU) Read(imu *state.IMUState) bool {
	var chunk [64]byte
	n, err := s.port.Read(chunk[:])
	if err != nil || n == 0 {
		return false
	}
	s.buf = append(s.buf, chunk[:n]...)

	for {
		// Drop leading garbage up to the next start byte.
		start := -1
		for i, b := range s.buf {
			if b == imuFrameStart {
				start = i
				break
			}
		}
		if start < 0 {
			s.buf = s.buf[:0]
			return false
		}
		s.buf = s.buf[start:]
		if len(s.buf) < imuFrameSize {
			return false
		}

		frame := s.buf[:imuFrameSize]
		s.buf = s.buf[imuFrameSize:]
		if xor8(frame[:imuFrameSize-1]) != frame[imuFrameSize-1] {
			continue // malformed, resync on the next start byte
		}

		imu.Roll = float64(f32le(frame[1:5]))
		imu.Pitch = float64(f32le(frame[5:9]))
		imu.Yaw = float64(f32le(frame[9:13]))
		imu.Time = float64(f32le(frame[13:17]))
		imu.Timestamp = time.Now()
		return true
	}
}

func (s *SerialIMU) Close() error { return s.port.Close() }

func f32le(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func xor8(b []byte) byte {
	var x byte
	for _, v := range b {
		x ^= v
	}
	return x
}
