package mcu

import (
	"fmt"

	"github.com/nusrobomaster/autoaim/pkg/devices"
)

// Link drives one serial port: command frames out, speed frames in. Send and
// the RX scan may run on separate goroutines; they never share buffers.
type Link struct {
	port devices.Serial
	rx   []byte
}

// NewLink wraps an open port.
func NewLink(port devices.Serial) *Link {
	return &Link{port: port, rx: make([]byte, 0, 8*SpeedFrameSize)}
}

// SendCommand writes one gimbal command frame.
func (l *Link) SendCommand(yaw, pitch float32, fire bool) error {
	f := EncodeCommand(yaw, pitch, fire)
	n, err := l.port.Write(f[:])
	if err != nil {
		return fmt.Errorf("mcu: write command: %w", err)
	}
	if n != CommandFrameSize {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, CommandFrameSize)
	}
	return nil
}

// ReadSpeeds reads whatever the port has buffered and returns the bullet
// speeds of all complete valid frames. Returns an empty slice on a poll
// timeout; malformed frames are skipped with a resync on the next start
// byte.
func (l *Link) ReadSpeeds() ([]float32, error) {
	var chunk [64]byte
	n, err := l.port.Read(chunk[:])
	if err != nil {
		return nil, fmt.Errorf("mcu: read: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	l.rx = append(l.rx, chunk[:n]...)

	var speeds []float32
	for {
		start := -1
		for i, b := range l.rx {
			if b == speedStart {
				start = i
				break
			}
		}
		if start < 0 {
			l.rx = l.rx[:0]
			return speeds, nil
		}
		l.rx = l.rx[start:]
		if len(l.rx) < SpeedFrameSize {
			return speeds, nil
		}
		v, err := DecodeSpeed(l.rx[:SpeedFrameSize])
		if err != nil {
			// Checksum failure: the start byte was payload. Skip it.
			l.rx = l.rx[1:]
			continue
		}
		l.rx = l.rx[SpeedFrameSize:]
		speeds = append(speeds, v)
	}
}

// Close closes the underlying port.
func (l *Link) Close() error { return l.port.Close() }
