//go:build linux

package devices

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// SerialConfig configures a Linux serial port. The framing is fixed 8N1 with
// no flow control; only the baud rate varies between the MCU link and the
// IMU link.
type SerialConfig struct {
	BaudRate int
	// PollTenths is the termios VTIME read timeout in tenths of a second.
	// Reads return 0 bytes after this long with no data.
	PollTenths uint8
}

// DefaultSerialConfig is 115200 8N1 with a 100 ms read poll.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{BaudRate: 115200, PollTenths: 1}
}

// LinuxSerial implements Serial on top of a termios tty.
type LinuxSerial struct {
	file   *os.File
	config SerialConfig
}

// OpenSerial opens and configures device (e.g. /dev/ttyUSB0).
func OpenSerial(device string, config SerialConfig) (*LinuxSerial, error) {
	file, err := os.OpenFile(device, os.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v (ensure user is in dialout group)", ErrUnavailable, device, err)
	}

	// Back to blocking mode; the VMIN/VTIME settings below bound reads.
	if err := unix.SetNonblock(int(file.Fd()), false); err != nil {
		file.Close()
		return nil, fmt.Errorf("serial: clear O_NONBLOCK on %s: %w", device, err)
	}

	termios, err := unix.IoctlGetTermios(int(file.Fd()), unix.TCGETS)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("serial: get termios on %s: %w", device, err)
	}

	baud := config.BaudRate
	if baud == 0 {
		baud = 115200
	}
	if c := baudConstant(baud); c != 0 {
		termios.Cflag &^= unix.CBAUD
		termios.Cflag |= c
		termios.Ispeed = c
		termios.Ospeed = c
	} else {
		termios.Cflag &^= unix.CBAUD
		termios.Cflag |= unix.BOTHER
		termios.Ispeed = uint32(baud)
		termios.Ospeed = uint32(baud)
	}

	// 8N1, receiver on, modem lines ignored.
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	// Raw mode.
	termios.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ISIG
	termios.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY | unix.ICRNL | unix.INLCR

	// Polled reads: return whatever arrived within VTIME, possibly nothing.
	poll := config.PollTenths
	if poll == 0 {
		poll = 1
	}
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = poll

	if err := unix.IoctlSetTermios(int(file.Fd()), unix.TCSETS, termios); err != nil {
		file.Close()
		return nil, fmt.Errorf("serial: set termios on %s: %w", device, err)
	}

	unix.IoctlSetInt(int(file.Fd()), unix.TCFLSH, unix.TCIOFLUSH)

	return &LinuxSerial{file: file, config: config}, nil
}

func (s *LinuxSerial) Read(p []byte) (int, error)  { return s.file.Read(p) }
func (s *LinuxSerial) Write(p []byte) (int, error) { return s.file.Write(p) }
func (s *LinuxSerial) Close() error                { return s.file.Close() }

func baudConstant(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	case 460800:
		return unix.B460800
	case 921600:
		return unix.B921600
	default:
		return 0
	}
}
