// Package mcu implements the serial protocol between the host and the gimbal
// MCU: an 11-byte command frame down, a 6-byte bullet-speed frame up. All
// multi-byte fields are little-endian; the last byte of every frame is the
// xor of all preceding bytes.
package mcu

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	CommandFrameSize = 11
	commandStart     = 0xAA

	SpeedFrameSize = 6
	speedStart     = 0xBB
)

var (
	ErrFrameSize  = errors.New("mcu: wrong frame size")
	ErrStartByte  = errors.New("mcu: bad start byte")
	ErrChecksum   = errors.New("mcu: checksum mismatch")
	ErrShortWrite = errors.New("mcu: short write")
)

// EncodeCommand builds the gimbal command frame:
// [0xAA][yaw:f32][pitch:f32][fire:u8][xor].
func EncodeCommand(yaw, pitch float32, fire bool) [CommandFrameSize]byte {
	var f [CommandFrameSize]byte
	f[0] = commandStart
	binary.LittleEndian.PutUint32(f[1:5], math.Float32bits(yaw))
	binary.LittleEndian.PutUint32(f[5:9], math.Float32bits(pitch))
	if fire {
		f[9] = 1
	}
	f[10] = Xor8(f[:10])
	return f
}

// DecodeCommand parses a command frame. Used by tests.
func DecodeCommand(buf []byte) (yaw, pitch float32, fire bool, err error) {
	if len(buf) != CommandFrameSize {
		return 0, 0, false, ErrFrameSize
	}
	if buf[0] != commandStart {
		return 0, 0, false, ErrStartByte
	}
	if Xor8(buf[:10]) != buf[10] {
		return 0, 0, false, ErrChecksum
	}
	yaw = math.Float32frombits(binary.LittleEndian.Uint32(buf[1:5]))
	pitch = math.Float32frombits(binary.LittleEndian.Uint32(buf[5:9]))
	fire = buf[9] != 0
	return yaw, pitch, fire, nil
}

// EncodeSpeed builds the bullet-speed frame the MCU reports after each shot:
// [0xBB][speed:f32][xor].
func EncodeSpeed(speed float32) [SpeedFrameSize]byte {
	var f [SpeedFrameSize]byte
	f[0] = speedStart
	binary.LittleEndian.PutUint32(f[1:5], math.Float32bits(speed))
	f[5] = Xor8(f[:5])
	return f
}

// DecodeSpeed parses a bullet-speed frame.
func DecodeSpeed(buf []byte) (float32, error) {
	if len(buf) != SpeedFrameSize {
		return 0, ErrFrameSize
	}
	if buf[0] != speedStart {
		return 0, ErrStartByte
	}
	if Xor8(buf[:5]) != buf[5] {
		return 0, ErrChecksum
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[1:5])), nil
}

// Xor8 folds a byte slice with xor.
func Xor8(b []byte) byte {
	var x byte
	for _, v := range b {
		x ^= v
	}
	return x
}
