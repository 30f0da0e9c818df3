// Package calib reads and writes the gimbal calibration artifact produced by
// cmd/gimbalcalib. Angles are radians.
package calib

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("calib: invalid limits")

// Limits are the gimbal travel constants baked from calibration.
type Limits struct {
	ID           string    `yaml:"id"`
	CalibratedAt time.Time `yaml:"calibrated_at"`
	PitchMin     float64   `yaml:"pitch_min"`
	PitchMax     float64   `yaml:"pitch_max"`
	YawMin       float64   `yaml:"yaw_min"`
	YawMax       float64   `yaml:"yaw_max"`
	HasYawLimits bool      `yaml:"has_yaw_limits"`
	SafetyMargin float64   `yaml:"safety_margin"`
}

// Validate checks that the limits leave usable travel after the margin.
func (l *Limits) Validate() error {
	if l.SafetyMargin < 0 {
		return fmt.Errorf("%w: negative safety margin %g", ErrInvalid, l.SafetyMargin)
	}
	if l.PitchMax-l.PitchMin <= 2*l.SafetyMargin {
		return fmt.Errorf("%w: pitch span [%g, %g] swallowed by margin %g",
			ErrInvalid, l.PitchMin, l.PitchMax, l.SafetyMargin)
	}
	if l.HasYawLimits && l.YawMax-l.YawMin <= 2*l.SafetyMargin {
		return fmt.Errorf("%w: yaw span [%g, %g] swallowed by margin %g",
			ErrInvalid, l.YawMin, l.YawMax, l.SafetyMargin)
	}
	return nil
}

// Load reads and validates the artifact at path.
func Load(path string) (*Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calib: read %s: %w", path, err)
	}
	var l Limits
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("calib: parse %s: %w", path, err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Save writes the artifact to path.
func (l *Limits) Save(path string) error {
	if err := l.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("calib: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("calib: write %s: %w", path, err)
	}
	return nil
}
