// Package detect defines the detector contracts the detection worker drives
// and their TFLite / GoCV implementations. The stages run in a fixed order:
// network inference, keypoint refinement, pose solve.
package detect

import (
	"github.com/nusrobomaster/autoaim/pkg/state"
)

// Detector runs armor-plate inference over a raw BGR frame.
type Detector interface {
	Predict(raw []byte, width, height int) ([]state.Detection, error)
	Close() error
}

// KeypointRefiner sharpens the network's corner estimates with traditional
// CV. Refinement mutates the detections in place; they are pre-publication
// scratch at this point.
type KeypointRefiner interface {
	Refine(dets []state.Detection, raw []byte, width, height int)
}

// PoseSolver fills TVec (metres) and Yaw (radians), both in the camera
// frame, for every detection.
type PoseSolver interface {
	Solve(dets []state.Detection) error
}

// FilterConfidence drops detections below min, in place.
func FilterConfidence(dets []state.Detection, min float32) []state.Detection {
	kept := dets[:0]
	for _, d := range dets {
		if d.Confidence >= min {
			kept = append(kept, d)
		}
	}
	return kept
}
