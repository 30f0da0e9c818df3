package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

func TestFilterConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		min  float32
		want []float32
	}{
		{"empty", nil, 0.5, nil},
		{"all pass", []float32{0.9, 0.7}, 0.5, []float32{0.9, 0.7}},
		{"some drop", []float32{0.9, 0.3, 0.6, 0.1}, 0.5, []float32{0.9, 0.6}},
		{"boundary kept", []float32{0.5}, 0.5, []float32{0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dets := make([]state.Detection, len(tt.in))
			for i, c := range tt.in {
				dets[i] = state.Detection{Confidence: c}
			}
			got := FilterConfidence(dets, tt.min)
			var confs []float32
			for _, d := range got {
				confs = append(confs, d.Confidence)
			}
			assert.Equal(t, tt.want, confs)
		})
	}
}
