package detect

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/mattn/go-tflite"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

// Output row layout of the armor model: box centre and size, objectness,
// per-class scores, then four corner keypoints.
const (
	rowBox     = 4
	rowObj     = 1
	numClasses = 8
	rowKpts    = 8
	rowStride  = rowBox + rowObj + numClasses + rowKpts
)

// TFLiteDetector runs the armor YOLO model through the TFLite runtime.
type TFLiteDetector struct {
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter

	inW, inH int
	input    []float32
	output   []float32
	nms      float32
}

// NewTFLiteDetector loads the model at path.
func NewTFLiteDetector(path string, numThreads int) (*TFLiteDetector, error) {
	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("detect: cannot load model %s", path)
	}
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(numThreads)
	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("detect: cannot create interpreter for %s", path)
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("detect: allocate tensors failed with status %d", status)
	}

	in := interp.GetInputTensor(0)
	if in.NumDims() != 4 {
		interp.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("detect: unexpected input rank %d", in.NumDims())
	}
	d := &TFLiteDetector{
		model:   model,
		options: options,
		interp:  interp,
		inH:     in.Dim(1),
		inW:     in.Dim(2),
		nms:     0.45,
	}
	d.input = make([]float32, d.inW*d.inH*3)

	out := interp.GetOutputTensor(0)
	n := 1
	for i := 0; i < out.NumDims(); i++ {
		n *= out.Dim(i)
	}
	d.output = make([]float32, n)
	return d, nil
}

// Predict runs inference and decodes detections in source-image pixel
// coordinates.
func (d *TFLiteDetector) Predict(raw []byte, width, height int) ([]state.Detection, error) {
	d.letterbox(raw, width, height)

	in := d.interp.GetInputTensor(0)
	if status := in.CopyFromBuffer(d.input); status != tflite.OK {
		return nil, fmt.Errorf("detect: copy input failed with status %d", status)
	}
	if status := d.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("detect: inference failed with status %d", status)
	}
	out := d.interp.GetOutputTensor(0)
	if status := out.CopyToBuffer(d.output); status != tflite.OK {
		return nil, fmt.Errorf("detect: copy output failed with status %d", status)
	}

	return d.decode(width, height), nil
}

// letterbox scales the BGR frame into the model input with aspect preserved
// and gray padding, normalised to [0,1].
func (d *TFLiteDetector) letterbox(raw []byte, width, height int) {
	scale := math32.Min(float32(d.inW)/float32(width), float32(d.inH)/float32(height))
	newW := int(float32(width) * scale)
	newH := int(float32(height) * scale)
	padX := (d.inW - newW) / 2
	padY := (d.inH - newH) / 2

	for i := range d.input {
		d.input[i] = 0.5
	}
	for y := 0; y < newH; y++ {
		sy := int(float32(y) / scale)
		if sy >= height {
			sy = height - 1
		}
		for x := 0; x < newW; x++ {
			sx := int(float32(x) / scale)
			if sx >= width {
				sx = width - 1
			}
			src := (sy*width + sx) * 3
			dst := ((y+padY)*d.inW + (x + padX)) * 3
			d.input[dst+0] = float32(raw[src+0]) / 255
			d.input[dst+1] = float32(raw[src+1]) / 255
			d.input[dst+2] = float32(raw[src+2]) / 255
		}
	}
}

func (d *TFLiteDetector) decode(width, height int) []state.Detection {
	scale := math32.Min(float32(d.inW)/float32(width), float32(d.inH)/float32(height))
	padX := (float32(d.inW) - float32(width)*scale) / 2
	padY := (float32(d.inH) - float32(height)*scale) / 2

	var dets []state.Detection
	for off := 0; off+rowStride <= len(d.output); off += rowStride {
		row := d.output[off : off+rowStride]
		obj := row[rowBox]
		if obj < 0.1 {
			continue
		}
		cls, score := 0, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := row[rowBox+rowObj+c]; s > score {
				cls, score = c, s
			}
		}
		det := state.Detection{
			ClassID:    cls,
			Confidence: obj * score,
		}
		for k := 0; k < 4; k++ {
			kx := row[rowBox+rowObj+numClasses+2*k]
			ky := row[rowBox+rowObj+numClasses+2*k+1]
			det.Keypoints[k] = state.Keypoint{
				X: (kx - padX) / scale,
				Y: (ky - padY) / scale,
			}
		}
		dets = append(dets, det)
	}
	return d.suppress(dets)
}

// suppress keeps the highest-confidence detection among overlapping corner
// sets of the same class.
func (d *TFLiteDetector) suppress(dets []state.Detection) []state.Detection {
	kept := dets[:0]
	for _, c := range dets {
		dup := false
		for i, k := range kept {
			if c.ClassID != k.ClassID {
				continue
			}
			if centreDist(c, k) < d.nmsRadius(k) {
				dup = true
				if c.Confidence > k.Confidence {
					kept[i] = c
				}
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	return kept
}

func (d *TFLiteDetector) nmsRadius(det state.Detection) float32 {
	// Half the diagonal of the keypoint quad.
	return centreless(det) * d.nms / 0.45
}

func centreDist(a, b state.Detection) float32 {
	ax, ay := centre(a)
	bx, by := centre(b)
	return math32.Hypot(ax-bx, ay-by)
}

func centre(det state.Detection) (float32, float32) {
	var x, y float32
	for _, k := range det.Keypoints {
		x += k.X
		y += k.Y
	}
	return x / 4, y / 4
}

func centreless(det state.Detection) float32 {
	cx, cy := centre(det)
	var r float32
	for _, k := range det.Keypoints {
		r = math32.Max(r, math32.Hypot(k.X-cx, k.Y-cy))
	}
	return r
}

func (d *TFLiteDetector) Close() error {
	if d.interp != nil {
		d.interp.Delete()
		d.interp = nil
	}
	if d.options != nil {
		d.options.Delete()
		d.options = nil
	}
	if d.model != nil {
		d.model.Delete()
		d.model = nil
	}
	return nil
}
