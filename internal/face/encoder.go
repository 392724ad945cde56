package face

import (
	"image"
	"math"
)

// Encoder turns a raw camera frame into a fixed-length feature vector.
// Encode reports ok=false when the frame contains no detectable face;
// in that case the returned vector must be ignored.
type Encoder interface {
	Encode(frame image.Image) (vec []float32, ok bool)
	Dimensions() int
}

// GridEncoder is a deterministic, luminance-grid feature encoder.
// It downsamples the frame into a fixed grid of cells, uses the per-cell
// mean luminance as the feature vector and treats a frame with almost no
// luminance variation as containing no detectable face.
// This is a placeholder implementation for testing/development.
// In production, plug in a real face-embedding model (e.g. a dlib binding)
// behind the Encoder interface.
type GridEncoder struct {
	dims        int
	cols        int
	rows        int
	minVariance float64
}

// NewGridEncoder creates a luminance-grid encoder
func NewGridEncoder(dims int) *GridEncoder {
	if dims <= 0 {
		dims = 128 // Default dimension
	}
	cols := int(math.Ceil(math.Sqrt(float64(dims))))
	rows := (dims + cols - 1) / cols
	return &GridEncoder{
		dims:        dims,
		cols:        cols,
		rows:        rows,
		minVariance: 1e-4,
	}
}

// Dimensions returns the fixed length of produced vectors.
func (e *GridEncoder) Dimensions() int {
	return e.dims
}

// Encode generates a deterministic feature vector from a frame.
func (e *GridEncoder) Encode(frame image.Image) ([]float32, bool) {
	if frame == nil {
		return nil, false
	}
	bounds := frame.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, false
	}

	vec := make([]float32, e.dims)
	for i := 0; i < e.dims; i++ {
		col := i % e.cols
		row := i / e.cols

		x0 := bounds.Min.X + col*bounds.Dx()/e.cols
		x1 := bounds.Min.X + (col+1)*bounds.Dx()/e.cols
		y0 := bounds.Min.Y + row*bounds.Dy()/e.rows
		y1 := bounds.Min.Y + (row+1)*bounds.Dy()/e.rows
		if x1 <= x0 {
			x1 = x0 + 1
		}
		if y1 <= y0 {
			y1 = y0 + 1
		}

		var sum float64
		var n int
		for y := y0; y < y1 && y < bounds.Max.Y; y++ {
			for x := x0; x < x1 && x < bounds.Max.X; x++ {
				r, g, b, _ := frame.At(x, y).RGBA()
				// Rec. 601 luma, 16-bit channels normalized to [0, 1]
				luma := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535.0
				sum += luma
				n++
			}
		}
		if n > 0 {
			vec[i] = float32(sum / float64(n))
		}
	}

	if variance(vec) < e.minVariance {
		return nil, false
	}
	return normalize(vec), true
}

// variance computes the population variance of the vector components.
func variance(v []float32) float64 {
	if len(v) == 0 {
		return 0
	}

	var mean float64
	for _, f := range v {
		mean += float64(f)
	}
	mean /= float64(len(v))

	var sum float64
	for _, f := range v {
		d := float64(f) - mean
		sum += d * d
	}
	return sum / float64(len(v))
}

// normalize scales the vector to unit length
func normalize(v []float32) []float32 {
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}

	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}
