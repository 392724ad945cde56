package face_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/face"
)

// stubEncoder reads the top-left pixel of a uniform test frame: black means
// no detectable face, anything else encodes to [r, g, b] in [0, 1].
type stubEncoder struct{}

func (stubEncoder) Dimensions() int { return 3 }

func (stubEncoder) Encode(frame image.Image) ([]float32, bool) {
	if frame == nil {
		return nil, false
	}
	r, g, b, _ := frame.At(frame.Bounds().Min.X, frame.Bounds().Min.Y).RGBA()
	if r == 0 && g == 0 && b == 0 {
		return nil, false
	}
	return []float32{
		float32(r) / 65535,
		float32(g) / 65535,
		float32(b) / 65535,
	}, true
}

func frameOf(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func faceFrame() image.Image {
	return frameOf(color.RGBA{R: 255, G: 255, B: 255, A: 255})
}

func blankFrame() image.Image {
	return frameOf(color.RGBA{A: 255})
}

func TestAverageEmptyWindowIsNil(t *testing.T) {
	agg := face.NewAggregator(stubEncoder{}, 10)
	assert.Nil(t, agg.Average())
}

func TestAverageNoDetectionsIsNil(t *testing.T) {
	agg := face.NewAggregator(stubEncoder{}, 10)
	for i := 0; i < 10; i++ {
		agg.Push(blankFrame())
	}
	assert.Nil(t, agg.Average())
}

func TestWindowFIFOEviction(t *testing.T) {
	agg := face.NewAggregator(stubEncoder{}, 10)

	frames := make([]image.Image, 12)
	for i := range frames {
		frames[i] = frameOf(color.RGBA{R: uint8(i + 1), A: 255})
		agg.Push(frames[i])
	}

	require.Equal(t, 10, agg.Len())
	// 12 pushes at capacity 10 retain samples 3 through 12 in order.
	got := agg.Frames()
	for i := 0; i < 10; i++ {
		assert.Same(t, frames[i+2], got[i])
	}
}

func TestAverageDividesByWindowLength(t *testing.T) {
	agg := face.NewAggregator(stubEncoder{}, 10)

	// Five detectable frames of vector [1,1,1] and five blanks: the sum is
	// divided by the window length (10), not the detection count (5).
	for i := 0; i < 5; i++ {
		agg.Push(faceFrame())
	}
	for i := 0; i < 5; i++ {
		agg.Push(blankFrame())
	}

	avg := agg.Average()
	require.NotNil(t, avg)
	require.Len(t, avg, 3)
	for _, v := range avg {
		assert.InDelta(t, 0.5, float64(v), 1e-4)
	}
}

func TestResetClearsWindow(t *testing.T) {
	agg := face.NewAggregator(stubEncoder{}, 10)
	agg.Push(faceFrame())
	require.Equal(t, 1, agg.Len())

	agg.Reset()
	assert.Equal(t, 0, agg.Len())
	assert.Nil(t, agg.Average())
}
