package face

import "image"

// Aggregator keeps a bounded sliding window of recent frames and produces
// a stabilized average feature vector for one recognition attempt.
type Aggregator struct {
	encoder  Encoder
	capacity int
	frames   []image.Image
}

// NewAggregator creates a frame aggregator with the given window capacity.
func NewAggregator(encoder Encoder, capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = 10
	}
	return &Aggregator{
		encoder:  encoder,
		capacity: capacity,
		frames:   make([]image.Image, 0, capacity),
	}
}

// Push appends a frame to the window, evicting the oldest when full.
func (a *Aggregator) Push(frame image.Image) {
	if len(a.frames) >= a.capacity {
		a.frames = a.frames[1:]
	}
	a.frames = append(a.frames, frame)
}

// Len returns the current window length.
func (a *Aggregator) Len() int {
	return len(a.frames)
}

// Frames returns the buffered frames in insertion order.
func (a *Aggregator) Frames() []image.Image {
	return a.frames
}

// Average encodes every buffered frame that yields a detectable face, sums
// the vectors and divides by the window length. Returns nil when the window
// is empty or no frame yields a detection.
//
// The denominator is the window length, not the detection count: frames
// without a detectable face pull the average toward zero. This matches the
// deployed behavior and is kept as-is; dividing by the detection count
// instead would change matching sensitivity.
func (a *Aggregator) Average() []float32 {
	if len(a.frames) == 0 {
		return nil
	}

	var sum []float32
	for _, frame := range a.frames {
		vec, ok := a.encoder.Encode(frame)
		if !ok {
			continue
		}
		if sum == nil {
			sum = make([]float32, len(vec))
		}
		for i, f := range vec {
			sum[i] += f
		}
	}

	if sum == nil {
		return nil
	}

	n := float32(len(a.frames))
	for i := range sum {
		sum[i] /= n
	}
	return sum
}

// Reset clears the window. This is the only way to discard buffered state.
func (a *Aggregator) Reset() {
	a.frames = a.frames[:0]
}
