package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire format for a persisted feature vector:
// one version byte, a little-endian uint16 dimensionality header,
// then dim float32 values. The header makes a truncated or
// foreign blob a detectable corruption instead of a silent no-match.
const (
	codecVersion  = 1
	headerSize    = 3
	MaxDimensions = math.MaxUint16
)

var (
	// ErrCorruptVector reports a blob that cannot be decoded at all.
	ErrCorruptVector = errors.New("corrupt vector encoding")
	// ErrDimensionMismatch reports two vectors of different dimensionality.
	// All vectors within a course share one fixed dimensionality, so this
	// is a data-corruption condition, never an ordinary no-match.
	ErrDimensionMismatch = errors.New("vector dimensionality mismatch")
)

// Encode serializes a feature vector into the versioned wire format.
func Encode(v []float32) ([]byte, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("cannot encode empty vector")
	}
	if len(v) > MaxDimensions {
		return nil, fmt.Errorf("vector dimensionality %d exceeds maximum %d", len(v), MaxDimensions)
	}

	buf := make([]byte, headerSize+4*len(v))
	buf[0] = codecVersion
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], math.Float32bits(f))
	}
	return buf, nil
}

// Decode parses a blob produced by Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: blob shorter than header", ErrCorruptVector)
	}
	if b[0] != codecVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorruptVector, b[0])
	}
	dim := int(binary.LittleEndian.Uint16(b[1:3]))
	if dim == 0 || len(b) != headerSize+4*dim {
		return nil, fmt.Errorf("%w: header declares %d dimensions for %d payload bytes",
			ErrCorruptVector, dim, len(b)-headerSize)
	}

	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[headerSize+4*i:]))
	}
	return v, nil
}

// Distance computes the Euclidean distance between two vectors.
func Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
