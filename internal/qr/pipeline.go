package qr

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	zxmultiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
)

// ErrMalformedPayload reports a QR payload that is not a valid token:
// bad UTF-8, bad JSON, or missing required fields. It is scoped to one
// detection; the scan loop continues past it.
var ErrMalformedPayload = errors.New("malformed QR payload")

// Token is the structured payload carried by an attendance QR code.
// The email is the unique key.
type Token struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Detection is one QR code found in a frame: its raw payload bytes and
// the bounding region of the located symbol.
type Detection struct {
	Payload []byte
	Bounds  image.Rectangle
}

// Pipeline locates and decodes QR tokens in raw camera frames.
type Pipeline struct {
	reader multi.MultipleBarcodeReader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewPipeline creates a QR decode pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		reader: zxmultiqr.NewQRCodeMultiReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode returns every QR code detected in the frame. A frame without any
// detectable code yields an empty list, not an error; each frame tick is
// processed independently.
func (p *Pipeline) Decode(frame image.Image) ([]Detection, error) {
	if frame == nil {
		return nil, fmt.Errorf("cannot decode nil frame")
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to binarize frame: %w", err)
	}

	results, err := p.reader.DecodeMultiple(bmp, p.hints)
	if err != nil {
		// Not-found is the steady state while no code is in frame.
		return nil, nil
	}

	detections := make([]Detection, 0, len(results))
	for _, r := range results {
		detections = append(detections, Detection{
			Payload: []byte(r.GetText()),
			Bounds:  boundsOf(r.GetResultPoints()),
		})
	}
	return detections, nil
}

// ParseToken validates one detection payload. The decoded text is
// normalized from single-quote JSON-like text to strict JSON quoting
// before parsing; both username and email are required.
func ParseToken(payload []byte) (Token, error) {
	if !utf8.Valid(payload) {
		return Token{}, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformedPayload)
	}

	cleaned := strings.ReplaceAll(string(payload), "'", `"`)

	var tok Token
	if err := json.Unmarshal([]byte(cleaned), &tok); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if tok.Username == "" {
		return Token{}, fmt.Errorf("%w: missing username field", ErrMalformedPayload)
	}
	if tok.Email == "" {
		return Token{}, fmt.Errorf("%w: missing email field", ErrMalformedPayload)
	}
	return tok, nil
}

// boundsOf computes the axis-aligned bounding region of the located symbol.
func boundsOf(points []gozxing.ResultPoint) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, pt := range points {
		minX = math.Min(minX, pt.GetX())
		minY = math.Min(minY, pt.GetY())
		maxX = math.Max(maxX, pt.GetX())
		maxY = math.Max(maxY, pt.GetY())
	}
	return image.Rect(int(minX), int(minY), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}
