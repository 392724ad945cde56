package session

import (
	"errors"
	"image"
)

// ErrDeviceUnavailable reports a fatal frame-source failure. The session
// releases the device and accepts no further frames.
var ErrDeviceUnavailable = errors.New("frame source unavailable")

// ErrSessionClosed reports an operation on an ended session.
var ErrSessionClosed = errors.New("session closed")

// FrameSource produces raw camera frames. The active session controller
// owns the source exclusively for the lifetime of the session; Close must
// release the underlying device and is called on End and on any
// unrecoverable read failure.
type FrameSource interface {
	Read() (image.Image, error)
	Close() error
}

// PushSource is a FrameSource for sessions whose frames are pushed by the
// caller through SubmitFrame instead of pulled from a device; reading from
// it is a device failure.
type PushSource struct{}

func (PushSource) Read() (image.Image, error) {
	return nil, errors.New("push source has no device to read")
}

func (PushSource) Close() error { return nil }
