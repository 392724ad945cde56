package session

// State is the debounce state of one biometric check-in attempt. A ledger
// write is permitted only on the Recognized to Marked transition, which is
// the sole mechanism keeping the polling loop from writing duplicate lines
// while a face stays in frame.
type State int

const (
	StateIdle State = iota
	StateFaceDetected
	StateRecognized
	StateMarked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFaceDetected:
		return "face_detected"
	case StateRecognized:
		return "recognized"
	case StateMarked:
		return "marked"
	default:
		return "unknown"
	}
}
