package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rollcall/rollcall/internal/face"
	"github.com/rollcall/rollcall/internal/ledger"
	"github.com/rollcall/rollcall/internal/qr"
	"github.com/rollcall/rollcall/internal/vector"
)

// ActionPresent is written on a successful check-in.
const ActionPresent = "Present"

// ActionExited is written when an identified user logs out.
const ActionExited = "exited app"

// FrameOutcomeKind classifies what one submitted frame produced.
type FrameOutcomeKind string

const (
	FrameNoFace       FrameOutcomeKind = "no_face"
	FrameFaceDetected FrameOutcomeKind = "face_detected"
	FrameRecognized   FrameOutcomeKind = "recognized"
	FrameQRDetections FrameOutcomeKind = "qr_detections"
	FrameSkipped      FrameOutcomeKind = "skipped"
)

// FrameOutcome is the structured result of one frame tick, returned for the
// collaborator to display. The core never renders anything itself.
type FrameOutcome struct {
	Kind       FrameOutcomeKind
	Label      string
	Detections []qr.Detection
	// Marked lists the tokens whose decode produced a ledger write on this
	// frame; at most one per reset cycle.
	Marked []qr.Token
}

// Controller drives one check-in session for a single course and channel.
// It owns the frame source exclusively and serializes all operations, so at
// most one recognition or registration attempt is in flight at a time.
type Controller struct {
	mu sync.Mutex

	id      string
	crn     string
	channel ledger.Channel
	logger  *zap.Logger

	src       FrameSource
	frameSkip int
	tick      time.Duration

	encoder   face.Encoder
	agg       *face.Aggregator
	matcher   *face.Matcher
	guard     *face.Guard
	vectors   *vector.Store
	pipeline  *qr.Pipeline
	artifacts *qr.ArtifactStore
	ledger    *ledger.Ledger

	state      State
	lastLabel  string
	qrLogged   bool
	frameCount int
	closed     bool
}

// ID returns the session handle.
func (c *Controller) ID() string { return c.id }

// CRN returns the course the session belongs to.
func (c *Controller) CRN() string { return c.crn }

// Channel returns the check-in channel the session serves.
func (c *Controller) Channel() ledger.Channel { return c.channel }

// State returns the current debounce state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SubmitFrame runs one frame through the session's pipeline.
func (c *Controller) SubmitFrame(frame image.Image) (FrameOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processFrame(frame)
}

// Tick pulls one frame from the source and processes it, honoring the
// configured frame skip. A read failure is fatal: the device is released
// and the session accepts no further frames.
func (c *Controller) Tick() (FrameOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return FrameOutcome{}, ErrSessionClosed
	}

	frame, err := c.src.Read()
	if err != nil {
		c.releaseLocked()
		c.logger.Error("frame read failed, ending session",
			zap.String("session_id", c.id), zap.Error(err))
		return FrameOutcome{}, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	c.frameCount++
	if c.frameCount%c.frameSkip != 0 {
		return FrameOutcome{Kind: FrameSkipped}, nil
	}
	return c.processFrame(frame)
}

// Run drives the session with a periodic tick until the context is
// canceled or the frame source fails.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.Tick(); err != nil {
				if errors.Is(err, ErrSessionClosed) {
					return nil
				}
				return err
			}
		}
	}
}

func (c *Controller) processFrame(frame image.Image) (FrameOutcome, error) {
	if c.closed {
		return FrameOutcome{}, ErrSessionClosed
	}
	if frame == nil {
		return FrameOutcome{}, fmt.Errorf("cannot submit nil frame")
	}

	if c.channel == ledger.ChannelQR {
		return c.processQRFrame(frame)
	}
	return c.processFaceFrame(frame)
}

func (c *Controller) processFaceFrame(frame image.Image) (FrameOutcome, error) {
	c.agg.Push(frame)

	if c.state >= StateRecognized {
		return FrameOutcome{Kind: FrameRecognized, Label: c.lastLabel}, nil
	}

	if _, ok := c.encoder.Encode(frame); ok {
		if c.state == StateIdle {
			c.state = StateFaceDetected
		}
		return FrameOutcome{Kind: FrameFaceDetected}, nil
	}
	return FrameOutcome{Kind: FrameNoFace}, nil
}

func (c *Controller) processQRFrame(frame image.Image) (FrameOutcome, error) {
	detections, err := c.pipeline.Decode(frame)
	if err != nil {
		return FrameOutcome{}, err
	}

	outcome := FrameOutcome{Kind: FrameQRDetections, Detections: detections}
	for _, det := range detections {
		tok, err := qr.ParseToken(det.Payload)
		if err != nil {
			// Malformed payload aborts this detection only; the scan
			// loop continues.
			c.logger.Warn("skipping malformed QR payload",
				zap.String("session_id", c.id), zap.Error(err))
			continue
		}

		if c.qrLogged {
			continue
		}
		if _, err := c.ledger.Append(c.crn, tok.Username, tok.Email, ActionPresent, ledger.ChannelQR, time.Now()); err != nil {
			return FrameOutcome{}, err
		}
		c.qrLogged = true
		outcome.Marked = append(outcome.Marked, tok)
		c.logger.Info("attendance marked",
			zap.String("crn", c.crn),
			zap.String("username", tok.Username),
			zap.String("email", tok.Email),
			zap.String("channel", string(ledger.ChannelQR)))
	}
	return outcome, nil
}

// AttemptLogin averages the buffered frames, matches the result against the
// course's identity store and, on recognition, marks attendance. The ledger
// write happens only on the Recognized to Marked transition; once marked,
// further attempts are no-ops until an explicit reset.
func (c *Controller) AttemptLogin() (face.MatchResult, error) {
	return c.attempt(ActionPresent)
}

// AttemptLogout recognizes the buffered face and records a logout event
// under the same debounce rules as AttemptLogin.
func (c *Controller) AttemptLogout() (face.MatchResult, error) {
	return c.attempt(ActionExited)
}

func (c *Controller) attempt(action string) (face.MatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return face.MatchResult{}, ErrSessionClosed
	}
	if c.channel != ledger.ChannelFace {
		return face.MatchResult{}, fmt.Errorf("login attempts require a biometric session")
	}

	if c.state == StateMarked {
		return face.MatchResult{Outcome: face.OutcomeRecognized, Label: c.lastLabel}, nil
	}

	result, err := c.matcher.MatchStore(c.agg.Average(), c.vectors)
	if err != nil {
		return face.MatchResult{}, err
	}
	if result.Outcome != face.OutcomeRecognized {
		return result, nil
	}

	c.state = StateRecognized
	c.lastLabel = result.Label

	if _, err := c.ledger.Append(c.crn, result.Label, "", action, ledger.ChannelFace, time.Now()); err != nil {
		return face.MatchResult{}, err
	}
	c.state = StateMarked
	c.logger.Info("attendance marked",
		zap.String("crn", c.crn),
		zap.String("identity", result.Label),
		zap.String("action", action),
		zap.Float64("distance", result.Distance),
		zap.String("channel", string(ledger.ChannelFace)))
	return result, nil
}

// RegisterIdentity enrolls a new identity from a single capture frame.
func (c *Controller) RegisterIdentity(label string, frame image.Image) (face.RegistrationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return face.RegistrationResult{}, ErrSessionClosed
	}

	vec, ok := c.encoder.Encode(frame)
	if !ok {
		return face.RegistrationResult{Status: face.RegistrationNoFace, Label: label}, nil
	}
	return c.guard.Register(c.vectors, label, vec)
}

// RegisterQRToken registers a token and renders its scannable artifact.
func (c *Controller) RegisterQRToken(username, email string) (qr.RegistrationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return qr.RegistrationResult{}, ErrSessionClosed
	}
	return c.artifacts.Register(username, email)
}

// RetrieveQR returns the artifact registered for an email, or nil.
func (c *Controller) RetrieveQR(email string) (*qr.Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrSessionClosed
	}
	return c.artifacts.Retrieve(email)
}

// ResetForNextRecognition clears the frame window and returns the biometric
// state machine to Idle. No implicit reset ever happens mid-session.
func (c *Controller) ResetForNextRecognition() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.agg.Reset()
	c.state = StateIdle
	c.lastLabel = ""
}

// ResetForNextLogin clears the QR single-shot flag so the next decoded
// token produces a ledger write again.
func (c *Controller) ResetForNextLogin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qrLogged = false
}

// End releases the frame source deterministically. Safe to call twice.
func (c *Controller) End() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseLocked()
}

func (c *Controller) releaseLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.src.Close(); err != nil {
		return fmt.Errorf("failed to release frame source: %w", err)
	}
	return nil
}
