package api

import (
	"encoding/json"
	"errors"
	"image"
	"net/http"

	// Frame bodies arrive as PNG or JPEG.
	_ "image/jpeg"
	_ "image/png"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rollcall/rollcall/internal/face"
	"github.com/rollcall/rollcall/internal/ledger"
	"github.com/rollcall/rollcall/internal/qr"
	"github.com/rollcall/rollcall/internal/session"
)

// Handlers adapts the session manager's operations to HTTP.
type Handlers struct {
	manager *session.Manager
	logger  *zap.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(manager *session.Manager, logger *zap.Logger) *Handlers {
	return &Handlers{manager: manager, logger: logger}
}

type courseRequest struct {
	CRN string `json:"crn"`
}

// CreateCourse provisions a course namespace.
func (h *Handlers) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CRN == "" {
		http.Error(w, "crn is required", http.StatusBadRequest)
		return
	}

	if err := h.manager.Courses().Create(req.CRN); err != nil {
		h.serverError(w, "failed to create course", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"crn": req.CRN})
}

// ListCourses returns all created courses.
func (h *Handlers) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.manager.Courses().List()
	if err != nil {
		h.serverError(w, "failed to list courses", err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// ExportLedger streams the course ledger in the canonical line layout.
func (h *Handlers) ExportLedger(w http.ResponseWriter, r *http.Request) {
	crn := mux.Vars(r)["crn"]
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.manager.Ledger().Export(w, crn); err != nil {
		h.logger.Error("ledger export failed", zap.String("crn", crn), zap.Error(err))
	}
}

type startSessionRequest struct {
	CRN     string `json:"crn"`
	Channel string `json:"channel"`
}

// StartSession opens a push-driven session; frames arrive via SubmitFrame.
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.manager.Start(req.CRN, ledger.Channel(req.Channel), session.PushSource{})
	if err != nil {
		if errors.Is(err, session.ErrUnknownCourse) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": c.ID(),
		"crn":        c.CRN(),
		"channel":    string(c.Channel()),
	})
}

// EndSession releases the session's device deterministically.
func (h *Handlers) EndSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.End(id); err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.serverError(w, "failed to end session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type detectionResponse struct {
	Payload string `json:"payload"`
	Bounds  [4]int `json:"bounds"`
}

type frameOutcomeResponse struct {
	Kind       string              `json:"kind"`
	Label      string              `json:"label,omitempty"`
	Detections []detectionResponse `json:"detections,omitempty"`
	Marked     []qr.Token          `json:"marked,omitempty"`
}

// SubmitFrame decodes the request body as a PNG or JPEG frame and runs it
// through the session pipeline.
func (h *Handlers) SubmitFrame(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	frame, _, err := image.Decode(r.Body)
	if err != nil {
		http.Error(w, "request body is not a decodable image", http.StatusBadRequest)
		return
	}

	outcome, err := c.SubmitFrame(frame)
	if err != nil {
		h.sessionError(w, err)
		return
	}

	resp := frameOutcomeResponse{Kind: string(outcome.Kind), Label: outcome.Label, Marked: outcome.Marked}
	for _, d := range outcome.Detections {
		resp.Detections = append(resp.Detections, detectionResponse{
			Payload: string(d.Payload),
			Bounds:  [4]int{d.Bounds.Min.X, d.Bounds.Min.Y, d.Bounds.Max.X, d.Bounds.Max.Y},
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type matchResponse struct {
	Outcome  string  `json:"outcome"`
	Label    string  `json:"label,omitempty"`
	Distance float64 `json:"distance"`
	Message  string  `json:"message"`
}

// AttemptLogin runs a biometric recognition attempt.
func (h *Handlers) AttemptLogin(w http.ResponseWriter, r *http.Request) {
	h.attempt(w, r, func(c *session.Controller) (face.MatchResult, error) {
		return c.AttemptLogin()
	})
}

// AttemptLogout runs a biometric logout attempt.
func (h *Handlers) AttemptLogout(w http.ResponseWriter, r *http.Request) {
	h.attempt(w, r, func(c *session.Controller) (face.MatchResult, error) {
		return c.AttemptLogout()
	})
}

func (h *Handlers) attempt(w http.ResponseWriter, r *http.Request, op func(*session.Controller) (face.MatchResult, error)) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := op(c)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{
		Outcome:  string(result.Outcome),
		Label:    result.Label,
		Distance: result.Distance,
		Message:  matchMessage(result),
	})
}

// Reset returns the session state machine to its idle state.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	if c.Channel() == ledger.ChannelQR {
		c.ResetForNextLogin()
	} else {
		c.ResetForNextRecognition()
	}
	w.WriteHeader(http.StatusNoContent)
}

type registrationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RegisterIdentity enrolls a new identity; the label comes from the query
// string, the enrollment frame from the request body.
func (h *Handlers) RegisterIdentity(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	label := r.URL.Query().Get("label")
	if label == "" {
		http.Error(w, "label is required", http.StatusBadRequest)
		return
	}

	frame, _, err := image.Decode(r.Body)
	if err != nil {
		http.Error(w, "request body is not a decodable image", http.StatusBadRequest)
		return
	}

	result, err := c.RegisterIdentity(label, frame)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registrationResponse{
		Status:  string(result.Status),
		Message: identityRegistrationMessage(result),
	})
}

type qrTokenRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RegisterQRToken renders and persists a scannable token for the user.
func (h *Handlers) RegisterQRToken(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	var req qrTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Email == "" {
		http.Error(w, "username and email are required", http.StatusBadRequest)
		return
	}

	result, err := c.RegisterQRToken(req.Username, req.Email)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registrationResponse{
		Status:  string(result.Status),
		Message: tokenRegistrationMessage(result),
	})
}

// RetrieveQR returns the rendered artifact PNG for an email.
func (h *Handlers) RetrieveQR(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	artifact, err := c.RetrieveQR(mux.Vars(r)["email"])
	if err != nil {
		h.sessionError(w, err)
		return
	}
	if artifact == nil {
		http.Error(w, "QR code not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(artifact.PNG)
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	c, err := h.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return c, true
}

func (h *Handlers) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionClosed):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.Is(err, session.ErrDeviceUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.serverError(w, "operation failed", err)
	}
}

func (h *Handlers) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Every recoverable failure maps to an actionable message for the
// collaborator to display.
func matchMessage(result face.MatchResult) string {
	switch result.Outcome {
	case face.OutcomeRecognized:
		return "Welcome, " + result.Label + "."
	case face.OutcomeNoFace:
		return "No face found, try again."
	default:
		return "Unknown user. Please register or try again."
	}
}

func identityRegistrationMessage(result face.RegistrationResult) string {
	switch result.Status {
	case face.RegistrationOK:
		return result.Label + " was successfully registered."
	case face.RegistrationDuplicateLabel:
		return "Username " + result.Label + " already exists."
	case face.RegistrationAlreadyEnrolled:
		return "You are already registered as " + result.ExistingLabel + ". Please log in."
	case face.RegistrationNoFace:
		return "No face found. Try again."
	default:
		return string(result.Status)
	}
}

func tokenRegistrationMessage(result qr.RegistrationResult) string {
	switch result.Status {
	case qr.RegistrationOK:
		return "Registered as " + result.Token.Username + "."
	case qr.RegistrationDuplicateEmail:
		return "Email " + result.Token.Email + " is already registered."
	default:
		return string(result.Status)
	}
}
