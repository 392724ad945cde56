package face

import (
	"fmt"

	"github.com/rollcall/rollcall/internal/vector"
)

// RegistrationStatus classifies the outcome of an enrollment attempt.
type RegistrationStatus string

const (
	// RegistrationOK means the identity record was persisted.
	RegistrationOK RegistrationStatus = "ok"
	// RegistrationDuplicateLabel means the label is already enrolled.
	RegistrationDuplicateLabel RegistrationStatus = "duplicate_label"
	// RegistrationAlreadyEnrolled means the face is already within threshold
	// of an existing record under a different label.
	RegistrationAlreadyEnrolled RegistrationStatus = "already_enrolled"
	// RegistrationNoFace means no face was detected in the enrollment frame.
	RegistrationNoFace RegistrationStatus = "no_face"
)

// RegistrationResult reports the outcome of an enrollment attempt.
// ExistingLabel carries the conflicting identity for
// RegistrationAlreadyEnrolled.
type RegistrationResult struct {
	Status        RegistrationStatus
	Label         string
	ExistingLabel string
}

// Guard rejects duplicate enrollment before any store write: a label may
// exist at most once per course, and one physical face may not enroll twice
// under different labels.
type Guard struct {
	matcher *Matcher
}

// NewGuard creates a registration guard using the given matcher.
func NewGuard(matcher *Matcher) *Guard {
	return &Guard{matcher: matcher}
}

// Register enrolls a new identity after both precondition checks pass,
// in order: label uniqueness first, then face dedup via the matcher.
// No store write happens on any rejection.
func (g *Guard) Register(store *vector.Store, label string, vec []float32) (RegistrationResult, error) {
	if label == "" {
		return RegistrationResult{}, fmt.Errorf("identity label cannot be empty")
	}
	if vec == nil {
		return RegistrationResult{Status: RegistrationNoFace, Label: label}, nil
	}

	exists, err := store.Has(label)
	if err != nil {
		return RegistrationResult{}, err
	}
	if exists {
		return RegistrationResult{Status: RegistrationDuplicateLabel, Label: label}, nil
	}

	match, err := g.matcher.MatchStore(vec, store)
	if err != nil {
		return RegistrationResult{}, err
	}
	if match.Outcome == OutcomeRecognized {
		return RegistrationResult{
			Status:        RegistrationAlreadyEnrolled,
			Label:         label,
			ExistingLabel: match.Label,
		}, nil
	}

	if err := store.Put(label, vec); err != nil {
		return RegistrationResult{}, err
	}
	return RegistrationResult{Status: RegistrationOK, Label: label}, nil
}
