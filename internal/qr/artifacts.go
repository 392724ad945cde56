package qr

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/rollcall/rollcall/internal/storage"
)

// Rendered artifact edge length in pixels.
const artifactSize = 290

// RegistrationStatus classifies the outcome of a token registration.
type RegistrationStatus string

const (
	// RegistrationOK means the token was rendered and persisted.
	RegistrationOK RegistrationStatus = "ok"
	// RegistrationDuplicateEmail means an artifact already exists for the email.
	RegistrationDuplicateEmail RegistrationStatus = "duplicate_email"
)

// RegistrationResult reports the outcome of a token registration.
type RegistrationResult struct {
	Status RegistrationStatus
	Token  Token
}

// Artifact is one persisted, scannable QR token.
type Artifact struct {
	Username  string
	Email     string
	Payload   string
	PNG       []byte
	CreatedAt time.Time
}

// ArtifactStore is the per-course repository of rendered QR tokens,
// keyed by email.
type ArtifactStore struct {
	db  *storage.DB
	crn string
}

// NewArtifactStore opens the QR artifact store for one course.
func NewArtifactStore(db *storage.DB, crn string) *ArtifactStore {
	return &ArtifactStore{db: db, crn: crn}
}

// CRN returns the course this store is namespaced to.
func (s *ArtifactStore) CRN() string {
	return s.crn
}

// Register synthesizes the canonical JSON payload for the token, renders it
// into a scannable PNG and persists it keyed by email. Re-registration under
// the same email is rejected without a write.
func (s *ArtifactStore) Register(username, email string) (RegistrationResult, error) {
	if username == "" || email == "" {
		return RegistrationResult{}, fmt.Errorf("username and email are required")
	}

	exists, err := s.Has(email)
	if err != nil {
		return RegistrationResult{}, err
	}
	if exists {
		return RegistrationResult{
			Status: RegistrationDuplicateEmail,
			Token:  Token{Username: username, Email: email},
		}, nil
	}

	tok := Token{Username: username, Email: email}
	payload, err := json.Marshal(tok)
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("failed to marshal token payload: %w", err)
	}

	png, err := qrcode.Encode(string(payload), qrcode.Low, artifactSize)
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("failed to render QR artifact: %w", err)
	}

	_, err = s.db.GetConnection().Exec(`
		INSERT INTO qr_tokens (crn, email, username, payload, artifact, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.crn, email, username, string(payload), png, time.Now().Unix())
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("failed to store QR artifact for %q: %w", email, err)
	}

	return RegistrationResult{Status: RegistrationOK, Token: tok}, nil
}

// Retrieve returns the artifact registered for an email. Returns nil
// when absent.
func (s *ArtifactStore) Retrieve(email string) (*Artifact, error) {
	var a Artifact
	var createdAt int64
	err := s.db.GetConnection().QueryRow(`
		SELECT username, email, payload, artifact, created_at
		FROM qr_tokens
		WHERE crn = ? AND email = ?
	`, s.crn, email).Scan(&a.Username, &a.Email, &a.Payload, &a.PNG, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve QR artifact for %q: %w", email, err)
	}

	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}

// Has reports whether an artifact exists for the email.
func (s *ArtifactStore) Has(email string) (bool, error) {
	var count int
	err := s.db.GetConnection().QueryRow(`
		SELECT COUNT(*) FROM qr_tokens WHERE crn = ? AND email = ?
	`, s.crn, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check QR artifact for %q: %w", email, err)
	}
	return count > 0, nil
}
