package vector

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rollcall/rollcall/internal/storage"
)

// Record is one enrolled identity: the label is the unique key within a
// course, the vector its persisted feature encoding. Records are immutable
// after enrollment; there is no update or delete path.
type Record struct {
	Label  string
	Vector []float32
}

// Store is the per-course repository of identity feature vectors.
type Store struct {
	db  *storage.DB
	crn string
}

// NewStore opens the vector store for one course.
func NewStore(db *storage.DB, crn string) *Store {
	return &Store{db: db, crn: crn}
}

// CRN returns the course this store is namespaced to.
func (s *Store) CRN() string {
	return s.crn
}

// Put persists a new identity record. The caller is expected to have run
// the registration guard first; a duplicate label surfaces as an error here
// only as a last line of defense (UNIQUE constraint).
func (s *Store) Put(label string, v []float32) error {
	blob, err := Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode vector for %q: %w", label, err)
	}

	_, err = s.db.GetConnection().Exec(`
		INSERT INTO identity_vectors (crn, label, vector, created_at)
		VALUES (?, ?, ?, ?)
	`, s.crn, label, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store identity %q: %w", label, err)
	}
	return nil
}

// Get retrieves a single record by label. Returns nil when absent.
func (s *Store) Get(label string) (*Record, error) {
	var blob []byte
	err := s.db.GetConnection().QueryRow(`
		SELECT vector FROM identity_vectors WHERE crn = ? AND label = ?
	`, s.crn, label).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity %q: %w", label, err)
	}

	v, err := Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("identity %q: %w", label, err)
	}
	return &Record{Label: label, Vector: v}, nil
}

// Has reports whether a label is already enrolled.
func (s *Store) Has(label string) (bool, error) {
	var count int
	err := s.db.GetConnection().QueryRow(`
		SELECT COUNT(*) FROM identity_vectors WHERE crn = ? AND label = ?
	`, s.crn, label).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check identity %q: %w", label, err)
	}
	return count > 0, nil
}

// List returns every record for the course in enrollment (rowid) order.
func (s *Store) List() ([]Record, error) {
	rows, err := s.db.GetConnection().Query(`
		SELECT label, vector FROM identity_vectors WHERE crn = ? ORDER BY id ASC
	`, s.crn)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var label string
		var blob []byte
		if err := rows.Scan(&label, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}

		v, err := Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("identity %q: %w", label, err)
		}
		records = append(records, Record{Label: label, Vector: v})
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identities: %w", err)
	}
	return records, nil
}

// Count returns the number of enrolled identities for the course.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.GetConnection().QueryRow(`
		SELECT COUNT(*) FROM identity_vectors WHERE crn = ?
	`, s.crn).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count identities: %w", err)
	}
	return count, nil
}
