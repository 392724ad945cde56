package course

import (
	"fmt"
	"time"

	"github.com/rollcall/rollcall/internal/storage"
)

// Course is one class section, identified by its registration code (CRN).
// A course namespaces its identity vectors, QR artifacts and ledger.
type Course struct {
	CRN       string    `json:"crn"`
	CreatedAt time.Time `json:"created_at"`
}

// Service manages course rows. Courses are created once and never merged
// or deleted.
type Service struct {
	db *storage.DB
}

// NewService creates a new course service
func NewService(db *storage.DB) *Service {
	return &Service{db: db}
}

// Create provisions the namespace for a new course. Creating an existing
// course is a no-op so callers can bootstrap idempotently.
func (s *Service) Create(crn string) error {
	if crn == "" {
		return fmt.Errorf("course registration code cannot be empty")
	}

	_, err := s.db.GetConnection().Exec(`
		INSERT OR IGNORE INTO courses (crn, created_at) VALUES (?, ?)
	`, crn, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create course %q: %w", crn, err)
	}
	return nil
}

// Exists reports whether a course has been created.
func (s *Service) Exists(crn string) (bool, error) {
	var count int
	err := s.db.GetConnection().QueryRow(`
		SELECT COUNT(*) FROM courses WHERE crn = ?
	`, crn).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check course %q: %w", crn, err)
	}
	return count > 0, nil
}

// List returns all courses in creation order.
func (s *Service) List() ([]Course, error) {
	rows, err := s.db.GetConnection().Query(`
		SELECT crn, created_at FROM courses ORDER BY created_at ASC, crn ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		var createdAt int64
		if err := rows.Scan(&c.CRN, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		courses = append(courses, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courses: %w", err)
	}
	return courses, nil
}
