package ledger

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/rollcall/rollcall/internal/storage"
)

// Channel identifies which check-in path produced an event.
type Channel string

const (
	ChannelFace Channel = "face"
	ChannelQR   Channel = "qr"
)

// Timestamp layout of the exported line format.
const lineTimeLayout = "2006-01-02 15:04:05"

// Event is one attendance record. Events are append-only and ordered by
// arrival; they are never mutated or deleted (enforced by a database
// trigger as well).
type Event struct {
	EventID   string
	CRN       string
	Identity  string
	Email     string
	Action    string
	Channel   Channel
	Timestamp time.Time
}

// Line renders the event in the canonical export layout:
// "timestamp, identity[, email], action". The email column is present only
// for QR-channel events.
func (e *Event) Line() string {
	ts := e.Timestamp.Format(lineTimeLayout)
	if e.Email != "" {
		return fmt.Sprintf("%s, %s, %s, %s\n", ts, e.Identity, e.Email, e.Action)
	}
	return fmt.Sprintf("%s, %s, %s\n", ts, e.Identity, e.Action)
}

// Ledger manages the append-only per-course attendance log. It performs no
// deduplication or compaction; debouncing duplicate writes is entirely the
// session state machine's responsibility.
type Ledger struct {
	db *storage.DB
}

// New creates a new Ledger instance
func New(db *storage.DB) *Ledger {
	return &Ledger{db: db}
}

// Append writes one attendance event and returns its generated event ID.
func (l *Ledger) Append(crn, identity, email, action string, channel Channel, ts time.Time) (string, error) {
	eventID := uuid.New().String()

	_, err := l.db.GetConnection().Exec(`
		INSERT INTO attendance_events (event_id, crn, identity, email, action, channel, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, eventID, crn, identity, email, action, channel, ts.Unix())
	if err != nil {
		return "", fmt.Errorf("failed to append attendance event: %w", err)
	}

	return eventID, nil
}

// Events retrieves all events for a course in arrival order.
func (l *Ledger) Events(crn string) ([]*Event, error) {
	rows, err := l.db.GetConnection().Query(`
		SELECT event_id, crn, identity, email, action, channel, timestamp
		FROM attendance_events
		WHERE crn = ?
		ORDER BY id ASC
	`, crn)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var email *string
		var ts int64

		err := rows.Scan(&e.EventID, &e.CRN, &e.Identity, &email, &e.Action, &e.Channel, &ts)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance event: %w", err)
		}

		if email != nil {
			e.Email = *email
		}
		e.Timestamp = time.Unix(ts, 0)
		events = append(events, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance events: %w", err)
	}

	return events, nil
}

// Count returns the number of events recorded for a course.
func (l *Ledger) Count(crn string) (int, error) {
	var count int
	err := l.db.GetConnection().QueryRow(`
		SELECT COUNT(*) FROM attendance_events WHERE crn = ?
	`, crn).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance events: %w", err)
	}
	return count, nil
}

// Export writes the course's events to w in the canonical line layout.
func (l *Ledger) Export(w io.Writer, crn string) error {
	events, err := l.Events(crn)
	if err != nil {
		return err
	}

	for _, e := range events {
		if _, err := io.WriteString(w, e.Line()); err != nil {
			return fmt.Errorf("failed to export attendance events: %w", err)
		}
	}
	return nil
}
