package face

import (
	"fmt"

	"github.com/rollcall/rollcall/internal/vector"
)

// Outcome classifies the result of a recognition attempt.
type Outcome string

const (
	// OutcomeNoFace means no face was detected while building the query.
	OutcomeNoFace Outcome = "no_face"
	// OutcomeUnknown means a face was present but nothing in the store
	// matched within the threshold.
	OutcomeUnknown Outcome = "unknown"
	// OutcomeRecognized means the nearest stored identity was within the
	// threshold.
	OutcomeRecognized Outcome = "recognized"
)

// MatchResult is the identity decision for one query vector.
type MatchResult struct {
	Outcome  Outcome
	Label    string
	Distance float64
}

// Matcher is a nearest-neighbor classifier over a course's identity records.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher with the given distance threshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = 0.6
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured distance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match classifies a query vector against the given records. A nil query
// means no face was detected and short-circuits before any lookup. The
// minimum distance strictly below the threshold wins; a tie at exactly the
// minimum distance resolves to whichever record is visited first, so the
// decision is deterministic only when distances are distinct.
func (m *Matcher) Match(query []float32, records []vector.Record) (MatchResult, error) {
	if query == nil {
		return MatchResult{Outcome: OutcomeNoFace}, nil
	}

	best := MatchResult{Outcome: OutcomeUnknown, Distance: m.threshold}
	for _, rec := range records {
		d, err := vector.Distance(query, rec.Vector)
		if err != nil {
			return MatchResult{}, fmt.Errorf("identity %q: %w", rec.Label, err)
		}
		if d < best.Distance {
			best.Outcome = OutcomeRecognized
			best.Label = rec.Label
			best.Distance = d
		}
	}
	return best, nil
}

// MatchStore classifies a query vector against every record in the store.
func (m *Matcher) MatchStore(query []float32, store *vector.Store) (MatchResult, error) {
	if query == nil {
		return MatchResult{Outcome: OutcomeNoFace}, nil
	}

	records, err := store.List()
	if err != nil {
		return MatchResult{}, err
	}
	return m.Match(query, records)
}
