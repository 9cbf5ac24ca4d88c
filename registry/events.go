package registry

import "time"

/* =========================
   FEED EVENTS
========================= */

const (
	EventSubmission = "submission"
	EventFlag       = "rapid_duplicate_flag"
)

// Event is a classification outcome pushed to live observers.
type Event struct {
	Type             string    `json:"type"`
	Status           Status    `json:"status,omitempty"`
	Seed             string    `json:"seed"`
	Fingerprint      string    `json:"verification_hash"`
	SubmitterDisplay string    `json:"submitter_display"`
	Score            int64     `json:"score"`
	DuplicateCount   int       `json:"duplicate_count"`
	RecentDuplicates int       `json:"recent_duplicates,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Publisher receives events after a submission is classified. Publish must
// not block the caller.
type Publisher interface {
	Publish(ev Event)
}
