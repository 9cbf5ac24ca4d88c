package db

import (
	"context"
	"errors"
	"sort"
	"time"

	"gameVerifyServer/config"
	"gameVerifyServer/game"
)

var (
	// ErrNotFound is returned when a registry entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by drivers when a unique key is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// EntryFlags are review markers on a registry entry.
type EntryFlags struct {
	RapidDuplicate bool       `json:"rapid_duplicate"`
	FlaggedAt      *time.Time `json:"flagged_at,omitempty"`
}

// RegistryEntry records who first submitted a fingerprint.
// Only DuplicateCount and Flags change after insert.
type RegistryEntry struct {
	Fingerprint      string     `json:"fingerprint"`
	Seed             string     `json:"seed"`
	FirstSubmitterID string     `json:"first_submitter_id"`
	FirstSubmittedAt time.Time  `json:"first_submitted_at"`
	DuplicateCount   int        `json:"duplicate_count"`
	Flags            EntryFlags `json:"flags"`
}

// DuplicateRecord is one non-original submission of a registered fingerprint.
type DuplicateRecord struct {
	Fingerprint     string    `json:"fingerprint"`
	SubmitterID     string    `json:"submitter_id"`
	SubmittedAt     time.Time `json:"submitted_at"`
	DeltaSeconds    int64     `json:"delta_seconds"`
	IsSelfDuplicate bool      `json:"is_self_duplicate"`
}

// LeaderboardRecord is a leaderboard-visible submission.
type LeaderboardRecord struct {
	ID              int64              `json:"id"`
	Seed            string             `json:"seed"`
	Fingerprint     string             `json:"fingerprint"`
	SubmitterID     string             `json:"submitter_id"`
	PlayerName      string             `json:"player_name"`
	Score           int64              `json:"score"`
	GameVersion     string             `json:"game_version"`
	ClientTimestamp int64              `json:"client_timestamp"`
	DurationSeconds int64              `json:"duration_seconds"`
	FinalState      game.StateSnapshot `json:"final_state"`
	IsDuplicateHash bool               `json:"is_duplicate_hash"`
	SubmittedAt     time.Time          `json:"submitted_at"`

	// Filled on read
	DuplicateCount int `json:"duplicate_count"`
	Rank           int `json:"rank"`
}

// LeaderboardQuery selects leaderboard records. An empty Seed spans all seeds.
type LeaderboardQuery struct {
	Seed          string
	OriginalsOnly bool
	Limit         int
}

// RegistryStore is the durable state of the verification registry.
// Implementations must make ClaimFingerprint an atomic compare-and-insert.
type RegistryStore interface {
	// ClaimFingerprint inserts entry unless its fingerprint is registered.
	// It returns the stored entry and whether this call inserted it.
	ClaimFingerprint(ctx context.Context, entry RegistryEntry) (*RegistryEntry, bool, error)

	// GetRegistryEntry returns ErrNotFound for unknown fingerprints.
	GetRegistryEntry(ctx context.Context, fingerprint string) (*RegistryEntry, error)

	// RecordDuplicate appends rec and, unless it is a self-duplicate,
	// atomically increments the entry's duplicate count. A submitter is
	// counted once per fingerprint: a repeat non-self record is dropped and
	// recorded is false. It returns the count after the call.
	RecordDuplicate(ctx context.Context, rec DuplicateRecord) (count int, recorded bool, err error)

	// CountRecentDuplicates counts non-self duplicates submitted after since.
	CountRecentDuplicates(ctx context.Context, fingerprint string, since time.Time) (int, error)

	// FlagRapidDuplicate sets the rapid-duplicate flag and reports whether
	// it was newly set.
	FlagRapidDuplicate(ctx context.Context, fingerprint string, at time.Time) (bool, error)

	// InsertLeaderboardRecord stores rec and sets rec.ID. Each submitter
	// holds at most one record per fingerprint; a second insert for the
	// same pair returns ErrAlreadyExists and stores nothing.
	InsertLeaderboardRecord(ctx context.Context, rec *LeaderboardRecord) error

	// GetLeaderboard returns records ranked by score, earliest first on ties.
	GetLeaderboard(ctx context.Context, q LeaderboardQuery) ([]*LeaderboardRecord, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// rankRecords sorts records into leaderboard order, applies the limit and
// numbers them from 1. Used by drivers without SQL ordering.
func rankRecords(records []*LeaderboardRecord, limit int) []*LeaderboardRecord {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID < b.ID
	})
	if limit <= 0 {
		limit = config.DefaultLeaderboardLimit
	}
	if len(records) > limit {
		records = records[:limit]
	}
	for i, r := range records {
		r.Rank = i + 1
	}
	return records
}
