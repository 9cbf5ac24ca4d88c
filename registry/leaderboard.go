package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gameVerifyServer/config"
	"gameVerifyServer/db"
	"gameVerifyServer/game"
)

// ErrNotFound is returned by Entry for unknown fingerprints.
var ErrNotFound = db.ErrNotFound

// LeaderboardEntry is one public leaderboard row.
type LeaderboardEntry struct {
	Rank             int                `json:"rank"`
	SubmitterDisplay string             `json:"submitter_display"`
	Score            int64              `json:"score"`
	SubmittedAt      time.Time          `json:"submitted_at"`
	IsOriginal       bool               `json:"is_original"`
	DuplicateCount   int                `json:"duplicate_count"`
	Fingerprint      string             `json:"verification_hash"`
	GameVersion      string             `json:"game_version"`
	DurationSeconds  int64              `json:"duration_seconds"`
	FinalState       game.StateSnapshot `json:"final_state"`
}

// Leaderboard returns the ranked leaderboard for seed.
func (s *Service) Leaderboard(ctx context.Context, seed string, originalsOnly bool, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = config.DefaultLeaderboardLimit
	}
	if limit > config.MaxLeaderboardLimit {
		limit = config.MaxLeaderboardLimit
	}

	records, err := s.store.GetLeaderboard(ctx, db.LeaderboardQuery{
		Seed:          seed,
		OriginalsOnly: originalsOnly,
		Limit:         limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: leaderboard: %v", ErrStoreUnavailable, err)
	}

	entries := make([]LeaderboardEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, LeaderboardEntry{
			Rank:             rec.Rank,
			SubmitterDisplay: SubmitterDisplay(rec.SubmitterID, rec.PlayerName),
			Score:            rec.Score,
			SubmittedAt:      rec.SubmittedAt,
			IsOriginal:       !rec.IsDuplicateHash,
			DuplicateCount:   rec.DuplicateCount,
			Fingerprint:      rec.Fingerprint,
			GameVersion:      rec.GameVersion,
			DurationSeconds:  rec.DurationSeconds,
			FinalState:       rec.FinalState,
		})
	}
	return entries, nil
}

// EntryView is the public form of a registry entry.
type EntryView struct {
	Fingerprint      string        `json:"verification_hash"`
	Seed             string        `json:"seed"`
	FirstSubmitter   string        `json:"first_submitter"`
	FirstSubmittedAt time.Time     `json:"first_submitted_at"`
	DuplicateCount   int           `json:"duplicate_count"`
	Flags            db.EntryFlags `json:"flags"`
}

// Entry looks up the registry entry for fingerprint.
func (s *Service) Entry(ctx context.Context, fingerprint string) (*EntryView, error) {
	entry, err := s.store.GetRegistryEntry(ctx, fingerprint)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: registry entry: %v", ErrStoreUnavailable, err)
	}
	return &EntryView{
		Fingerprint:      entry.Fingerprint,
		Seed:             entry.Seed,
		FirstSubmitter:   SubmitterDisplay(entry.FirstSubmitterID, ""),
		FirstSubmittedAt: entry.FirstSubmittedAt,
		DuplicateCount:   entry.DuplicateCount,
		Flags:            entry.Flags,
	}, nil
}

// HealthCheck reports whether the store is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}
