// Package registry classifies completed-game submissions against the
// fingerprint registry and maintains the per-seed leaderboard.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gameVerifyServer/config"
	"gameVerifyServer/crypto"
	"gameVerifyServer/db"
	"gameVerifyServer/game"
)

// Status is the classification of a submission.
type Status string

const (
	StatusOriginal      Status = "original"
	StatusDuplicate     Status = "duplicate"
	StatusSelfDuplicate Status = "self_duplicate"
	StatusInvalidState  Status = "invalid_state"
	StatusScoreMismatch Status = "score_mismatch"
)

// Accepted reports whether the submission passed validation.
func (s Status) Accepted() bool {
	return s == StatusOriginal || s == StatusDuplicate || s == StatusSelfDuplicate
}

var (
	// ErrStoreUnavailable wraps every store failure. The submission may be
	// retried and will be classified as if the failed call never happened.
	ErrStoreUnavailable = errors.New("registry store unavailable")

	// ErrInvalidSubmission is returned for submissions that cannot be
	// classified at all (bad fingerprint format, missing submitter).
	ErrInvalidSubmission = errors.New("invalid submission")
)

// Detail is the status-specific payload of a Result.
type Detail struct {
	Fingerprint      string           `json:"verification_hash"`
	Seed             string           `json:"seed"`
	Reason           string           `json:"reason,omitempty"`
	Violations       []game.Violation `json:"violations,omitempty"`
	SubmittedScore   *int64           `json:"submitted_score,omitempty"`
	ExpectedScore    *int64           `json:"expected_score,omitempty"`
	Tolerance        *int             `json:"tolerance,omitempty"`
	FirstSubmitter   string           `json:"first_submitter,omitempty"`
	FirstSubmittedAt *time.Time       `json:"first_submitted_at,omitempty"`
	DeltaSeconds     *int64           `json:"delta_seconds,omitempty"`
	DuplicateCount   *int             `json:"duplicate_count,omitempty"`
	RapidDuplicate   bool             `json:"rapid_duplicate,omitempty"`
	LeaderboardID    int64            `json:"leaderboard_id,omitempty"`
}

// Result is the outcome of Submit.
type Result struct {
	Status Status `json:"status"`
	Detail Detail `json:"data"`
}

// Options tune a Service. Zero durations and thresholds fall back to config
// defaults; a zero ScoreTolerance demands an exact score.
type Options struct {
	ScoreTolerance int
	Bounds         game.Bounds
	RapidWindow    time.Duration
	RapidThreshold int

	// Window defaults to a StoreWindow over the service's store
	Window    DuplicateWindow
	Publisher Publisher
	Metrics   *Metrics
	Now       func() time.Time
}

// OptionsFromConfig maps server configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ScoreTolerance: cfg.ScoreTolerance,
		Bounds:         game.Bounds{MaxTurns: cfg.MaxTurns, MaxClockSkew: cfg.MaxClockSkew},
		RapidWindow:    cfg.RapidDuplicateWindow,
		RapidThreshold: cfg.RapidDuplicateThreshold,
	}
}

// Service is the verification registry. It is safe for concurrent use; all
// cross-request coordination happens in the store.
type Service struct {
	store     db.RegistryStore
	tolerance int
	bounds    game.Bounds
	window    DuplicateWindow
	threshold int
	publisher Publisher
	metrics   *Metrics
	now       func() time.Time
}

// NewService creates a Service over store.
func NewService(store db.RegistryStore, opts Options) *Service {
	if opts.ScoreTolerance < 0 {
		opts.ScoreTolerance = config.DefaultScoreTolerance
	}
	if opts.Bounds.MaxTurns <= 0 {
		opts.Bounds.MaxTurns = config.DefaultMaxTurns
	}
	if opts.Bounds.MaxClockSkew <= 0 {
		opts.Bounds.MaxClockSkew = config.DefaultMaxClockSkew
	}
	if opts.RapidWindow <= 0 {
		opts.RapidWindow = config.DefaultRapidDuplicateWindow
	}
	if opts.RapidThreshold <= 0 {
		opts.RapidThreshold = config.DefaultRapidDuplicateThreshold
	}
	if opts.Window == nil {
		opts.Window = NewStoreWindow(store, opts.RapidWindow)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     store,
		tolerance: opts.ScoreTolerance,
		bounds:    opts.Bounds,
		window:    opts.Window,
		threshold: opts.RapidThreshold,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
}

// SetPublisher attaches the live feed after construction.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Check runs plausibility and score parity without touching the registry.
func (s *Service) Check(sub game.Submission) (violations []game.Violation, expected int64, matches bool) {
	violations = game.CheckSubmission(sub, s.bounds, s.now())
	expected = game.Score(sub.FinalState, sub.GameVersion)
	matches = game.ScoreMatches(sub.Score, expected, s.tolerance)
	return violations, expected, matches
}

// Submit validates and classifies one submission.
func (s *Service) Submit(ctx context.Context, sub game.Submission) (Result, error) {
	start := time.Now()
	defer func() {
		s.metrics.observeDuration(time.Since(start).Seconds())
	}()

	sub.Fingerprint = crypto.NormalizeFingerprint(sub.Fingerprint)
	if !crypto.IsFingerprint(sub.Fingerprint) {
		return Result{}, fmt.Errorf("%w: verification_hash must be %d hex characters",
			ErrInvalidSubmission, crypto.FingerprintLength)
	}
	if strings.TrimSpace(sub.SubmitterID) == "" {
		return Result{}, fmt.Errorf("%w: submitter id is required", ErrInvalidSubmission)
	}
	if sub.Seed == "" {
		return Result{}, fmt.Errorf("%w: seed is required", ErrInvalidSubmission)
	}
	if sub.GameVersion == "" {
		sub.GameVersion = config.DefaultGameVersion
	}
	sub.FinalState = sub.FinalState.Normalize()

	detail := Detail{Fingerprint: sub.Fingerprint, Seed: sub.Seed}

	// 1. Plausibility
	violations, expected, matches := s.Check(sub)
	if len(violations) > 0 {
		reason := game.DescribeViolations(violations)
		log.Printf("⚠️  implausible state - Hash: %s, Submitter: %s, %s",
			shortHash(sub.Fingerprint), sub.SubmitterID, reason)
		detail.Reason = reason
		detail.Violations = violations
		return s.finish(Result{Status: StatusInvalidState, Detail: detail}), nil
	}

	// 2. Score parity
	if !matches {
		log.Printf("🚨 SCORE MISMATCH - Hash: %s, Submitter: %s, Submitted: %d, Expected: %d, Version: %s",
			shortHash(sub.Fingerprint), sub.SubmitterID, sub.Score, expected, sub.GameVersion)
		tolerance := s.tolerance
		detail.Reason = fmt.Sprintf("submitted score %d differs from recomputed %d by more than %d",
			sub.Score, expected, tolerance)
		detail.SubmittedScore = &sub.Score
		detail.ExpectedScore = &expected
		detail.Tolerance = &tolerance
		return s.finish(Result{Status: StatusScoreMismatch, Detail: detail}), nil
	}

	// 3. Atomic lookup-or-insert
	now := s.now().UTC()
	entry, inserted, err := s.store.ClaimFingerprint(ctx, db.RegistryEntry{
		Fingerprint:      sub.Fingerprint,
		Seed:             sub.Seed,
		FirstSubmitterID: sub.SubmitterID,
		FirstSubmittedAt: now,
	})
	if err != nil {
		return Result{}, s.storeFailure("claim fingerprint", err)
	}

	firstAt := entry.FirstSubmittedAt
	detail.FirstSubmitter = SubmitterDisplay(entry.FirstSubmitterID, "")
	detail.FirstSubmittedAt = &firstAt

	if inserted || entry.FirstSubmitterID == sub.SubmitterID {
		return s.recordFirstSubmitter(ctx, sub, now, entry, inserted, detail)
	}
	return s.recordDuplicate(ctx, sub, now, entry, detail)
}

// recordFirstSubmitter settles a submission from the fingerprint's first
// submitter. Its leaderboard record is inserted with a compare-and-insert:
// the one call that lands it reports original, every other call of that
// submitter (concurrent retries included) is a self-duplicate.
func (s *Service) recordFirstSubmitter(ctx context.Context, sub game.Submission, now time.Time, entry *db.RegistryEntry, claimed bool, detail Detail) (Result, error) {
	rec, err := s.insertLeaderboard(ctx, sub, entry.FirstSubmittedAt, false)
	switch {
	case err == nil:
		if !claimed {
			log.Printf("⚠️  Completing interrupted original - Hash: %s, Submitter: %s",
				shortHash(sub.Fingerprint), sub.SubmitterID)
		}
		return s.recordOriginal(sub, rec, detail), nil
	case errors.Is(err, db.ErrAlreadyExists):
		return s.recordSelfDuplicate(ctx, sub, now, entry, detail)
	default:
		return Result{}, s.storeFailure("insert leaderboard entry", err)
	}
}

func (s *Service) recordOriginal(sub game.Submission, rec *db.LeaderboardRecord, detail Detail) Result {
	count := 0
	detail.DuplicateCount = &count
	detail.LeaderboardID = rec.ID

	log.Printf("✅ Original submission - Seed: %s, Hash: %s, Submitter: %s, Score: %d",
		sub.Seed, shortHash(sub.Fingerprint), sub.SubmitterID, sub.Score)

	s.publish(Event{
		Type:             EventSubmission,
		Status:           StatusOriginal,
		Seed:             sub.Seed,
		Fingerprint:      sub.Fingerprint,
		SubmitterDisplay: SubmitterDisplay(sub.SubmitterID, sub.PlayerName),
		Score:            sub.Score,
		Timestamp:        rec.SubmittedAt,
	})
	return s.finish(Result{Status: StatusOriginal, Detail: detail})
}

func (s *Service) recordSelfDuplicate(ctx context.Context, sub game.Submission, now time.Time, entry *db.RegistryEntry, detail Detail) (Result, error) {
	delta := secondsSince(entry.FirstSubmittedAt, now)
	detail.DeltaSeconds = &delta

	count, _, err := s.store.RecordDuplicate(ctx, db.DuplicateRecord{
		Fingerprint:     sub.Fingerprint,
		SubmitterID:     sub.SubmitterID,
		SubmittedAt:     now,
		DeltaSeconds:    delta,
		IsSelfDuplicate: true,
	})
	if err != nil {
		return Result{}, s.storeFailure("record self-duplicate", err)
	}
	detail.DuplicateCount = &count
	detail.RapidDuplicate = entry.Flags.RapidDuplicate

	log.Printf("🔁 Self-duplicate - Hash: %s, Submitter: %s, %ds after first",
		shortHash(sub.Fingerprint), sub.SubmitterID, delta)
	return s.finish(Result{Status: StatusSelfDuplicate, Detail: detail}), nil
}

// recordDuplicate counts a submission from anyone but the first submitter.
// Both writes are idempotent per submitter, so a retry after a failed
// leaderboard insert neither counts twice nor lists twice.
func (s *Service) recordDuplicate(ctx context.Context, sub game.Submission, now time.Time, entry *db.RegistryEntry, detail Detail) (Result, error) {
	delta := secondsSince(entry.FirstSubmittedAt, now)
	detail.DeltaSeconds = &delta

	rec := db.DuplicateRecord{
		Fingerprint:  sub.Fingerprint,
		SubmitterID:  sub.SubmitterID,
		SubmittedAt:  now,
		DeltaSeconds: delta,
	}
	count, recorded, err := s.store.RecordDuplicate(ctx, rec)
	if err != nil {
		return Result{}, s.storeFailure("record duplicate", err)
	}
	detail.DuplicateCount = &count
	detail.RapidDuplicate = entry.Flags.RapidDuplicate

	// 4. Rapid-duplicate detection never changes the classification
	var recent int
	if recorded {
		var flagged bool
		recent, flagged = s.checkRapid(ctx, sub.Seed, rec)
		detail.RapidDuplicate = detail.RapidDuplicate || flagged
	} else {
		log.Printf("🔁 Repeat duplicate - Hash: %s, Submitter: %s, not counted again",
			shortHash(sub.Fingerprint), sub.SubmitterID)
	}

	// 5. Leaderboard
	lb, err := s.insertLeaderboard(ctx, sub, now, true)
	switch {
	case err == nil:
		detail.LeaderboardID = lb.ID
	case errors.Is(err, db.ErrAlreadyExists):
	default:
		return Result{}, s.storeFailure("insert leaderboard entry", err)
	}

	log.Printf("📋 Duplicate submission - Hash: %s, Submitter: %s, First: %s, Count: %d",
		shortHash(sub.Fingerprint), sub.SubmitterID, detail.FirstSubmitter, count)

	s.publish(Event{
		Type:             EventSubmission,
		Status:           StatusDuplicate,
		Seed:             sub.Seed,
		Fingerprint:      sub.Fingerprint,
		SubmitterDisplay: SubmitterDisplay(sub.SubmitterID, sub.PlayerName),
		Score:            sub.Score,
		DuplicateCount:   count,
		RecentDuplicates: recent,
		Timestamp:        now,
	})
	return s.finish(Result{Status: StatusDuplicate, Detail: detail}), nil
}

// checkRapid observes rec in the duplicate window and flags the entry when
// the count exceeds the threshold. Failures are logged and skipped.
func (s *Service) checkRapid(ctx context.Context, seed string, rec db.DuplicateRecord) (recent int, flagged bool) {
	recent, err := s.window.Observe(ctx, rec)
	if err != nil {
		log.Printf("⚠️  Duplicate window unavailable, skipping rapid check - Hash: %s: %v",
			shortHash(rec.Fingerprint), err)
		return 0, false
	}
	if recent <= s.threshold {
		return recent, false
	}

	newlyFlagged, err := s.store.FlagRapidDuplicate(ctx, rec.Fingerprint, rec.SubmittedAt)
	if err != nil {
		log.Printf("⚠️  Failed to flag rapid duplicate - Hash: %s: %v", shortHash(rec.Fingerprint), err)
		return recent, false
	}
	if newlyFlagged {
		s.metrics.observeFlag()
		log.Printf("🚩 Rapid duplicate flagged - Hash: %s, %d duplicates in window",
			shortHash(rec.Fingerprint), recent)
		s.publish(Event{
			Type:             EventFlag,
			Seed:             seed,
			Fingerprint:      rec.Fingerprint,
			RecentDuplicates: recent,
			Timestamp:        rec.SubmittedAt,
		})
	}
	return recent, true
}

// insertLeaderboard returns store errors unwrapped so callers can tell
// db.ErrAlreadyExists apart.
func (s *Service) insertLeaderboard(ctx context.Context, sub game.Submission, at time.Time, duplicate bool) (*db.LeaderboardRecord, error) {
	rec := &db.LeaderboardRecord{
		Seed:            sub.Seed,
		Fingerprint:     sub.Fingerprint,
		SubmitterID:     sub.SubmitterID,
		PlayerName:      strings.TrimSpace(sub.PlayerName),
		Score:           sub.Score,
		GameVersion:     sub.GameVersion,
		ClientTimestamp: sub.Timestamp,
		DurationSeconds: sub.DurationSeconds,
		FinalState:      sub.FinalState,
		IsDuplicateHash: duplicate,
		SubmittedAt:     at,
	}
	if err := s.store.InsertLeaderboardRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func secondsSince(first, now time.Time) int64 {
	delta := int64(now.Sub(first) / time.Second)
	if delta < 0 {
		return 0
	}
	return delta
}

func (s *Service) storeFailure(op string, err error) error {
	s.metrics.observeStoreError()
	log.Printf("❌ Registry store error (%s): %v", op, err)
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func (s *Service) finish(r Result) Result {
	s.metrics.observeStatus(r.Status)
	return r
}

func (s *Service) publish(ev Event) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}

// SubmitterDisplay is the public name of a submitter: the player name when
// given, otherwise a shortened submitter id.
func SubmitterDisplay(submitterID, playerName string) string {
	if name := strings.TrimSpace(playerName); name != "" {
		return name
	}
	if len(submitterID) <= config.SubmitterDisplayLength {
		return submitterID
	}
	return submitterID[:config.SubmitterDisplayLength] + "..."
}

func shortHash(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}
