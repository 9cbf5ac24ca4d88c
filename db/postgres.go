package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gameVerifyServer/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the production RegistryStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to databaseURL and creates the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	log.Println("🔌 Connecting to PostgreSQL...")

	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	ctx, cancel := context.WithTimeout(ctx, config.PostgresConnectTimeout)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = config.PostgresMaxConns
	poolConfig.MinConns = config.PostgresMinConns
	poolConfig.MaxConnLifetime = config.PostgresMaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ PostgreSQL connected successfully")

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		log.Println("🔌 Closing PostgreSQL connection...")
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	log.Println("📋 Initializing database schema...")

	registrySchema := `
	CREATE TABLE IF NOT EXISTS registry_entries (
		fingerprint TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		first_submitter_id TEXT NOT NULL,
		first_submitted_at TIMESTAMPTZ NOT NULL,
		duplicate_count INTEGER NOT NULL DEFAULT 0,
		rapid_duplicate BOOLEAN NOT NULL DEFAULT FALSE,
		flagged_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_registry_entries_seed ON registry_entries(seed);
	`
	if _, err := s.pool.Exec(ctx, registrySchema); err != nil {
		return fmt.Errorf("failed to create registry_entries table: %w", err)
	}

	duplicateSchema := `
	CREATE TABLE IF NOT EXISTS duplicate_records (
		id BIGSERIAL PRIMARY KEY,
		fingerprint TEXT NOT NULL REFERENCES registry_entries(fingerprint),
		submitter_id TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		delta_seconds BIGINT NOT NULL,
		is_self_duplicate BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- Sliding-window lookups skip self-duplicates
	CREATE INDEX IF NOT EXISTS idx_duplicate_records_window
		ON duplicate_records(fingerprint, submitted_at DESC) WHERE NOT is_self_duplicate;

	-- A submitter is counted once per fingerprint
	CREATE UNIQUE INDEX IF NOT EXISTS idx_duplicate_records_submitter
		ON duplicate_records(fingerprint, submitter_id) WHERE NOT is_self_duplicate;
	`
	if _, err := s.pool.Exec(ctx, duplicateSchema); err != nil {
		return fmt.Errorf("failed to create duplicate_records table: %w", err)
	}

	leaderboardSchema := `
	CREATE TABLE IF NOT EXISTS leaderboard_entries (
		id BIGSERIAL PRIMARY KEY,
		seed TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		submitter_id TEXT NOT NULL,
		player_name TEXT NOT NULL DEFAULT '',
		score BIGINT NOT NULL,
		game_version TEXT NOT NULL,
		client_timestamp BIGINT NOT NULL,
		duration_seconds BIGINT NOT NULL,
		final_state JSONB NOT NULL,
		is_duplicate_hash BOOLEAN NOT NULL DEFAULT FALSE,
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_leaderboard_entries_seed_score
		ON leaderboard_entries(seed, score DESC, submitted_at ASC);

	-- One visible row per submitter and fingerprint; the first submitter's
	-- row is what makes a submission the original
	CREATE UNIQUE INDEX IF NOT EXISTS idx_leaderboard_entries_submitter
		ON leaderboard_entries(fingerprint, submitter_id);
	`
	if _, err := s.pool.Exec(ctx, leaderboardSchema); err != nil {
		return fmt.Errorf("failed to create leaderboard_entries table: %w", err)
	}

	log.Println("✅ Database schema initialized successfully")
	return nil
}

func (s *PostgresStore) ClaimFingerprint(ctx context.Context, entry RegistryEntry) (*RegistryEntry, bool, error) {
	query := `
		INSERT INTO registry_entries (fingerprint, seed, first_submitter_id, first_submitted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (fingerprint) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query,
		entry.Fingerprint, entry.Seed, entry.FirstSubmitterID, entry.FirstSubmittedAt.UTC())
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim fingerprint: %w", err)
	}
	if tag.RowsAffected() == 1 {
		stored := entry
		stored.DuplicateCount = 0
		stored.Flags = EntryFlags{}
		return &stored, true, nil
	}

	existing, err := s.GetRegistryEntry(ctx, entry.Fingerprint)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) GetRegistryEntry(ctx context.Context, fingerprint string) (*RegistryEntry, error) {
	query := `
		SELECT fingerprint, seed, first_submitter_id, first_submitted_at,
		       duplicate_count, rapid_duplicate, flagged_at
		FROM registry_entries
		WHERE fingerprint = $1
	`
	var entry RegistryEntry
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(
		&entry.Fingerprint,
		&entry.Seed,
		&entry.FirstSubmitterID,
		&entry.FirstSubmittedAt,
		&entry.DuplicateCount,
		&entry.Flags.RapidDuplicate,
		&entry.Flags.FlaggedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registry entry: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) RecordDuplicate(ctx context.Context, rec DuplicateRecord) (int, bool, error) {
	var (
		count    int
		recorded bool
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO duplicate_records (fingerprint, submitter_id, submitted_at, delta_seconds, is_self_duplicate)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (fingerprint, submitter_id) WHERE NOT is_self_duplicate DO NOTHING
		`
		tag, err := tx.Exec(ctx, insert,
			rec.Fingerprint, rec.SubmitterID, rec.SubmittedAt.UTC(), rec.DeltaSeconds, rec.IsSelfDuplicate)
		if err != nil {
			return fmt.Errorf("failed to insert duplicate record: %w", err)
		}
		recorded = tag.RowsAffected() == 1

		counter := `SELECT duplicate_count FROM registry_entries WHERE fingerprint = $1`
		if recorded && !rec.IsSelfDuplicate {
			counter = `
				UPDATE registry_entries SET duplicate_count = duplicate_count + 1
				WHERE fingerprint = $1
				RETURNING duplicate_count
			`
		}
		err = tx.QueryRow(ctx, counter, rec.Fingerprint).Scan(&count)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update duplicate count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return count, recorded, nil
}

func (s *PostgresStore) CountRecentDuplicates(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM duplicate_records
		WHERE fingerprint = $1 AND NOT is_self_duplicate AND submitted_at > $2
	`
	var count int
	if err := s.pool.QueryRow(ctx, query, fingerprint, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent duplicates: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) FlagRapidDuplicate(ctx context.Context, fingerprint string, at time.Time) (bool, error) {
	query := `
		UPDATE registry_entries SET rapid_duplicate = TRUE, flagged_at = $2
		WHERE fingerprint = $1 AND NOT rapid_duplicate
	`
	tag, err := s.pool.Exec(ctx, query, fingerprint, at.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to flag rapid duplicate: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) InsertLeaderboardRecord(ctx context.Context, rec *LeaderboardRecord) error {
	stateJSON, err := json.Marshal(rec.FinalState)
	if err != nil {
		return fmt.Errorf("failed to marshal final state: %w", err)
	}

	query := `
		INSERT INTO leaderboard_entries (
			seed, fingerprint, submitter_id, player_name, score, game_version,
			client_timestamp, duration_seconds, final_state, is_duplicate_hash, submitted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (fingerprint, submitter_id) DO NOTHING
		RETURNING id
	`
	err = s.pool.QueryRow(ctx, query,
		rec.Seed,
		rec.Fingerprint,
		rec.SubmitterID,
		rec.PlayerName,
		rec.Score,
		rec.GameVersion,
		rec.ClientTimestamp,
		rec.DurationSeconds,
		stateJSON,
		rec.IsDuplicateHash,
		rec.SubmittedAt.UTC(),
	).Scan(&rec.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert leaderboard entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLeaderboard(ctx context.Context, q LeaderboardQuery) ([]*LeaderboardRecord, error) {
	query := `
		SELECT l.id, l.seed, l.fingerprint, l.submitter_id, l.player_name, l.score,
		       l.game_version, l.client_timestamp, l.duration_seconds, l.final_state,
		       l.is_duplicate_hash, l.submitted_at, COALESCE(r.duplicate_count, 0)
		FROM leaderboard_entries l
		LEFT JOIN registry_entries r ON r.fingerprint = l.fingerprint
		WHERE ($1::text = '' OR l.seed = $1)
		  AND (NOT $2::boolean OR NOT l.is_duplicate_hash)
		ORDER BY l.score DESC, l.submitted_at ASC, l.id ASC
		LIMIT $3
	`
	limit := q.Limit
	if limit <= 0 {
		limit = config.DefaultLeaderboardLimit
	}

	rows, err := s.pool.Query(ctx, query, q.Seed, q.OriginalsOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var records []*LeaderboardRecord
	for rows.Next() {
		var rec LeaderboardRecord
		var stateJSON []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.Seed,
			&rec.Fingerprint,
			&rec.SubmitterID,
			&rec.PlayerName,
			&rec.Score,
			&rec.GameVersion,
			&rec.ClientTimestamp,
			&rec.DurationSeconds,
			&stateJSON,
			&rec.IsDuplicateHash,
			&rec.SubmittedAt,
			&rec.DuplicateCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		if err := json.Unmarshal(stateJSON, &rec.FinalState); err != nil {
			return nil, fmt.Errorf("failed to unmarshal final state: %w", err)
		}
		rec.Rank = len(records) + 1
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard rows: %w", err)
	}
	return records, nil
}

var _ RegistryStore = (*PostgresStore)(nil)
