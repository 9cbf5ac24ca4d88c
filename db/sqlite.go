package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"gameVerifyServer/config"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS registry_entries (
	fingerprint TEXT PRIMARY KEY,
	seed TEXT NOT NULL,
	first_submitter_id TEXT NOT NULL,
	first_submitted_at INTEGER NOT NULL,
	duplicate_count INTEGER NOT NULL DEFAULT 0,
	rapid_duplicate INTEGER NOT NULL DEFAULT 0,
	flagged_at INTEGER
);

CREATE TABLE IF NOT EXISTS duplicate_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL REFERENCES registry_entries(fingerprint),
	submitter_id TEXT NOT NULL,
	submitted_at INTEGER NOT NULL,
	delta_seconds INTEGER NOT NULL,
	is_self_duplicate INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_duplicate_records_window
	ON duplicate_records(fingerprint, submitted_at);

CREATE UNIQUE INDEX IF NOT EXISTS idx_duplicate_records_submitter
	ON duplicate_records(fingerprint, submitter_id) WHERE is_self_duplicate = 0;

CREATE TABLE IF NOT EXISTS leaderboard_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	seed TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	submitter_id TEXT NOT NULL,
	player_name TEXT NOT NULL DEFAULT '',
	score INTEGER NOT NULL,
	game_version TEXT NOT NULL,
	client_timestamp INTEGER NOT NULL,
	duration_seconds INTEGER NOT NULL,
	final_state TEXT NOT NULL,
	is_duplicate_hash INTEGER NOT NULL DEFAULT 0,
	submitted_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_entries_seed_score
	ON leaderboard_entries(seed, score DESC, submitted_at ASC);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leaderboard_entries_submitter
	ON leaderboard_entries(fingerprint, submitter_id);
`

// SQLiteStore is a single-file RegistryStore for local deployments.
type SQLiteStore struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	log.Printf("🔌 Opening SQLite registry at %s...", path)

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time keeps claim and counter updates serialized.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Println("✅ SQLite registry ready")
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *SQLiteStore) ClaimFingerprint(ctx context.Context, entry RegistryEntry) (*RegistryEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO registry_entries (fingerprint, seed, first_submitter_id, first_submitted_at)
		 VALUES (?, ?, ?, ?)`,
		entry.Fingerprint, entry.Seed, entry.FirstSubmitterID, toMillis(entry.FirstSubmittedAt))
	if err == nil {
		stored := entry
		stored.FirstSubmittedAt = fromMillis(toMillis(entry.FirstSubmittedAt))
		stored.DuplicateCount = 0
		stored.Flags = EntryFlags{}
		return &stored, true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("claim fingerprint: %w", err)
	}

	existing, err := s.GetRegistryEntry(ctx, entry.Fingerprint)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *SQLiteStore) GetRegistryEntry(ctx context.Context, fingerprint string) (*RegistryEntry, error) {
	var (
		entry     RegistryEntry
		firstAt   int64
		rapid     bool
		flaggedAt sql.NullInt64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT fingerprint, seed, first_submitter_id, first_submitted_at,
		        duplicate_count, rapid_duplicate, flagged_at
		 FROM registry_entries WHERE fingerprint = ?`, fingerprint,
	).Scan(&entry.Fingerprint, &entry.Seed, &entry.FirstSubmitterID, &firstAt,
		&entry.DuplicateCount, &rapid, &flaggedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registry entry: %w", err)
	}
	entry.FirstSubmittedAt = fromMillis(firstAt)
	entry.Flags.RapidDuplicate = rapid
	if flaggedAt.Valid {
		at := fromMillis(flaggedAt.Int64)
		entry.Flags.FlaggedAt = &at
	}
	return &entry, nil
}

func (s *SQLiteStore) RecordDuplicate(ctx context.Context, rec DuplicateRecord) (int, bool, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO duplicate_records (fingerprint, submitter_id, submitted_at, delta_seconds, is_self_duplicate)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		rec.Fingerprint, rec.SubmitterID, toMillis(rec.SubmittedAt), rec.DeltaSeconds, rec.IsSelfDuplicate,
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert duplicate record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("insert duplicate record: %w", err)
	}
	recorded := n == 1

	if recorded && !rec.IsSelfDuplicate {
		if _, err := tx.ExecContext(ctx,
			`UPDATE registry_entries SET duplicate_count = duplicate_count + 1 WHERE fingerprint = ?`,
			rec.Fingerprint,
		); err != nil {
			return 0, false, fmt.Errorf("increment duplicate count: %w", err)
		}
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT duplicate_count FROM registry_entries WHERE fingerprint = ?`, rec.Fingerprint,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("read duplicate count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit duplicate record: %w", err)
	}
	return count, recorded, nil
}

func (s *SQLiteStore) CountRecentDuplicates(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	var count int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM duplicate_records
		 WHERE fingerprint = ? AND is_self_duplicate = 0 AND submitted_at > ?`,
		fingerprint, toMillis(since),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent duplicates: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) FlagRapidDuplicate(ctx context.Context, fingerprint string, at time.Time) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE registry_entries SET rapid_duplicate = 1, flagged_at = ?
		 WHERE fingerprint = ? AND rapid_duplicate = 0`,
		toMillis(at), fingerprint)
	if err != nil {
		return false, fmt.Errorf("flag rapid duplicate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("flag rapid duplicate: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) InsertLeaderboardRecord(ctx context.Context, rec *LeaderboardRecord) error {
	stateJSON, err := json.Marshal(rec.FinalState)
	if err != nil {
		return fmt.Errorf("marshal final state: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO leaderboard_entries (
			seed, fingerprint, submitter_id, player_name, score, game_version,
			client_timestamp, duration_seconds, final_state, is_duplicate_hash, submitted_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Seed, rec.Fingerprint, rec.SubmitterID, rec.PlayerName, rec.Score, rec.GameVersion,
		rec.ClientTimestamp, rec.DurationSeconds, string(stateJSON), rec.IsDuplicateHash, toMillis(rec.SubmittedAt),
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert leaderboard entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert leaderboard entry: %w", err)
	}
	rec.ID = id
	return nil
}

func (s *SQLiteStore) GetLeaderboard(ctx context.Context, q LeaderboardQuery) ([]*LeaderboardRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = config.DefaultLeaderboardLimit
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT l.id, l.seed, l.fingerprint, l.submitter_id, l.player_name, l.score,
		        l.game_version, l.client_timestamp, l.duration_seconds, l.final_state,
		        l.is_duplicate_hash, l.submitted_at, COALESCE(r.duplicate_count, 0)
		 FROM leaderboard_entries l
		 LEFT JOIN registry_entries r ON r.fingerprint = l.fingerprint
		 WHERE (? = '' OR l.seed = ?)
		   AND (? = 0 OR l.is_duplicate_hash = 0)
		 ORDER BY l.score DESC, l.submitted_at ASC, l.id ASC
		 LIMIT ?`,
		q.Seed, q.Seed, q.OriginalsOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var records []*LeaderboardRecord
	for rows.Next() {
		var (
			rec         LeaderboardRecord
			stateJSON   string
			submittedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Seed, &rec.Fingerprint, &rec.SubmitterID, &rec.PlayerName,
			&rec.Score, &rec.GameVersion, &rec.ClientTimestamp, &rec.DurationSeconds, &stateJSON,
			&rec.IsDuplicateHash, &submittedAt, &rec.DuplicateCount); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &rec.FinalState); err != nil {
			return nil, fmt.Errorf("unmarshal final state: %w", err)
		}
		rec.SubmittedAt = fromMillis(submittedAt)
		rec.Rank = len(records) + 1
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard rows: %w", err)
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ RegistryStore = (*SQLiteStore)(nil)
