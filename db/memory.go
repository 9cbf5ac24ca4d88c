package db

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-process RegistryStore. It backs tests and
// serves as the fallback when no durable driver could be opened.
type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]*RegistryEntry
	duplicates  map[string][]DuplicateRecord
	leaderboard []*LeaderboardRecord
	nextID      int64

	// fingerprint|submitter pairs already holding a row
	counted map[string]bool
	listed  map[string]bool
}

func pairKey(fingerprint, submitterID string) string {
	return fingerprint + "|" + submitterID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*RegistryEntry),
		duplicates: make(map[string][]DuplicateRecord),
		counted:    make(map[string]bool),
		listed:     make(map[string]bool),
	}
}

func (m *MemoryStore) ClaimFingerprint(ctx context.Context, entry RegistryEntry) (*RegistryEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[entry.Fingerprint]; ok {
		cp := *existing
		return &cp, false, nil
	}
	stored := entry
	m.entries[entry.Fingerprint] = &stored
	cp := stored
	return &cp, true, nil
}

func (m *MemoryStore) GetRegistryEntry(ctx context.Context, fingerprint string) (*RegistryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.entries[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *existing
	return &cp, nil
}

func (m *MemoryStore) RecordDuplicate(ctx context.Context, rec DuplicateRecord) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[rec.Fingerprint]
	if !ok {
		return 0, false, ErrNotFound
	}
	if !rec.IsSelfDuplicate {
		key := pairKey(rec.Fingerprint, rec.SubmitterID)
		if m.counted[key] {
			return entry.DuplicateCount, false, nil
		}
		m.counted[key] = true
		entry.DuplicateCount++
	}
	m.duplicates[rec.Fingerprint] = append(m.duplicates[rec.Fingerprint], rec)
	return entry.DuplicateCount, true, nil
}

func (m *MemoryStore) CountRecentDuplicates(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, rec := range m.duplicates[fingerprint] {
		if !rec.IsSelfDuplicate && rec.SubmittedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) FlagRapidDuplicate(ctx context.Context, fingerprint string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[fingerprint]
	if !ok {
		return false, ErrNotFound
	}
	if entry.Flags.RapidDuplicate {
		return false, nil
	}
	flaggedAt := at
	entry.Flags = EntryFlags{RapidDuplicate: true, FlaggedAt: &flaggedAt}
	return true, nil
}

func (m *MemoryStore) InsertLeaderboardRecord(ctx context.Context, rec *LeaderboardRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(rec.Fingerprint, rec.SubmitterID)
	if m.listed[key] {
		return ErrAlreadyExists
	}
	m.listed[key] = true

	m.nextID++
	rec.ID = m.nextID
	cp := *rec
	m.leaderboard = append(m.leaderboard, &cp)
	return nil
}

func (m *MemoryStore) GetLeaderboard(ctx context.Context, q LeaderboardQuery) ([]*LeaderboardRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*LeaderboardRecord
	for _, rec := range m.leaderboard {
		if q.Seed != "" && rec.Seed != q.Seed {
			continue
		}
		if q.OriginalsOnly && rec.IsDuplicateHash {
			continue
		}
		cp := *rec
		if entry, ok := m.entries[rec.Fingerprint]; ok {
			cp.DuplicateCount = entry.DuplicateCount
		}
		out = append(out, &cp)
	}
	return rankRecords(out, q.Limit), nil
}

func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	return nil
}
