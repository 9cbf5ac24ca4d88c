package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gameVerifyServer/crypto"
	"gameVerifyServer/game"

	"github.com/joho/godotenv"
)

// uniqueKey keeps fingerprints and seeds distinct across runs against a
// persistent database.
func uniqueKey(t *testing.T, label string) string {
	return crypto.SHA256.Sum([]byte(fmt.Sprintf("%s/%s/%d", t.Name(), label, time.Now().UnixNano())))
}

func runStoreSuite(t *testing.T, open func(t *testing.T) RegistryStore) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("ClaimFingerprint_FirstWins", func(t *testing.T) {
		store := open(t)
		fp := uniqueKey(t, "fp")

		first, inserted, err := store.ClaimFingerprint(ctx, RegistryEntry{
			Fingerprint: fp, Seed: "s1", FirstSubmitterID: "alice", FirstSubmittedAt: base,
		})
		if err != nil {
			t.Fatalf("ClaimFingerprint failed: %v", err)
		}
		if !inserted {
			t.Fatal("Expected first claim to insert")
		}
		if first.FirstSubmitterID != "alice" {
			t.Errorf("Expected submitter alice, got %s", first.FirstSubmitterID)
		}

		second, inserted, err := store.ClaimFingerprint(ctx, RegistryEntry{
			Fingerprint: fp, Seed: "s1", FirstSubmitterID: "bob", FirstSubmittedAt: base.Add(time.Minute),
		})
		if err != nil {
			t.Fatalf("ClaimFingerprint failed: %v", err)
		}
		if inserted {
			t.Fatal("Expected second claim to find the existing entry")
		}
		if second.FirstSubmitterID != "alice" {
			t.Errorf("Expected original submitter alice, got %s", second.FirstSubmitterID)
		}
		if !second.FirstSubmittedAt.Equal(base) {
			t.Errorf("Expected first_submitted_at %v, got %v", base, second.FirstSubmittedAt)
		}
	})

	t.Run("ClaimFingerprint_Concurrent", func(t *testing.T) {
		store := open(t)
		fp := uniqueKey(t, "fp")

		const workers = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		insertedCount := 0
		winners := make(map[string]bool)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				entry, inserted, err := store.ClaimFingerprint(ctx, RegistryEntry{
					Fingerprint:      fp,
					Seed:             "s1",
					FirstSubmitterID: fmt.Sprintf("user-%d", i),
					FirstSubmittedAt: base,
				})
				if err != nil {
					t.Errorf("ClaimFingerprint failed: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if inserted {
					insertedCount++
				}
				winners[entry.FirstSubmitterID] = true
			}(i)
		}
		wg.Wait()

		if insertedCount != 1 {
			t.Errorf("Expected exactly one insert, got %d", insertedCount)
		}
		if len(winners) != 1 {
			t.Errorf("Expected every caller to see the same first submitter, got %v", winners)
		}
	})

	t.Run("GetRegistryEntry_NotFound", func(t *testing.T) {
		store := open(t)
		_, err := store.GetRegistryEntry(ctx, uniqueKey(t, "missing"))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RecordDuplicate_Counts", func(t *testing.T) {
		store := open(t)
		fp := uniqueKey(t, "fp")
		if _, _, err := store.ClaimFingerprint(ctx, RegistryEntry{
			Fingerprint: fp, Seed: "s1", FirstSubmitterID: "alice", FirstSubmittedAt: base,
		}); err != nil {
			t.Fatalf("ClaimFingerprint failed: %v", err)
		}

		count, recorded, err := store.RecordDuplicate(ctx, DuplicateRecord{
			Fingerprint: fp, SubmitterID: "bob", SubmittedAt: base.Add(time.Minute), DeltaSeconds: 60,
		})
		if err != nil {
			t.Fatalf("RecordDuplicate failed: %v", err)
		}
		if count != 1 || !recorded {
			t.Errorf("Expected duplicate count 1 and recorded, got %d, %v", count, recorded)
		}

		count, recorded, err = store.RecordDuplicate(ctx, DuplicateRecord{
			Fingerprint: fp, SubmitterID: "alice", SubmittedAt: base.Add(2 * time.Minute),
			DeltaSeconds: 120, IsSelfDuplicate: true,
		})
		if err != nil {
			t.Fatalf("RecordDuplicate failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected self-duplicate to leave count at 1, got %d", count)
		}
		if !recorded {
			t.Error("Expected self-duplicate to be recorded")
		}

		entry, err := store.GetRegistryEntry(ctx, fp)
		if err != nil {
			t.Fatalf("GetRegistryEntry failed: %v", err)
		}
		if entry.DuplicateCount != 1 {
			t.Errorf("Expected stored duplicate count 1, got %d", entry.DuplicateCount)
		}
	})

	t.Run("RecordDuplicate_UnknownFingerprint", func(t *testing.T) {
		store := open(t)
		_, _, err := store.RecordDuplicate(ctx, DuplicateRecord{
			Fingerprint: uniqueKey(t, "missing"), SubmitterID: "bob", SubmittedAt: base,
		})
		if err == nil {
			t.Fatal("Expected error for unregistered fingerprint")
		}
	})

	t.Run("RecordDuplicate_Concurrent", func(t *testing.T) {
		store := open(t)
		fp := uniqueKey(t, "fp")
		if _, _, err := store.ClaimFingerprint(ctx, RegistryEntry{
			Fingerprint: fp, Seed: "s1", FirstSubmitterID: "alice", FirstSubmittedAt: base,
		}); err != nil {
			t.Fatalf("ClaimFingerprint failed: %v", err)
		}

		const workers = 12
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, _, err := store.RecordDuplicate(ctx, DuplicateRecord{
					Fingerprint: fp,
					SubmitterID: fmt.Sprintf("user-%d", i),
					SubmittedAt: base.Add(time.Duration(i) * time.Second),
				}); err != nil {
					t.Errorf("RecordDuplicate failed: %v", err)
				}
			}(i)
		}
		wg.Wait()

		entry, err := store.GetRegistryEntry(ctx, fp)
		if err != nil {
			t.Fatalf("GetRegistryEntry failed: %v", err)
		}
		if entry.DuplicateCount != workers {
			t.Errorf("Expected duplicate count %d, got %d", workers, entry.DuplicateCount)
		}
	})

	t.Run("CountRecentDuplicates_Window", func(t *testing.T) {
		store := open(t)
		fp := uniqueKey(t, "fp")
		if _, _, err := store.ClaimFingerprint(ctx, RegistryEntry{
			Fingerprint: fp, Seed: "s1", FirstSubmitterID: "alice", FirstSubmittedAt: base,
		}); err != nil {
			t.Fatalf("ClaimFingerprint failed: %v", err)
		}

		records := []DuplicateRecord{
			{Fingerprint: fp, SubmitterID: "old", SubmittedAt: base.Add(-2 * time.Hour)},
			{Fingerprint: fp, SubmitterID: "bob", SubmittedAt: base.Add(-10 * time.Minute)},
			{Fingerprint: fp, SubmitterID: "carol", SubmittedAt: base.Add(-5 * time.Minute)},
			{Fingerprint: fp, SubmitterID: "alice", SubmittedAt: base.Add(-time.Minute), IsSelfDuplicate: true},
		}
		for _, rec := range records {
			if _, _, err := store.RecordDuplicate(ctx, rec); err != nil {
				t.Fatalf("RecordDuplicate failed: %v", err)
			}
		}

		count, err := store.CountRecentDuplicates(ctx, fp, base.Add(-time.Hour))
		if err != nil {
			t.Fatalf("CountRecentDuplicates failed: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2 recent duplicates, got %d", count)
		}
	})

	t.Run("FlagRapidDuplicate_Once", func(t *testing.T) {
		store := open(t)
		fp := uniqueKey(t, "fp")
		if _, _, err := store.ClaimFingerprint(ctx, RegistryEntry{
			Fingerprint: fp, Seed: "s1", FirstSubmitterID: "alice", FirstSubmittedAt: base,
		}); err != nil {
			t.Fatalf("ClaimFingerprint failed: %v", err)
		}

		flagged, err := store.FlagRapidDuplicate(ctx, fp, base.Add(time.Minute))
		if err != nil {
			t.Fatalf("FlagRapidDuplicate failed: %v", err)
		}
		if !flagged {
			t.Error("Expected first flag to be new")
		}
		flagged, err = store.FlagRapidDuplicate(ctx, fp, base.Add(2*time.Minute))
		if err != nil {
			t.Fatalf("FlagRapidDuplicate failed: %v", err)
		}
		if flagged {
			t.Error("Expected second flag to be a no-op")
		}

		entry, err := store.GetRegistryEntry(ctx, fp)
		if err != nil {
			t.Fatalf("GetRegistryEntry failed: %v", err)
		}
		if !entry.Flags.RapidDuplicate || entry.Flags.FlaggedAt == nil {
			t.Fatalf("Expected rapid duplicate flag with timestamp, got %+v", entry.Flags)
		}
		if !entry.Flags.FlaggedAt.Equal(base.Add(time.Minute)) {
			t.Errorf("Expected flagged_at %v, got %v", base.Add(time.Minute), *entry.Flags.FlaggedAt)
		}
	})

	t.Run("GetLeaderboard_Ranking", func(t *testing.T) {
		store := open(t)
		seed := uniqueKey(t, "seed")
		fpA := uniqueKey(t, "a")
		fpB := uniqueKey(t, "b")

		for _, fp := range []string{fpA, fpB} {
			if _, _, err := store.ClaimFingerprint(ctx, RegistryEntry{
				Fingerprint: fp, Seed: seed, FirstSubmitterID: "alice", FirstSubmittedAt: base,
			}); err != nil {
				t.Fatalf("ClaimFingerprint failed: %v", err)
			}
		}
		if _, _, err := store.RecordDuplicate(ctx, DuplicateRecord{
			Fingerprint: fpA, SubmitterID: "bob", SubmittedAt: base.Add(time.Second),
		}); err != nil {
			t.Fatalf("RecordDuplicate failed: %v", err)
		}

		state := game.StateSnapshot{Turn: 12, Money: 1234.5, Doom: 42.25, Papers: 3}
		inserts := []*LeaderboardRecord{
			{Seed: seed, Fingerprint: fpA, SubmitterID: "alice", Score: 5000, SubmittedAt: base, FinalState: state},
			{Seed: seed, Fingerprint: fpA, SubmitterID: "bob", Score: 5000, SubmittedAt: base.Add(time.Second), IsDuplicateHash: true, FinalState: state},
			{Seed: seed, Fingerprint: fpB, SubmitterID: "carol", PlayerName: "Carol", Score: 9000, SubmittedAt: base.Add(2 * time.Second), FinalState: state},
			{Seed: uniqueKey(t, "other"), Fingerprint: fpB, SubmitterID: "dave", Score: 99999, SubmittedAt: base, FinalState: state},
		}
		for _, rec := range inserts {
			if err := store.InsertLeaderboardRecord(ctx, rec); err != nil {
				t.Fatalf("InsertLeaderboardRecord failed: %v", err)
			}
			if rec.ID == 0 {
				t.Error("Expected InsertLeaderboardRecord to set an ID")
			}
		}

		all, err := store.GetLeaderboard(ctx, LeaderboardQuery{Seed: seed, Limit: 10})
		if err != nil {
			t.Fatalf("GetLeaderboard failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("Expected 3 records for seed, got %d", len(all))
		}
		wantOrder := []string{"carol", "alice", "bob"}
		for i, rec := range all {
			if rec.SubmitterID != wantOrder[i] {
				t.Errorf("Rank %d: expected %s, got %s", i+1, wantOrder[i], rec.SubmitterID)
			}
			if rec.Rank != i+1 {
				t.Errorf("Expected rank %d, got %d", i+1, rec.Rank)
			}
		}
		if all[1].DuplicateCount != 1 {
			t.Errorf("Expected joined duplicate count 1, got %d", all[1].DuplicateCount)
		}
		if all[0].PlayerName != "Carol" {
			t.Errorf("Expected player name Carol, got %q", all[0].PlayerName)
		}
		if all[0].FinalState != state {
			t.Errorf("Expected final state %+v, got %+v", state, all[0].FinalState)
		}

		originals, err := store.GetLeaderboard(ctx, LeaderboardQuery{Seed: seed, OriginalsOnly: true, Limit: 10})
		if err != nil {
			t.Fatalf("GetLeaderboard failed: %v", err)
		}
		if len(originals) != 2 {
			t.Fatalf("Expected 2 original records, got %d", len(originals))
		}
		for _, rec := range originals {
			if rec.IsDuplicateHash {
				t.Errorf("Expected originals only, got duplicate from %s", rec.SubmitterID)
			}
		}

		limited, err := store.GetLeaderboard(ctx, LeaderboardQuery{Seed: seed, Limit: 1})
		if err != nil {
			t.Fatalf("GetLeaderboard failed: %v", err)
		}
		if len(limited) != 1 || limited[0].SubmitterID != "carol" {
			t.Errorf("Expected only carol with limit 1, got %+v", limited)
		}
	})
	t.Run("RecordDuplicate_RepeatSubmitterCountedOnce", func(t *testing.T) {
		store := open(t)
		fp := uniqueKey(t, "fp")
		if _, _, err := store.ClaimFingerprint(ctx, RegistryEntry{
			Fingerprint: fp, Seed: "s1", FirstSubmitterID: "alice", FirstSubmittedAt: base,
		}); err != nil {
			t.Fatalf("ClaimFingerprint failed: %v", err)
		}

		for i := 0; i < 3; i++ {
			count, recorded, err := store.RecordDuplicate(ctx, DuplicateRecord{
				Fingerprint: fp, SubmitterID: "bob", SubmittedAt: base.Add(time.Duration(i+1) * time.Minute),
			})
			if err != nil {
				t.Fatalf("RecordDuplicate failed: %v", err)
			}
			if count != 1 {
				t.Errorf("Attempt %d: expected duplicate count 1, got %d", i+1, count)
			}
			if recorded != (i == 0) {
				t.Errorf("Attempt %d: expected recorded=%v, got %v", i+1, i == 0, recorded)
			}
		}

		for i := 0; i < 2; i++ {
			_, recorded, err := store.RecordDuplicate(ctx, DuplicateRecord{
				Fingerprint: fp, SubmitterID: "alice", SubmittedAt: base.Add(time.Duration(i+5) * time.Minute),
				IsSelfDuplicate: true,
			})
			if err != nil {
				t.Fatalf("RecordDuplicate failed: %v", err)
			}
			if !recorded {
				t.Errorf("Expected every self-duplicate to be recorded, attempt %d was not", i+1)
			}
		}

		count, err := store.CountRecentDuplicates(ctx, fp, base)
		if err != nil {
			t.Fatalf("CountRecentDuplicates failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 windowed duplicate, got %d", count)
		}
		entry, err := store.GetRegistryEntry(ctx, fp)
		if err != nil {
			t.Fatalf("GetRegistryEntry failed: %v", err)
		}
		if entry.DuplicateCount != 1 {
			t.Errorf("Expected stored duplicate count 1, got %d", entry.DuplicateCount)
		}
	})

	t.Run("InsertLeaderboardRecord_UniquePerSubmitter", func(t *testing.T) {
		store := open(t)
		seed := uniqueKey(t, "seed")
		fp := uniqueKey(t, "fp")

		first := &LeaderboardRecord{Seed: seed, Fingerprint: fp, SubmitterID: "alice", Score: 100, SubmittedAt: base}
		if err := store.InsertLeaderboardRecord(ctx, first); err != nil {
			t.Fatalf("InsertLeaderboardRecord failed: %v", err)
		}

		again := &LeaderboardRecord{Seed: seed, Fingerprint: fp, SubmitterID: "alice", Score: 100, SubmittedAt: base.Add(time.Second)}
		err := store.InsertLeaderboardRecord(ctx, again)
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("Expected ErrAlreadyExists, got %v", err)
		}

		other := &LeaderboardRecord{Seed: seed, Fingerprint: fp, SubmitterID: "bob", Score: 100, SubmittedAt: base.Add(2 * time.Second), IsDuplicateHash: true}
		if err := store.InsertLeaderboardRecord(ctx, other); err != nil {
			t.Fatalf("InsertLeaderboardRecord failed: %v", err)
		}

		rows, err := store.GetLeaderboard(ctx, LeaderboardQuery{Seed: seed, Limit: 10})
		if err != nil {
			t.Fatalf("GetLeaderboard failed: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(rows))
		}
		if rows[0].ID != first.ID || rows[0].SubmitterID != "alice" {
			t.Errorf("Expected alice's first record %d to rank first, got %+v", first.ID, rows[0])
		}
	})

	t.Run("InsertLeaderboardRecord_ConcurrentSameSubmitter", func(t *testing.T) {
		store := open(t)
		seed := uniqueKey(t, "seed")
		fp := uniqueKey(t, "fp")

		const workers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		landed := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.InsertLeaderboardRecord(ctx, &LeaderboardRecord{
					Seed: seed, Fingerprint: fp, SubmitterID: "alice", Score: 100,
					SubmittedAt: base.Add(time.Duration(i) * time.Second),
				})
				if err != nil && !errors.Is(err, ErrAlreadyExists) {
					t.Errorf("InsertLeaderboardRecord failed: %v", err)
					return
				}
				if err == nil {
					mu.Lock()
					landed++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if landed != 1 {
			t.Errorf("Expected exactly one insert to land, got %d", landed)
		}
		rows, err := store.GetLeaderboard(ctx, LeaderboardQuery{Seed: seed, Limit: 10})
		if err != nil {
			t.Fatalf("GetLeaderboard failed: %v", err)
		}
		if len(rows) != 1 {
			t.Errorf("Expected 1 leaderboard record, got %d", len(rows))
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) RegistryStore {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) RegistryStore {
		store, err := OpenSQLite(filepath.Join(t.TempDir(), "registry.db"))
		if err != nil {
			t.Fatalf("OpenSQLite failed: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestLevelDBStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) RegistryStore {
		store, err := OpenLevelDB(filepath.Join(t.TempDir(), "registry"))
		if err != nil {
			t.Fatalf("OpenLevelDB failed: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestLevelDBStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry")

	store, err := OpenLevelDB(path)
	if err != nil {
		t.Fatalf("OpenLevelDB failed: %v", err)
	}
	fp := uniqueKey(t, "fp")
	if _, _, err := store.ClaimFingerprint(ctx, RegistryEntry{
		Fingerprint: fp, Seed: "s1", FirstSubmitterID: "alice", FirstSubmittedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("ClaimFingerprint failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenLevelDB(path)
	if err != nil {
		t.Fatalf("OpenLevelDB failed: %v", err)
	}
	defer reopened.Close()

	_, inserted, err := reopened.ClaimFingerprint(ctx, RegistryEntry{
		Fingerprint: fp, Seed: "s1", FirstSubmitterID: "bob", FirstSubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("ClaimFingerprint failed: %v", err)
	}
	if inserted {
		t.Error("Expected the claim to survive a reopen")
	}
}

func TestPostgresStore(t *testing.T) {
	_ = godotenv.Load("../.env")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	store, err := OpenPostgres(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("Failed to init postgres: %v", err)
	}
	defer store.Close()

	runStoreSuite(t, func(t *testing.T) RegistryStore {
		return store
	})
}
