package db

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout:
//
//	entry:<fp>                 RegistryEntry
//	dup:<fp>:<seq>             DuplicateRecord
//	lb:<seed>:<id>             LeaderboardRecord
//	dupby:<fp>:<submitter>     marker of a counted non-self duplicate
//	lbby:<fp>:<submitter>      id of the submitter's leaderboard record
//	meta:seq:dup, meta:seq:lb  big-endian counters
var (
	entryPrefix = "entry:"
	dupPrefix   = "dup:"
	lbPrefix    = "lb:"
	dupByPrefix = "dupby:"
	lbByPrefix  = "lbby:"
	dupSeqKey   = []byte("meta:seq:dup")
	lbSeqKey    = []byte("meta:seq:lb")
)

// LevelDBStore is an embedded RegistryStore. Every mutation runs inside a
// LevelDB transaction, which the engine allows only one of at a time.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) a LevelDB database at path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	log.Printf("🔌 Opening LevelDB registry at %s...", path)
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	log.Println("✅ LevelDB registry ready")
	return &LevelDBStore{db: db}, nil
}

func (l *LevelDBStore) Close() error {
	return l.db.Close()
}

func (l *LevelDBStore) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := l.db.GetProperty("leveldb.stats")
	return err
}

func entryKey(fp string) []byte {
	return []byte(entryPrefix + fp)
}

func dupKey(fp string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", dupPrefix, fp, seq))
}

func lbKey(seed string, id int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", lbPrefix, seed, id))
}

// Fingerprints are fixed-length hex, so the submitter suffix cannot collide.
func dupByKey(fp, submitterID string) []byte {
	return []byte(dupByPrefix + fp + ":" + submitterID)
}

func lbByKey(fp, submitterID string) []byte {
	return []byte(lbByPrefix + fp + ":" + submitterID)
}

// reader is the read side shared by *leveldb.DB and *leveldb.Transaction.
type reader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
}

func getJSON(r reader, key []byte, v any) error {
	data, err := r.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func nextSeq(tr *leveldb.Transaction, key []byte) (uint64, error) {
	var seq uint64
	data, err := tr.Get(key, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		return 0, err
	default:
		seq = binary.BigEndian.Uint64(data)
	}
	seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	if err := tr.Put(key, buf, nil); err != nil {
		return 0, err
	}
	return seq, nil
}

// update runs fn in a transaction and commits when it returns nil.
func (l *LevelDBStore) update(ctx context.Context, fn func(tr *leveldb.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tr, err := l.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("open transaction: %w", err)
	}
	if err := fn(tr); err != nil {
		tr.Discard()
		return err
	}
	if err := tr.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (l *LevelDBStore) ClaimFingerprint(ctx context.Context, entry RegistryEntry) (*RegistryEntry, bool, error) {
	var (
		stored   RegistryEntry
		inserted bool
	)
	err := l.update(ctx, func(tr *leveldb.Transaction) error {
		err := getJSON(tr, entryKey(entry.Fingerprint), &stored)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		stored = entry
		stored.DuplicateCount = 0
		stored.Flags = EntryFlags{}
		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		inserted = true
		return tr.Put(entryKey(entry.Fingerprint), data, nil)
	})
	if err != nil {
		return nil, false, fmt.Errorf("claim fingerprint: %w", err)
	}
	return &stored, inserted, nil
}

func (l *LevelDBStore) GetRegistryEntry(ctx context.Context, fingerprint string) (*RegistryEntry, error) {
	var entry RegistryEntry
	if err := getJSON(l.db, entryKey(fingerprint), &entry); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registry entry: %w", err)
	}
	return &entry, nil
}

func (l *LevelDBStore) RecordDuplicate(ctx context.Context, rec DuplicateRecord) (int, bool, error) {
	var (
		count    int
		recorded bool
	)
	err := l.update(ctx, func(tr *leveldb.Transaction) error {
		var entry RegistryEntry
		if err := getJSON(tr, entryKey(rec.Fingerprint), &entry); err != nil {
			return err
		}
		count = entry.DuplicateCount

		if !rec.IsSelfDuplicate {
			marker := dupByKey(rec.Fingerprint, rec.SubmitterID)
			seen, err := tr.Has(marker, nil)
			if err != nil {
				return err
			}
			if seen {
				return nil
			}
			if err := tr.Put(marker, nil, nil); err != nil {
				return err
			}
		}

		seq, err := nextSeq(tr, dupSeqKey)
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := tr.Put(dupKey(rec.Fingerprint, seq), data, nil); err != nil {
			return err
		}
		if !rec.IsSelfDuplicate {
			entry.DuplicateCount++
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if err := tr.Put(entryKey(rec.Fingerprint), data, nil); err != nil {
				return err
			}
		}
		count = entry.DuplicateCount
		recorded = true
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("record duplicate: %w", err)
	}
	return count, recorded, nil
}

func (l *LevelDBStore) CountRecentDuplicates(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	iter := l.db.NewIterator(util.BytesPrefix([]byte(dupPrefix+fingerprint+":")), nil)
	defer iter.Release()

	count := 0
	for iter.Next() {
		var rec DuplicateRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return 0, fmt.Errorf("decode duplicate record: %w", err)
		}
		if !rec.IsSelfDuplicate && rec.SubmittedAt.After(since) {
			count++
		}
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("count recent duplicates: %w", err)
	}
	return count, nil
}

func (l *LevelDBStore) FlagRapidDuplicate(ctx context.Context, fingerprint string, at time.Time) (bool, error) {
	var flagged bool
	err := l.update(ctx, func(tr *leveldb.Transaction) error {
		var entry RegistryEntry
		if err := getJSON(tr, entryKey(fingerprint), &entry); err != nil {
			return err
		}
		if entry.Flags.RapidDuplicate {
			return nil
		}
		flaggedAt := at.UTC()
		entry.Flags = EntryFlags{RapidDuplicate: true, FlaggedAt: &flaggedAt}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		flagged = true
		return tr.Put(entryKey(fingerprint), data, nil)
	})
	if errors.Is(err, ErrNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("flag rapid duplicate: %w", err)
	}
	return flagged, nil
}

func (l *LevelDBStore) InsertLeaderboardRecord(ctx context.Context, rec *LeaderboardRecord) error {
	err := l.update(ctx, func(tr *leveldb.Transaction) error {
		byKey := lbByKey(rec.Fingerprint, rec.SubmitterID)
		exists, err := tr.Has(byKey, nil)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyExists
		}

		seq, err := nextSeq(tr, lbSeqKey)
		if err != nil {
			return err
		}
		rec.ID = int64(seq)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := tr.Put(lbKey(rec.Seed, rec.ID), data, nil); err != nil {
			return err
		}
		return tr.Put(byKey, lbKey(rec.Seed, rec.ID), nil)
	})
	if errors.Is(err, ErrAlreadyExists) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert leaderboard entry: %w", err)
	}
	return nil
}

func (l *LevelDBStore) GetLeaderboard(ctx context.Context, q LeaderboardQuery) ([]*LeaderboardRecord, error) {
	prefix := lbPrefix
	if q.Seed != "" {
		prefix += q.Seed + ":"
	}
	iter := l.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	counts := make(map[string]int)
	var records []*LeaderboardRecord
	for iter.Next() {
		var rec LeaderboardRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode leaderboard entry: %w", err)
		}
		if q.Seed != "" && rec.Seed != q.Seed {
			continue
		}
		if q.OriginalsOnly && rec.IsDuplicateHash {
			continue
		}
		count, ok := counts[rec.Fingerprint]
		if !ok {
			if entry, err := l.GetRegistryEntry(ctx, rec.Fingerprint); err == nil {
				count = entry.DuplicateCount
			}
			counts[rec.Fingerprint] = count
		}
		rec.DuplicateCount = count
		records = append(records, &rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	return rankRecords(records, q.Limit), nil
}

var _ RegistryStore = (*LevelDBStore)(nil)
