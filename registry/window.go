package registry

import (
	"context"
	"time"

	"gameVerifyServer/db"
)

// DuplicateWindow counts non-self duplicates of a fingerprint in a trailing
// window. Observe is called after rec has been recorded and the count it
// returns includes rec.
type DuplicateWindow interface {
	Observe(ctx context.Context, rec db.DuplicateRecord) (int, error)
}

// StoreWindow counts the window from the store's duplicate records. It is
// used when no Redis window is configured.
type StoreWindow struct {
	store  db.RegistryStore
	window time.Duration
}

// NewStoreWindow creates a window of the given length over store.
func NewStoreWindow(store db.RegistryStore, window time.Duration) *StoreWindow {
	return &StoreWindow{store: store, window: window}
}

func (w *StoreWindow) Observe(ctx context.Context, rec db.DuplicateRecord) (int, error) {
	return w.store.CountRecentDuplicates(ctx, rec.Fingerprint, rec.SubmittedAt.Add(-w.window))
}

var (
	_ DuplicateWindow = (*StoreWindow)(nil)
	_ DuplicateWindow = (*db.RedisWindow)(nil)
)
