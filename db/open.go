package db

import (
	"context"
	"fmt"

	"gameVerifyServer/config"
)

// Open opens the RegistryStore selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (RegistryStore, error) {
	var (
		store RegistryStore
		err   error
	)
	switch cfg.StoreDriver {
	case "postgres":
		var pg *PostgresStore
		if pg, err = OpenPostgres(ctx, cfg.DatabaseURL); err == nil {
			store = pg
		}
	case "sqlite":
		var lite *SQLiteStore
		if lite, err = OpenSQLite(cfg.SQLitePath); err == nil {
			store = lite
		}
	case "leveldb":
		var ldb *LevelDBStore
		if ldb, err = OpenLevelDB(cfg.LevelDBPath); err == nil {
			store = ldb
		}
	case "memory":
		store = NewMemoryStore()
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
