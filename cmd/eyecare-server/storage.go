package main

import (
	"context"
	"fmt"

	"github.com/eyecare/eyecare/internal/config"
	"github.com/eyecare/eyecare/internal/domain/examination"
	"github.com/eyecare/eyecare/internal/platform/db"
)

// storage bundles the examination repository of the configured driver with
// its health checker and migrator.
type storage struct {
	repo     examination.Repository
	health   db.Checker
	migrator *db.Migrator
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		fsys, err := db.Migrations(db.DriverPostgres)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &storage{
			repo:     examination.NewRepoPG(pool),
			health:   db.PgxChecker(pool),
			migrator: db.NewMigrator(pool, fsys),
			close:    pool.Close,
		}, nil
	case config.StorageSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		fsys, err := db.Migrations(db.DriverSQLite)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		return &storage{
			repo:     examination.NewRepoSQLite(sqlDB),
			health:   db.SQLChecker(sqlDB),
			migrator: db.NewSQLiteMigrator(sqlDB, fsys),
			close:    func() { sqlDB.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}
