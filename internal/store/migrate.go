package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "schema_migrations"

// Migrate brings the schema up to the newest NNNN_name.up.sql file in fsys.
// It reports the resulting version and whether any migration ran.
func (s *Store) Migrate(ctx context.Context, fsys fs.FS) (uint, bool, error) {
	if s == nil || s.pool == nil {
		return 0, false, fmt.Errorf("store not initialized")
	}

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return 0, false, fmt.Errorf("open migrations: %w", err)
	}
	// Connections are borrowed from the pool; closing db releases them.
	db := stdlib.OpenDBFromPool(s.pool)
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = src.Close()
		_ = db.Close()
		return 0, false, fmt.Errorf("init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return 0, false, fmt.Errorf("init migrator: %w", err)
	}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	applied := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return 0, false, fmt.Errorf("apply migrations: %w", err)
		}
		applied = false
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, applied, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, applied, fmt.Errorf("schema version %d is dirty", version)
	}
	if applied {
		s.logger.Info("applied migrations", "version", version)
	}
	return version, applied, nil
}
