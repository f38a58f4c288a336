package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// goose entry points, swapped out in tests.
var (
	gooseUpContext     = goose.UpContext
	gooseStatusContext = goose.StatusContext
	gooseDownContext   = goose.DownContext
	gooseDownToContext = goose.DownToContext
	gooseVersion       = goose.GetDBVersionContext
)

// Runner wraps database migration capabilities.
type Runner struct {
	pool *pgxpool.Pool
	db   *sql.DB
	fsys fs.FS
	log  *slog.Logger
}

// New returns a migration runner that applies the migrations found at the
// root of fsys over the given pool.
func New(pool *pgxpool.Pool, fsys fs.FS, log *slog.Logger) (Runner, error) {
	if pool == nil {
		return Runner{}, errors.New("nil pool provided")
	}
	r, err := newRunner(stdlib.OpenDBFromPool(pool), fsys, log)
	if err != nil {
		return Runner{}, err
	}
	r.pool = pool
	return r, nil
}

func newRunner(db *sql.DB, fsys fs.FS, log *slog.Logger) (Runner, error) {
	if fsys == nil {
		return Runner{}, errors.New("nil migrations filesystem")
	}
	if matches, err := fs.Glob(fsys, "*.sql"); err != nil || len(matches) == 0 {
		return Runner{}, fmt.Errorf("locate migrations: no sql files found")
	}
	if log == nil {
		log = slog.Default()
	}
	return Runner{db: db, fsys: fsys, log: log}, nil
}

// Ensure applies pending migrations.
func (r Runner) Ensure(ctx context.Context) error {
	return r.withGoose(func() error {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		r.log.Info("applying migrations")
		if err := gooseUpContext(runCtx, r.db, "."); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		r.log.Info("migrations applied")
		return nil
	})
}

// Status reports applied and pending migrations.
func (r Runner) Status(ctx context.Context) error {
	return r.withGoose(func() error {
		r.log.Info("migration status")
		if err := gooseStatusContext(ctx, r.db, "."); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
		return nil
	})
}

// Down rolls back migrations either to the previous version or a specific target version.
func (r Runner) Down(ctx context.Context, targetVersion int64) error {
	return r.withGoose(func() error {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		if targetVersion > 0 {
			r.log.Info("rolling back migrations", "target", targetVersion)
			if err := gooseDownToContext(runCtx, r.db, ".", targetVersion); err != nil {
				return fmt.Errorf("rollback to version %d: %w", targetVersion, err)
			}
		} else {
			r.log.Info("rolling back latest migration")
			if err := gooseDownContext(runCtx, r.db, "."); err != nil {
				return fmt.Errorf("rollback latest migration: %w", err)
			}
		}

		r.log.Info("rollback complete")
		return nil
	})
}

// Version returns the schema version currently applied.
func (r Runner) Version(ctx context.Context) (int64, error) {
	var version int64
	err := r.withGoose(func() error {
		v, err := gooseVersion(ctx, r.db)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// Ping ensures the database connection is alive.
func (r Runner) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close releases underlying connections.
func (r Runner) Close() {
	_ = r.db.Close()
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r Runner) withGoose(fn func() error) error {
	goose.SetBaseFS(r.fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}
	return fn()
}
