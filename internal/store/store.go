// Package store persists trails, trail sections, locations and activities.
// Every admin save runs in one transaction: the parent row is locked, each child
// collection is reconciled against the payload and the trail metrics are
// recomputed before commit.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a parent or referenced row does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference is returned when a payload points at a missing row
	ErrInvalidReference = errors.New("invalid reference")
	// ErrConflict is returned when a unique constraint rejects the write
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput is returned when a payload fails validation
	ErrInvalidInput = errors.New("invalid input")
)

// GeometryScheduler queues a route shape refresh for a trail. It is called
// after commit and must not block.
type GeometryScheduler interface {
	Schedule(trailID int64)
}

// DefaultWorkers bounds parallel per-trail recomputes
const DefaultWorkers = 4

// Store is the persistence layer of the engine
type Store struct {
	db       *gorm.DB
	logger   *zap.SugaredLogger
	geometry GeometryScheduler
	workers  int
}

// Option configures a Store
type Option func(*Store)

// WithGeometry schedules a geometry refresh after every committed trail save
func WithGeometry(g GeometryScheduler) Option {
	return func(s *Store) {
		s.geometry = g
	}
}

// WithWorkers sets how many trails RecomputeAll processes at once
func WithWorkers(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New creates a store on db
func New(db *gorm.DB, logger *zap.SugaredLogger, opts ...Option) *Store {
	s := &Store{
		db:      db,
		logger:  logger,
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// transaction runs fn in one database transaction and translates driver errors
func (s *Store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return translateError(s.db.WithContext(ctx).Transaction(fn))
}

// forUpdate locks the selected rows until the transaction ends. SQLite has no
// row locks; its single writer already serializes transactions.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// lockParent loads and locks the parent row identified by id into dest
func lockParent(tx *gorm.DB, dest interface{}, kind string, id int64) error {
	if err := forUpdate(tx).First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
		}
		return err
	}
	return nil
}

// translateError maps driver constraint errors onto the store's sentinel errors
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %w", ErrInvalidReference, err)
		case "23505": // unique_violation
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}

	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %w", ErrInvalidReference, err)
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "FOREIGN KEY"):
			return fmt.Errorf("%w: %w", ErrInvalidReference, err)
		case code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"):
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}

	return err
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
