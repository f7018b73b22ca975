// Package database opens the trail database and keeps its schema current.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/info3g/hikstar-celery/internal/log"
	"github.com/info3g/hikstar-celery/pkg/config"
	"github.com/info3g/hikstar-celery/pkg/migrate"
)

//go:embed migrations
var migrationFS embed.FS

// MigrationTable tracks the applied schema version
const MigrationTable = "schema_migrations"

// Client holds the connection to the trail database
type Client struct {
	config config.StorageData
	DB     *gorm.DB // Exported so it can be accessed from other packages
	sqlDB  *sql.DB
	logger *zap.SugaredLogger
}

// NewClient creates a new database client
func NewClient(c config.StorageData, logger *zap.SugaredLogger) *Client {
	return &Client{
		config: c,
		logger: logger,
	}
}

// Connect opens the configured backend
func (c *Client) Connect() error {
	gormConfig := &gorm.Config{
		Logger: newGormLogger(),
	}

	var err error
	switch c.config.Backend {
	case config.BackendPostgres:
		c.logger.Info("connecting to PostgreSQL...")
		c.DB, err = gorm.Open(postgres.Open(c.config.Postgres.GetConnectionString()), gormConfig)
		if err != nil {
			return fmt.Errorf("unable to create a PostgreSQL connection: %w", err)
		}
		c.sqlDB, err = c.DB.DB()
		if err != nil {
			return err
		}
		c.sqlDB.SetMaxOpenConns(c.config.MaxOpenConns)
	case config.BackendSQLite:
		if c.config.SQLite == nil {
			return fmt.Errorf("sqlite backend selected without a path")
		}
		c.logger.Infof("opening SQLite database %s...", c.config.SQLite.Path)
		c.sqlDB, err = OpenSQLite(c.config.SQLite.Path)
		if err != nil {
			return err
		}
		c.DB, err = gorm.Open(sqlite.Dialector{DriverName: "sqlite", Conn: c.sqlDB}, gormConfig)
		if err != nil {
			c.sqlDB.Close()
			return fmt.Errorf("unable to open SQLite database: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.config.Backend)
	}

	c.logger.Infof("%s connection successful", c.config.Backend)
	return nil
}

// OpenSQLite opens a SQLite database with foreign keys enforced. SQLite allows a
// single writer, so the pool is limited to one connection, which also keeps an
// in-memory database alive and shared.
func OpenSQLite(path string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open SQLite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Backend returns the configured backend name
func (c *Client) Backend() string {
	return c.config.Backend
}

// Migrator returns a migrator bound to the embedded migrations for this backend
func (c *Client) Migrator() *migrate.Migrator {
	driver := migrate.DriverSQLite
	if c.config.Backend == config.BackendPostgres {
		driver = migrate.DriverPostgres
	}
	provider := migrate.NewFSProvider(migrationFS, "migrations/"+driver, MigrationTable, driver)
	return migrate.NewMigrator(c.sqlDB, provider, c.logger)
}

// Migrate brings the schema to the latest version
func (c *Client) Migrate() error {
	if err := c.Migrator().MigrateUp(); err != nil {
		return fmt.Errorf("migrating %s schema: %w", c.config.Backend, err)
	}
	return nil
}

// Ping checks that the database answers
func (c *Client) Ping(ctx context.Context) error {
	if c.sqlDB == nil {
		return fmt.Errorf("database is not connected")
	}
	return c.sqlDB.PingContext(ctx)
}

// Close releases the connection pool
func (c *Client) Close() error {
	if c.sqlDB == nil {
		return nil
	}
	return c.sqlDB.Close()
}

func newGormLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true, // not-found is reported to callers as store.ErrNotFound
			Colorful:                  false,
		},
	)
}
