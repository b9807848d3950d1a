package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assetbook/internal/config"
	"assetbook/internal/domain"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var (
	ErrNotAvailable           = domain.Conflict("booking overlaps an existing booking (including the required 1-hour buffer)")
	ErrConcurrentModification = domain.Conflict("booking was modified concurrently")
	ErrBookingNotFound        = domain.NotFound("booking not found")
	ErrAssetNotFound          = domain.NotFound("asset not found")
	ErrUserNotFound           = domain.NotFound("user not found")
	ErrLocationNotFound       = domain.NotFound("location not found")
	ErrCategoryNotFound       = domain.NotFound("category not found")
	ErrDuplicate              = domain.Validation("record already exists")
)

var (
	_ domain.BookingRepository = (*DB)(nil)
	_ domain.AssetRepository   = (*DB)(nil)
	_ domain.UserRepository    = (*DB)(nil)
)

type DB struct {
	*sqlx.DB
	driver  string
	path    string
	dialect goqu.DialectWrapper
	logger  *zerolog.Logger
}

// NewDB opens a sqlite database at path, creating the parent directory.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// _txlock=immediate берет блокировку записи на BEGIN
	dsn := path + "?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
	conn, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db, err := newDB(conn, DriverSQLite, logger)
	if err != nil {
		return nil, err
	}
	db.path = path

	logger.Info().Str("path", path).Msg("SQLite database initialized")
	return db, nil
}

// Open connects to the database configured in cfg.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	if cfg.Driver != DriverPostgres {
		return NewDB(cfg.Path, logger)
	}

	conn, err := sqlx.Open(DriverPostgres, cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(cfg.Postgres.MaxConnections)
	conn.SetMaxIdleConns(cfg.Postgres.MaxConnections / 2)
	conn.SetConnMaxLifetime(30 * time.Minute)

	db, err := newDB(conn, DriverPostgres, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("host", cfg.Postgres.Host).Str("dbname", cfg.Postgres.DBName).Msg("PostgreSQL database initialized")
	return db, nil
}

func newDB(conn *sqlx.DB, driver string, logger *zerolog.Logger) (*DB, error) {
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:      conn,
		driver:  driver,
		dialect: goqu.Dialect(driver),
		logger:  logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return db, nil
}

func (db *DB) Driver() string {
	return db.driver
}

// Path returns the sqlite file path, empty for postgres.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	types := strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "DATETIME",
	)
	if db.driver == DriverPostgres {
		types = strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{ts}}", "TIMESTAMPTZ",
		)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id {{pk}},
            username TEXT NOT NULL UNIQUE,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            first_name TEXT NOT NULL DEFAULT '',
            is_staff BOOLEAN NOT NULL DEFAULT FALSE,
            is_active BOOLEAN NOT NULL DEFAULT FALSE,
            email_verified_at {{ts}},
            created_at {{ts}} NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS locations (
            id {{pk}},
            name TEXT NOT NULL UNIQUE,
            description TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS categories (
            id {{pk}},
            name TEXT NOT NULL UNIQUE
        )`,
		`CREATE TABLE IF NOT EXISTS subcategories (
            id {{pk}},
            category_id BIGINT NOT NULL REFERENCES categories(id),
            name TEXT NOT NULL,
            UNIQUE (category_id, name)
        )`,
		`CREATE TABLE IF NOT EXISTS assets (
            id {{pk}},
            name TEXT NOT NULL,
            category_id BIGINT REFERENCES categories(id),
            subcategory_id BIGINT REFERENCES subcategories(id),
            description TEXT NOT NULL DEFAULT '',
            serial_number TEXT NOT NULL DEFAULT '',
            location_id BIGINT REFERENCES locations(id),
            available BOOLEAN NOT NULL DEFAULT TRUE,
            image TEXT NOT NULL DEFAULT '',
            details TEXT NOT NULL DEFAULT '',
            created_at {{ts}} NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id {{pk}},
            asset_id BIGINT NOT NULL REFERENCES assets(id),
            user_id BIGINT REFERENCES users(id),
            status TEXT NOT NULL DEFAULT 'pending',
            start_datetime {{ts}} NOT NULL,
            end_datetime {{ts}} NOT NULL,
            received_image TEXT NOT NULL DEFAULT '',
            received_at {{ts}},
            returned_image TEXT NOT NULL DEFAULT '',
            returned_at {{ts}},
            purpose TEXT NOT NULL DEFAULT '',
            contact_name TEXT NOT NULL DEFAULT '',
            contact_email TEXT NOT NULL DEFAULT '',
            contact_address TEXT NOT NULL DEFAULT '',
            contact_mobile TEXT NOT NULL DEFAULT '',
            contact_location_id BIGINT REFERENCES locations(id),
            cancellation_reason TEXT NOT NULL DEFAULT '',
            created_at {{ts}} NOT NULL,
            updated_at {{ts}} NOT NULL,
            version BIGINT NOT NULL DEFAULT 1,
            CHECK (start_datetime < end_datetime)
        )`,
		`CREATE TABLE IF NOT EXISTS location_history (
            id {{pk}},
            asset_id BIGINT NOT NULL REFERENCES assets(id),
            location_id BIGINT NOT NULL REFERENCES locations(id),
            timestamp {{ts}} NOT NULL,
            note TEXT NOT NULL DEFAULT ''
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_asset_window ON bookings(asset_id, start_datetime, end_datetime)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_category ON assets(category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_location_history_asset ON location_history(asset_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(types.Replace(query)); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// insertReturningID runs an INSERT ... RETURNING id inside q.
func (db *DB) insertReturningID(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := q.QueryRowxContext(ctx, db.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
		return 0, translateError(err)
	}
	return id, nil
}

// toSQL renders a goqu dataset with placeholders for the active dialect.
func toSQL(ds *goqu.SelectDataset) (string, []interface{}, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build query: %w", err)
	}
	return query, args, nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// utc normalizes timestamps before they reach storage so that
// sqlite text comparisons keep chronological order.
func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := utc(*t)
	return &v
}
