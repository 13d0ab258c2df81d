// package database provides sqlite and postgresql connection management.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialect identifies the SQL engine behind a DB.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Placeholder returns the bind parameter style of the dialect.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// DB wraps the sql connection pool and GORM instance.
type DB struct {
	SQL     *sql.DB
	GORM    *gorm.DB
	Dialect Dialect
}

// sqliteBusyTimeout keeps concurrent writers from failing fast with SQLITE_BUSY.
const sqliteBusyTimeout = "_pragma=busy_timeout(5000)"

// Open connects to the database described by dsn. postgres:// and
// postgresql:// URLs select PostgreSQL; anything else is a sqlite file path.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open database: empty dsn")
	}

	var (
		db  *DB
		err error
	)
	if isPostgresURL(dsn) {
		db, err = openPostgres(dsn)
	} else {
		db, err = openSQLite(dsn)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openSQLite(path string) (*DB, error) {
	dsn := path
	if !strings.Contains(dsn, "_pragma=busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + sqliteBusyTimeout
	}

	gormDB, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}

	return &DB{SQL: sqlDB, GORM: gormDB, Dialect: DialectSQLite}, nil
}

func openPostgres(databaseURL string) (*DB, error) {
	config, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	sqlDB := stdlib.OpenDB(*config)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	return &DB{SQL: sqlDB, GORM: gormDB, Dialect: DialectPostgres}, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.SQL.Close()
}

// Ping checks if the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}

// Builder returns a squirrel statement builder using the dialect's placeholders.
func (db *DB) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(db.Dialect.Placeholder())
}
