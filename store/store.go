package store

import (
	"database/sql"
	"fmt"

	"fleetnav/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DB records event history, task history, the messaging outbox and operator
// accounts. Nothing in it is read back into the simulation.
type DB struct {
	*sql.DB
	dialect dialect
}

// Open connects to cfg.Driver ("sqlite" or "postgres") and applies its schema.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	sqlDB, err := sql.Open(d.driver, d.dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if d.singleWriter {
		sqlDB.SetMaxOpenConns(1)
	}
	db := &DB{DB: sqlDB, dialect: d}
	if _, err := db.Exec(d.schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// Q adapts a query written with ? placeholders and the {{now}} token to the
// open backend.
func (db *DB) Q(query string) string { return db.dialect.rewrite(query) }
