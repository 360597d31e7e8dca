package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL
	// _ "github.com/mattn/go-sqlite3" // más rápido pero requiere gcc
	_ "modernc.org/sqlite"

	"github.com/davicafu/scoreregistry/internal/shared/infra/platform/db/sqldb"
)

// Open abre la conexión con el driver que corresponde al dialecto.
func Open(d sqldb.Dialect, dsn string) (*sql.DB, error) {
	driver := "sqlite"
	if d.Name == sqldb.Postgres.Name {
		driver = "pgx"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if d.Name == sqldb.SQLite.Name {
		// SQLite no admite escritores concurrentes; ":memory:" además es por conexión
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// ------------------ Inicialización de DB ------------------

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS communities (
        id BIGINT PRIMARY KEY,
        account_id BIGINT NOT NULL,
        name TEXT NOT NULL,
        deleted_at TIMESTAMP WITH TIME ZONE NULL
    )`,
	`CREATE TABLE IF NOT EXISTS scores (
        id BIGSERIAL PRIMARY KEY,
        community_id BIGINT NOT NULL REFERENCES communities(id),
        address TEXT NOT NULL,
        score NUMERIC(18, 9) NOT NULL,
        status TEXT NOT NULL,
        last_score_timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
        evidence JSONB NULL,
        error TEXT NULL,
        UNIQUE (community_id, address)
    )`,
	`CREATE INDEX IF NOT EXISTS scores_community_ts_id ON scores (community_id, last_score_timestamp, id)`,
	`CREATE TABLE IF NOT EXISTS score_events (
        id BIGSERIAL PRIMARY KEY,
        community_id BIGINT NOT NULL REFERENCES communities(id),
        address TEXT NOT NULL,
        action TEXT NOT NULL,
        score NUMERIC(18, 9) NOT NULL,
        evidence JSONB NULL,
        created_at TIMESTAMP WITH TIME ZONE NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS score_events_community_created_id ON score_events (community_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS score_events_community_address_created ON score_events (community_id, address, created_at)`,
}

// En SQLite las fechas van como texto de ancho fijo (sqldb.TimeLayout) y el
// score como texto decimal para no perder precisión.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS communities (
        id INTEGER PRIMARY KEY,
        account_id INTEGER NOT NULL,
        name TEXT NOT NULL,
        deleted_at TEXT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS scores (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        community_id INTEGER NOT NULL REFERENCES communities(id),
        address TEXT NOT NULL,
        score TEXT NOT NULL,
        status TEXT NOT NULL,
        last_score_timestamp TEXT NOT NULL,
        evidence TEXT NULL,
        error TEXT NULL,
        UNIQUE (community_id, address)
    )`,
	`CREATE INDEX IF NOT EXISTS scores_community_ts_id ON scores (community_id, last_score_timestamp, id)`,
	`CREATE TABLE IF NOT EXISTS score_events (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        community_id INTEGER NOT NULL REFERENCES communities(id),
        address TEXT NOT NULL,
        action TEXT NOT NULL,
        score TEXT NOT NULL,
        evidence TEXT NULL,
        created_at TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS score_events_community_created_id ON score_events (community_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS score_events_community_address_created ON score_events (community_id, address, created_at)`,
}

// InitSchema crea las tablas de scores, histórico, comunidades y outbox.
func InitSchema(ctx context.Context, db *sql.DB, d sqldb.Dialect) error {
	stmts := sqliteSchema
	if d.Name == sqldb.Postgres.Name {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init %s schema: %w", d.Name, err)
		}
	}
	return sqldb.InitOutboxSchema(ctx, db, d)
}
