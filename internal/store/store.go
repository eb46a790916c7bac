package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory log, used by scenario runs.
const MemoryPath = ":memory:"

// migration upgrades a database whose user_version is below version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order on Open. Their statements must be idempotent:
// schema.sql may already have created what they add.
var migrations = []migration{
	{1, "index actions by outcome", `CREATE INDEX IF NOT EXISTS idx_actions_outcome ON actions(outcome, seq)`},
	{2, "index actions by name", `CREATE INDEX IF NOT EXISTS idx_actions_action ON actions(action, seq)`},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

// pragma is a connection setting and the value SQLite reports back for it.
type pragma struct {
	name, set, want string
}

var filePragmas = []pragma{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// Store is the durable action log and the latest snapshot of every
// campaign.
type Store struct {
	db *sql.DB
}

// Open creates or opens the log at path, or an in-memory log for
// MemoryPath. Pragmas, schema and migrations are applied on every open.
//
// The log has a single writer (the engine), so the pool holds exactly one
// connection. That also keeps an in-memory database alive between calls.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := filePragmas
	if path == MemoryPath {
		// WAL does not apply to memory databases.
		pragmas = filePragmas[1:]
	}
	if err := applyPragmas(db, pragmas); err != nil {
		db.Close()
		return nil, err
	}
	version, err := applySchema(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("store opened", "path", path, "schema_version", version)
	return &Store{db: db}, nil
}

// Close closes the database connection. A second call is harmless.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for read-only reporting queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SchemaVersion returns the database's user_version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return schemaVersion(ctx, s.db)
}

func applyPragmas(db *sql.DB, pragmas []pragma) error {
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.set)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	return nil
}

// applySchema creates missing tables, then runs every migration newer than
// the stored user_version, each in its own transaction.
func applySchema(db *sql.DB) (int, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return 0, fmt.Errorf("failed to apply schema: %w", err)
	}

	ctx := context.Background()
	version, err := schemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := runMigration(ctx, db, m); err != nil {
			return 0, err
		}
		slog.Debug("store migrated", "version", m.version, "migration", m.name)
		version = m.version
	}
	return version, nil
}

func runMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate to v%d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
		return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("migrate to v%d: set user_version: %w", m.version, err)
	}
	return tx.Commit()
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// readPragma returns a pragma's current value as SQLite reports it.
func (s *Store) readPragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
