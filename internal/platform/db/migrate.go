package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one numbered SQL file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationStatus is a migration plus whether the schema has it.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Migrator applies numbered SQL files to one schema at a time. The files come
// from an fs.FS: the embedded set in production, os.DirFS from the CLI.
type Migrator struct {
	pool  *pgxpool.Pool
	files fs.FS
}

func NewMigrator(pool *pgxpool.Pool, files fs.FS) *Migrator {
	return &Migrator{pool: pool, files: files}
}

// migrationVersion extracts N from "N_name.sql". ok is false for anything else.
func migrationVersion(name string) (version int, ok bool) {
	if path.Ext(name) != ".sql" {
		return 0, false
	}
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// LoadMigrations returns the top-level migration files ordered by version.
// Unnumbered files are ignored and a repeated version is an error.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]Migration, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, ok := migrationVersion(entry.Name())
		if !ok {
			continue
		}
		if prev, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev.Name, entry.Name())
		}
		body, err := fs.ReadFile(m.files, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		byVersion[version] = Migration{Version: version, Name: entry.Name(), SQL: string(body)}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		out = append(out, mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// session holds one pooled connection for the duration of a migration run so
// the advisory lock and the search_path stay on the same backend.
type session struct {
	conn   *pgxpool.Conn
	schema string
}

func (m *Migrator) open(ctx context.Context, schema string) (*session, error) {
	if !tenantIDPattern.MatchString(schema) {
		return nil, fmt.Errorf("invalid schema name: %s", schema)
	}
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	s := &session{conn: conn, schema: schema}

	// Two replicas starting together must not race on the same schema.
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock(hashtext($1))", schema); err != nil {
		conn.Release()
		return nil, fmt.Errorf("lock %s: %w", schema, err)
	}
	ddl := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %[1]s;
CREATE TABLE IF NOT EXISTS %[1]s._migrations (
    version    INTEGER PRIMARY KEY,
    name       VARCHAR(255) NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, schema)
	if _, err := conn.Exec(ctx, ddl); err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("prepare _migrations in %s: %w", schema, err)
	}
	return s, nil
}

func (s *session) close(ctx context.Context) {
	_, _ = s.conn.Exec(ctx, "SELECT pg_advisory_unlock(hashtext($1))", s.schema)
	s.conn.Release()
}

func (s *session) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := s.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s._migrations", s.schema))
	if err != nil {
		return nil, fmt.Errorf("read _migrations in %s: %w", s.schema, err)
	}
	defer rows.Close()

	done := make(map[int]time.Time)
	for rows.Next() {
		var v int
		var at time.Time
		if err := rows.Scan(&v, &at); err != nil {
			return nil, err
		}
		done[v] = at
	}
	return done, rows.Err()
}

func (s *session) apply(ctx context.Context, mig Migration) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL search_path TO %s, public", s.schema)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "INSERT INTO _migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Up applies every pending migration to schema.
func (m *Migrator) Up(ctx context.Context, schema string) (int, error) {
	return m.UpTo(ctx, schema, 0)
}

// UpTo applies pending migrations whose version is at most target; 0 means
// no limit. Each file commits on its own, so a failure leaves earlier files
// applied and reports how many went in.
func (m *Migrator) UpTo(ctx context.Context, schema string, target int) (int, error) {
	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}

	s, err := m.open(ctx, schema)
	if err != nil {
		return 0, err
	}
	defer s.close(ctx)

	done, err := s.applied(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, mig := range migrations {
		if target > 0 && mig.Version > target {
			break
		}
		if _, ok := done[mig.Version]; ok {
			continue
		}
		if err := s.apply(ctx, mig); err != nil {
			return n, fmt.Errorf("migration %s on %s: %w", mig.Name, schema, err)
		}
		n++
	}
	return n, nil
}

// Status lists every known migration and when, if ever, schema received it.
func (m *Migrator) Status(ctx context.Context, schema string) ([]MigrationStatus, error) {
	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}

	s, err := m.open(ctx, schema)
	if err != nil {
		return nil, err
	}
	defer s.close(ctx)

	done, err := s.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, len(migrations))
	for i, mig := range migrations {
		out[i] = MigrationStatus{Version: mig.Version, Name: mig.Name}
		if at, ok := done[mig.Version]; ok {
			out[i].Applied = true
			out[i].AppliedAt = &at
		}
	}
	return out, nil
}
