package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"
)

// ErrNoDownSQL is returned by MigrateDown when the latest applied
// migration has no .down.sql file.
var ErrNoDownSQL = errors.New("database: migration has no down script")

// Migration is one schema change. Files are named
// YYYYMMDD_HHMMSS_name.up.sql with an optional .down.sql partner.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

const schemaTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL
)`

// Migrate applies every migration in fsys that has not been applied yet,
// oldest first, each in its own transaction. A nil fsys is a no-op.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) error {
	pending, err := LoadMigrations(fsys)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	done, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if done[m.Version] {
			continue
		}
		stamp := time.Now().UTC().Format(time.RFC3339)
		if err := db.runScript(ctx, m.Up,
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, stamp,
		); err != nil {
			return fmt.Errorf("migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the newest applied migration. With nothing applied
// it does nothing.
func (db *DB) MigrateDown(ctx context.Context, fsys fs.FS) error {
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	var latest string
	if err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), '') FROM schema_migrations",
	).Scan(&latest); err != nil {
		return fmt.Errorf("reading schema_migrations: %w", err)
	}
	if latest == "" {
		return nil
	}

	all, err := LoadMigrations(fsys)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(all, func(m Migration) bool { return m.Version == latest })
	switch {
	case i < 0:
		return fmt.Errorf("migration %s: no files found", latest)
	case all[i].Down == "":
		return fmt.Errorf("migration %s: %w", latest, ErrNoDownSQL)
	}
	return db.runScript(ctx, all[i].Down, "DELETE FROM schema_migrations WHERE version = ?", latest)
}

func (db *DB) runScript(ctx context.Context, script, record string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		seen[v] = true
	}
	return seen, rows.Err()
}

// LoadMigrations reads the migrations at the root of fsys sorted by
// version. Files that do not follow the naming scheme are ignored.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(ups))
	for _, file := range ups {
		version, name, ok := splitMigrationName(strings.TrimSuffix(file, ".up.sql"))
		if !ok {
			continue
		}
		up, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		m := Migration{Version: version, Name: name, Up: string(up)}

		down, err := fs.ReadFile(fsys, strings.TrimSuffix(file, ".up.sql")+".down.sql")
		switch {
		case err == nil:
			m.Down = string(down)
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("reading down script for %s: %w", file, err)
		}
		out = append(out, m)
	}

	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// splitMigrationName splits "20261017_090000_telemetry_history" into its
// version and name. A bare version is its own name.
func splitMigrationName(base string) (version, name string, ok bool) {
	date, rest, found := strings.Cut(base, "_")
	if !found || len(date) != 8 || !digits(date) {
		return "", "", false
	}
	clock, name, _ := strings.Cut(rest, "_")
	if len(clock) != 6 || !digits(clock) {
		return "", "", false
	}
	version = date + "_" + clock
	if name == "" {
		name = version
	}
	return version, name, true
}

func digits(s string) bool {
	return strings.Trim(s, "0123456789") == ""
}
