//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	migfs "wellcoach/migrations"
)

var migFileRe = regexp.MustCompile(`^(\d+)_.+\.sql$`)

type migration struct {
	version int
	name    string
}

func listMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var files []migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := migFileRe.FindStringSubmatch(e.Name())
		if len(m) == 0 {
			continue
		}
		v := 0
		fmt.Sscanf(m[1], "%d", &v)
		files = append(files, migration{version: v, name: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at TEXT NOT NULL)`); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_info (id INTEGER PRIMARY KEY CHECK(id=1), schema_version INTEGER NOT NULL, min_supported_schema INTEGER NOT NULL DEFAULT 1, app_version TEXT NOT NULL, applied_at TEXT NOT NULL)`); err != nil {
		return err
	}

	files, err := listMigrations(migfs.Files)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, f := range files {
		if applied[f.version] {
			continue
		}
		b, err := fs.ReadFile(migfs.Files, f.name)
		if err != nil {
			return err
		}
		stmt := strings.TrimSpace(string(b))
		if stmt == "" {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", f.name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name, applied_at) VALUES(?, ?, ?)`, f.version, f.name, now); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	var latest int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version),0) FROM schema_migrations`).Scan(&latest); err != nil {
		return err
	}
	appVersion := os.Getenv("APP_VERSION")
	if appVersion == "" {
		appVersion = "dev"
	}
	_, err = db.ExecContext(ctx, `INSERT INTO schema_info(id, schema_version, min_supported_schema, app_version, applied_at)
		VALUES(1, ?, COALESCE((SELECT min_supported_schema FROM schema_info WHERE id=1),1), ?, ?)
		ON CONFLICT(id) DO UPDATE SET schema_version=excluded.schema_version, app_version=excluded.app_version, applied_at=excluded.applied_at`,
		latest, appVersion, now)
	return err
}

// Status summarises the migration state of the database at dsn without
// applying anything.
func Status(dsn string) (string, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var latest, count int
	_ = db.QueryRow(`SELECT COALESCE(MAX(version),0), COUNT(1) FROM schema_migrations`).Scan(&latest, &count)
	var schemaVersion, minSupported int
	var appVersion, appliedAt string
	_ = db.QueryRow(`SELECT schema_version, min_supported_schema, app_version, applied_at FROM schema_info WHERE id=1`).Scan(&schemaVersion, &minSupported, &appVersion, &appliedAt)

	files, err := listMigrations(migfs.Files)
	if err != nil {
		return "", err
	}
	available := 0
	if len(files) > 0 {
		available = files[len(files)-1].version
	}
	return fmt.Sprintf("schema_version=%d applied=%d latest=%d available=%d app_version=%s applied_at=%s min_supported=%d",
		schemaVersion, count, latest, available, appVersion, appliedAt, minSupported), nil
}
