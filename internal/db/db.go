package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	stdfs "io/fs"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath is used when Open is called with an empty path.
const DefaultPath = "cards.db"

// Open opens (or creates) the SQLite store holding the users and cards
// tables and brings its schema up to date. Migrations are versioned .sql
// files embedded from internal/db/migrations:
//
//	0001_name.up.sql / 0001_name.down.sql
//
// A script that starts with "-- NO_TX" runs outside a transaction.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		path = DefaultPath
	}
	d, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}
	if err := Migrate(context.Background(), d); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// DSN appends the connection settings go-sqlite3 applies to every pooled
// connection: foreign keys, busy timeout and, for file databases, WAL.
// Settings already present in path are left alone.
func DSN(path string) string {
	base, rawQuery, _ := strings.Cut(path, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		q = url.Values{}
	}
	set := func(k, v string) {
		if q.Get(k) == "" {
			q.Set(k, v)
		}
	}
	set("_foreign_keys", "on")
	set("_busy_timeout", "5000")
	// WAL is not available for in-memory databases.
	if !isMemory(base, q) {
		set("_journal_mode", "WAL")
	}
	return base + "?" + q.Encode()
}

func isMemory(base string, q url.Values) bool {
	return base == ":memory:" || strings.HasPrefix(base, "file::memory:") || q.Get("mode") == "memory"
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version  int
	name     string
	upFile   string
	downFile string
}

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.(up|down)\.sql$`)

func loadMigrations() (map[int]migration, error) {
	out := map[int]migration{}
	list, err := stdfs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, de := range list {
		if de.IsDir() {
			continue
		}
		m := migFileRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		ver, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		item := out[ver]
		item.version = ver
		item.name = m[2]
		if m[3] == "up" {
			item.upFile = "migrations/" + de.Name()
		} else {
			item.downFile = "migrations/" + de.Name()
		}
		out[ver] = item
	}
	return out, nil
}

func ensureMigrationsTable(ctx context.Context, d *sql.DB) error {
	_, err := d.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
    )`)
	return err
}

// AppliedVersions lists migration versions recorded in schema_migrations, ascending.
func AppliedVersions(ctx context.Context, d *sql.DB) ([]int, error) {
	if err := ensureMigrationsTable(ctx, d); err != nil {
		return nil, err
	}
	rows, err := d.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var got []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		got = append(got, v)
	}
	return got, rows.Err()
}

// Migrate applies every embedded up migration not yet recorded.
func Migrate(ctx context.Context, d *sql.DB) error {
	migs, err := loadMigrations()
	if err != nil {
		return err
	}
	applied, err := AppliedVersions(ctx, d)
	if err != nil {
		return err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	versions := make([]int, 0, len(migs))
	for v := range migs {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	for _, v := range versions {
		if done[v] {
			continue
		}
		m := migs[v]
		if m.upFile == "" {
			return fmt.Errorf("missing up migration for version %04d", v)
		}
		if err := runScript(ctx, d, m.upFile, `INSERT INTO schema_migrations(version) VALUES(?)`, v); err != nil {
			return fmt.Errorf("migration %04d_%s: %w", v, m.name, err)
		}
	}
	return nil
}

// RollbackLast reverts the most recently applied migration using its down script.
func RollbackLast(ctx context.Context, d *sql.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	applied, err := AppliedVersions(ctx, d)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	version := applied[len(applied)-1]
	migs, err := loadMigrations()
	if err != nil {
		return err
	}
	m, ok := migs[version]
	if !ok || m.downFile == "" {
		return fmt.Errorf("no down migration found for version %d", version)
	}
	return runScript(ctx, d, m.downFile, `DELETE FROM schema_migrations WHERE version = ?`, version)
}

// runScript executes an embedded script and the bookkeeping statement,
// inside one transaction unless the script opts out.
func runScript(ctx context.Context, d *sql.DB, file, record string, version int) error {
	raw, err := migrationsFS.ReadFile(file)
	if err != nil {
		return err
	}
	text := string(raw)
	if strings.HasPrefix(strings.TrimSpace(text), "-- NO_TX") {
		if _, err := d.ExecContext(ctx, text); err != nil {
			return err
		}
		_, err := d.ExecContext(ctx, record, version)
		return err
	}
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, text); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
