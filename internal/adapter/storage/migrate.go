package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rl1809/autoparts-inventory/internal/adapter/storage/migrations"
)

const migrationTable = "schema_migrations"

// Migrate applies the embedded schema for driver ("mysql" or "sqlite"). Each
// file runs at most once and is recorded in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	return applyMigrations(ctx, db, migrations.FS, driver)
}

func applyMigrations(ctx context.Context, db *sql.DB, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationTable+` (
			name       VARCHAR(255) NOT NULL PRIMARY KEY,
			applied_at BIGINT       NOT NULL
		)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var n int
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+migrationTable+` WHERE name = ?`, file,
		).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if n > 0 {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		// MySQL DDL commits implicitly, so statements run one by one rather
		// than inside a transaction.
		for _, stmt := range splitStatements(string(content)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("record migration %s: %w", file, err)
		}
	}
	return nil
}

func splitStatements(content string) []string {
	var out []string
	for _, stmt := range strings.Split(content, ";") {
		if hasSQL(stmt) {
			out = append(out, strings.TrimSpace(stmt))
		}
	}
	return out
}

// hasSQL reports whether stmt holds anything besides blank lines and "--" comments.
func hasSQL(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return true
		}
	}
	return false
}
