// Package sqliteschema applies embedded, idempotent SQLite DDL.
//
// Schema files are plain CREATE ... IF NOT EXISTS statements; there is no
// version table and no down path. Files run in filename order every time a
// store opens.
package sqliteschema

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Apply executes every .sql file under root in filename order.
//
// Each {{key}} token in a file is replaced with params[key] before execution,
// which lets one embedded file serve stores configured with different table
// names. Values are substituted verbatim; callers quote identifiers.
func Apply(ctx context.Context, sqlDB *sql.DB, schemaFS fs.FS, root string, params map[string]string) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}
	if schemaFS == nil {
		return fmt.Errorf("schema fs is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}

	entries, err := fs.ReadDir(schemaFS, root)
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	replacer := newReplacer(params)
	for _, file := range sqlFiles {
		content, err := fs.ReadFile(schemaFS, path.Join(root, file))
		if err != nil {
			return fmt.Errorf("read schema %s: %w", file, err)
		}
		ddl := strings.TrimSpace(replacer.Replace(string(content)))
		if ddl == "" {
			continue
		}
		if _, err := sqlDB.ExecContext(ctx, ddl); err != nil {
			if IsAlreadyExistsError(err) {
				continue
			}
			return fmt.Errorf("exec schema %s: %w", file, err)
		}
	}
	return nil
}

// IsAlreadyExistsError reports whether this error indicates idempotent DDL success.
func IsAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

// QuoteIdentifier returns name as a double-quoted SQLite identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func newReplacer(params map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, "{{"+key+"}}", params[key])
	}
	return strings.NewReplacer(pairs...)
}
