// Package symindex keeps a SQLite index over a directory of symbol maps so
// obfuscated names can be looked up without scanning every map.
package symindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/morozRed/maplink/internal/symbolmap"
)

// DBFile is created inside the indexed directory.
const DBFile = ".maplink-symbols.db"

const defaultLimit = 50

// Entry is one indexed symbol.
type Entry struct {
	StrongName     string `json:"strong_name"`
	PermutationID  int    `json:"permutation_id"`
	SymbolName     string `json:"symbol_name"`
	JsniIdent      string `json:"jsni_ident,omitempty"`
	ClassName      string `json:"class_name"`
	MemberName     string `json:"member_name,omitempty"`
	SourceURI      string `json:"source_uri,omitempty"`
	SourceLine     int    `json:"source_line"`
	FragmentNumber int    `json:"fragment_number"`
	Properties     string `json:"properties,omitempty"`
}

// Stats describes a rebuild.
type Stats struct {
	Maps    int `json:"maps"`
	Symbols int `json:"symbols"`
	Skipped int `json:"skipped"`
}

// Index is an open symbol index.
type Index struct {
	db *sql.DB
}

// Query narrows a lookup.
type Query struct {
	StrongName string
	Limit      int
}

func dbPath(dir string) string {
	return filepath.Join(dir, DBFile)
}

// IsStale reports whether the index is missing or older than any symbol map
// below dir.
func IsStale(dir string) bool {
	info, err := os.Stat(dbPath(dir))
	if err != nil {
		return true
	}
	indexMtime := info.ModTime()

	stale := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || stale {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), symbolmap.Suffix) {
			return nil
		}
		fInfo, err := d.Info()
		if err == nil && fInfo.ModTime().After(indexMtime) {
			stale = true
			return filepath.SkipAll
		}
		return nil
	})
	return stale
}

// Open returns the index for dir, rebuilding it first when it is stale or
// rebuild is set.
func Open(ctx context.Context, dir string, rebuild bool, logger *slog.Logger) (*Index, Stats, error) {
	if rebuild || IsStale(dir) {
		return Rebuild(ctx, dir, logger)
	}
	db, err := sql.Open("sqlite", dbPath(dir))
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open db: %w", err)
	}
	return &Index{db: db}, Stats{}, nil
}

// Rebuild drops and recreates the index from every symbol map below dir.
// Maps that fail to parse are logged and skipped.
func Rebuild(ctx context.Context, dir string, logger *slog.Logger) (*Index, Stats, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var stats Stats

	if err := os.Remove(dbPath(dir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, stats, fmt.Errorf("remove old index: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath(dir))
	if err != nil {
		return nil, stats, fmt.Errorf("open db: %w", err)
	}

	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, stats, err
	}

	paths, err := findSymbolMaps(dir)
	if err != nil {
		db.Close()
		return nil, stats, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, stats, err
	}
	permStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO permutations (strong_name, permutation_id, properties) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, stats, err
	}
	defer permStmt.Close()
	symStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols
		(strong_name, symbol_name, jsni_ident, class_name, member_name, source_uri, source_line, fragment_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, stats, err
	}
	defer symStmt.Close()

	for _, path := range paths {
		doc, err := parseFile(path)
		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable symbol map", "path", path, "error", err)
			stats.Skipped++
			continue
		}
		strongName := strings.TrimSuffix(filepath.Base(path), symbolmap.Suffix)

		props := make([]string, 0, len(doc.PropertyMaps))
		for _, m := range doc.PropertyMaps {
			props = append(props, "{ "+symbolmap.PropertyMapString(m)+" }")
		}
		if _, err := permStmt.ExecContext(ctx, strongName, doc.PermutationID, strings.Join(props, "\n")); err != nil {
			tx.Rollback()
			db.Close()
			return nil, stats, fmt.Errorf("index %s: %w", path, err)
		}

		for _, sym := range doc.Symbols {
			if _, err := symStmt.ExecContext(ctx, strongName, sym.SymbolName, sym.JsniIdent, sym.ClassName,
				sym.MemberName, sym.SourceURI, sym.SourceLine, sym.FragmentNumber); err != nil {
				tx.Rollback()
				db.Close()
				return nil, stats, fmt.Errorf("index %s: %w", path, err)
			}
		}
		stats.Maps++
		stats.Symbols += len(doc.Symbols)
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, stats, err
	}
	logger.DebugContext(ctx, "rebuilt symbol index", "maps", stats.Maps, "symbols", stats.Symbols)
	return &Index{db: db}, stats, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{
		`CREATE TABLE permutations (
			strong_name TEXT PRIMARY KEY,
			permutation_id INTEGER NOT NULL,
			properties TEXT
		)`,
		`CREATE TABLE symbols (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strong_name TEXT NOT NULL,
			symbol_name TEXT NOT NULL,
			jsni_ident TEXT,
			class_name TEXT,
			member_name TEXT,
			source_uri TEXT,
			source_line INTEGER,
			fragment_number INTEGER
		)`,
		"CREATE INDEX idx_symbol_name ON symbols(symbol_name)",
		"CREATE INDEX idx_strong_name ON symbols(strong_name)",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func findSymbolMaps(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), symbolmap.Suffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func parseFile(path string) (*symbolmap.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return symbolmap.Parse(f)
}

// Lookup returns the symbols whose obfuscated name is jsName, in strong
// name then insertion order.
func (ix *Index) Lookup(ctx context.Context, jsName string, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `
		SELECT s.strong_name, COALESCE(p.permutation_id, -1), s.symbol_name, s.jsni_ident,
		       s.class_name, s.member_name, s.source_uri, s.source_line, s.fragment_number,
		       COALESCE(p.properties, '')
		FROM symbols s
		LEFT JOIN permutations p ON p.strong_name = s.strong_name
		WHERE s.symbol_name = ?`
	args := []any{jsName}
	if q.StrongName != "" {
		query += " AND s.strong_name = ?"
		args = append(args, q.StrongName)
	}
	query += " ORDER BY s.strong_name, s.id LIMIT ?"
	args = append(args, limit)

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", jsName, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.StrongName, &e.PermutationID, &e.SymbolName, &e.JsniIdent,
			&e.ClassName, &e.MemberName, &e.SourceURI, &e.SourceLine, &e.FragmentNumber,
			&e.Properties); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of indexed symbols.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols").Scan(&n)
	return n, err
}

func (ix *Index) Close() error {
	return ix.db.Close()
}
