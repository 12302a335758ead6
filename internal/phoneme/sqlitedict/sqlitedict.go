// Package sqlitedict stores a pronunciation dictionary in a SQLite file so the
// full CMU corpus can be queried without loading it into memory.
//
// The database is built once with [Create] and [Dictionary.Import] (see the
// "dict import" CLI command) and opened read-mostly with [Open].
package sqlitedict

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sayright/sayright/internal/phoneme"
)

const schema = `
CREATE TABLE IF NOT EXISTS pronunciations (
	word     TEXT    NOT NULL,
	variant  INTEGER NOT NULL,
	phonemes TEXT    NOT NULL,
	PRIMARY KEY (word, variant)
);`

// Dictionary is a SQLite-backed [phoneme.Dictionary]. It is safe for
// concurrent use; database/sql pools connections internally.
type Dictionary struct {
	db   *sql.DB
	path string
}

var _ phoneme.Dictionary = (*Dictionary)(nil)

// Open opens an existing dictionary database at path. A missing file is
// reported as [phoneme.ErrUnavailable] instead of silently creating an empty
// database.
func Open(path string) (*Dictionary, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", phoneme.ErrUnavailable, err)
	}
	return open(path)
}

// Create opens path, creating the file and schema when they do not exist.
func Create(path string) (*Dictionary, error) {
	d, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := d.db.Exec(schema); err != nil {
		d.db.Close()
		return nil, fmt.Errorf("sqlitedict: create schema: %w", err)
	}
	return d, nil
}

func open(path string) (*Dictionary, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %w", phoneme.ErrUnavailable, path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %q: %w", phoneme.ErrUnavailable, path, err)
	}
	return &Dictionary{db: db, path: path}, nil
}

// Lookup implements [phoneme.Dictionary].
func (d *Dictionary) Lookup(ctx context.Context, word string) ([]phoneme.Sequence, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT phonemes FROM pronunciations WHERE word = ? ORDER BY variant`,
		phoneme.Normalize(word))
	if err != nil {
		return nil, fmt.Errorf("%w: query %q: %w", phoneme.ErrUnavailable, word, err)
	}
	defer rows.Close()

	var out []phoneme.Sequence
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", phoneme.ErrUnavailable, err)
		}
		out = append(out, phoneme.Sequence(strings.Fields(raw)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", phoneme.ErrUnavailable, err)
	}
	if len(out) == 0 {
		return nil, phoneme.ErrLookupMiss
	}
	return out, nil
}

// Import writes every entry of src into the database in a single transaction,
// replacing existing rows for the same word and variant. It returns the
// number of pronunciations written.
func (d *Dictionary) Import(ctx context.Context, src *phoneme.Memory) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlitedict: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO pronunciations (word, variant, phonemes) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("sqlitedict: prepare: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, w := range src.Words() {
		seqs, err := src.Lookup(ctx, w)
		if errors.Is(err, phoneme.ErrLookupMiss) {
			continue
		}
		if err != nil {
			return n, err
		}
		for i, seq := range seqs {
			if _, err := stmt.ExecContext(ctx, w, i, seq.String()); err != nil {
				return n, fmt.Errorf("sqlitedict: insert %q: %w", w, err)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("sqlitedict: commit: %w", err)
	}
	return n, nil
}

// Count returns the number of distinct words stored.
func (d *Dictionary) Count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT word) FROM pronunciations`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitedict: count: %w", err)
	}
	return n, nil
}

// Path returns the database file path.
func (d *Dictionary) Path() string { return d.path }

// Close releases the database handle.
func (d *Dictionary) Close() error {
	return d.db.Close()
}
