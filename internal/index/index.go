// Package index maintains a disposable SQLite query index over a record file.
//
// The record file stays the source of truth. The index is rebuilt from a
// loaded Table whenever the file's hash differs from the one recorded at the
// last rebuild.
package index

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matsen/pubreview/internal/records"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS publications (
		member_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		title TEXT,
		year TEXT,
		language TEXT,
		fields_json TEXT NOT NULL,
		PRIMARY KEY (member_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_publications_year ON publications(year);
	CREATE INDEX IF NOT EXISTS idx_publications_language ON publications(language);

	CREATE VIRTUAL TABLE IF NOT EXISTS publications_fts USING fts5(
		member_id UNINDEXED,
		position UNINDEXED,
		title
	);

	CREATE TABLE IF NOT EXISTS _meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);
`

// Record is one result row of an ad hoc query.
type Record map[string]any

// Hit is one full-text search match.
type Hit struct {
	MemberID string `json:"member_id"`
	Position int    `json:"position"`
	Title    string `json:"title"`
}

// Index wraps the SQLite database.
type Index struct {
	path string
	db   *sql.DB
}

// Open opens or creates the index at path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Index{path: path, db: db}, nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Path returns the database file path.
func (ix *Index) Path() string {
	return ix.path
}

// ComputeFileHash computes a SHA256 hash of a file's contents.
// A missing file hashes like an empty one.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256([]byte{})
			return hex.EncodeToString(h[:]), nil
		}
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// NeedsSync returns true if the index was built from different file contents.
func (ix *Index) NeedsSync(sourcePath string) (bool, error) {
	current, err := ComputeFileHash(sourcePath)
	if err != nil {
		return true, err
	}
	stored, err := ix.meta("source_hash")
	if err != nil {
		return true, err
	}
	return current != stored, nil
}

// Rebuild replaces the index contents with the rows of t and records the
// hash of sourcePath. Returns the number of rows indexed.
func (ix *Index) Rebuild(t records.Table, sourcePath string) (int, error) {
	hash, err := ComputeFileHash(sourcePath)
	if err != nil {
		return 0, fmt.Errorf("computing hash: %w", err)
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM publications"); err != nil {
		return 0, fmt.Errorf("clearing publications: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM publications_fts"); err != nil {
		return 0, fmt.Errorf("clearing FTS table: %w", err)
	}

	insert, err := tx.Prepare(`INSERT INTO publications
		(member_id, position, title, year, language, fields_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer insert.Close()

	insertFTS, err := tx.Prepare(`INSERT INTO publications_fts (member_id, position, title) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing FTS insert: %w", err)
	}
	defer insertFTS.Close()

	positions := make(map[string]int)
	rows := t.Rows()
	for i, r := range rows {
		pos := positions[r.MemberID]
		positions[r.MemberID]++

		fields, err := json.Marshal(r.Publication)
		if err != nil {
			return 0, fmt.Errorf("encoding row %d: %w", i+1, err)
		}
		title := nullable(r.Publication, records.FieldTitle)
		if _, err := insert.Exec(r.MemberID, pos, title,
			nullable(r.Publication, records.FieldYear),
			nullable(r.Publication, records.FieldLanguage),
			string(fields)); err != nil {
			return 0, fmt.Errorf("inserting row %d: %w", i+1, err)
		}
		if title != nil {
			if _, err := insertFTS.Exec(r.MemberID, pos, title); err != nil {
				return 0, fmt.Errorf("indexing row %d: %w", i+1, err)
			}
		}
	}

	if err := setMeta(tx, "source_hash", hash); err != nil {
		return 0, fmt.Errorf("updating hash: %w", err)
	}
	if err := setMeta(tx, "last_sync", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, fmt.Errorf("updating sync time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing index: %w", err)
	}
	return len(rows), nil
}

// Query executes a SQL query against the index.
func (ix *Index) Query(query string) ([]Record, error) {
	rows, err := ix.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Search runs a full-text match over titles, best matches first.
func (ix *Index) Search(text string, limit int) ([]Hit, error) {
	q := PrepareFTSQuery(text)
	if q == "" {
		return []Hit{}, nil
	}

	rows, err := ix.db.Query(`SELECT member_id, position, title FROM publications_fts
		WHERE publications_fts MATCH ? ORDER BY rank LIMIT ?`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("searching titles: %w", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.MemberID, &h.Position, &h.Title); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// LastSync returns the time of the last rebuild, or the zero time.
func (ix *Index) LastSync() (time.Time, error) {
	v, err := ix.meta("last_sync")
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}

func (ix *Index) meta(key string) (string, error) {
	var value sql.NullString
	err := ix.db.QueryRow("SELECT value FROM _meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

func setMeta(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`INSERT OR REPLACE INTO _meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// scanRecords converts SQL rows to records.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	recs := []Record{}
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		rec := make(Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = values[i]
			}
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// nullable returns the text of a field, or nil when it is missing or null.
func nullable(p records.Publication, key string) any {
	if v, ok := p.Get(key); !ok || v == nil {
		return nil
	}
	return p.Text(key)
}

// PrepareFTSQuery escapes special characters for FTS5 queries.
func PrepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	if strings.ContainsAny(query, "\"*+-:(){}[]^~") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
