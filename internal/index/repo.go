package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path          string
	Title         string
	Checksum      string
	SchemaVersion int
	UpdatedAt     time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// UpsertNote inserts or replaces a note, its FTS entry, and its citation
// edges within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string, citations []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// Upsert notes table (includes body for fallback search).
	_, err = tx.Exec(`
		INSERT INTO notes (path, title, checksum, schema_version, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title          = excluded.title,
			checksum       = excluded.checksum,
			schema_version = excluded.schema_version,
			body           = excluded.body,
			updated_at     = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, n.SchemaVersion, body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.Path, n.Title, body); err != nil {
		return err
	}

	// Replace citation edges: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM citations WHERE source = ?`, n.Path)
	if len(citations) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO citations (source, uri) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare citation insert: %w", err)
		}
		defer stmt.Close()
		for _, uri := range citations {
			if _, err := stmt.Exec(n.Path, uri); err != nil {
				return fmt.Errorf("index: insert citation: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note, its FTS entry, and its citation edges.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM citations WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, path)

	return tx.Commit()
}

// GetNote returns the indexed row for path, or nil when not indexed.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	var n NoteRow
	err := db.conn.QueryRow(`
		SELECT path, title, checksum, schema_version, updated_at
		FROM notes WHERE path = ?
	`, path).Scan(&n.Path, &n.Title, &n.Checksum, &n.SchemaVersion, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &n, nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// ListNotes returns a page of indexed notes plus the total count.
// sort is "title" or "updated" (default).
func (db *DB) ListNotes(limit, offset int, sort string) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	order := `updated_at DESC`
	if sort == "title" {
		order = `title COLLATE NOCASE ASC`
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT path, title, checksum, schema_version, updated_at
		FROM notes
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var n NoteRow
		if err := rows.Scan(&n.Path, &n.Title, &n.Checksum, &n.SchemaVersion, &n.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// NotesCiting returns the paths of all notes that cite the given URI.
func (db *DB) NotesCiting(uri string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM citations WHERE uri = ? ORDER BY source`, uri)
	if err != nil {
		return nil, fmt.Errorf("index: notes citing: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CitedURIs returns the URIs a note cites, in stored order.
func (db *DB) CitedURIs(path string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT uri FROM citations WHERE source = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("index: cited uris: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AllPaths returns every indexed note path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns path -> checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
