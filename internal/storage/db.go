// Package storage persists per-media bookmark sets and UI preferences in
// SQLite. Loop region and bookmark selection are deliberately absent:
// they are session state and die with the session.
package storage

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/loopdrill/loopdrill/internal/types"
)

// DB wraps the SQLite handle.
type DB struct {
	db *sql.DB
}

// Open creates or opens the database and applies the schema.
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS bookmarks (
		id TEXT PRIMARY KEY,
		media_key TEXT NOT NULL,
		name TEXT NOT NULL,
		start_time REAL NOT NULL,
		end_time REAL NOT NULL,
		annotation TEXT NOT NULL DEFAULT '',
		playback_rate REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookmarks_media ON bookmarks(media_key);

	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &DB{db: db}, nil
}

// SaveBookmark inserts a bookmark row.
func (d *DB) SaveBookmark(b types.Bookmark) error {
	_, err := d.db.Exec(`
	INSERT INTO bookmarks (id, media_key, name, start_time, end_time, annotation, playback_rate, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.MediaKey, b.Name, b.Start, b.End, b.Annotation, b.PlaybackRate, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}
	return nil
}

// UpdateBookmark rewrites the mutable columns of a bookmark.
func (d *DB) UpdateBookmark(b types.Bookmark) error {
	_, err := d.db.Exec(`
	UPDATE bookmarks SET name = ?, start_time = ?, end_time = ?, annotation = ?, playback_rate = ?
	WHERE id = ?
	`, b.Name, b.Start, b.End, b.Annotation, b.PlaybackRate, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update bookmark: %w", err)
	}
	return nil
}

// DeleteBookmark removes a bookmark row.
func (d *DB) DeleteBookmark(id string) error {
	if _, err := d.db.Exec(`DELETE FROM bookmarks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return nil
}

// BookmarksFor loads the bookmark set of one media item, start-ordered.
// Scoping by media_key is what keeps bookmark sets from bleeding across
// media.
func (d *DB) BookmarksFor(mediaKey string) ([]types.Bookmark, error) {
	rows, err := d.db.Query(`
	SELECT id, media_key, name, start_time, end_time, annotation, playback_rate, created_at
	FROM bookmarks WHERE media_key = ? ORDER BY start_time ASC
	`, mediaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []types.Bookmark
	for rows.Next() {
		var b types.Bookmark
		if err := rows.Scan(&b.ID, &b.MediaKey, &b.Name, &b.Start, &b.End, &b.Annotation, &b.PlaybackRate, &b.CreatedAt); err != nil {
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Preference keys.
const (
	PrefDefaultZoom = "default_zoom"
	PrefTheme       = "theme"
)

// SavePreferences upserts the UI defaults.
func (d *DB) SavePreferences(p types.Preferences) error {
	upsert := `INSERT INTO preferences (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := d.db.Exec(upsert, PrefDefaultZoom, strconv.FormatFloat(p.DefaultZoom, 'f', -1, 64)); err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	if _, err := d.db.Exec(upsert, PrefTheme, p.Theme); err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// Preferences loads the UI defaults, filling gaps with sane values.
func (d *DB) Preferences() (types.Preferences, error) {
	p := types.Preferences{DefaultZoom: 1, Theme: "dark"}
	rows, err := d.db.Query(`SELECT key, value FROM preferences`)
	if err != nil {
		return p, fmt.Errorf("failed to load preferences: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			continue
		}
		switch k {
		case PrefDefaultZoom:
			if z, err := strconv.ParseFloat(v, 64); err == nil && z >= 1 {
				p.DefaultZoom = z
			}
		case PrefTheme:
			p.Theme = v
		}
	}
	return p, rows.Err()
}

// Close closes the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}
