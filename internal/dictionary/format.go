package dictionary

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/verte-zerg/steno/internal/steno"
	"github.com/verte-zerg/steno/internal/system"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Format reads and writes one dictionary file type.
type Format interface {
	Name() string
	Extensions() []string
	Load(path string, sys *system.System) (*Dictionary, error)
	Save(d *Dictionary) error
}

var formats = []Format{JSONFormat{}, SQLiteFormat{}}

// FormatFor picks the format handling path's extension.
func FormatFor(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range formats {
		for _, e := range f.Extensions() {
			if e == ext {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: unsupported dictionary type %q", ErrLoadFailed, ext)
}

// Open loads the dictionary at path with the format matching its extension.
// Files without write permission load read-only.
func Open(path string, sys *system.System) (*Dictionary, error) {
	f, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, path, err)
	}
	d, err := f.Load(path, sys)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, path, err)
	}
	d.Path = path
	d.format = f
	d.Timestamp = info.ModTime()
	d.ReadOnly = info.Mode().Perm()&0o200 == 0
	return d, nil
}

// Create makes a new empty writable dictionary at path.
func Create(path string) (*Dictionary, error) {
	f, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	d := New(path)
	d.format = f
	if err := d.Save(); err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil {
		d.Timestamp = info.ModTime()
	}
	return d, nil
}

func normalizeEntries(sys *system.System, raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for text, value := range raw {
		out[strings.Join(steno.NormalizeStenoLoose(sys, text), keySep)] = value
	}
	return out
}

// JSONFormat is the {"STROKE/STROKE": "translation"} file type.
type JSONFormat struct{}

// Name implements Format.
func (JSONFormat) Name() string { return "json" }

// Extensions implements Format.
func (JSONFormat) Extensions() []string { return []string{".json"} }

// Load implements Format.
func (JSONFormat) Load(path string, sys *system.System) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON dictionary: %w", err)
	}
	d := New(path)
	d.Update(normalizeEntries(sys, raw))
	return d, nil
}

// Save implements Format. Entries are written one per line, sorted by key.
func (JSONFormat) Save(d *Dictionary) error {
	items := d.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
		if err := writeJSONString(&buf, k); err != nil {
			return err
		}
		buf.WriteString(": ")
		if err := writeJSONString(&buf, items[k]); err != nil {
			return err
		}
	}
	buf.WriteString("\n}\n")
	tmp := d.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.Path)
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// SQLiteFormat stores entries in a SQLite table.
type SQLiteFormat struct{}

// Name implements Format.
func (SQLiteFormat) Name() string { return "sqlite" }

// Extensions implements Format.
func (SQLiteFormat) Extensions() []string { return []string{".db", ".sqlite", ".sqlite3"} }

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		steno TEXT PRIMARY KEY,
		translation TEXT NOT NULL
	);`); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return db, nil
}

// Load implements Format.
func (SQLiteFormat) Load(path string, sys *system.System) (*Dictionary, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close after reading.
			_ = cerr
		}
	}()
	rows, err := db.Query(`SELECT steno, translation FROM entries`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort close for read-only query.
			_ = cerr
		}
	}()
	raw := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	d := New(path)
	d.Update(normalizeEntries(sys, raw))
	return d, nil
}

// Save implements Format by rewriting the table in one transaction.
func (SQLiteFormat) Save(d *Dictionary) (err error) {
	db, err := openSQLite(d.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close after writing.
			_ = cerr
		}
	}()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (steno, translation) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for k, v := range d.Items() {
		if _, err = stmt.ExecContext(ctx, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}
