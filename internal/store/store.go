// Package store handles SQLite persistence of trainer sessions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/steno/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for session data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			system TEXT NOT NULL,
			words INTEGER NOT NULL,
			correct_words INTEGER NOT NULL,
			incorrect_words INTEGER NOT NULL,
			strokes INTEGER NOT NULL,
			corrections INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_word_stats (
			session_id INTEGER NOT NULL,
			word TEXT NOT NULL,
			correct INTEGER NOT NULL,
			incorrect INTEGER NOT NULL,
			strokes INTEGER NOT NULL,
			latency_sum_ms INTEGER NOT NULL,
			latency_count INTEGER NOT NULL,
			PRIMARY KEY (session_id, word)
		);`,
		`CREATE TABLE IF NOT EXISTS session_strokes (
			session_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			stroke TEXT NOT NULL,
			output TEXT NOT NULL,
			undo INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL,
			stroke_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_session_word_stats_word ON session_word_stats(word);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return s.addColumn("session_strokes", "stroke_id", `TEXT NOT NULL DEFAULT ''`)
}

// addColumn adds a column missing from a table created by an older version.
func (s *Store) addColumn(table, column, decl string) error {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT name FROM pragma_table_info('%s')`, table))
	if err != nil {
		return err
	}
	defer closeRows(rows)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = s.db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	return err
}

// InsertSession stores a completed drill with its per-word stats and
// stroke log.
func (s *Store) InsertSession(ctx context.Context, stats model.SessionStats, words []model.WordStats, strokes []model.StrokeLog) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (started_at, ended_at, system, words, correct_words, incorrect_words, strokes, corrections, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stats.StartedAt.Format(time.RFC3339Nano),
		stats.EndedAt.Format(time.RFC3339Nano),
		stats.System,
		stats.Words,
		stats.CorrectWords,
		stats.IncorrectWords,
		stats.Strokes,
		stats.Corrections,
		stats.DurationMs,
	)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(words) > 0 {
		if err := insertAll(ctx, tx,
			`INSERT INTO session_word_stats (session_id, word, correct, incorrect, strokes, latency_sum_ms, latency_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			len(words), func(i int) []any {
				w := words[i]
				return []any{id, w.Word, w.Correct, w.Incorrect, w.Strokes, w.LatencySumMs, w.LatencyCount}
			}); err != nil {
			return 0, err
		}
	}
	if len(strokes) > 0 {
		if err := insertAll(ctx, tx,
			`INSERT INTO session_strokes (session_id, seq, stroke, output, undo, latency_ms, stroke_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			len(strokes), func(i int) []any {
				st := strokes[i]
				return []any{id, st.Seq, st.Stroke, st.Output, st.Undo, st.LatencyMs, st.ID}
			}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func insertAll(ctx context.Context, tx *sql.Tx, query string, n int, row func(i int) []any) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return err
		}
	}
	return nil
}

// GetWeakWords aggregates word stats over the most recent sessions.
func (s *Store) GetWeakWords(ctx context.Context, window int, system string) ([]model.WordAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent_sessions AS (
		SELECT id FROM sessions
		WHERE (? = '' OR system = ?)
		ORDER BY ended_at DESC
		LIMIT ?
	)
	SELECT ws.word, SUM(ws.correct), SUM(ws.incorrect), SUM(ws.strokes),
		SUM(ws.latency_sum_ms), SUM(ws.latency_count)
	FROM session_word_stats ws
	JOIN recent_sessions r ON r.id = ws.session_id
	GROUP BY ws.word`
	rows, err := s.db.QueryContext(ctx, query, system, system, window)
	if err != nil {
		return nil, err
	}
	return scanWordAggregates(rows)
}

// ListSessions returns session aggregates filtered by stats config, oldest
// first.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.System != "" {
		clauses = append(clauses, "system = ?")
		args = append(args, cfg.System)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, ended_at, correct_words, incorrect_words, strokes, corrections, duration_ms
		FROM sessions
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt string
		if err := rows.Scan(&agg.SessionID, &endedAt, &agg.CorrectWords, &agg.IncorrectWords, &agg.Strokes, &agg.Corrections, &agg.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListWordAggregatesForSessions aggregates per-word stats across sessions.
func (s *Store) ListWordAggregatesForSessions(ctx context.Context, sessionIDs []int64) ([]model.WordAggregate, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	placeholders, args := inList(sessionIDs)
	query := fmt.Sprintf(`SELECT word, SUM(correct), SUM(incorrect), SUM(strokes),
		SUM(latency_sum_ms), SUM(latency_count)
		FROM session_word_stats
		WHERE session_id IN (%s)
		GROUP BY word`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanWordAggregates(rows)
}

// ListWordStatsForSessions returns per-session stats for selected words.
func (s *Store) ListWordStatsForSessions(ctx context.Context, sessionIDs []int64, words []string) (map[int64]map[string]model.WordAggregate, error) {
	result := map[int64]map[string]model.WordAggregate{}
	if len(sessionIDs) == 0 || len(words) == 0 {
		return result, nil
	}
	idPlaceholders, args := inList(sessionIDs)
	wordPlaceholders, wordArgs := inList(words)
	args = append(args, wordArgs...)
	query := fmt.Sprintf(`SELECT session_id, word, correct, incorrect, strokes, latency_sum_ms, latency_count
		FROM session_word_stats
		WHERE session_id IN (%s) AND word IN (%s)`, idPlaceholders, wordPlaceholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	for rows.Next() {
		var sessionID int64
		var agg model.WordAggregate
		if err := rows.Scan(&sessionID, &agg.Word, &agg.Correct, &agg.Incorrect, &agg.Strokes, &agg.LatencySumMs, &agg.LatencyCount); err != nil {
			return nil, err
		}
		if _, ok := result[sessionID]; !ok {
			result[sessionID] = map[string]model.WordAggregate{}
		}
		result[sessionID][agg.Word] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListStrokes returns the stroke log of a session in order.
func (s *Store) ListStrokes(ctx context.Context, sessionID int64) ([]model.StrokeLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, stroke, output, undo, latency_ms, stroke_id FROM session_strokes
		 WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var out []model.StrokeLog
	for rows.Next() {
		var l model.StrokeLog
		if err := rows.Scan(&l.Seq, &l.Stroke, &l.Output, &l.Undo, &l.LatencyMs, &l.ID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanWordAggregates(rows *sql.Rows) ([]model.WordAggregate, error) {
	defer closeRows(rows)
	var result []model.WordAggregate
	for rows.Next() {
		var agg model.WordAggregate
		if err := rows.Scan(&agg.Word, &agg.Correct, &agg.Incorrect, &agg.Strokes, &agg.LatencySumMs, &agg.LatencyCount); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func inList[T any](values []T) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return strings.Join(placeholders, ","), args
}

func closeRows(rows *sql.Rows) {
	if cerr := rows.Close(); cerr != nil {
		// Best-effort rows close.
		_ = cerr
	}
}
