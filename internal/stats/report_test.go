package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/steno/internal/model"
	"github.com/verte-zerg/steno/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "steno.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		end := start.Add(30 * time.Second)
		stats := model.SessionStats{
			StartedAt:      start,
			EndedAt:        end,
			Words:          10,
			System:         "English Stenotype",
			CorrectWords:   9,
			IncorrectWords: 1,
			Strokes:        14,
			Corrections:    2,
			DurationMs:     end.Sub(start).Milliseconds(),
		}
		words := []model.WordStats{
			{Word: "the", Correct: 5, Strokes: 5},
			{Word: "steno", Correct: 4, Incorrect: 1, Strokes: 9},
		}
		id, err := st.InsertSession(ctx, stats, words, nil)
		if err != nil {
			t.Fatalf("insert session: %v", err)
		}
		ids = append(ids, id)
	}

	cfg := model.StatsConfig{
		System:      "English Stenotype",
		Last:        2,
		CurveWindow: 2,
		Words:       "steno, the",
	}
	report, err := BuildReport(ctx, st, cfg)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(report.Sessions))
	}
	if report.Sessions[0].SessionID != ids[1] || report.Sessions[1].SessionID != ids[2] {
		t.Fatalf("unexpected session ids: %+v", report.Sessions)
	}
	if len(report.WindowSessionIDs) != 2 {
		t.Fatalf("expected 2 window session ids, got %d", len(report.WindowSessionIDs))
	}
	if len(report.WordAggsAll) != 2 || len(report.WordAggsWindow) != 2 {
		t.Fatalf("expected word aggregates, got %+v / %+v", report.WordAggsAll, report.WordAggsWindow)
	}
	if len(report.CurveWords) != 2 || report.CurveWords[0] != "steno" {
		t.Fatalf("curve words = %v", report.CurveWords)
	}
	if report.WordCurves[ids[2]]["steno"].Incorrect != 1 {
		t.Fatalf("word curves = %+v", report.WordCurves)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, 2, 80); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Sessions: 2", "Avg WPM: 18.00", "Avg Strokes/min: 28.00", "Learning Curves", "Per-Word (Windowed)", "Per-Word Curves"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "No sessions found.\n" {
		t.Fatalf("output = %q", buf.String())
	}
}
