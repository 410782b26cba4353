package statsui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/oklog/ulid/v2"

	"github.com/verte-zerg/steno/internal/model"
	"github.com/verte-zerg/steno/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "steno.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	start := time.Unix(0, 0)
	_, err = st.InsertSession(context.Background(), model.SessionStats{
		StartedAt:      start,
		EndedAt:        start.Add(time.Minute),
		Words:          2,
		System:         "English Stenotype",
		CorrectWords:   1,
		IncorrectWords: 1,
		Strokes:        3,
		Corrections:    1,
		DurationMs:     60000,
	}, []model.WordStats{
		{Word: "hello", Correct: 1, Strokes: 1},
		{Word: "world", Incorrect: 1, Strokes: 2},
	}, []model.StrokeLog{
		{Seq: 1, Stroke: "HEL", Output: " hello"},
		{Seq: 2, Stroke: "WORLD", Output: " wrld", LatencyMs: 300},
		{Seq: 3, Stroke: "*", Output: "\b\b\b\b\b", Undo: true, LatencyMs: 200},
	})
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
	return st
}

func TestModelLoadsReport(t *testing.T) {
	m := NewModel(openStore(t), model.StatsConfig{CurveWindow: 1})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	if m.errMsg != "" {
		t.Fatalf("unexpected error: %s", m.errMsg)
	}
	if len(m.report.Sessions) != 1 || len(m.strokes) != 3 {
		t.Fatalf("report = %+v strokes = %d", m.report.Sessions, len(m.strokes))
	}
	if rows := m.wordTable.Rows(); len(rows) != 2 || rows[0][0] != "hello" {
		t.Fatalf("rows = %v", rows)
	}
	view := m.View()
	if !strings.Contains(view, "Overview") || !strings.Contains(view, "system=any") {
		t.Fatalf("view missing header:\n%s", view)
	}
}

func TestTabsWrap(t *testing.T) {
	m := NewModel(openStore(t), model.StatsConfig{CurveWindow: 1})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if m.activeTab != tabStrokes {
		t.Fatalf("active tab = %d", m.activeTab)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabOverview {
		t.Fatalf("active tab = %d", m.activeTab)
	}
}

func TestRenderStrokes(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 6_000_000, time.Local)
	id := ulid.MustNew(ulid.Timestamp(at), nil).String()
	out := renderStrokes([]model.StrokeLog{
		{ID: id, Seq: 1, Stroke: "HEL", Output: " hello"},
		{Seq: 2, Stroke: "*", Output: "\b\b\b\b\b\b", Undo: true, LatencyMs: 120},
	})
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[0], "15:04:05.006") || strings.Contains(lines[1], ":") {
		t.Fatalf("stroke times:\n%s", out)
	}
	if !strings.Contains(lines[0], `" hello"`) || !strings.Contains(lines[1], "-6") || !strings.Contains(lines[1], "(undo)") {
		t.Fatalf("unexpected tape:\n%s", out)
	}
	if renderStrokes(nil) != "No strokes recorded." {
		t.Fatalf("empty tape")
	}
}

func TestParseFilter(t *testing.T) {
	inputs := make([]textinput.Model, 5)
	for i := range inputs {
		inputs[i] = textinput.New()
	}
	inputs[0].SetValue(" English Stenotype ")
	inputs[1].SetValue("2026-01-02")
	inputs[2].SetValue("10")
	inputs[3].SetValue("")
	inputs[4].SetValue("the, and")
	cfg, err := parseFilter(inputs)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.System != "English Stenotype" || cfg.Since == nil || cfg.Last != 10 || cfg.CurveWindow != 1 || cfg.Words != "the, and" {
		t.Fatalf("cfg = %+v", cfg)
	}
	inputs[3].SetValue("0")
	if _, err := parseFilter(inputs); err == nil {
		t.Fatalf("expected curve window error")
	}
}

func TestCurveWindowSteps(t *testing.T) {
	if nextCurveWindow(1) != 5 || nextCurveWindow(5) != 10 || nextCurveWindow(7) != 10 {
		t.Fatalf("nextCurveWindow")
	}
	if prevCurveWindow(5) != 1 || prevCurveWindow(10) != 5 || prevCurveWindow(7) != 5 {
		t.Fatalf("prevCurveWindow")
	}
}
