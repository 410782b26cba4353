package tui

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/steno/internal/engine"
	"github.com/verte-zerg/steno/internal/generator"
	"github.com/verte-zerg/steno/internal/model"
	"github.com/verte-zerg/steno/internal/store"
	"github.com/verte-zerg/steno/internal/system"
)

type fakeEngine struct {
	strokes [][]string
	clears  int
}

func (f *fakeEngine) Stroke(keys []string) {
	f.strokes = append(f.strokes, keys)
}

func (f *fakeEngine) ClearTranslatorState(bool) error {
	f.clears++
	return nil
}

func newTestModel(t *testing.T, st *store.Store) (*Model, *fakeEngine) {
	t.Helper()
	sys := system.English()
	keymap, ok := sys.Keymap("Keyboard")
	if !ok {
		t.Fatalf("missing keyboard keymap")
	}
	eng := &fakeEngine{}
	m := NewModel(Options{
		Engine:    eng,
		System:    sys,
		Keymap:    keymap,
		Store:     st,
		Generator: generator.NewSeeded(1),
		Drills:    []generator.Drill{{Word: "hello", Strokes: []string{"HEL"}}},
		Config:    model.TrainerConfig{Words: 2},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return m, eng
}

func press(m *Model, keys ...string) {
	for _, k := range keys {
		msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		if k == " " {
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		}
		m.Update(msg)
	}
}

func TestChordIsSentOnArpeggiate(t *testing.T) {
	m, eng := newTestModel(t, nil)
	press(m, "o", "r", "n", "z")
	if got := m.chordText(); got != "HEL" {
		t.Fatalf("chord = %q", got)
	}
	press(m, "n", "n", " ")
	want := [][]string{{"H-", "-E", "-L"}}
	if !reflect.DeepEqual(eng.strokes, want) {
		t.Fatalf("strokes = %v", eng.strokes)
	}
	if len(m.chord) != 0 {
		t.Fatalf("chord should be cleared")
	}
	press(m, " ")
	if len(eng.strokes) != 1 {
		t.Fatalf("empty chord should not be sent")
	}
}

func TestEscapeClearsChord(t *testing.T) {
	m, eng := newTestModel(t, nil)
	press(m, "a")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	press(m, " ")
	if len(eng.strokes) != 0 {
		t.Fatalf("strokes = %v", eng.strokes)
	}
}

func TestSessionIsScoredAndSaved(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "steno.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	m, eng := newTestModel(t, st)
	if eng.clears != 1 {
		t.Fatalf("clears = %d", eng.clears)
	}

	t0 := time.Unix(100, 0)
	steps := []engine.Event{
		{Kind: engine.EventSendString, Text: " hello"},
		{Kind: engine.EventStroked, Stroke: "HEL", Time: t0},
		{Kind: engine.EventSendString, Text: " wrld"},
		{Kind: engine.EventStroked, Stroke: "WORLD", Time: t0.Add(time.Second), ID: "01JGZ3K2M8Q0000000000000WD"},
		{Kind: engine.EventSendBackspaces, Count: 5},
		{Kind: engine.EventStroked, Stroke: "*", Time: t0.Add(2 * time.Second)},
	}
	for _, ev := range steps {
		m.Update(eventMsg(ev))
	}
	if m.strokes != 3 || m.corrections != 1 {
		t.Fatalf("strokes = %d corrections = %d", m.strokes, m.corrections)
	}
	if string(m.output) != " hello" {
		t.Fatalf("output = %q", string(m.output))
	}
	if m.strokeLog[2].Output != "\b\b\b\b\b" || !m.strokeLog[2].Undo {
		t.Fatalf("stroke log = %+v", m.strokeLog[2])
	}

	m.Update(eventMsg{Kind: engine.EventSendString, Text: " hello"})
	m.Update(eventMsg{Kind: engine.EventStroked, Stroke: "HEL", Time: t0.Add(3 * time.Second)})

	if m.started || len(m.output) != 0 || eng.clears != 2 {
		t.Fatalf("session should restart, started=%v output=%q clears=%d", m.started, string(m.output), eng.clears)
	}
	sessions, err := st.ListSessions(context.Background(), model.StatsConfig{System: "English Stenotype"})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.CorrectWords != 2 || s.IncorrectWords != 0 || s.Strokes != 4 || s.Corrections != 1 || s.DurationMs != 3000 {
		t.Fatalf("session = %+v", s)
	}
	logs, err := st.ListStrokes(context.Background(), s.SessionID)
	if err != nil {
		t.Fatalf("list strokes: %v", err)
	}
	if len(logs) != 4 || logs[1].Stroke != "WORLD" || logs[1].Output != " wrld" || logs[1].ID != "01JGZ3K2M8Q0000000000000WD" {
		t.Fatalf("strokes = %+v", logs)
	}
	aggs, err := st.ListWordAggregatesForSessions(context.Background(), []int64{s.SessionID})
	if err != nil {
		t.Fatalf("word aggregates: %v", err)
	}
	if len(aggs) != 1 || aggs[0].Word != "hello" || aggs[0].Correct != 2 || aggs[0].Strokes != 4 {
		t.Fatalf("aggregates = %+v", aggs)
	}
	if !m.hasLast || m.lastAcc != 1 {
		t.Fatalf("footer stats not updated: %+v", m.lastAcc)
	}
}

func TestQuitEventStopsProgram(t *testing.T) {
	m, _ := newTestModel(t, nil)
	_, cmd := m.Update(eventMsg{Kind: engine.EventQuit})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}
