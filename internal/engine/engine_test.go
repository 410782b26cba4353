package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/verte-zerg/steno/internal/dictionary"
	"github.com/verte-zerg/steno/internal/formatting"
	"github.com/verte-zerg/steno/internal/keycombo"
	"github.com/verte-zerg/steno/internal/model"
	"github.com/verte-zerg/steno/internal/system"
)

const waitTimeout = 5 * time.Second

type recordingSink struct {
	mu   sync.Mutex
	ops  []string
	text []rune
}

func (s *recordingSink) SendBackspaces(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, fmt.Sprintf("b:%d", n))
	s.text = s.text[:max(0, len(s.text)-n)]
}

func (s *recordingSink) SendString(str string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "s:"+str)
	s.text = append(s.text, []rune(str)...)
}

func (s *recordingSink) SendKeyCombination(combo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "c:"+combo)
}

func (s *recordingSink) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.text)
}

func (s *recordingSink) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

type harness struct {
	e      *Engine
	sink   *recordingSink
	events chan Event
	errc   chan error
}

func startEngine(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		sink:   &recordingSink{},
		events: make(chan Event, 1024),
		errc:   make(chan error, 1),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithLogger(logger), WithSink(h.sink)}, opts...)
	h.e = New(opts...)
	h.e.Subscribe(func(ev Event) {
		select {
		case h.events <- ev:
		default:
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		h.errc <- h.e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-h.e.Done()
	})
	return h
}

// sync waits until the engine ran everything queued so far.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := h.e.Call(ctx, func() error { return nil }); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func (h *harness) wait(t *testing.T, kind EventKind) Event {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case ev := <-h.events:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func (h *harness) strokes(t *testing.T, strokes ...string) {
	t.Helper()
	for _, s := range strokes {
		h.e.StrokeNotation(s)
	}
	h.sync(t)
}

func (h *harness) configure(t *testing.T, paths ...string) Event {
	t.Helper()
	cfg := model.EngineConfig{UndoLevels: 100}
	for _, p := range paths {
		cfg.Dictionaries = append(cfg.Dictionaries, model.DictionaryConfig{Path: p, Enabled: true})
	}
	h.e.Configure(cfg)
	return h.wait(t, EventDictionariesLoaded)
}

func writeDict(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
	return path
}

func TestStrokesReachSink(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{
		"HEL":   "hello",
		"WORLD": "world",
	})
	loaded := h.configure(t, path)
	if len(loaded.Dictionaries) != 1 || loaded.Dictionaries[0].Entries != 2 || !loaded.Dictionaries[0].Enabled {
		t.Fatalf("loaded = %+v", loaded.Dictionaries)
	}
	h.strokes(t, "HEL", "WORLD")
	if got := h.sink.Text(); got != " hello world" {
		t.Fatalf("text = %q", got)
	}
	h.strokes(t, "*")
	if got := h.sink.Text(); got != " hello" {
		t.Fatalf("after undo text = %q", got)
	}
}

func TestEventIDsAreOrderedULIDs(t *testing.T) {
	h := startEngine(t)
	h.e.SetMachineState(MachineConnected)
	first := h.wait(t, EventMachineState)
	h.e.SetMachineState(MachineStopped)
	second := h.wait(t, EventMachineState)
	for _, ev := range []Event{first, second} {
		id, err := ulid.Parse(ev.ID)
		if err != nil {
			t.Fatalf("event id %q: %v", ev.ID, err)
		}
		if got := ulid.Time(id.Time()); !got.Equal(ev.Time.Truncate(time.Millisecond)) {
			t.Fatalf("id time = %v, event time = %v", got, ev.Time)
		}
	}
	if first.ID >= second.ID {
		t.Fatalf("ids not increasing: %s then %s", first.ID, second.ID)
	}
}

func TestConfigurePriorityAndErrors(t *testing.T) {
	h := startEngine(t)
	dir := t.TempDir()
	high := writeDict(t, dir, "high.json", map[string]string{"HEL": "high"})
	low := writeDict(t, dir, "low.json", map[string]string{"HEL": "low", "WORLD": "world"})
	missing := filepath.Join(dir, "missing.json")
	loaded := h.configure(t, high, missing, low, high)
	if len(loaded.Dictionaries) != 3 {
		t.Fatalf("expected duplicates dropped, got %+v", loaded.Dictionaries)
	}
	if loaded.Dictionaries[0].Path != low || loaded.Dictionaries[2].Path != high {
		t.Fatalf("expected lowest priority first, got %+v", loaded.Dictionaries)
	}
	if st := loaded.Dictionaries[1]; st.Err == nil || st.Enabled {
		t.Fatalf("missing dictionary status = %+v", st)
	}
	if v, _ := h.e.Lookup([]string{"HEL"}); v != "high" {
		t.Fatalf("Lookup = %q, want high", v)
	}
	if v, _ := h.e.Lookup([]string{"WORLD"}); v != "world" {
		t.Fatalf("Lookup = %q, want world", v)
	}

	h.e.Configure(model.EngineConfig{UndoLevels: 100, SpacePlacement: "sideways"})
	ev := h.wait(t, EventError)
	if ev.Err == nil {
		t.Fatalf("expected configure error")
	}
	h.e.Configure(model.EngineConfig{UndoLevels: 0})
	if ev := h.wait(t, EventError); ev.Err == nil {
		t.Fatalf("expected undo levels error")
	}
	if h.e.System() != system.English() {
		t.Fatalf("system changed by failed configure")
	}
}

func TestSpaceAfterOutput(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{"HEL": "hello", "WORLD": "world"})
	h.e.Configure(model.EngineConfig{
		UndoLevels:     100,
		SpacePlacement: string(formatting.SpaceAfterOutput),
		Dictionaries:   []model.DictionaryConfig{{Path: path, Enabled: true}},
	})
	h.wait(t, EventDictionariesLoaded)
	h.strokes(t, "HEL", "WORLD")
	if got := h.sink.Text(); got != "hello world " {
		t.Fatalf("text = %q", got)
	}
}

func TestSuspendAndResume(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{
		"HEL":    "hello",
		"SUS":    "{PLOVER:SUSPEND}",
		"RAOUPL": "{PLOVER:RESUME}",
	})
	h.configure(t, path)
	h.strokes(t, "HEL", "SUS")
	if ev := h.wait(t, EventOutputChanged); ev.Output {
		t.Fatalf("expected output disabled")
	}
	if h.e.Output() {
		t.Fatalf("Output() = true after suspend")
	}
	h.strokes(t, "HEL", "HEL")
	if got := h.sink.Text(); got != " hello" {
		t.Fatalf("suspended text = %q", got)
	}
	h.strokes(t, "RAOUPL")
	if ev := h.wait(t, EventOutputChanged); !ev.Output {
		t.Fatalf("expected output enabled")
	}
	h.strokes(t, "HEL")
	if got := h.sink.Text(); got != " hello hello" {
		t.Fatalf("resumed text = %q", got)
	}
}

func TestOutputDisabled(t *testing.T) {
	h := startEngine(t, WithOutputDisabled())
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{"HEL": "hello"})
	h.configure(t, path)
	h.strokes(t, "HEL")
	if ops := h.sink.Ops(); len(ops) != 0 {
		t.Fatalf("expected no output, got %v", ops)
	}
	h.e.ToggleOutput()
	h.strokes(t, "HEL")
	if got := h.sink.Text(); got != " hello" {
		t.Fatalf("text = %q", got)
	}
}

func TestQuitCommand(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{"KW-T": "{PLOVER:QUIT}"})
	h.configure(t, path)
	h.e.StrokeNotation("KW-T")
	h.wait(t, EventQuit)
	select {
	case err := <-h.errc:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("Run did not return")
	}
	if err := h.e.Call(context.Background(), func() error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("Call after quit = %v", err)
	}
}

func TestQuit(t *testing.T) {
	h := startEngine(t)
	ran := false
	h.e.Call(context.Background(), func() error {
		ran = true
		return nil
	})
	h.e.Quit()
	if err := <-h.errc; err != nil {
		t.Fatalf("Run = %v", err)
	}
	if !ran {
		t.Fatalf("queued work did not run")
	}
}

func TestCommands(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{
		"EBG":   "{PLOVER:echo:hi}",
		"UPB":   "{PLOVER:MYSTERY:x}",
		"TPAO":  "{PLOVER:FOCUS}",
		"TPAEU": "{PLOVER:fail}",
	})
	args := make(chan string, 1)
	h.e.RegisterCommand("ECHO", func(arg string) error {
		args <- arg
		return nil
	})
	failure := errors.New("boom")
	h.e.RegisterCommand("fail", func(string) error { return failure })
	h.configure(t, path)

	h.strokes(t, "EBG")
	select {
	case arg := <-args:
		if arg != "hi" {
			t.Fatalf("arg = %q", arg)
		}
	default:
		t.Fatalf("registered command did not run")
	}
	h.strokes(t, "UPB")
	if ev := h.wait(t, EventCommand); ev.Command != "MYSTERY" || ev.Text != "x" {
		t.Fatalf("command event = %+v", ev)
	}
	h.strokes(t, "TPAO")
	h.wait(t, EventFocus)
	h.strokes(t, "TPAEU")
	if ev := h.wait(t, EventError); !errors.Is(ev.Err, failure) || ev.Command != "FAIL" {
		t.Fatalf("error event = %+v", ev)
	}
}

func TestPanicInJobIsFatal(t *testing.T) {
	h := startEngine(t)
	err := h.e.Call(context.Background(), func() error { panic("history corrupted") })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Call = %v", err)
	}
	select {
	case err := <-h.errc:
		if !errors.Is(err, ErrFatal) {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("Run did not return")
	}
}

func TestPanickingCommandIsReported(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{
		"HEL":   "hello",
		"TPAEU": "{PLOVER:crash}",
	})
	h.e.RegisterCommand("crash", func(string) error { panic("plugin bug") })
	h.configure(t, path)
	h.strokes(t, "TPAEU")
	if ev := h.wait(t, EventError); ev.Command != "CRASH" || ev.Err == nil {
		t.Fatalf("error event = %+v", ev)
	}
	h.strokes(t, "HEL")
	if got := h.sink.Text(); got != " hello" {
		t.Fatalf("text = %q", got)
	}
}

func TestErrorsBecomeEvents(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{
		"HEL":   "hello",
		"TPAOU": "{foo}",
		"KPWO":  "{#nosuchkey}",
	})
	h.configure(t, path)
	h.strokes(t, "HEL", "TPAOU")
	if ev := h.wait(t, EventError); !errors.Is(ev.Err, formatting.ErrUnknownMeta) {
		t.Fatalf("error = %v", ev.Err)
	}
	h.strokes(t, "KPWO")
	if ev := h.wait(t, EventError); !errors.Is(ev.Err, keycombo.ErrUnknownKey) {
		t.Fatalf("combo error = %v", ev.Err)
	}
	for _, op := range h.sink.Ops() {
		if op[0] == 'c' {
			t.Fatalf("invalid combination reached the sink: %v", h.sink.Ops())
		}
	}
	h.strokes(t, "HEL")
	if got := h.sink.Text(); got != " hello hello" {
		t.Fatalf("text = %q", got)
	}
}

func TestSubscriberPanicIsContained(t *testing.T) {
	h := startEngine(t)
	h.e.Subscribe(func(Event) { panic("subscriber") })
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{"HEL": "hello"})
	h.configure(t, path)
	h.strokes(t, "HEL")
	if got := h.sink.Text(); got != " hello" {
		t.Fatalf("text = %q", got)
	}
}

func TestAddTranslation(t *testing.T) {
	h := startEngine(t)
	if err := h.e.AddTranslation([]string{"HEL"}, "hello", ""); !errors.Is(err, dictionary.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without dictionaries, got %v", err)
	}
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{})
	h.configure(t, path)
	if err := h.e.AddTranslation([]string{"HEL", "WORLD"}, "hello world", ""); err != nil {
		t.Fatalf("AddTranslation: %v", err)
	}
	if ev := h.wait(t, EventTranslationAdded); ev.Text != "hello world" {
		t.Fatalf("event = %+v", ev)
	}
	d, err := dictionary.Open(path, system.English())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := d.Get([]string{"HEL", "WORLD"}); !ok || v != "hello world" {
		t.Fatalf("saved entry = %q, %v", v, ok)
	}
}

func TestCaptureCommit(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{
		"HEL":   "hello",
		"WORLD": "world",
		"TKPW":  "{PLOVER:ADD_TRANSLATION}",
	})
	h.configure(t, path)
	h.strokes(t, "HEL")

	c, err := h.e.BeginCapture("{PLOVER:ADD_TRANSLATION}")
	if err != nil {
		t.Fatalf("BeginCapture: %v", err)
	}
	if _, err := h.e.BeginCapture(""); !errors.Is(err, ErrCaptureActive) {
		t.Fatalf("second capture: %v", err)
	}
	if v, _ := h.e.Lookup([]string{"TKPW"}); v != "" {
		t.Fatalf("terminator visible during capture: %q", v)
	}
	h.strokes(t, "HEL", "WORLD", "TKPW")
	done := h.wait(t, EventCaptureDone)
	if !reflect.DeepEqual(done.Strokes, []string{"HEL", "WORLD"}) || done.Text != "hello world" {
		t.Fatalf("capture done = %+v", done)
	}
	if !c.Finished() || c.Text() != "hello world" {
		t.Fatalf("capture finished=%v text=%q", c.Finished(), c.Text())
	}
	if got := h.sink.Text(); got != " hello" {
		t.Fatalf("capture leaked output: %q", got)
	}
	if err := c.Commit("hello world", ""); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := c.Commit("again", ""); !errors.Is(err, ErrCaptureClosed) {
		t.Fatalf("commit after close: %v", err)
	}
	if v, _ := h.e.Lookup([]string{"TKPW"}); v != "{PLOVER:ADD_TRANSLATION}" {
		t.Fatalf("filter not removed: %q", v)
	}

	h.strokes(t, "HEL", "WORLD")
	if got := h.sink.Text(); got != " hello hello world" {
		t.Fatalf("text = %q", got)
	}
	d, err := dictionary.Open(path, system.English())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, _ := d.Get([]string{"HEL", "WORLD"}); v != "hello world" {
		t.Fatalf("saved entry = %q", v)
	}
}

func TestCaptureDropsUndoneStrokes(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{
		"HEL":   "hello",
		"WORLD": "world",
		"TKPW":  "{PLOVER:ADD_TRANSLATION}",
	})
	h.configure(t, path)
	c, err := h.e.BeginCapture("{PLOVER:ADD_TRANSLATION}")
	if err != nil {
		t.Fatalf("BeginCapture: %v", err)
	}
	h.strokes(t, "HEL", "*", "WORLD", "TKPW")
	done := h.wait(t, EventCaptureDone)
	if !reflect.DeepEqual(done.Strokes, []string{"WORLD"}) || done.Text != "world" {
		t.Fatalf("capture done = %+v", done)
	}
	h.strokes(t, "HEL")
	if got := c.Strokes(); !reflect.DeepEqual(got, []string{"WORLD"}) || c.Text() != "world" {
		t.Fatalf("strokes after terminator = %v text = %q", got, c.Text())
	}
	if err := c.Commit("planet", ""); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := c.Strokes(); !reflect.DeepEqual(got, []string{"WORLD"}) {
		t.Fatalf("strokes after commit = %v", got)
	}
	if v, ok := h.e.Lookup([]string{"HEL", "*", "WORLD"}); ok {
		t.Fatalf("undo stroke saved: %q", v)
	}
	if v, _ := h.e.Lookup([]string{"WORLD"}); v != "planet" {
		t.Fatalf("Lookup(WORLD) = %q", v)
	}
	if got := h.sink.Text(); got != "" {
		t.Fatalf("capture leaked output: %q", got)
	}
}

func TestCaptureAbortRestoresState(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{"HEL": "hello"})
	h.configure(t, path)
	h.strokes(t, "HEL")
	before := h.e.TranslatorState()

	c, err := h.e.BeginCapture("")
	if err != nil {
		t.Fatalf("BeginCapture: %v", err)
	}
	h.strokes(t, "HEL", "HEL")
	if got := c.Strokes(); !reflect.DeepEqual(got, []string{"HEL", "HEL"}) {
		t.Fatalf("strokes = %v", got)
	}
	if err := c.Commit("", ""); !errors.Is(err, ErrEmptyCapture) {
		t.Fatalf("empty commit: %v", err)
	}
	c.Abort()
	if err := c.Commit("x", ""); !errors.Is(err, ErrCaptureClosed) {
		t.Fatalf("commit after abort: %v", err)
	}
	if after := h.e.TranslatorState(); after != before || len(after.Translations) != 1 {
		t.Fatalf("history not restored: %+v", after)
	}
	if attached, capitalized := h.e.StartingState(); attached || capitalized {
		t.Fatalf("starting state not restored: %v %v", attached, capitalized)
	}
	h.strokes(t, "HEL")
	if got := h.sink.Text(); got != " hello hello" {
		t.Fatalf("text = %q", got)
	}
}

func TestSuggestionsCommand(t *testing.T) {
	h := startEngine(t)
	path := writeDict(t, t.TempDir(), "main.json", map[string]string{
		"HEL":     "hello",
		"HEL/HRO": "hello",
		"SUG":     "{PLOVER:SUGGESTIONS}",
	})
	h.configure(t, path)
	h.strokes(t, "HEL", "SUG")
	ev := h.wait(t, EventSuggestions)
	if ev.Text != "hello" || len(ev.Suggestions) != 1 {
		t.Fatalf("suggestions = %+v", ev)
	}
	want := [][]string{{"HEL"}, {"HEL", "HRO"}}
	if !reflect.DeepEqual(ev.Suggestions[0].Strokes, want) {
		t.Fatalf("strokes = %v", ev.Suggestions[0].Strokes)
	}
}

func TestMachineState(t *testing.T) {
	h := startEngine(t)
	h.e.SetMachineState(MachineConnected)
	if ev := h.wait(t, EventMachineState); ev.MachineState != MachineConnected {
		t.Fatalf("event = %+v", ev)
	}
	if got := h.e.MachineState(); got != MachineConnected {
		t.Fatalf("MachineState = %q", got)
	}
}

func TestWatchReloadsChangedDictionary(t *testing.T) {
	h := startEngine(t)
	dir := t.TempDir()
	path := writeDict(t, dir, "main.json", map[string]string{"HEL": "hello"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = h.e.Watch(ctx)
	}()
	h.configure(t, path)

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		writeDict(t, dir, "main.json", map[string]string{"HEL": "hi"})
		time.Sleep(300 * time.Millisecond)
		if v, _ := h.e.Lookup([]string{"HEL"}); v == "hi" {
			return
		}
	}
	t.Fatalf("dictionary was not reloaded")
}
