// Package tui provides the Bubble Tea steno drill.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/steno/internal/engine"
	"github.com/verte-zerg/steno/internal/generator"
	"github.com/verte-zerg/steno/internal/model"
	statsPkg "github.com/verte-zerg/steno/internal/stats"
	"github.com/verte-zerg/steno/internal/steno"
	"github.com/verte-zerg/steno/internal/store"
	"github.com/verte-zerg/steno/internal/system"
)

// Keymap actions that are not steno keys.
const (
	actionArpeggiate = "arpeggiate"
	actionNoOp       = "no-op"
)

const tapeHeight = 6

// Engine is the part of the engine the drill drives.
type Engine interface {
	Stroke(keys []string)
	ClearTranslatorState(undo bool) error
}

// Options configures a Model.
type Options struct {
	Engine    Engine
	Events    <-chan engine.Event
	System    *system.System
	Keymap    map[string]string
	Store     *store.Store
	Generator *generator.Generator
	Drills    []generator.Drill
	Config    model.TrainerConfig
	WeakSet   map[string]struct{}
	Logger    *slog.Logger
}

type wordProgress struct {
	strokes   int
	latencyMs int64
}

type eventMsg engine.Event

type eventsClosedMsg struct{}

// Model implements the Bubble Tea drill UI. Keys build a chord that is
// sent on the arpeggiate key; the engine's output is compared word by word
// with the drill.
type Model struct {
	engine  Engine
	events  <-chan engine.Event
	sys     *system.System
	keymap  map[string]string
	store   *store.Store
	gen     *generator.Generator
	drills  []generator.Drill
	config  model.TrainerConfig
	weakSet map[string]struct{}
	logger  *slog.Logger

	width  int
	height int
	hints  bool
	status string

	chord     map[string]bool
	tape      viewport.Model
	tapeLines []string

	targets  []generator.Drill
	output   []rune
	progress []wordProgress

	started      bool
	startedAt    time.Time
	lastStrokeAt time.Time
	strokes      int
	corrections  int
	strokeLog    []model.StrokeLog
	pendingText  strings.Builder
	pendingBack  int

	lastWPM float64
	lastAcc float64
	hasLast bool

	allWPM       float64
	allAcc       float64
	allCorrect   int
	allIncorrect int
	allStrokes   int
	allDuration  int64
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Underline(true)
	hintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#5A7FA8"))
	chordStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	tapeStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a drill model and starts the first session.
func NewModel(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Model{
		engine:  opts.Engine,
		events:  opts.Events,
		sys:     opts.System,
		keymap:  opts.Keymap,
		store:   opts.Store,
		gen:     opts.Generator,
		drills:  opts.Drills,
		config:  opts.Config,
		weakSet: opts.WeakSet,
		logger:  logger,
		hints:   true,
		chord:   map[string]bool{},
		tape:    viewport.New(0, tapeHeight),
	}
	m.resetSession()
	m.loadFooterStats()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(events <-chan engine.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tape.Width = msg.Width
		return m, nil
	case eventMsg:
		if cmd := m.handleEvent(engine.Event(msg)); cmd != nil {
			return m, cmd
		}
		return m, waitForEvent(m.events)
	case eventsClosedMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			m.chord = map[string]bool{}
			return m, nil
		case tea.KeyTab:
			m.hints = !m.hints
			return m, nil
		case tea.KeyCtrlR:
			m.resetSession()
			return m, nil
		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.tape, cmd = m.tape.Update(msg)
			return m, cmd
		}
		m.pressKey(keyName(msg))
		return m, nil
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if len(m.targets) == 0 {
		return "No drill words available.\n"
	}
	words := buildStyledWords(m.targets, m.typedWords(), m.currentIndex(), m.hints)
	if m.width == 0 || m.height == 0 {
		return renderStyledWords(words)
	}
	contentWidth := int(float64(m.width) * 0.70)
	if contentWidth < 1 {
		contentWidth = 1
	}
	drill := lipgloss.NewStyle().Width(contentWidth).Render(wrapStyledWords(words, contentWidth))
	written := pendingStyle.Width(contentWidth).Render(strings.TrimLeft(string(m.output), " "))
	content := lipgloss.JoinVertical(lipgloss.Left, drill, "", written, "", chordStyle.Render(m.chordText()))

	footer := m.renderFooter()
	bodyHeight := m.height - tapeHeight - 1
	if bodyHeight < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + tapeStyle.Render(m.tape.View()) + "\n" + footerLine
}

func keyName(msg tea.KeyMsg) string {
	if msg.Type == tea.KeySpace {
		return "space"
	}
	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		return string(msg.Runes)
	}
	return msg.String()
}

// pressKey toggles a steno key in the chord or sends the chord.
func (m *Model) pressKey(name string) {
	action, ok := m.keymap[name]
	if !ok {
		return
	}
	switch action {
	case actionNoOp:
	case actionArpeggiate:
		m.sendChord()
	default:
		if m.chord[action] {
			delete(m.chord, action)
		} else {
			m.chord[action] = true
		}
	}
}

func (m *Model) chordKeys() []string {
	keys := make([]string, 0, len(m.chord))
	for k := range m.chord {
		keys = append(keys, k)
	}
	return steno.SortStenoKeys(m.sys, keys)
}

func (m *Model) chordText() string {
	if len(m.chord) == 0 {
		return " "
	}
	s, err := steno.NewStroke(m.sys, m.chordKeys())
	if err != nil {
		return strings.Join(m.chordKeys(), " ")
	}
	return s.RTFCRE()
}

func (m *Model) sendChord() {
	if len(m.chord) == 0 {
		return
	}
	m.engine.Stroke(m.chordKeys())
	m.chord = map[string]bool{}
}

func (m *Model) handleEvent(ev engine.Event) tea.Cmd {
	switch ev.Kind {
	case engine.EventSendString:
		m.output = append(m.output, []rune(ev.Text)...)
		m.pendingText.WriteString(ev.Text)
	case engine.EventSendBackspaces:
		n := min(ev.Count, len(m.output))
		m.output = m.output[:len(m.output)-n]
		m.pendingBack += ev.Count
	case engine.EventStroked:
		m.recordStroke(ev)
	case engine.EventError:
		if ev.Err != nil {
			m.status = ev.Err.Error()
		}
	case engine.EventDictionariesLoaded:
		m.status = fmt.Sprintf("%d dictionaries loaded", len(ev.Dictionaries))
	case engine.EventQuit:
		return tea.Quit
	}
	return nil
}

func (m *Model) recordStroke(ev engine.Event) {
	now := ev.Time
	if now.IsZero() {
		now = time.Now()
	}
	if !m.started {
		m.started = true
		m.startedAt = now
		m.lastStrokeAt = now
	}
	latency := now.Sub(m.lastStrokeAt).Milliseconds()
	m.lastStrokeAt = now

	undo := m.isCorrection(ev.Stroke)
	m.strokes++
	if undo {
		m.corrections++
	}
	out := strings.Repeat("\b", m.pendingBack) + m.pendingText.String()
	m.strokeLog = append(m.strokeLog, model.StrokeLog{
		ID:        ev.ID,
		Seq:       len(m.strokeLog) + 1,
		Stroke:    ev.Stroke,
		Output:    out,
		Undo:      undo,
		LatencyMs: latency,
	})
	m.appendTape(ev.Stroke, m.pendingBack, m.pendingText.String())
	m.pendingText.Reset()
	m.pendingBack = 0

	if idx := m.currentIndex(); idx < len(m.progress) {
		m.progress[idx].strokes++
		m.progress[idx].latencyMs += latency
	}
	if m.complete() {
		m.finishSession()
		m.resetSession()
	}
}

func (m *Model) isCorrection(stroke string) bool {
	if m.sys == nil {
		return stroke == "*"
	}
	s, err := steno.ParseStroke(m.sys, stroke)
	return err == nil && s.IsCorrection()
}

func (m *Model) appendTape(stroke string, backspaces int, text string) {
	line := fmt.Sprintf("%-12s", stroke)
	if backspaces > 0 {
		line += fmt.Sprintf(" -%d", backspaces)
	}
	if text != "" {
		line += fmt.Sprintf(" %q", text)
	}
	m.tapeLines = append(m.tapeLines, line)
	m.tape.SetContent(strings.Join(m.tapeLines, "\n"))
	m.tape.GotoBottom()
}

func (m *Model) typedWords() []string {
	return strings.Fields(string(m.output))
}

// currentIndex is the drill word being written: the last written word, or
// the next one when the output ends in a space.
func (m *Model) currentIndex() int {
	typed := m.typedWords()
	idx := len(typed) - 1
	if len(m.output) > 0 && m.output[len(m.output)-1] == ' ' {
		idx = len(typed)
	}
	idx = max(idx, 0)
	if len(m.targets) > 0 {
		idx = min(idx, len(m.targets)-1)
	}
	return idx
}

// complete reports whether the drill is done: the last word is written
// correctly or writing has gone past it.
func (m *Model) complete() bool {
	n := len(m.targets)
	if n == 0 {
		return false
	}
	typed := m.typedWords()
	return len(typed) > n || (len(typed) == n && typed[n-1] == m.targets[n-1].Word)
}

func (m *Model) resetSession() {
	m.output = nil
	m.started = false
	m.startedAt = time.Time{}
	m.lastStrokeAt = time.Time{}
	m.strokes = 0
	m.corrections = 0
	m.strokeLog = nil
	m.pendingText.Reset()
	m.pendingBack = 0
	m.chord = map[string]bool{}
	if m.engine != nil {
		if err := m.engine.ClearTranslatorState(false); err != nil {
			m.logger.Warn("failed to clear translator state", "err", err)
		}
	}
	m.targets = m.generateDrill()
	m.progress = make([]wordProgress, len(m.targets))
}

func (m *Model) generateDrill() []generator.Drill {
	if m.gen == nil {
		return nil
	}
	if m.config.FocusWeak && len(m.weakSet) > 0 {
		return m.gen.GenerateWeighted(m.drills, m.config.Words, m.weakSet, m.config.WeakFactor)
	}
	return m.gen.Generate(m.drills, m.config.Words)
}

// sessionResults scores every drill word and merges repeated words.
func (m *Model) sessionResults() (correct, incorrect int, words []model.WordStats) {
	typed := m.typedWords()
	index := map[string]int{}
	for i, target := range m.targets {
		pos, ok := index[target.Word]
		if !ok {
			pos = len(words)
			index[target.Word] = pos
			words = append(words, model.WordStats{Word: target.Word})
		}
		ws := &words[pos]
		if i < len(typed) && typed[i] == target.Word {
			correct++
			ws.Correct++
		} else {
			incorrect++
			ws.Incorrect++
		}
		if i < len(m.progress) && m.progress[i].strokes > 0 {
			ws.Strokes += m.progress[i].strokes
			ws.LatencySumMs += m.progress[i].latencyMs
			ws.LatencyCount++
		}
	}
	return correct, incorrect, words
}

func (m *Model) finishSession() {
	if !m.started {
		return
	}
	endedAt := m.lastStrokeAt
	correct, incorrect, words := m.sessionResults()
	stats := model.SessionStats{
		StartedAt:      m.startedAt,
		EndedAt:        endedAt,
		Words:          len(m.targets),
		System:         m.systemName(),
		CorrectWords:   correct,
		IncorrectWords: incorrect,
		Strokes:        m.strokes,
		Corrections:    m.corrections,
		DurationMs:     endedAt.Sub(m.startedAt).Milliseconds(),
	}

	if m.store != nil {
		ctx := context.Background()
		if _, err := m.store.InsertSession(ctx, stats, words, m.strokeLog); err != nil {
			m.logger.Error("failed to save session", "err", err)
		}
	}
	wpm, _, acc := statsPkg.SessionMetrics(stats.CorrectWords, stats.IncorrectWords, stats.Strokes, stats.DurationMs)
	m.lastWPM = wpm
	m.lastAcc = acc
	m.hasLast = true
	m.allCorrect += stats.CorrectWords
	m.allIncorrect += stats.IncorrectWords
	m.allStrokes += stats.Strokes
	m.allDuration += stats.DurationMs
	m.recomputeAllTime()

	if m.config.FocusWeak {
		m.refreshWeakSet()
	}
}

func (m *Model) systemName() string {
	if m.sys == nil {
		return ""
	}
	return m.sys.Name
}

func (m *Model) loadFooterStats() {
	if m.store == nil {
		return
	}
	ctx := context.Background()
	sessions, err := m.store.ListSessions(ctx, model.StatsConfig{System: m.systemName()})
	if err != nil {
		m.logger.Error("failed to load session stats", "err", err)
		return
	}
	if len(sessions) == 0 {
		return
	}
	last := sessions[len(sessions)-1]
	wpm, _, acc := statsPkg.SessionMetrics(last.CorrectWords, last.IncorrectWords, last.Strokes, last.DurationMs)
	m.lastWPM = wpm
	m.lastAcc = acc
	m.hasLast = true

	for _, s := range sessions {
		m.allCorrect += s.CorrectWords
		m.allIncorrect += s.IncorrectWords
		m.allStrokes += s.Strokes
		m.allDuration += s.DurationMs
	}
	m.recomputeAllTime()
}

func (m *Model) recomputeAllTime() {
	wpm, _, acc := statsPkg.SessionMetrics(m.allCorrect, m.allIncorrect, m.allStrokes, m.allDuration)
	m.allWPM = wpm
	m.allAcc = acc
}

func (m *Model) renderFooter() string {
	if len(m.targets) == 0 {
		return ""
	}
	progress := int(float64(m.currentIndex()) / float64(len(m.targets)) * 100)
	segments := []string{fmt.Sprintf("Progress %d%%", progress)}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %.1f WPM · %.1f%%", m.lastWPM, m.lastAcc*100))
	}
	segments = append(segments, fmt.Sprintf("All-time %.1f WPM · %.1f%%", m.allWPM, m.allAcc*100))
	if m.status != "" {
		segments = append(segments, m.status)
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func (m *Model) refreshWeakSet() {
	if m.store == nil {
		return
	}
	ctx := context.Background()
	aggs, err := m.store.GetWeakWords(ctx, m.config.WeakWindow, m.systemName())
	if err != nil {
		m.logger.Error("failed to load weak words", "err", err)
		return
	}
	if len(aggs) == 0 {
		m.weakSet = map[string]struct{}{}
		return
	}
	m.weakSet = statsPkg.SelectWeakWords(aggs, m.config.WeakTop)
}
