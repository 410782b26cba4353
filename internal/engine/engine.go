// Package engine runs the translator and formatter on a single goroutine fed
// by a job queue. It turns their output into sink writes and controller
// events, loads dictionaries in the background and handles engine commands.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/verte-zerg/steno/internal/dictionary"
	"github.com/verte-zerg/steno/internal/formatting"
	"github.com/verte-zerg/steno/internal/model"
	"github.com/verte-zerg/steno/internal/orthography"
	"github.com/verte-zerg/steno/internal/steno"
	"github.com/verte-zerg/steno/internal/system"
	"github.com/verte-zerg/steno/internal/translation"
)

var (
	// ErrFatal wraps a broken history invariant or a panic in translation
	// state. Run returns it and the engine must not be used afterwards.
	ErrFatal = errors.New("fatal engine error")
	// ErrStopped reports a call made after Run returned.
	ErrStopped = errors.New("engine stopped")
)

// errQuit ends Run without error.
var errQuit = errors.New("quit")

// MachineState is the connection state reported by a stroke source.
type MachineState string

// Machine states.
const (
	MachineInitializing MachineState = "initializing"
	MachineConnected    MachineState = "connected"
	MachineDisconnected MachineState = "disconnected"
	MachineStopped      MachineState = "stopped"
)

// Sink receives the keyboard output.
type Sink interface {
	SendBackspaces(n int)
	SendString(s string)
	SendKeyCombination(combo string)
}

const (
	queueSize         = 256
	defaultUndoLevels = 100
)

type job func() error

// Engine owns the translator, formatter and dictionaries. Everything runs
// on the goroutine calling Run; other goroutines post work or use the
// locking accessors.
type Engine struct {
	mu     sync.Mutex
	queue  chan job
	done   chan struct{}
	runCtx context.Context

	logger       *slog.Logger
	sink         Sink
	sys          *system.System
	dicts        *dictionary.Collection
	loader       *dictionary.LoadingManager
	translator   *translation.Translator
	formatter    *formatting.Formatter
	suggestions  *Suggestions
	config       model.EngineConfig
	running      bool
	runningState *translation.State
	machineState MachineState
	capture      *Capture
	commands     map[string]CommandFunc
	subscribers  []func(Event)
	loadSeq      int
	quitting     bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSink sets the keyboard output.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithSystem sets the initial steno system.
func WithSystem(sys *system.System) Option {
	return func(e *Engine) {
		e.sys = sys
	}
}

// WithOutputDisabled starts the engine suspended.
func WithOutputDisabled() Option {
	return func(e *Engine) {
		e.running = false
	}
}

// New returns an engine with output enabled, an empty dictionary stack and
// the English system unless options say otherwise.
func New(opts ...Option) *Engine {
	e := &Engine{
		queue:    make(chan job, queueSize),
		done:     make(chan struct{}),
		runCtx:   context.Background(),
		logger:   slog.Default(),
		sys:      system.English(),
		running:  true,
		commands: map[string]CommandFunc{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dicts = dictionary.NewCollection()
	e.dicts.SetLogger(e.logger)
	e.translator = translation.NewTranslator(e.logger)
	e.translator.SetDictionary(e.dicts)
	e.translator.SetMinUndoLength(defaultUndoLevels)
	e.formatter = formatting.New(formatting.WithOutput(output{e}))
	e.translator.AddListener(translation.ListenerFunc(e.format))
	e.translator.AddListener(translation.ListenerFunc(e.translated))
	e.runningState = e.translator.State()
	e.suggestions = NewSuggestions(e.dicts)
	e.useSystem(e.sys)
	return e
}

func (e *Engine) useSystem(sys *system.System) {
	e.sys = sys
	e.formatter.SetOrthography(orthography.FromSystem(sys, orthography.WithLogger(e.logger)))
	e.loader = dictionary.NewLoadingManager(func(path string) (*dictionary.Dictionary, error) {
		return dictionary.Open(path, sys)
	}, e.logger)
}

// Run processes queued work until Quit, a QUIT command, a fatal error or
// ctx cancellation.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-e.queue:
			if err := e.runJob(j); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
		}
	}
}

func (e *Engine) runJob(j job) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine job panicked", "panic", r)
			err = fmt.Errorf("%w: %v", ErrFatal, r)
		}
	}()
	err = j()
	switch {
	case err == nil:
	case errors.Is(err, ErrFatal), errors.Is(err, errQuit):
		return err
	default:
		e.logger.Error("engine job failed", "err", err)
		e.emit(Event{Kind: EventError, Err: err})
	}
	if e.quitting {
		return errQuit
	}
	return nil
}

func (e *Engine) post(j job) {
	select {
	case e.queue <- j:
	case <-e.done:
	}
}

// Call runs fn on the engine goroutine and waits for its result.
func (e *Engine) Call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	e.post(func() error {
		result <- fn()
		return nil
	})
	select {
	case err := <-result:
		return err
	case <-e.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Quit stops Run after the work queued before it.
func (e *Engine) Quit() {
	e.post(func() error {
		return errQuit
	})
}

// Stroke translates a chord given as system key names.
func (e *Engine) Stroke(keys []string) {
	keys = append([]string(nil), keys...)
	e.post(func() error {
		s, err := steno.NewStroke(e.sys, keys)
		if err != nil {
			return fmt.Errorf("failed to build stroke: %w", err)
		}
		return e.translate(s)
	})
}

// StrokeNotation translates a stroke written in steno notation.
func (e *Engine) StrokeNotation(text string) {
	e.post(func() error {
		s, err := steno.ParseStroke(e.sys, text)
		if err != nil {
			return fmt.Errorf("failed to parse stroke: %w", err)
		}
		return e.translate(s)
	})
}

func (e *Engine) translate(s steno.Stroke) error {
	if c := e.capture; c != nil && c.intercept(s) {
		return nil
	}
	if err := e.translator.Translate(s); err != nil {
		e.logger.Warn("stroke failed", "stroke", s.RTFCRE(), "err", err)
		e.emit(Event{Kind: EventError, Stroke: s.RTFCRE(), Err: err})
	}
	if err := e.translator.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	e.emit(Event{Kind: EventStroked, Stroke: s.RTFCRE()})
	return nil
}

// SetMachineState records the stroke source state.
func (e *Engine) SetMachineState(state MachineState) {
	e.post(func() error {
		e.machineState = state
		e.emit(Event{Kind: EventMachineState, MachineState: state})
		return nil
	})
}

// MachineState returns the last reported stroke source state.
func (e *Engine) MachineState() MachineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machineState
}

// SetOutput enables or suspends output.
func (e *Engine) SetOutput(enabled bool) {
	e.post(func() error {
		e.setOutput(enabled)
		return nil
	})
}

// ToggleOutput flips output.
func (e *Engine) ToggleOutput() {
	e.post(func() error {
		e.setOutput(!e.running)
		return nil
	})
}

// Output reports whether output is enabled.
func (e *Engine) Output() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// setOutput swaps the live history out while suspended so that strokes
// made meanwhile do not extend it.
func (e *Engine) setOutput(enabled bool) {
	if enabled == e.running {
		return
	}
	e.running = enabled
	if enabled {
		e.translator.SetState(e.runningState)
	} else {
		e.runningState = e.translator.State()
		e.translator.ClearState()
	}
	e.emit(Event{Kind: EventOutputChanged, Output: enabled})
}

// format is the formatter listener; formatting errors reach controllers as
// events.
func (e *Engine) format(undo, do, prev []*translation.Translation) error {
	err := e.formatter.Format(undo, do, prev)
	if err != nil {
		e.emit(Event{Kind: EventError, Err: err})
	}
	return err
}

func (e *Engine) translated(undo, do, _ []*translation.Translation) error {
	if !e.running {
		return nil
	}
	e.emit(Event{Kind: EventTranslated, Undo: names(undo), Do: names(do)})
	return nil
}

func names(ts []*translation.Translation) []string {
	if len(ts) == 0 {
		return nil
	}
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

// System returns the steno system in use.
func (e *Engine) System() *system.System {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sys
}

// Config returns the last applied configuration.
func (e *Engine) Config() model.EngineConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// Lookup translates a stroke sequence with dictionary filters applied.
func (e *Engine) Lookup(strokes []string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dicts.Lookup(strokes)
}

// RawLookup translates a stroke sequence ignoring filters.
func (e *Engine) RawLookup(strokes []string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dicts.RawLookup(strokes)
}

// ReverseLookup returns the stroke sequences producing text.
func (e *Engine) ReverseLookup(text string) [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dicts.Reverse(text)
}

// CaseReverseLookup returns the dictionary values equal to text ignoring
// case.
func (e *Engine) CaseReverseLookup(text string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dicts.CaseReverse(text)
}

// Suggestions returns the ways of writing text.
func (e *Engine) Suggestions(text string) []Suggestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suggestions.Find(text)
}

// SimilarSuggestions returns dictionary values close to text.
func (e *Engine) SimilarSuggestions(text string, limit int) []Suggestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suggestions.Similar(text, limit)
}

// AddFilter hides dictionary entries for which f returns true.
func (e *Engine) AddFilter(f dictionary.Filter) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dicts.AddFilter(f)
}

// RemoveFilter removes a filter added with AddFilter.
func (e *Engine) RemoveFilter(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dicts.RemoveFilter(id)
}

// Dictionaries returns the loaded stack, lowest priority first.
func (e *Engine) Dictionaries() []*dictionary.Dictionary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dicts.Dicts()
}

// TranslatorState returns the live history.
func (e *Engine) TranslatorState() *translation.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.translator.State()
}

// SetTranslatorState installs a history.
func (e *Engine) SetTranslatorState(s *translation.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.translator.SetState(s)
}

// ClearTranslatorState forgets the history, first erasing its output when
// undo is set.
func (e *Engine) ClearTranslatorState(undo bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if undo {
		err = e.formatter.Format(e.translator.State().Translations, nil, nil)
	}
	e.translator.ClearState()
	return err
}

// StartingState returns whether the first word is attached and capitalized.
func (e *Engine) StartingState() (attached, capitalized bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.formatter.Settings()
	return s.StartAttached, s.StartCapitalized
}

// SetStartingState changes how the first word is written.
func (e *Engine) SetStartingState(attached, capitalized bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.formatter.SetStartAttached(attached)
	e.formatter.SetStartCapitalized(capitalized)
}

// AddTranslation stores and saves a mapping. An empty path selects the
// highest priority writable dictionary.
func (e *Engine) AddTranslation(strokes []string, text, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addTranslation(strokes, text, path)
}

func (e *Engine) addTranslation(strokes []string, text, path string) error {
	d, err := e.dicts.SetEntry(strokes, text, path)
	if err != nil {
		return fmt.Errorf("failed to add translation: %w", err)
	}
	if err := d.Save(); err != nil {
		return fmt.Errorf("failed to save %s: %w", d.Path, err)
	}
	e.emit(Event{Kind: EventTranslationAdded, Strokes: strokes, Text: text})
	return nil
}
