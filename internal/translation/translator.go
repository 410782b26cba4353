package translation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/verte-zerg/steno/internal/dictionary"
	"github.com/verte-zerg/steno/internal/steno"
)

var (
	// ErrUnknownMacro reports a "=name" value with no registered macro.
	ErrUnknownMacro = errors.New("unknown macro")
	// ErrBadMacroArgument reports an argument the macro does not accept.
	ErrBadMacroArgument = errors.New("bad macro argument")
	// ErrHistory reports a broken history invariant.
	ErrHistory = errors.New("translation history corrupted")
)

// Listener receives each diff: the translations to undo, the ones to do,
// and the history preceding do (its last element is the context).
type Listener interface {
	Translated(undo, do, prev []*Translation) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(undo, do, prev []*Translation) error

// Translated implements Listener.
func (f ListenerFunc) Translated(undo, do, prev []*Translation) error {
	return f(undo, do, prev)
}

// Translator converts strokes into translations using the longest
// dictionary match over recent history.
type Translator struct {
	dict       *dictionary.Collection
	dictListen int
	undoLength int
	state      *State
	listeners  []Listener
	macros     map[string]Macro
	logger     *slog.Logger

	toUndo []*Translation
	toDo   int
}

// NewTranslator returns a translator over an empty collection.
func NewTranslator(logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Translator{
		state:      &State{},
		macros:     defaultMacros(),
		logger:     logger,
		dictListen: -1,
	}
	t.SetDictionary(dictionary.NewCollection())
	return t
}

// SetDictionary swaps the collection, moving the longest key subscription.
func (t *Translator) SetDictionary(c *dictionary.Collection) {
	if t.dict != nil && t.dictListen >= 0 {
		t.dict.RemoveLongestKeyListener(t.dictListen)
	}
	t.dict = c
	t.dictListen = c.AddLongestKeyListener(func(int) {
		t.resize()
	})
	t.resize()
}

// Dictionary returns the collection in use.
func (t *Translator) Dictionary() *dictionary.Collection {
	return t.dict
}

// Close drops the collection subscription.
func (t *Translator) Close() {
	if t.dict != nil && t.dictListen >= 0 {
		t.dict.RemoveLongestKeyListener(t.dictListen)
		t.dictListen = -1
	}
}

// AddListener registers l and returns its id. Listeners run in
// registration order.
func (t *Translator) AddListener(l Listener) int {
	t.listeners = append(t.listeners, l)
	return len(t.listeners) - 1
}

// RemoveListener unregisters a listener. Its slot stays empty so other ids
// remain valid.
func (t *Translator) RemoveListener(id int) {
	if id >= 0 && id < len(t.listeners) {
		t.listeners[id] = nil
	}
}

// SetMinUndoLength sets how many strokes stay undoable.
func (t *Translator) SetMinUndoLength(n int) {
	t.undoLength = n
	t.resize()
}

// MinUndoLength returns the configured undo length.
func (t *Translator) MinUndoLength() int {
	return t.undoLength
}

// RegisterMacro adds or replaces a named macro.
func (t *Translator) RegisterMacro(name string, m Macro) {
	t.macros[name] = m
}

// State returns the live history.
func (t *Translator) State() *State {
	return t.state
}

// SetState installs a history, typically one saved by State.
func (t *Translator) SetState(s *State) {
	t.state = s
}

// ClearState starts a fresh history.
func (t *Translator) ClearState() {
	t.state = &State{}
}

func (t *Translator) bound() int {
	return max(t.dict.LongestKey(), t.undoLength)
}

func (t *Translator) resize() {
	t.state.RestrictSize(t.bound())
}

// Translate processes one stroke and notifies listeners.
func (t *Translator) Translate(stroke steno.Stroke) error {
	err := t.TranslateStroke(stroke)
	t.Flush(nil)
	return err
}

// Flush notifies listeners of the pending diff. extra translations are
// appended to the do list without entering the history.
func (t *Translator) Flush(extra []*Translation) {
	var prev, do []*Translation
	if t.toDo > 0 {
		prev = t.state.Prev(t.toDo)
		n := len(t.state.Translations)
		do = append(do, t.state.Translations[n-t.toDo:]...)
	} else {
		prev = t.state.Prev(0)
	}
	do = append(do, extra...)
	undo := t.toUndo
	t.toUndo = nil
	t.toDo = 0
	if len(undo) > 0 || len(do) > 0 {
		t.output(undo, do, prev)
	}
	t.resize()
}

func (t *Translator) output(undo, do, prev []*Translation) {
	for id, l := range t.listeners {
		if l == nil {
			continue
		}
		t.notify(id, l, undo, do, prev)
	}
}

func (t *Translator) notify(id int, l Listener, undo, do, prev []*Translation) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("translation listener panicked", "listener", id, "panic", r)
		}
	}()
	if err := l.Translated(undo, do, prev); err != nil {
		t.logger.Warn("translation listener failed", "listener", id, "err", err)
	}
}

// TranslateStroke updates the history for one stroke without notifying.
func (t *Translator) TranslateStroke(stroke steno.Stroke) error {
	maxLen := t.dict.LongestKey()
	mapping, mapped := t.lookupWithPrefix(maxLen, t.state.Translations, []steno.Stroke{stroke})
	if name, arg, ok := mappingToMacro(mapping, mapped, stroke); ok {
		return t.runMacro(name, stroke, arg)
	}
	tr := t.findLongestMatch(2, maxLen, stroke, nil)
	if tr == nil && mapped {
		tr = New([]steno.Stroke{stroke}, mapping)
	}
	if keys := stroke.System().SuffixKeys; tr == nil && len(keys) > 0 {
		tr = t.findLongestMatch(1, maxLen, stroke, keys)
	}
	if tr == nil {
		tr = NewRaw([]steno.Stroke{stroke})
	}
	return t.TranslateTranslation(tr)
}

func (t *Translator) runMacro(name string, stroke steno.Stroke, arg string) error {
	m, ok := t.macros[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMacro, name)
	}
	return m(t, stroke, arg)
}

// TranslateTranslation replaces tr.Replaced with tr.
func (t *Translator) TranslateTranslation(tr *Translation) error {
	if err := t.undo(tr.Replaced...); err != nil {
		return err
	}
	t.do(tr)
	return nil
}

// UntranslateTranslation removes tr and restores what it replaced.
func (t *Translator) UntranslateTranslation(tr *Translation) error {
	if err := t.undo(tr); err != nil {
		return err
	}
	t.do(tr.Replaced...)
	return nil
}

func (t *Translator) undo(translations ...*Translation) error {
	for i := len(translations) - 1; i >= 0; i-- {
		tr := translations[i]
		n := len(t.state.Translations)
		if n == 0 || t.state.Translations[n-1] != tr {
			return fmt.Errorf("%w: %v is not the newest translation", ErrHistory, tr)
		}
		t.state.Translations = t.state.Translations[:n-1]
		if t.toDo > 0 {
			t.toDo--
		} else {
			t.toUndo = append([]*Translation{tr}, t.toUndo...)
		}
	}
	return nil
}

func (t *Translator) do(translations ...*Translation) {
	t.state.Translations = append(t.state.Translations, translations...)
	t.toDo += len(translations)
}

type suffix struct {
	key     string
	mapping string
}

func (t *Translator) involvedSuffixes(stroke steno.Stroke, keys []string) []suffix {
	var out []suffix
	for _, key := range keys {
		if !stroke.Has(key) {
			continue
		}
		s, err := steno.NewStroke(stroke.System(), []string{key})
		if err != nil {
			continue
		}
		mapping, ok := t.lookupStrokes([]steno.Stroke{s})
		if !ok {
			continue
		}
		out = append(out, suffix{key: key, mapping: mapping})
	}
	return out
}

// findLongestMatch looks for the entry spanning the most history strokes
// plus stroke. With suffix keys it only tries the stroke with one suffix
// folded out, never the direct match.
func (t *Translator) findLongestMatch(minLen, maxLen int, stroke steno.Stroke, suffixKeys []string) *Translation {
	var suffixes []suffix
	if suffixKeys != nil {
		suffixes = t.involvedSuffixes(stroke, suffixKeys)
		if len(suffixes) == 0 {
			return nil
		}
	}
	history := t.state.Translations
	strokes := 1
	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		strokes += history[i].Len()
		if strokes > maxLen {
			break
		}
		count++
	}
	window := history[len(history)-count:]
	for i := 0; i <= len(window); i++ {
		replaced := window[i:]
		var seq []steno.Stroke
		for _, r := range replaced {
			seq = append(seq, r.Strokes...)
		}
		seq = append(seq, stroke)
		if len(seq) < minLen {
			continue
		}
		before := history[:len(history)-count+i]
		if suffixKeys == nil {
			if mapping, ok := t.lookupWithPrefix(maxLen, before, seq); ok {
				tr := New(seq, mapping)
				tr.Replaced = append([]*Translation(nil), replaced...)
				return tr
			}
			continue
		}
		for _, s := range suffixes {
			main := append(append([]steno.Stroke(nil), seq[:len(seq)-1]...), stroke.Without(s.key))
			if mapping, ok := t.lookupWithPrefix(maxLen, before, main); ok {
				tr := New(seq, mapping+" "+s.mapping)
				tr.Replaced = append([]*Translation(nil), replaced...)
				return tr
			}
		}
	}
	return nil
}

// Lookup resolves strokes directly, then with one suffix key folded out of
// the last stroke.
func (t *Translator) Lookup(strokes []steno.Stroke, suffixKeys []string) (string, bool) {
	if len(strokes) == 0 {
		return "", false
	}
	if mapping, ok := t.lookupStrokes(strokes); ok {
		return mapping, true
	}
	last := strokes[len(strokes)-1]
	for _, s := range t.involvedSuffixes(last, suffixKeys) {
		main := append(append([]steno.Stroke(nil), strokes[:len(strokes)-1]...), last.Without(s.key))
		if mapping, ok := t.lookupStrokes(main); ok {
			return mapping + " " + s.mapping, true
		}
	}
	return "", false
}

func previousWordIsFinished(last []*Translation) bool {
	if len(last) == 0 {
		return true
	}
	formatting := last[len(last)-1].Formatting
	if len(formatting) == 0 {
		return true
	}
	return formatting[len(formatting)-1].FinishesWord()
}

func (t *Translator) lookupStrokes(strokes []steno.Stroke) (string, bool) {
	return t.dict.Lookup(steno.RTFCRE(strokes))
}

// lookupWithPrefix tries the word-start form ("", strokes...) first when
// the previous word is finished.
func (t *Translator) lookupWithPrefix(maxLen int, last []*Translation, strokes []steno.Stroke) (string, bool) {
	if len(strokes) < maxLen && previousWordIsFinished(last) {
		key := append([]string{""}, steno.RTFCRE(strokes)...)
		if mapping, ok := t.dict.Lookup(key); ok {
			return mapping, true
		}
	}
	if len(strokes) <= maxLen {
		return t.lookupStrokes(strokes)
	}
	return "", false
}

// Validate checks the history invariants: no empty translation, and no
// translation kept beyond what the lookback bound needs.
func (t *Translator) Validate() error {
	total := 0
	for _, tr := range t.state.Translations {
		if tr.Len() == 0 {
			return fmt.Errorf("%w: empty translation %v", ErrHistory, tr)
		}
		total += tr.Len()
	}
	if len(t.state.Translations) > 1 {
		oldest := t.state.Translations[0].Len()
		if bound := t.bound(); total-oldest >= bound {
			return fmt.Errorf("%w: %d strokes kept for bound %d", ErrHistory, total, bound)
		}
	}
	return nil
}
