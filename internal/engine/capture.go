package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/verte-zerg/steno/internal/formatting"
	"github.com/verte-zerg/steno/internal/steno"
	"github.com/verte-zerg/steno/internal/translation"
)

var (
	// ErrCaptureActive reports a capture started while another runs.
	ErrCaptureActive = errors.New("capture already active")
	// ErrCaptureClosed reports use of a committed or aborted capture.
	ErrCaptureClosed = errors.New("capture closed")
	// ErrEmptyCapture reports a commit without strokes or text.
	ErrEmptyCapture = errors.New("nothing captured")
)

// captureUndoLength keeps every captured stroke in the capture's history.
const captureUndoLength = 1 << 10

// Capture records strokes and the text they produce instead of sending
// them, for commands that take steno input such as adding a translation.
// While it runs, the translator starts from an empty history, the first
// word is attached and uncapitalized, and dictionary entries mapping to the
// terminator are hidden. A single stroke mapping to the terminator ends the
// capture without being recorded; strokes after it are dropped.
//
// The captured strokes are those of the capture's translation history, so
// undone strokes and the undo strokes themselves are not part of them.
type Capture struct {
	e             *Engine
	terminator    string
	savedState    *translation.State
	savedSettings formatting.Settings
	savedUndo     int
	filterID      int
	strokes       []string
	text          []rune
	finished      bool
	closed        bool
}

// BeginCapture starts a capture. terminator is a translation such as
// "{PLOVER:ADD_TRANSLATION}"; empty means the capture only ends by Commit
// or Abort.
func (e *Engine) BeginCapture(terminator string) (*Capture, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capture != nil {
		return nil, ErrCaptureActive
	}
	c := &Capture{
		e:             e,
		terminator:    terminator,
		savedState:    e.translator.State(),
		savedSettings: e.formatter.Settings(),
		savedUndo:     e.translator.MinUndoLength(),
		filterID:      -1,
	}
	if terminator != "" {
		c.filterID = e.dicts.AddFilter(func(_ []string, value string) bool {
			return value == terminator
		})
	}
	e.translator.ClearState()
	e.translator.SetMinUndoLength(captureUndoLength)
	settings := c.savedSettings
	settings.StartAttached = true
	settings.StartCapitalized = false
	e.formatter.SetSettings(settings)
	e.capture = c
	return c, nil
}

// intercept reports whether s is consumed by the capture instead of being
// translated: the terminator stroke and anything after it.
func (c *Capture) intercept(s steno.Stroke) bool {
	if c.finished {
		return true
	}
	if c.terminator != "" {
		if v, ok := c.e.dicts.RawLookup([]string{s.RTFCRE()}); ok && v == c.terminator {
			c.finished = true
			c.e.emit(Event{Kind: EventCaptureDone, Strokes: c.historyStrokes(), Text: string(c.text)})
			return true
		}
	}
	return false
}

// historyStrokes lists the strokes of the live translations.
func (c *Capture) historyStrokes() []string {
	if c.closed {
		return slices.Clone(c.strokes)
	}
	var out []string
	for _, t := range c.e.translator.State().Translations {
		out = append(out, t.RTFCRE...)
	}
	return out
}

func (c *Capture) write(s string) {
	c.text = append(c.text, []rune(s)...)
}

func (c *Capture) backspace(n int) {
	c.text = c.text[:max(0, len(c.text)-n)]
}

// Strokes returns the captured strokes in steno notation.
func (c *Capture) Strokes() []string {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return c.historyStrokes()
}

// Text returns the text the captured strokes wrote.
func (c *Capture) Text() string {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return string(c.text)
}

// Finished reports whether the terminator stroke was seen.
func (c *Capture) Finished() bool {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return c.finished
}

// Commit maps the captured strokes to text in the dictionary at path (the
// first writable one when empty), saves it and restores the engine.
func (c *Capture) Commit(text, path string) error {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if c.closed {
		return ErrCaptureClosed
	}
	strokes := c.historyStrokes()
	if len(strokes) == 0 || text == "" {
		return fmt.Errorf("%w: %d strokes, text %q", ErrEmptyCapture, len(strokes), text)
	}
	c.restore()
	return e.addTranslation(strokes, text, path)
}

// Abort restores the engine without writing anything.
func (c *Capture) Abort() {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	if !c.closed {
		c.restore()
	}
}

func (c *Capture) restore() {
	e := c.e
	if c.filterID >= 0 {
		e.dicts.RemoveFilter(c.filterID)
	}
	c.strokes = c.historyStrokes()
	e.translator.SetState(c.savedState)
	e.translator.SetMinUndoLength(c.savedUndo)
	e.formatter.SetSettings(c.savedSettings)
	e.capture = nil
	c.closed = true
}
