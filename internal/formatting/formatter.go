// Package formatting renders translations into keyboard output: text with
// attach, glue, case and mode handling, key combinations and engine
// commands, emitted as minimal edits.
package formatting

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/verte-zerg/steno/internal/orthography"
	"github.com/verte-zerg/steno/internal/steno"
	"github.com/verte-zerg/steno/internal/translation"
)

var (
	// ErrMalformedTranslation reports a translation string that does not
	// split into atoms.
	ErrMalformedTranslation = errors.New("malformed translation")
	// ErrUnknownMeta reports a {meta} with no implementation.
	ErrUnknownMeta = errors.New("unknown meta")
	// ErrBadMetaArgument reports a meta argument that cannot be used.
	ErrBadMetaArgument = errors.New("bad meta argument")
)

// Output receives the edits. Implementations synthesize keyboard events or
// record them.
type Output interface {
	SendBackspaces(n int)
	SendString(s string)
	SendKeyCombination(combo string)
	SendEngineCommand(command string)
}

// SpacePlacement selects where the space between words is written.
type SpacePlacement string

// Space placements, named as in configuration files.
const (
	SpaceBeforeOutput SpacePlacement = "Before Output"
	SpaceAfterOutput  SpacePlacement = "After Output"
)

// ParseSpacePlacement validates a configured placement; empty means before.
func ParseSpacePlacement(s string) (SpacePlacement, error) {
	switch p := SpacePlacement(s); p {
	case "":
		return SpaceBeforeOutput, nil
	case SpaceBeforeOutput, SpaceAfterOutput:
		return p, nil
	}
	return "", fmt.Errorf("invalid space placement %q", s)
}

// Settings is the part of the formatter state that applies when there is no
// previous output.
type Settings struct {
	SpacePlacement   SpacePlacement
	StartAttached    bool
	StartCapitalized bool
	SpaceChar        string
}

// Formatter turns translator diffs into Output edits. It implements
// translation.Listener.
type Formatter struct {
	out      Output
	ortho    *orthography.Orthography
	settings Settings
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithOutput sets the edit receiver.
func WithOutput(o Output) Option {
	return func(f *Formatter) {
		f.out = o
	}
}

// WithOrthography enables suffix spelling rules.
func WithOrthography(o *orthography.Orthography) Option {
	return func(f *Formatter) {
		f.ortho = o
	}
}

// New returns a formatter writing spaces before words.
func New(opts ...Option) *Formatter {
	f := &Formatter{settings: Settings{SpacePlacement: SpaceBeforeOutput, SpaceChar: defaultSpace}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetOutput replaces the edit receiver; nil discards edits.
func (f *Formatter) SetOutput(o Output) {
	f.out = o
}

// SetOrthography replaces the suffix rules; nil joins suffixes verbatim.
func (f *Formatter) SetOrthography(o *orthography.Orthography) {
	f.ortho = o
}

// Settings returns the current settings.
func (f *Formatter) Settings() Settings {
	return f.settings
}

// SetSettings replaces the settings.
func (f *Formatter) SetSettings(s Settings) {
	if s.SpacePlacement == "" {
		s.SpacePlacement = SpaceBeforeOutput
	}
	f.settings = s
}

// SetSpacePlacement selects where spaces are written.
func (f *Formatter) SetSpacePlacement(p SpacePlacement) {
	f.settings.SpacePlacement = p
}

// SetStartAttached suppresses the space before the first word.
func (f *Formatter) SetStartAttached(v bool) {
	f.settings.StartAttached = v
}

// SetStartCapitalized capitalizes the first word.
func (f *Formatter) SetStartCapitalized(v bool) {
	f.settings.StartCapitalized = v
}

func (f *Formatter) initial() *Action {
	a := initialAction(f.settings.StartAttached, f.settings.StartCapitalized)
	if f.settings.SpaceChar != "" {
		a.SpaceChar = f.settings.SpaceChar
	}
	return a
}

// Translated implements translation.Listener.
func (f *Formatter) Translated(undo, do, prev []*translation.Translation) error {
	return f.Format(undo, do, prev)
}

// Format attaches actions to do, then emits the edit turning the output of
// undo into the output of do. A translation that fails to format keeps an
// action without output and the error is returned once everything else was
// emitted.
func (f *Formatter) Format(undo, do, prev []*translation.Translation) error {
	if len(undo) == 0 && len(do) == 0 {
		return nil
	}
	var old []*Action
	for _, t := range undo {
		old = append(old, actionsOf(t)...)
	}
	c := f.newContext(prev)
	var errs []error
	var fresh []*Action
	for _, t := range do {
		actions, err := c.translate(t)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to format %v: %w", t, err))
		}
		t.Formatting = toFormatting(actions)
		fresh = append(fresh, actions...)
	}
	oldTail, newTail := resolveLookahead(c.prev, fresh)
	old = append(oldTail, old...)
	fresh = append(newTail, fresh...)

	i := 0
	for i < len(old) && i < len(fresh) && *old[i] == *fresh[i] {
		i++
	}
	f.render(old[i:], fresh[i:])
	return errors.Join(errs...)
}

// LastAction returns the state the next translation would start from.
func (f *Formatter) LastAction(prev []*translation.Translation) *Action {
	return f.newContext(prev).last
}

func (f *Formatter) newContext(prev []*translation.Translation) *context {
	c := &context{
		spacesAfter: f.settings.SpacePlacement == SpaceAfterOutput,
		ortho:       f.ortho,
	}
	for _, t := range prev {
		c.prev = append(c.prev, actionsOf(t)...)
	}
	if len(c.prev) > 0 {
		c.last = c.prev[len(c.prev)-1]
	} else {
		c.last = f.initial()
	}
	return c
}

func (f *Formatter) render(undo, do []*Action) {
	if f.out == nil || (len(undo) == 0 && len(do) == 0) {
		return
	}
	base := erasedContext(undo, do)
	before := applyActions(base, undo)
	after := append([]rune(nil), base...)
	flush := func() {
		common := commonPrefixLen(before, after)
		if n := len(before) - common; n > 0 {
			f.out.SendBackspaces(n)
		}
		if common < len(after) {
			f.out.SendString(string(after[common:]))
		}
		before = append(before[:0], after...)
	}
	for _, a := range do {
		switch {
		case a.Combo != "":
			flush()
			f.out.SendKeyCombination(a.Combo)
		case a.Command != "":
			flush()
			f.out.SendEngineCommand(a.Command)
		default:
			after = applyActions(after, []*Action{a})
		}
	}
	flush()
}

// erasedContext reconstructs the end of the existing output that the
// replacements of any sequence reach into, from the replaced text itself.
func erasedContext(seqs ...[]*Action) []rune {
	var ctx []rune
	for _, seq := range seqs {
		var buf []rune
		eaten := 0
		for _, a := range seq {
			rep := []rune(a.PrevReplace)
			if len(rep) > len(buf) {
				extra := rep[:len(rep)-len(buf)]
				if need := eaten + len(extra) - len(ctx); need > 0 {
					ctx = append(append([]rune(nil), extra[:need]...), ctx...)
				}
				eaten += len(extra)
				buf = buf[:0]
			} else {
				buf = buf[:len(buf)-len(rep)]
			}
			buf = append(buf, []rune(a.Text)...)
		}
	}
	return ctx
}

func applyActions(base []rune, actions []*Action) []rune {
	buf := append([]rune(nil), base...)
	for _, a := range actions {
		n := min(len([]rune(a.PrevReplace)), len(buf))
		buf = append(buf[:len(buf)-n], []rune(a.Text)...)
	}
	return buf
}

// resolveLookahead picks conditional branches from the text that follows
// them. Branches inside fresh are fixed in place; for earlier output it
// returns the actions to redo, as they were and as they are now.
func resolveLookahead(prev, fresh []*Action) (oldTail, newTail []*Action) {
	next := ""
	for i := len(fresh) - 1; i >= 0; i-- {
		a := fresh[i]
		if a.look != nil {
			a.resolve(next)
		}
		if a.raw != "" {
			next = a.raw
		}
	}
	earliest := -1
	saved := map[int]Action{}
	for i := len(prev) - 1; i >= 0; i-- {
		a := prev[i]
		if a.look == nil {
			if a.raw != "" {
				break
			}
			continue
		}
		before := *a
		if a.resolve(next) {
			saved[i] = before
			earliest = i
		} else if a.raw != "" {
			break
		}
		if a.raw != "" {
			next = a.raw
		}
	}
	if earliest < 0 {
		return nil, nil
	}
	for i := earliest; i < len(prev); i++ {
		if s, ok := saved[i]; ok {
			oldTail = append(oldTail, &s)
		} else {
			oldTail = append(oldTail, prev[i])
		}
		newTail = append(newTail, prev[i])
	}
	return oldTail, newTail
}

// resolve switches a to the branch selected by next and reports whether it
// changed.
func (a *Action) resolve(next string) bool {
	l := a.look
	m := l.matches(next)
	if m == l.matched {
		return false
	}
	l.matched = m
	a.pick()
	return true
}

func (a *Action) pick() {
	l := a.look
	if l.matched {
		*a = l.branches[0]
	} else {
		*a = l.branches[1]
	}
	a.look = l
}

// context is the state while formatting one diff.
type context struct {
	prev        []*Action
	translated  []*Action
	last        *Action
	spacesAfter bool
	ortho       *orthography.Orthography
}

func (c *context) push(a *Action) {
	c.translated = append(c.translated, a)
	c.last = a
}

// visibleText is the reconstructed output without the pending trailing
// space.
func (c *context) visibleText() string {
	all := make([]*Action, 0, len(c.prev)+len(c.translated))
	all = append(all, c.prev...)
	all = append(all, c.translated...)
	text := string(applyActions(nil, all))
	return strings.TrimSuffix(text, c.last.TrailingSpace)
}

func (c *context) lastText(n int) string {
	return lastRunes(c.visibleText(), n)
}

func (c *context) lastWords(n int) []string {
	return lastWords(c.visibleText(), n)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (c *context) translate(t *translation.Translation) ([]*Action, error) {
	if !t.HasEnglish {
		return c.raw(strings.Join(t.RTFCRE, steno.StrokeDelimiter))
	}
	return c.english(t.English)
}

// raw renders an untranslated stroke. Numbers lose their hyphen and are
// glued to neighbouring numbers.
func (c *context) raw(stroke string) ([]*Action, error) {
	if noDash := strings.Replace(stroke, "-", "", 1); isDigits(noDash) {
		return c.english(noDash)
	}
	start := len(c.translated)
	a := c.last.newState()
	a.setText(stroke)
	c.finalize(a)
	c.push(a)
	return c.translated[start:], nil
}

func (c *context) english(s string) ([]*Action, error) {
	var atoms []atom
	if isDigits(s) {
		atoms = []atom{{meta: true, text: "&" + s}}
	} else {
		var err error
		if atoms, err = splitAtoms(s); err != nil {
			return c.failed(err)
		}
	}
	start, last := len(c.translated), c.last
	for _, at := range atoms {
		a, err := c.atom(at)
		if err != nil {
			c.translated, c.last = c.translated[:start], last
			return c.failed(err)
		}
		c.push(a)
	}
	if len(c.translated) == start {
		c.push(c.last.copyState())
	}
	return append([]*Action(nil), c.translated[start:]...), nil
}

// failed records an action without output so the translation can still be
// undone.
func (c *context) failed(err error) ([]*Action, error) {
	a := c.last.copyState()
	c.push(a)
	return []*Action{a}, err
}

func (c *context) atom(at atom) (*Action, error) {
	if !at.meta {
		a := c.last.newState()
		a.setText(at.text)
		c.finalize(a)
		return a, nil
	}
	fn, arg, err := resolveMeta(at.text)
	if err != nil {
		return nil, err
	}
	a, err := fn(c, arg)
	if err != nil {
		return nil, err
	}
	if l := a.look; l != nil {
		for i := range l.branches {
			c.finalize(&l.branches[i])
		}
		l.matched = l.matches("")
		a.pick()
		return a, nil
	}
	c.finalize(a)
	return a, nil
}

// finalize applies pending case, the output mode and spacing to the text
// of a.
func (c *context) finalize(a *Action) {
	if !a.hasText {
		return
	}
	last := c.last
	text := a.Text
	cs := last.NextCase
	if cs == CaseNone && a.PrevAttach && last.UpperCarry {
		cs = CaseUpperFirstWord
	}
	text = applyCase(text, cs)
	if cs == CaseUpperFirstWord {
		a.UpperCarry = !hasWordBoundary(text)
	}
	if a.joinWord {
		a.Word = rightmostWord(a.wordBase + text)
	} else {
		a.Word = rightmostWord(text)
	}
	text = applyModeCase(text, a.Case, a.PrevAttach)
	text = applySpaceChar(text, a.SpaceChar)
	if last.NextCase == CaseLowerFirstChar {
		text = lowerFirst(text)
	}
	a.raw = text

	if !c.spacesAfter {
		if !a.PrevAttach && text != "" {
			text = a.SpaceChar + text
		}
		a.Text = text
		return
	}
	if a.PrevAttach || text != "" {
		if a.PrevAttach {
			a.PrevReplace += last.TrailingSpace
		}
		a.TrailingSpace = ""
		if !a.NextAttach {
			a.TrailingSpace = a.SpaceChar
		}
		text += a.TrailingSpace
	}
	a.Text = text
}
