package formatting

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/steno/internal/translation"
)

// Case names a case transformation. The same values serve as an output mode
// (Action.Case) and as a one-shot transformation of the next text
// (Action.NextCase).
type Case string

// Case transformations.
const (
	CaseNone           Case = ""
	CaseCapFirstWord   Case = "cap_first_word"
	CaseLowerFirstChar Case = "lower_first_char"
	CaseUpperFirstWord Case = "upper_first_word"
	CaseLower          Case = "lower"
	CaseUpper          Case = "upper"
	CaseTitle          Case = "title"
)

// ParseCase accepts the lowercase case names used by {:case:X} metas.
func ParseCase(name string) (Case, error) {
	switch c := Case(strings.ToLower(name)); c {
	case CaseCapFirstWord, CaseLowerFirstChar, CaseUpperFirstWord, CaseLower, CaseUpper, CaseTitle:
		return c, nil
	}
	return CaseNone, fmt.Errorf("%w: unknown case %q", ErrBadMetaArgument, name)
}

const defaultSpace = " "

// Action is the formatted form of one atom. Text is the exact string the
// action emits after PrevReplace has been erased, spaces included; the
// remaining fields are state that the next action inherits.
type Action struct {
	PrevAttach  bool
	NextAttach  bool
	Glue        bool
	Orthography bool
	// WordIsFinished is false while the next translation may still extend
	// the current word.
	WordIsFinished bool
	UpperCarry     bool
	// Case is the output mode.
	Case      Case
	NextCase  Case
	SpaceChar string
	// TrailingSpace is what currently follows the output when spaces are
	// placed after words.
	TrailingSpace string
	Word          string
	Text          string
	PrevReplace   string
	Combo         string
	Command       string

	raw      string
	hasText  bool
	joinWord bool
	wordBase string
	look     *lookahead
}

var _ translation.Action = (*Action)(nil)

// initialAction is the state before anything was written.
func initialAction(attached, capitalized bool) *Action {
	a := &Action{
		NextAttach:     attached,
		Orthography:    true,
		WordIsFinished: true,
		SpaceChar:      defaultSpace,
	}
	if capitalized {
		a.NextCase = CaseCapFirstWord
	}
	return a
}

// newState starts an action that follows a: the mode and spacing carry
// over, pending case and attach flags do not.
func (a *Action) newState() *Action {
	return &Action{
		PrevAttach:     a.NextAttach,
		Orthography:    true,
		WordIsFinished: true,
		Case:           a.Case,
		SpaceChar:      a.SpaceChar,
		TrailingSpace:  a.TrailingSpace,
		Word:           a.Word,
	}
}

// copyState clones the state of a without its output.
func (a *Action) copyState() *Action {
	return &Action{
		PrevAttach:     a.NextAttach,
		NextAttach:     a.NextAttach,
		Glue:           a.Glue,
		Orthography:    a.Orthography,
		WordIsFinished: a.WordIsFinished,
		UpperCarry:     a.UpperCarry,
		Case:           a.Case,
		NextCase:       a.NextCase,
		SpaceChar:      a.SpaceChar,
		TrailingSpace:  a.TrailingSpace,
		Word:           a.Word,
	}
}

func (a *Action) setText(s string) {
	a.Text = s
	a.hasText = true
}

// HasOutput implements translation.Action.
func (a *Action) HasOutput() bool {
	return a.Text != "" || a.PrevReplace != ""
}

// FinishesWord implements translation.Action.
func (a *Action) FinishesWord() bool {
	return a.WordIsFinished
}

// String implements fmt.Stringer.
func (a *Action) String() string {
	var parts []string
	add := func(format string, args ...any) {
		parts = append(parts, fmt.Sprintf(format, args...))
	}
	if a.PrevReplace != "" {
		add("replace=%q", a.PrevReplace)
	}
	if a.hasText {
		add("text=%q", a.Text)
	}
	if a.Word != "" {
		add("word=%q", a.Word)
	}
	if a.Combo != "" {
		add("combo=%q", a.Combo)
	}
	if a.Command != "" {
		add("command=%q", a.Command)
	}
	if a.PrevAttach {
		add("prev_attach")
	}
	if a.NextAttach {
		add("next_attach")
	}
	if a.Glue {
		add("glue")
	}
	if a.NextCase != CaseNone {
		add("next_case=%s", a.NextCase)
	}
	if a.Case != CaseNone {
		add("case=%s", a.Case)
	}
	if a.SpaceChar != defaultSpace {
		add("space_char=%q", a.SpaceChar)
	}
	return "Action(" + strings.Join(parts, ", ") + ")"
}

// actionsOf returns the formatter actions attached to t.
func actionsOf(t *translation.Translation) []*Action {
	out := make([]*Action, 0, len(t.Formatting))
	for _, fa := range t.Formatting {
		if a, ok := fa.(*Action); ok {
			out = append(out, a)
		}
	}
	return out
}

func toFormatting(actions []*Action) []translation.Action {
	out := make([]translation.Action, len(actions))
	for i, a := range actions {
		out[i] = a
	}
	return out
}
