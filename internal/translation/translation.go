// Package translation turns strokes into dictionary translations with a
// bounded, undoable history.
package translation

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/steno/internal/steno"
)

// Action is what a formatter attaches to an emitted translation.
type Action interface {
	// HasOutput reports whether the action wrote or replaced text.
	HasOutput() bool
	// FinishesWord reports whether a following translation starts a new word.
	FinishesWord() bool
}

// Translation is one lookup result and the strokes that produced it.
type Translation struct {
	Strokes []steno.Stroke
	RTFCRE  []string
	// English is the looked up value; meaningless unless HasEnglish.
	English    string
	HasEnglish bool
	// Replaced lists the translations this one superseded.
	Replaced               []*Translation
	Formatting             []Action
	IsRetrospectiveCommand bool
}

// New returns a translation mapped to english.
func New(strokes []steno.Stroke, english string) *Translation {
	return &Translation{
		Strokes:    strokes,
		RTFCRE:     steno.RTFCRE(strokes),
		English:    english,
		HasEnglish: true,
	}
}

// NewRaw returns an untranslated translation, rendered from its strokes.
func NewRaw(strokes []steno.Stroke) *Translation {
	return &Translation{
		Strokes: strokes,
		RTFCRE:  steno.RTFCRE(strokes),
	}
}

// Len returns the stroke count.
func (t *Translation) Len() int {
	return len(t.Strokes)
}

// HasUndo reports whether undoing t changes the output.
func (t *Translation) HasUndo() bool {
	if len(t.Formatting) == 0 || len(t.Replaced) > 0 {
		return true
	}
	for _, a := range t.Formatting {
		if a.HasOutput() {
			return true
		}
	}
	return false
}

// Equal compares steno and english.
func (t *Translation) Equal(o *Translation) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.HasEnglish != o.HasEnglish || t.English != o.English || len(t.RTFCRE) != len(o.RTFCRE) {
		return false
	}
	for i := range t.RTFCRE {
		if t.RTFCRE[i] != o.RTFCRE[i] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (t *Translation) String() string {
	english := "None"
	if t.HasEnglish {
		english = fmt.Sprintf("%q", t.English)
	}
	return fmt.Sprintf("(%s : %s)", strings.Join(t.RTFCRE, steno.StrokeDelimiter), english)
}

// State is the translator's history: recent translations plus a tail that
// aged out of undo range but still provides context.
type State struct {
	Translations []*Translation
	Tail         *Translation
}

// Prev returns the translations preceding the last count ones, falling back
// to the tail. count <= 0 means all of them.
func (s *State) Prev(count int) []*Translation {
	if len(s.Translations) > 0 {
		if count <= 0 {
			return s.Translations
		}
		if count < len(s.Translations) {
			return s.Translations[:len(s.Translations)-count]
		}
	}
	if s.Tail != nil {
		return []*Translation{s.Tail}
	}
	return nil
}

// StrokeCount sums the strokes in the history.
func (s *State) StrokeCount() int {
	n := 0
	for _, t := range s.Translations {
		n += t.Len()
	}
	return n
}

// RestrictSize keeps the newest translations holding at least n strokes;
// the newest of the dropped ones becomes the tail.
func (s *State) RestrictSize(n int) {
	strokes := 0
	kept := 0
	for i := len(s.Translations) - 1; i >= 0; i-- {
		strokes += s.Translations[i].Len()
		kept++
		if strokes >= n {
			break
		}
	}
	cut := len(s.Translations) - kept
	if cut > 0 {
		s.Tail = s.Translations[cut-1]
		s.Translations = append([]*Translation(nil), s.Translations[cut:]...)
	}
}
