package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/steno/internal/generator"
)

type wordState int

const (
	wordPending wordState = iota
	wordCurrent
	wordCorrect
	wordIncorrect
)

type styledWord struct {
	s     string
	width int
}

// wordStates compares the written words with the drill. Words before
// current are finished; the current one stays neutral until it is left.
func wordStates(targets []generator.Drill, typed []string, current int) []wordState {
	states := make([]wordState, len(targets))
	for i, target := range targets {
		switch {
		case i < current && i < len(typed) && typed[i] == target.Word:
			states[i] = wordCorrect
		case i < current:
			states[i] = wordIncorrect
		case i == current:
			states[i] = wordCurrent
		default:
			states[i] = wordPending
		}
	}
	return states
}

func buildStyledWords(targets []generator.Drill, typed []string, current int, hints bool) []styledWord {
	states := wordStates(targets, typed, current)
	out := make([]styledWord, 0, len(targets))
	for i, target := range targets {
		plain := target.Word
		var s string
		switch states[i] {
		case wordCorrect:
			s = correctStyle.Render(plain)
		case wordIncorrect:
			s = incorrectStyle.Render(plain)
		case wordCurrent:
			s = currentWordStyle.Render(plain)
			if hints && len(target.Strokes) > 0 {
				hint := "(" + target.Hint() + ")"
				s += hintStyle.Render(hint)
				plain += hint
			}
		default:
			s = pendingStyle.Render(plain)
		}
		out = append(out, styledWord{s: s, width: runewidth.StringWidth(plain)})
	}
	return out
}

func renderStyledWords(words []styledWord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.s
	}
	return strings.Join(parts, " ")
}

// wrapStyledWords breaks between words so no line exceeds width. A word
// wider than width gets a line of its own.
func wrapStyledWords(words []styledWord, width int) string {
	if width <= 0 {
		return renderStyledWords(words)
	}
	var out strings.Builder
	lineWidth := 0
	for i, w := range words {
		switch {
		case i == 0:
		case lineWidth+1+w.width > width:
			out.WriteRune('\n')
			lineWidth = 0
		default:
			out.WriteRune(' ')
			lineWidth++
		}
		out.WriteString(w.s)
		lineWidth += w.width
	}
	return out.String()
}
