package formatting

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// wordRx splits text into words: numbers with separators, words with
// apostrophes and inner hyphens, or runs of punctuation. Each word keeps its
// trailing whitespace.
var wordRx = regexp.MustCompile(`(?:\p{Nd}+(?:[.,]\p{Nd}+)+|['\p{L}\p{N}_]+[-\p{L}\p{N}_']*|[^\p{L}\p{N}_\s]+)\s*`)

func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

func title(s string) string {
	return cases.Title(language.Und).String(s)
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return upper(string(r)) + s[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return lower(string(r)) + s[size:]
}

func upperFirstWord(s string) string {
	loc := wordRx.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return upper(s[:loc[1]]) + s[loc[1]:]
}

// applyCase applies a one-shot case transformation.
func applyCase(s string, c Case) string {
	switch c {
	case CaseCapFirstWord:
		return capitalizeFirst(s)
	case CaseLowerFirstChar:
		return lowerFirst(s)
	case CaseUpperFirstWord:
		return upperFirstWord(s)
	case CaseLower:
		return lower(s)
	case CaseUpper:
		return upper(s)
	case CaseTitle:
		return title(s)
	}
	return s
}

// applyModeCase applies an output mode. Title case leaves text appended to
// the previous word alone.
func applyModeCase(s string, mode Case, appended bool) string {
	switch mode {
	case CaseUpper:
		return upper(s)
	case CaseLower:
		return lower(s)
	case CaseTitle:
		if appended {
			return s
		}
		return title(s)
	}
	return s
}

func applySpaceChar(s, spaceChar string) string {
	if spaceChar == defaultSpace {
		return s
	}
	return strings.ReplaceAll(s, defaultSpace, spaceChar)
}

func rightmostWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func hasWordBoundary(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\'') {
			return true
		}
	}
	return false
}

// lastWords returns up to count trailing words of s, oldest first, without
// their trailing whitespace.
func lastWords(s string, count int) []string {
	matches := wordRx.FindAllString(s, -1)
	if len(matches) > count {
		matches = matches[len(matches)-count:]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = strings.TrimRightFunc(m, unicode.IsSpace)
	}
	return out
}

func commonPrefixLen(a, b []rune) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// lastRunes returns the final n runes of s.
func lastRunes(s string, n int) string {
	r := []rune(s)
	if n >= len(r) {
		return s
	}
	return string(r[len(r)-n:])
}
