package formatting

import (
	"fmt"
	"strings"
)

// atom is either literal text or the content of a {meta}.
type atom struct {
	meta bool
	text string
}

// splitAtoms breaks a translation into atoms. Text atoms are trimmed of
// surrounding spaces and unescaped; meta atoms only lose escaped braces.
// An unclosed or nested { is an error; a stray } is literal text.
func splitAtoms(s string) ([]atom, error) {
	var atoms []atom
	start := 0
	flush := func(end int) {
		if text := strings.Trim(s[start:end], " "); text != "" {
			atoms = append(atoms, atom{text: unescapeText(text)})
		}
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			flush(i)
			meta, end, err := scanMeta(s, i)
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, atom{meta: true, text: meta})
			i = end
			start = end + 1
		}
	}
	flush(len(s))
	return atoms, nil
}

// scanMeta reads the meta opened at s[open] and returns its content and the
// index of the closing brace.
func scanMeta(s string, open int) (string, int, error) {
	var b strings.Builder
	for j := open + 1; j < len(s); j++ {
		switch c := s[j]; c {
		case '\\':
			if j+1 < len(s) && (s[j+1] == '{' || s[j+1] == '}') {
				b.WriteByte(s[j+1])
				j++
				continue
			}
			b.WriteByte(c)
		case '{':
			return "", 0, fmt.Errorf("%w: nested { at offset %d in %q", ErrMalformedTranslation, j, s)
		case '}':
			return b.String(), j, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("%w: unclosed { at offset %d in %q", ErrMalformedTranslation, open, s)
}

var textEscapes = map[byte]string{
	'{':  "{",
	'}':  "}",
	'\\': "\\",
	'n':  "\n",
	'r':  "\r",
	't':  "\t",
}

func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			if r, ok := textEscapes[s[i+1]]; ok {
				b.WriteString(r)
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
