package steno

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/steno/internal/system"
)

// ParseStroke reads one stroke in steno notation. The empty string is the
// empty stroke used as a word-start prefix.
func ParseStroke(sys *system.System, text string) (Stroke, error) {
	if text == "" {
		return Stroke{sys: sys}, nil
	}
	var mask uint64
	pos := 0
	hyphen := false
	center := false
	numeral := false
	rest := text
	for rest != "" {
		if sys.NumberKey != "" && strings.HasPrefix(rest, sys.NumberKey) &&
			(sys.FeralNumberKey || len(rest) == len(text)) {
			mask |= keyBit(sys, sys.NumberKey)
			rest = rest[len(sys.NumberKey):]
			continue
		}
		if rest[0] == '-' {
			if hyphen {
				return Stroke{}, badSyntax(text, "repeated hyphen")
			}
			hyphen = true
			rest = rest[1:]
			continue
		}
		idx, width, digit, ok := matchKey(sys, rest, pos, hyphen, center)
		if !ok {
			return Stroke{}, badSyntax(text, fmt.Sprintf("unexpected %q", rest))
		}
		key := sys.Keys[idx]
		if sys.IsImplicitHyphen(key) {
			center = true
		}
		if digit {
			numeral = true
		}
		mask |= 1 << uint(idx)
		pos = idx + 1
		rest = rest[width:]
	}
	if numeral && sys.NumberKey != "" {
		mask |= keyBit(sys, sys.NumberKey)
	}
	return fromMask(sys, mask), nil
}

// matchKey finds the first key at or after pos whose symbol (or number
// form) prefixes rest and whose bank is reachable.
func matchKey(sys *system.System, rest string, pos int, hyphen, center bool) (idx, width int, digit, ok bool) {
	for i := pos; i < len(sys.Keys); i++ {
		key := sys.Keys[i]
		if key == sys.NumberKey {
			continue
		}
		right := strings.HasPrefix(key, "-")
		if hyphen && !right {
			continue
		}
		if right && !hyphen && !center && !sys.IsImplicitHyphen(key) {
			continue
		}
		if sym := strings.Trim(key, "-"); sym != "" && strings.HasPrefix(rest, sym) {
			return i, len(sym), false, true
		}
		if n, has := sys.NumberFor(key); has {
			if sym := strings.Trim(n, "-"); sym != "" && strings.HasPrefix(rest, sym) {
				return i, len(sym), true, true
			}
		}
	}
	return 0, 0, false, false
}

func badSyntax(text, detail string) error {
	return fmt.Errorf("%w: %q: %s", ErrBadStenoSyntax, text, detail)
}

// ParseSteno reads "A/B/C" into strokes.
func ParseSteno(sys *system.System, text string) ([]Stroke, error) {
	parts := strings.Split(text, StrokeDelimiter)
	strokes := make([]Stroke, 0, len(parts))
	for _, part := range parts {
		s, err := ParseStroke(sys, normalizeText(sys, part))
		if err != nil {
			return nil, err
		}
		strokes = append(strokes, s)
	}
	return strokes, nil
}

// NormalizeStroke rewrites one stroke to its canonical textual form.
func NormalizeStroke(sys *system.System, text string) (string, error) {
	s, err := ParseStroke(sys, normalizeText(sys, text))
	if err != nil {
		return "", err
	}
	return s.rtfcre, nil
}

// NormalizeSteno rewrites "A/B/C" to canonical stroke forms, failing on
// anything the system cannot express.
func NormalizeSteno(sys *system.System, text string) ([]string, error) {
	parts := strings.Split(text, StrokeDelimiter)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		n, err := NormalizeStroke(sys, part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// NormalizeStenoLoose is NormalizeSteno for dictionary data: strokes that
// do not parse keep their textually normalized form.
func NormalizeStenoLoose(sys *system.System, text string) []string {
	parts := strings.Split(text, StrokeDelimiter)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		fixed := normalizeText(sys, part)
		if s, err := ParseStroke(sys, fixed); err == nil {
			fixed = s.rtfcre
		}
		out = append(out, fixed)
	}
	return out
}

// normalizeText applies the textual rules: number sign removal with
// implicit-number hyphen insertion, trailing hyphen removal, and hyphen
// collapsing next to implicit-hyphen keys.
func normalizeText(sys *system.System, stroke string) string {
	if hasDigit(stroke) {
		if sys.NumberKey != "" {
			stroke = strings.ReplaceAll(stroke, sys.NumberKey, "")
		}
		if at := implicitNumberSplit(sys, stroke); at >= 0 {
			return stroke[:at] + "-" + stroke[at:]
		}
	}
	if !strings.Contains(stroke, "-") {
		return stroke
	}
	if strings.HasSuffix(stroke, "-") {
		return stroke[:len(stroke)-1]
	}
	if containsImplicit(sys, stroke) {
		return strings.ReplaceAll(stroke, "-", "")
	}
	return stroke
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// implicitNumberSplit finds a right-bank digit that starts the stroke or
// directly follows a left-bank digit, where a hyphen is implied.
func implicitNumberSplit(sys *system.System, stroke string) int {
	left, right := numberBanks(sys)
	if left == "" || right == "" {
		return -1
	}
	for i := 0; i < len(stroke); i++ {
		if !strings.ContainsRune(right, rune(stroke[i])) {
			continue
		}
		if i == 0 || strings.ContainsRune(left, rune(stroke[i-1])) {
			return i
		}
	}
	return -1
}

func numberBanks(sys *system.System) (left, right string) {
	var l, r strings.Builder
	for key, n := range sys.Numbers {
		if sys.IsImplicitHyphen(key) {
			continue
		}
		sym := strings.Trim(n, "-")
		if strings.HasPrefix(n, "-") {
			r.WriteString(sym)
		} else {
			l.WriteString(sym)
		}
	}
	return l.String(), r.String()
}

func containsImplicit(sys *system.System, stroke string) bool {
	for _, key := range sys.ImplicitHyphenKeys {
		if sym := strings.Trim(key, "-"); sym != "" && strings.Contains(stroke, sym) {
			return true
		}
		if n, ok := sys.NumberFor(key); ok {
			if sym := strings.Trim(n, "-"); sym != "" && strings.Contains(stroke, sym) {
				return true
			}
		}
	}
	return false
}
