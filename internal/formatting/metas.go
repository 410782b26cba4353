package formatting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

type metaFunc func(c *context, arg string) (*Action, error)

var namedMetas map[string]metaFunc

func init() {
	namedMetas = map[string]metaFunc{
		"attach":           metaAttach,
		"carry_capitalize": metaCarryCapitalize,
		"case":             metaCase,
		"comma":            metaComma,
		"command":          metaCommand,
		"glue":             metaGlue,
		"if_next_matches":  metaIfNextMatches,
		"key_combo":        metaKeyCombo,
		"mode":             metaMode,
		"retro_case":       metaRetroCase,
		"retro_currency":   metaRetroCurrency,
		"stop":             metaStop,
		"word_end":         metaWordEnd,
	}
}

// resolveMeta maps the content of a {meta} to its implementation and
// argument.
func resolveMeta(meta string) (metaFunc, string, error) {
	switch meta {
	case ",", ":", ";":
		return metaComma, meta, nil
	case ".", "!", "?":
		return metaStop, meta, nil
	case "-|":
		return metaCase, string(CaseCapFirstWord), nil
	case ">":
		return metaCase, string(CaseLowerFirstChar), nil
	case "<":
		return metaCase, string(CaseUpperFirstWord), nil
	case "*-|":
		return metaRetroCase, string(CaseCapFirstWord), nil
	case "*>":
		return metaRetroCase, string(CaseLowerFirstChar), nil
	case "*<":
		return metaRetroCase, string(CaseUpperFirstWord), nil
	case "$":
		return metaWordEnd, "", nil
	}
	switch {
	case strings.HasPrefix(meta, ":"):
		name, arg, _ := strings.Cut(meta[1:], ":")
		if fn, ok := namedMetas[name]; ok {
			return fn, arg, nil
		}
	case strings.HasPrefix(meta, "PLOVER:"):
		return metaCommand, strings.TrimPrefix(meta, "PLOVER:"), nil
	case strings.HasPrefix(meta, "#"):
		return metaKeyCombo, meta[1:], nil
	case strings.HasPrefix(meta, "="):
		return metaIfNextMatches, meta[1:], nil
	case strings.HasPrefix(meta, "MODE:"):
		return metaMode, strings.TrimPrefix(meta, "MODE:"), nil
	case strings.HasPrefix(meta, "*(") && strings.HasSuffix(meta, ")"):
		return metaRetroCurrency, meta[2 : len(meta)-1], nil
	case strings.HasPrefix(meta, "&"):
		return metaGlue, meta[1:], nil
	case strings.HasPrefix(strings.TrimPrefix(meta, "^"), "~|"):
		return metaCarryCapitalize, meta, nil
	case strings.HasPrefix(meta, "^") || strings.HasSuffix(meta, "^"):
		return metaAttach, meta, nil
	}
	return nil, "", fmt.Errorf("%w: {%s}", ErrUnknownMeta, meta)
}

func metaComma(c *context, text string) (*Action, error) {
	a := c.last.newState()
	a.setText(text)
	a.PrevAttach = true
	return a, nil
}

func metaStop(c *context, text string) (*Action, error) {
	a := c.last.newState()
	a.setText(text)
	a.PrevAttach = true
	a.NextCase = CaseCapFirstWord
	return a, nil
}

func metaCase(c *context, arg string) (*Action, error) {
	cs, err := ParseCase(arg)
	if err != nil {
		return nil, err
	}
	a := c.last.copyState()
	a.NextCase = cs
	return a, nil
}

func metaRetroCase(c *context, arg string) (*Action, error) {
	cs, err := ParseCase(arg)
	if err != nil {
		return nil, err
	}
	a := c.last.copyState()
	a.PrevAttach = true
	words := c.lastWords(1)
	if len(words) == 0 {
		a.setText("")
		return a, nil
	}
	text := applyCase(words[0], cs)
	a.PrevReplace = words[0]
	a.setText(text)
	if cs == CaseUpperFirstWord {
		a.UpperCarry = !hasWordBoundary(text)
	}
	return a, nil
}

func metaRetroCurrency(c *context, format string) (*Action, error) {
	a := c.last.copyState()
	words := c.lastWords(1)
	if len(words) == 0 {
		return a, nil
	}
	amount, ok := formatCurrency(strings.ReplaceAll(words[0], ",", ""))
	if !ok {
		return a, nil
	}
	a.PrevAttach = true
	a.PrevReplace = words[0]
	a.setText(strings.ReplaceAll(format, "c", amount))
	return a, nil
}

// formatCurrency groups thousands; non-integers get two decimals.
func formatCurrency(s string) (string, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return groupThousands(strconv.FormatInt(n, 10)), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", false
	}
	return groupThousands(strconv.FormatFloat(f, 'f', 2, 64)), true
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, d := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	out := sign + b.String()
	if hasFrac {
		out += "." + frac
	}
	return out
}

func metaGlue(c *context, text string) (*Action, error) {
	a := c.last.newState()
	a.Glue = true
	a.setText(text)
	if c.last.Glue {
		a.PrevAttach = true
	}
	if a.PrevAttach {
		a.joinWord = true
		a.wordBase = c.last.Word
	}
	return a, nil
}

func metaAttach(c *context, meta string) (*Action, error) {
	a := c.last.newState()
	begin := strings.HasPrefix(meta, "^")
	end := strings.HasSuffix(meta, "^")
	if !begin && !end {
		begin, end = true, true
	}
	if begin {
		meta = strings.TrimPrefix(meta, "^")
		a.PrevAttach = true
	}
	if end && meta != "" {
		meta = strings.TrimSuffix(meta, "^")
	}
	if end {
		a.NextAttach = true
		a.WordIsFinished = false
	}
	lastWord := c.last.Word
	switch {
	case meta == "":
		// An empty attach stops orthography from touching the word.
		a.Orthography = false
	case lastWord != "" && strings.TrimSpace(meta) != "" && c.last.Orthography &&
		begin && (!end || hasWordBoundary(meta)) && c.ortho != nil:
		newWord := c.ortho.AddSuffix(lastWord, meta)
		oldRunes, newRunes := []rune(lastWord), []rune(newWord)
		common := commonPrefixLen(oldRunes, newRunes)
		if replaced := len(oldRunes) - common; replaced > 0 {
			a.PrevReplace = c.lastText(replaced)
		}
		lastWord = string(oldRunes[:common])
		meta = string(newRunes[common:])
	}
	a.setText(meta)
	if a.PrevAttach {
		a.joinWord = true
		a.wordBase = lastWord
	}
	return a, nil
}

func metaCarryCapitalize(c *context, meta string) (*Action, error) {
	a := c.last.newState()
	if c.last.NextCase == CaseCapFirstWord {
		a.NextCase = CaseCapFirstWord
	}
	begin := strings.HasPrefix(meta, "^")
	if begin {
		meta = meta[1:]
		a.PrevAttach = true
	}
	meta = strings.TrimPrefix(meta, "~|")
	end := strings.HasSuffix(meta, "^")
	if end {
		meta = strings.TrimSuffix(meta, "^")
		a.NextAttach = true
		a.WordIsFinished = false
	}
	if meta != "" || begin || end {
		a.setText(meta)
	}
	return a, nil
}

func metaCommand(c *context, command string) (*Action, error) {
	a := c.last.copyState()
	a.Command = command
	return a, nil
}

func metaKeyCombo(c *context, combo string) (*Action, error) {
	a := c.last.copyState()
	a.Combo = combo
	return a, nil
}

func metaWordEnd(c *context, _ string) (*Action, error) {
	a := c.last.copyState()
	a.WordIsFinished = true
	return a, nil
}

// Output modes.
const (
	ModeCaps       = "CAPS"
	ModeLower      = "LOWER"
	ModeTitle      = "TITLE"
	ModeCamel      = "CAMEL"
	ModeSnake      = "SNAKE"
	ModeReset      = "RESET"
	ModeResetCase  = "RESET_CASE"
	ModeResetSpace = "RESET_SPACE"
	ModeSetSpace   = "SET_SPACE:"
)

func metaMode(c *context, mode string) (*Action, error) {
	a := c.last.copyState()
	if len(mode) >= len(ModeSetSpace) && strings.EqualFold(mode[:len(ModeSetSpace)], ModeSetSpace) {
		a.SpaceChar = mode[len(ModeSetSpace):]
		return a, nil
	}
	switch strings.ToUpper(mode) {
	case ModeCaps:
		a.Case = CaseUpper
	case ModeLower:
		a.Case = CaseLower
	case ModeTitle:
		a.Case = CaseTitle
	case ModeSnake:
		a.SpaceChar = "_"
	case ModeCamel:
		a.Case = CaseTitle
		a.SpaceChar = ""
		a.NextCase = CaseLowerFirstChar
	case ModeReset:
		a.Case = CaseNone
		a.SpaceChar = defaultSpace
	case ModeResetCase:
		a.Case = CaseNone
	case ModeResetSpace:
		a.SpaceChar = defaultSpace
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrBadMetaArgument, mode)
	}
	return a, nil
}

const lookaheadTimeout = 50 * time.Millisecond

// lookahead picks one of two actions depending on the text that follows.
type lookahead struct {
	pattern  *regexp2.Regexp
	branches [2]Action
	matched  bool
}

func (l *lookahead) matches(next string) bool {
	m, err := l.pattern.FindStringMatch(next)
	return err == nil && m != nil && m.Index == 0
}

// splitConditional splits "REGEX/A/B" on unescaped slashes; \/ and \\ are
// unescaped in each part.
func splitConditional(arg string) ([]string, error) {
	var parts []string
	var b strings.Builder
	for i := 0; i < len(arg); i++ {
		switch c := arg[i]; {
		case c == '\\' && i+1 < len(arg) && (arg[i+1] == '/' || arg[i+1] == '\\'):
			b.WriteByte(arg[i+1])
			i++
		case c == '/' && len(parts) < 2:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	parts = append(parts, b.String())
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected PATTERN/MATCH/OTHERWISE, got %q", ErrBadMetaArgument, arg)
	}
	return parts, nil
}

func metaIfNextMatches(c *context, arg string) (*Action, error) {
	parts, err := splitConditional(arg)
	if err != nil {
		return nil, err
	}
	rx, err := regexp2.Compile(parts[0], regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrBadMetaArgument, parts[0], err)
	}
	rx.MatchTimeout = lookaheadTimeout
	look := &lookahead{pattern: rx}
	for i, alt := range parts[1:] {
		b := c.last.newState()
		b.setText(alt)
		look.branches[i] = *b
	}
	a := c.last.newState()
	a.look = look
	return a, nil
}
