// Package keycombo parses key combination strings such as
// "control_l(shift(a)) return" into press and release events.
package keycombo

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrSyntax reports an invalid character or unbalanced parentheses.
	ErrSyntax = errors.New("key combo syntax error")
	// ErrUnknownKey reports a key name the lookup does not know.
	ErrUnknownKey = errors.New("unknown key")
	// ErrAlreadyPressed reports a key pressed again while it is held.
	ErrAlreadyPressed = errors.New("key already pressed")
)

// Event is one key press or release. Key is the code returned by the
// lookup used for parsing.
type Event struct {
	Key     string
	Pressed bool
}

// String renders the event as +key or -key.
func (e Event) String() string {
	if e.Pressed {
		return "+" + e.Key
	}
	return "-" + e.Key
}

// Lookup maps a lowercase key name to a key code.
type Lookup func(name string) (string, bool)

// AnyKey accepts every name as its own code.
func AnyKey(name string) (string, bool) {
	return name, true
}

// Parse turns combo into key events. A bare name is pressed and released;
// name(...) holds name while the inner sequence runs. Names are case
// insensitive. Nothing is returned unless the whole string is valid.
func Parse(combo string, lookup Lookup) ([]Event, error) {
	if lookup == nil {
		lookup = AnyKey
	}
	var (
		events []Event
		down   []string
	)
	offset := 0
	for _, token := range tokenize(combo) {
		fail := func(kind error, details string) error {
			marked := combo[:offset] + "[" + token + "]" + combo[offset+len(token):]
			return fmt.Errorf("%w: %s in %q", kind, details, marked)
		}
		switch {
		case strings.TrimSpace(token) == "":
		case isNameRune(firstRune(token)):
			name, hold := strings.CutSuffix(token, "(")
			name = strings.ToLower(strings.TrimRightFunc(name, unicode.IsSpace))
			code, ok := lookup(name)
			if !ok {
				return nil, fail(ErrUnknownKey, fmt.Sprintf("unknown key %q", name))
			}
			for _, held := range down {
				if held == code {
					return nil, fail(ErrAlreadyPressed, fmt.Sprintf("key %q already pressed", name))
				}
			}
			events = append(events, Event{Key: code, Pressed: true})
			if hold {
				down = append(down, code)
			} else {
				events = append(events, Event{Key: code})
			}
		case token == ")":
			if len(down) == 0 {
				return nil, fail(ErrSyntax, `unbalanced ")"`)
			}
			code := down[len(down)-1]
			down = down[:len(down)-1]
			events = append(events, Event{Key: code})
		default:
			return nil, fail(ErrSyntax, fmt.Sprintf("invalid character %q", token))
		}
		offset += len(token)
	}
	if len(down) > 0 {
		return nil, fmt.Errorf("%w: unbalanced \"(\" in %q", ErrSyntax, combo)
	}
	return events, nil
}

// tokenize splits combo into whitespace runs, names (with an optional
// opening parenthesis, possibly after spaces) and single characters.
func tokenize(combo string) []string {
	var tokens []string
	runes := []rune(combo)
	for i := 0; i < len(runes); {
		start := i
		switch r := runes[i]; {
		case unicode.IsSpace(r):
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
		case isNameRune(r):
			for i < len(runes) && isNameRune(runes[i]) {
				i++
			}
			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && runes[j] == '(' {
				i = j + 1
			}
		default:
			i++
		}
		tokens = append(tokens, string(runes[start:i]))
	}
	return tokens
}

func isNameRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
