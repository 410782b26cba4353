// Package steno models strokes and steno notation.
package steno

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/verte-zerg/steno/internal/system"
)

// StrokeDelimiter separates strokes in steno notation.
const StrokeDelimiter = "/"

var (
	// ErrInvalidKey reports a key the system does not declare.
	ErrInvalidKey = errors.New("invalid steno key")
	// ErrIncompatibleSystem reports a stroke used under a system other than
	// the one it was built for.
	ErrIncompatibleSystem = errors.New("incompatible steno system")
	// ErrBadStenoSyntax reports steno notation that cannot be parsed.
	ErrBadStenoSyntax = errors.New("bad steno syntax")
)

// Stroke is a canonical chord tied to the system that produced it.
// Strokes are values; two strokes with the same system and keys are equal.
type Stroke struct {
	sys          *system.System
	mask         uint64
	rtfcre       string
	isCorrection bool
}

// NewStroke builds a stroke from key names. Number forms such as "1-" are
// accepted and imply the number key.
func NewStroke(sys *system.System, keys []string) (Stroke, error) {
	var mask uint64
	for _, key := range keys {
		if plain, ok := sys.KeyForNumber(key); ok && plain != key {
			idx, _ := sys.KeyIndex(plain)
			mask |= 1 << uint(idx)
			if sys.NumberKey != "" {
				nidx, _ := sys.KeyIndex(sys.NumberKey)
				mask |= 1 << uint(nidx)
			}
			continue
		}
		idx, ok := keyPosition(sys, key)
		if !ok {
			return Stroke{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		mask |= 1 << uint(idx)
	}
	return fromMask(sys, mask), nil
}

// MustStroke is like NewStroke but panics on error. Meant for tests and
// static tables.
func MustStroke(sys *system.System, keys ...string) Stroke {
	s, err := NewStroke(sys, keys)
	if err != nil {
		panic(err)
	}
	return s
}

func keyPosition(sys *system.System, key string) (int, bool) {
	for i, k := range sys.Keys {
		if k == key {
			return i, true
		}
	}
	return 0, false
}

func fromMask(sys *system.System, mask uint64) Stroke {
	s := Stroke{sys: sys, mask: mask}
	s.rtfcre = render(sys, mask)
	s.isCorrection = s.rtfcre == sys.UndoStroke
	return s
}

func render(sys *system.System, mask uint64) string {
	keys := maskKeys(sys, mask)
	if len(keys) == 0 {
		return ""
	}
	hasNumberKey := sys.NumberKey != "" && mask&keyBit(sys, sys.NumberKey) != 0
	implicit := false
	for _, key := range keys {
		if sys.IsImplicitHyphen(key) {
			implicit = true
		}
	}
	if hasNumberKey {
		numeral := false
		for i, key := range keys {
			if n, ok := sys.NumberFor(key); ok {
				keys[i] = n
				numeral = true
			}
		}
		if numeral {
			out := keys[:0]
			for _, key := range keys {
				if key != sys.NumberKey {
					out = append(out, key)
				}
			}
			keys = out
		}
	}
	if implicit {
		var b strings.Builder
		for _, key := range keys {
			b.WriteString(strings.Trim(key, "-"))
		}
		return b.String()
	}
	var pre, post strings.Builder
	for _, key := range keys {
		if strings.HasPrefix(key, "-") {
			post.WriteString(strings.Trim(key, "-"))
			continue
		}
		pre.WriteString(strings.Trim(key, "-"))
	}
	if post.Len() > 0 {
		return pre.String() + "-" + post.String()
	}
	return pre.String()
}

func maskKeys(sys *system.System, mask uint64) []string {
	keys := make([]string, 0, bits.OnesCount64(mask))
	for i, key := range sys.Keys {
		if mask&(1<<uint(i)) != 0 {
			keys = append(keys, key)
		}
	}
	return keys
}

func keyBit(sys *system.System, key string) uint64 {
	idx, ok := keyPosition(sys, key)
	if !ok {
		return 0
	}
	return 1 << uint(idx)
}

// System returns the system the stroke belongs to.
func (s Stroke) System() *system.System {
	return s.sys
}

// Keys returns the pressed keys in system order.
func (s Stroke) Keys() []string {
	if s.sys == nil {
		return nil
	}
	return maskKeys(s.sys, s.mask)
}

// RTFCRE returns the canonical textual form.
func (s Stroke) RTFCRE() string {
	return s.rtfcre
}

// String implements fmt.Stringer.
func (s Stroke) String() string {
	return s.rtfcre
}

// IsCorrection reports whether the stroke is the system's undo stroke.
func (s Stroke) IsCorrection() bool {
	return s.isCorrection
}

// IsEmpty reports whether no key is pressed.
func (s Stroke) IsEmpty() bool {
	return s.mask == 0
}

// Equal reports whether both strokes hold the same keys of the same system.
func (s Stroke) Equal(o Stroke) bool {
	return s.sys == o.sys && s.mask == o.mask
}

// Render returns the textual form under sys, refusing to reinterpret the
// key mask of another system.
func (s Stroke) Render(sys *system.System) (string, error) {
	if sys != s.sys {
		return "", fmt.Errorf("%w: stroke %q belongs to %q", ErrIncompatibleSystem, s.rtfcre, systemName(s.sys))
	}
	return s.rtfcre, nil
}

// Has reports whether key is pressed.
func (s Stroke) Has(key string) bool {
	return s.mask&keyBit(s.sys, key) != 0
}

// Without returns the stroke with key released.
func (s Stroke) Without(key string) Stroke {
	return fromMask(s.sys, s.mask&^keyBit(s.sys, key))
}

// Toggled returns the stroke with key flipped.
func (s Stroke) Toggled(key string) (Stroke, error) {
	bit := keyBit(s.sys, key)
	if bit == 0 {
		return Stroke{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return fromMask(s.sys, s.mask^bit), nil
}

func systemName(sys *system.System) string {
	if sys == nil {
		return "<none>"
	}
	return sys.Name
}

// SortStenoKeys orders keys by the system's key order. Unknown keys sort
// last, keeping their relative order.
func SortStenoKeys(sys *system.System, keys []string) []string {
	out := append([]string(nil), keys...)
	rank := func(key string) int {
		if idx, ok := sys.KeyIndex(key); ok {
			return idx
		}
		return len(sys.Keys)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i]) < rank(out[j])
	})
	return out
}

// RTFCRE joins the textual forms of strokes.
func RTFCRE(strokes []Stroke) []string {
	out := make([]string, len(strokes))
	for i, s := range strokes {
		out[i] = s.rtfcre
	}
	return out
}
