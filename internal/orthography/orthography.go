// Package orthography joins words and suffixes using spelling rules.
package orthography

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/verte-zerg/steno/internal/system"
)

// ErrRule reports an orthography rule whose pattern does not compile.
var ErrRule = errors.New("invalid orthography rule")

const matchTimeout = 50 * time.Millisecond

type rule struct {
	re          *regexp2.Regexp
	replacement string
}

// Orthography applies suffix rules, aliases and a ranked wordlist.
type Orthography struct {
	rules   []rule
	aliases map[string]string
	words   map[string]int
	errs    []error
	logger  *slog.Logger
}

// Option configures an Orthography.
type Option func(*Orthography)

// WithLogger sets the logger used to report broken rules.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orthography) {
		o.logger = l
	}
}

// New compiles rules. A rule that fails to compile is reported once and
// left out.
func New(rules []system.Rule, aliases map[string]string, words map[string]int, opts ...Option) *Orthography {
	o := &Orthography{
		aliases: aliases,
		words:   words,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	for i, r := range rules {
		re, err := regexp2.Compile(r.Pattern, regexp2.IgnoreCase)
		if err != nil {
			err = fmt.Errorf("%w #%d %q: %v", ErrRule, i, r.Pattern, err)
			o.errs = append(o.errs, err)
			o.logger.Warn("skipping orthography rule", "index", i, "pattern", r.Pattern, "err", err)
			continue
		}
		re.MatchTimeout = matchTimeout
		o.rules = append(o.rules, rule{re: re, replacement: r.Replacement})
	}
	return o
}

// FromSystem builds the orthography declared by a steno system.
func FromSystem(sys *system.System, opts ...Option) *Orthography {
	return New(sys.OrthographyRules, sys.OrthographyAliases, sys.OrthographyWords, opts...)
}

// Errors returns the rules rejected at construction.
func (o *Orthography) Errors() []error {
	return append([]error(nil), o.errs...)
}

// AddSuffix joins word and suffix. Only the suffix part before the first
// space takes part in the rules; the remainder is appended unchanged.
//
// Candidate order: alias rules found in the wordlist, the plain join when
// it is in the wordlist, then rules found in the wordlist, all stable-sorted
// by rank (lowest first). Without any wordlist hit the first matching rule
// wins, and failing that the plain join.
func (o *Orthography) AddSuffix(word, suffix string) string {
	head, rest, found := strings.Cut(suffix, " ")
	out := o.addSuffix(word, head)
	if found {
		return out + " " + rest
	}
	return out
}

func (o *Orthography) addSuffix(word, suffix string) string {
	known := func(w string) bool {
		_, ok := o.words[w]
		return ok
	}
	var candidates []string
	if alias, ok := o.aliases[suffix]; ok {
		candidates = append(candidates, o.candidates(word, alias, known)...)
	}
	simple := word + suffix
	if known(simple) {
		candidates = append(candidates, simple)
	}
	candidates = append(candidates, o.candidates(word, suffix, known)...)
	if len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			return o.words[candidates[i]] < o.words[candidates[j]]
		})
		return candidates[0]
	}
	if fallback := o.candidates(word, suffix, nil); len(fallback) > 0 {
		return fallback[0]
	}
	return simple
}

func (o *Orthography) candidates(word, suffix string, keep func(string) bool) []string {
	input := word + " ^ " + suffix
	var out []string
	for _, r := range o.rules {
		m, err := r.re.FindStringMatch(input)
		if err != nil || m == nil || m.Index != 0 {
			continue
		}
		expanded := expand(r.replacement, m)
		if keep != nil && !keep(expanded) {
			continue
		}
		out = append(out, expanded)
	}
	return out
}

// expand substitutes \N group references in template.
func expand(template string, m *regexp2.Match) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '\\' || i+1 >= len(template) {
			b.WriteByte(c)
			continue
		}
		next := template[i+1]
		switch {
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(template) && template[j] >= '0' && template[j] <= '9' {
				j++
			}
			n := 0
			for _, d := range template[i+1 : j] {
				n = n*10 + int(d-'0')
			}
			if g := m.GroupByNumber(n); g != nil {
				b.WriteString(g.String())
			}
			i = j - 1
		case next == '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
