// Package generator builds drill word sequences.
package generator

import (
	"math/rand"
	"sort"
	"strings"
	"time"
)

// Drill is a target word and the stroke sequence shown as its hint.
type Drill struct {
	Word    string
	Strokes []string
}

// Hint renders the strokes in steno notation.
func (d Drill) Hint() string {
	return strings.Join(d.Strokes, "/")
}

// ReverseFunc returns the stroke sequences writing a text.
type ReverseFunc func(text string) [][]string

// Candidates keeps the words some dictionary can write and attaches the
// shortest outline to each. Words keep their input order.
func Candidates(words []string, reverse ReverseFunc) []Drill {
	seen := map[string]bool{}
	out := make([]Drill, 0, len(words))
	for _, word := range words {
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true
		outlines := reverse(word)
		if len(outlines) == 0 {
			continue
		}
		out = append(out, Drill{Word: word, Strokes: shortest(outlines)})
	}
	return out
}

// shortest picks the outline with the fewest strokes, then the fewest keys.
// The hyphen separating the left and right bank is not a key.
func shortest(outlines [][]string) []string {
	keys := func(o []string) int {
		n := 0
		for _, s := range o {
			n += len(s) - strings.Count(s, "-")
		}
		return n
	}
	best := outlines[0]
	for _, o := range outlines[1:] {
		if len(o) < len(best) || (len(o) == len(best) && keys(o) < keys(best)) {
			best = o
		}
	}
	return best
}

// Words lists the dictionary values accepted by keep, sorted, so a drill
// can run without a word list.
func Words(values []string, keep func(string) bool) []string {
	set := map[string]struct{}{}
	for _, v := range values {
		if keep(v) {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Generator produces randomized drills.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate selects drills uniformly.
func (g *Generator) Generate(drills []Drill, count int) []Drill {
	result := make([]Drill, 0, count)
	if len(drills) == 0 {
		return result
	}
	for i := 0; i < count; i++ {
		result = append(result, drills[g.rnd.Intn(len(drills))])
	}
	return result
}

// GenerateWeighted selects drills with a bias toward weak words: a word in
// weakSet is factor+1 times as likely as the others.
func (g *Generator) GenerateWeighted(drills []Drill, count int, weakSet map[string]struct{}, factor float64) []Drill {
	result := make([]Drill, 0, count)
	if len(drills) == 0 {
		return result
	}
	weights := make([]float64, len(drills))
	total := 0.0
	for i, d := range drills {
		w := 1.0
		if _, ok := weakSet[d.Word]; ok {
			w += factor
		}
		weights[i] = w
		total += w
	}

	for i := 0; i < count; i++ {
		r := g.rnd.Float64() * total
		acc := 0.0
		idx := len(drills) - 1
		for j, w := range weights {
			acc += w
			if r <= acc {
				idx = j
				break
			}
		}
		result = append(result, drills[idx])
	}
	return result
}
