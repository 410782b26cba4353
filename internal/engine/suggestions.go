package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/verte-zerg/steno/internal/dictionary"
)

// Suggestion is one way of writing a text: the dictionary value and the
// stroke sequences mapping to it, shortest first.
type Suggestion struct {
	Text    string
	Strokes [][]string
	// Score is the similarity to the requested text, set by Similar.
	Score float64
}

// suggestionForms are the values that write a text: itself, as prefix,
// infix and suffix, fingerspelled and as a key combination.
var suggestionForms = []string{
	"%s",
	"{^%s}",
	"{^}%s",
	"{^%s^}",
	"{^}%s{^}",
	"{%s^}",
	"%s{^}",
	"{&%s}",
	"{#%s}",
}

const similarThreshold = 0.85

// Suggestions answers reverse lookups over a collection.
type Suggestions struct {
	dicts *dictionary.Collection
}

// NewSuggestions returns suggestions over dicts.
func NewSuggestions(dicts *dictionary.Collection) *Suggestions {
	return &Suggestions{dicts: dicts}
}

// Find returns the dictionary values writing text, its space-trimmed and
// lowercase forms, and values equal to it ignoring case.
func (s *Suggestions) Find(text string) []Suggestion {
	var candidates []string
	seen := map[string]bool{}
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			candidates = append(candidates, t)
		}
	}
	add(text)
	add(strings.Trim(text, " "))
	add(strings.ToLower(text))
	for _, v := range s.dicts.CaseReverse(strings.ToLower(text)) {
		add(v)
	}
	var out []Suggestion
	for _, t := range candidates {
		for _, form := range suggestionForms {
			value := fmt.Sprintf(form, t)
			strokes := s.dicts.Reverse(value)
			if len(strokes) == 0 {
				continue
			}
			sortStrokes(strokes)
			out = append(out, Suggestion{Text: value, Strokes: strokes})
		}
	}
	return out
}

// Similar ranks the plain dictionary values closest to text by
// Jaro-Winkler similarity, best first, leaving out exact matches.
func (s *Suggestions) Similar(text string, limit int) []Suggestion {
	want := strings.ToLower(strings.TrimSpace(text))
	if want == "" {
		return nil
	}
	scores := map[string]float64{}
	for _, d := range s.dicts.Dicts() {
		if !d.Enabled {
			continue
		}
		for _, value := range d.Items() {
			if _, done := scores[value]; done || strings.ContainsAny(value, "{}") {
				continue
			}
			lower := strings.ToLower(value)
			if lower == want {
				continue
			}
			if score := matchr.JaroWinkler(want, lower, false); score >= similarThreshold {
				scores[value] = score
			}
		}
	}
	out := make([]Suggestion, 0, len(scores))
	for value, score := range scores {
		strokes := s.dicts.Reverse(value)
		if len(strokes) == 0 {
			continue
		}
		sortStrokes(strokes)
		out = append(out, Suggestion{Text: value, Strokes: strokes, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Text < out[j].Text
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// sortStrokes orders by stroke count, then total key count.
func sortStrokes(strokes [][]string) {
	keys := func(s []string) int {
		n := 0
		for _, stroke := range s {
			n += len(stroke)
		}
		return n
	}
	sort.SliceStable(strokes, func(i, j int) bool {
		if len(strokes[i]) != len(strokes[j]) {
			return len(strokes[i]) < len(strokes[j])
		}
		return keys(strokes[i]) < keys(strokes[j])
	})
}
