package wordlist

import "sort"

// FilterFunc returns true when a word should be kept.
type FilterFunc func(string) bool

// Plain reports whether a word is bare lowercase ASCII, allowing inner
// apostrophes. Dictionary values with formatting operators, capitals or
// spaces fail it.
func Plain(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		ch := word[i]
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch == '\'' && i > 0 && i < len(word)-1:
		default:
			return false
		}
	}
	return true
}

// Top returns up to n words of a ranked list accepted by keep, best rank
// first. Equal ranks sort alphabetically. n <= 0 keeps every word.
func Top(ranks map[string]int, n int, keep FilterFunc) []string {
	words := make([]string, 0, len(ranks))
	for w := range ranks {
		if keep == nil || keep(w) {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		ri, rj := ranks[words[i]], ranks[words[j]]
		if ri != rj {
			return ri < rj
		}
		return words[i] < words[j]
	})
	if n > 0 && len(words) > n {
		words = words[:n]
	}
	return words
}
