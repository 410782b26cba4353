package stats

import (
	"sort"

	"github.com/verte-zerg/steno/internal/model"
)

// TopWordsByFrequency returns the n most drilled words.
func TopWordsByFrequency(aggs []model.WordAggregate, n int) []string {
	if n <= 0 || len(aggs) == 0 {
		return nil
	}
	items := make([]model.WordAggregate, len(aggs))
	copy(items, aggs)
	total := func(a model.WordAggregate) int { return a.Correct + a.Incorrect }
	sort.Slice(items, func(i, j int) bool {
		if total(items[i]) == total(items[j]) {
			return items[i].Word < items[j].Word
		}
		return total(items[i]) > total(items[j])
	})
	n = min(n, len(items))
	out := make([]string, 0, n)
	for _, item := range items[:n] {
		out = append(out, item.Word)
	}
	return out
}
