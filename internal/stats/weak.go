package stats

import (
	"sort"

	"github.com/verte-zerg/steno/internal/model"
)

// SelectWeakWords selects the lowest-accuracy words from aggregates. Slow
// words break accuracy ties.
func SelectWeakWords(aggs []model.WordAggregate, top int) map[string]struct{} {
	weakSet := map[string]struct{}{}
	if len(aggs) == 0 {
		return weakSet
	}
	candidates := make([]model.WordAggregate, len(aggs))
	copy(candidates, aggs)
	sort.Slice(candidates, func(i, j int) bool {
		ai := accuracy(candidates[i])
		aj := accuracy(candidates[j])
		if ai != aj {
			return ai < aj
		}
		li, lj := latency(candidates[i]), latency(candidates[j])
		if li != lj {
			return li > lj
		}
		return candidates[i].Word < candidates[j].Word
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	for _, c := range candidates[:top] {
		weakSet[c.Word] = struct{}{}
	}
	return weakSet
}

func accuracy(agg model.WordAggregate) float64 {
	total := agg.Correct + agg.Incorrect
	if total == 0 {
		return 1.0
	}
	return float64(agg.Correct) / float64(total)
}

func latency(agg model.WordAggregate) float64 {
	if agg.LatencyCount == 0 {
		return 0
	}
	return float64(agg.LatencySumMs) / float64(agg.LatencyCount)
}
