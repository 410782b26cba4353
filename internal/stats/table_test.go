package stats

import (
	"strings"
	"testing"

	"github.com/verte-zerg/steno/internal/model"
)

func TestWordTableLinesAlignsColumns(t *testing.T) {
	lines := wordTableLines([]model.WordAggregate{
		{Word: "hello", Correct: 3, Incorrect: 1, Strokes: 6, LatencySumMs: 900, LatencyCount: 3},
		{Word: "日本", Correct: 1, Strokes: 1},
	})
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	sp := strings.Repeat
	want := []string{
		"Word  Accuracy Avg Latency (ms) Strokes/try Correct Incorrect",
		"hello   75.00% " + sp(" ", 11) + "300.0 " + sp(" ", 7) + "1.50 " + sp(" ", 6) + "3 " + sp(" ", 8) + "1",
		"日本   100.00% " + sp(" ", 13) + "0.0 " + sp(" ", 7) + "1.00 " + sp(" ", 6) + "1 " + sp(" ", 8) + "0",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestStrokesPerTry(t *testing.T) {
	if got := strokesPerTry(model.WordAggregate{Correct: 2, Incorrect: 2, Strokes: 6}); got != 1.5 {
		t.Fatalf("strokesPerTry = %v", got)
	}
	if got := strokesPerTry(model.WordAggregate{Strokes: 3}); got != 0 {
		t.Fatalf("strokesPerTry without tries = %v", got)
	}
}
