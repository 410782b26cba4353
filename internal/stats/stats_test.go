package stats

import (
	"math"
	"testing"

	"github.com/verte-zerg/steno/internal/model"
)

func TestSessionMetrics(t *testing.T) {
	wpm, spm, acc := SessionMetrics(9, 1, 15, 30000)
	if wpm != 18 || spm != 30 || math.Abs(acc-0.9) > 1e-9 {
		t.Fatalf("metrics = %v %v %v", wpm, spm, acc)
	}
	if wpm, spm, acc := SessionMetrics(9, 1, 15, 0); wpm != 0 || spm != 0 || acc != 0 {
		t.Fatalf("zero duration = %v %v %v", wpm, spm, acc)
	}
	if got := StrokesPerWord(model.SessionAggregate{CorrectWords: 3, IncorrectWords: 1, Strokes: 6}); got != 1.5 {
		t.Fatalf("strokes per word = %v", got)
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("moving average = %v", got)
		}
	}
}

func TestResampleAndSparkline(t *testing.T) {
	values := []float64{0, 0, 10, 10, 20, 20}
	got := Resample(values, 3)
	if len(got) != 3 || got[0] != 0 || got[1] != 10 || got[2] != 20 {
		t.Fatalf("resample = %v", got)
	}
	if got := Resample(values, 10); len(got) != len(values) {
		t.Fatalf("short series should be kept, got %v", got)
	}
	if line := Sparkline([]float64{0, 10, 20}); line != " +@" {
		t.Fatalf("sparkline = %q", line)
	}
	if line := Sparkline([]float64{5, 5}); line != "++" {
		t.Fatalf("flat sparkline = %q", line)
	}
}
