// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/steno/internal/model"
)

const (
	sparkChars       = " .:-=+*#%@"
	defaultCurveSize = 60
	curveLabelWidth  = 10
)

// SessionMetrics computes words per minute, strokes per minute and word
// accuracy for a drill.
func SessionMetrics(correct, incorrect, strokes int, durationMs int64) (wpm, spm, accuracy float64) {
	if durationMs <= 0 {
		return 0, 0, 0
	}
	minutes := float64(durationMs) / 60000.0
	wpm = float64(correct) / minutes
	spm = float64(strokes) / minutes
	if den := float64(correct + incorrect); den > 0 {
		accuracy = float64(correct) / den
	}
	return wpm, spm, accuracy
}

// StrokesPerWord is the mean number of strokes spent per drilled word.
func StrokesPerWord(s model.SessionAggregate) float64 {
	words := s.CorrectWords + s.IncorrectWords
	if words == 0 {
		return 0
	}
	return float64(s.Strokes) / float64(words)
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Resample stretches or shrinks values to width points by averaging the
// values falling into each point.
func Resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		return append([]float64(nil), values...)
	}
	out := make([]float64, width)
	for i := range out {
		lo := i * len(values) / width
		hi := (i + 1) * len(values) / width
		var sum float64
		for _, v := range values[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := minMax(values)
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func minMax(values []float64) (float64, float64) {
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
	}
	return minVal, maxVal
}

// RenderSummary prints a summary table for sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	var totalWPM, totalSPM, totalAcc, totalSPW float64
	bestWPM := 0.0
	strokes, corrections := 0, 0
	for _, s := range sessions {
		wpm, spm, acc := SessionMetrics(s.CorrectWords, s.IncorrectWords, s.Strokes, s.DurationMs)
		totalWPM += wpm
		totalSPM += spm
		totalAcc += acc
		totalSPW += StrokesPerWord(s)
		bestWPM = max(bestWPM, wpm)
		strokes += s.Strokes
		corrections += s.Corrections
	}
	count := float64(len(sessions))
	correctionRate := 0.0
	if strokes > 0 {
		correctionRate = float64(corrections) / float64(strokes)
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", len(sessions)),
		fmt.Sprintf("Avg WPM: %.2f", totalWPM/count),
		fmt.Sprintf("Best WPM: %.2f", bestWPM),
		fmt.Sprintf("Avg Strokes/min: %.2f", totalSPM/count),
		fmt.Sprintf("Avg Strokes/word: %.2f", totalSPW/count),
		fmt.Sprintf("Avg Accuracy: %.2f%%", (totalAcc/count)*100),
		fmt.Sprintf("Corrections: %.2f%% of strokes", correctionRate*100),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves prints WPM and accuracy learning curves as sparklines no
// wider than width (a default when width <= 0).
func RenderCurves(w io.Writer, sessions []model.SessionAggregate, window, width int) error {
	if len(sessions) == 0 {
		return nil
	}
	wpms := make([]float64, len(sessions))
	accs := make([]float64, len(sessions))
	spws := make([]float64, len(sessions))
	for i, s := range sessions {
		wpm, _, acc := SessionMetrics(s.CorrectWords, s.IncorrectWords, s.Strokes, s.DurationMs)
		wpms[i] = wpm
		accs[i] = acc * 100
		spws[i] = StrokesPerWord(s)
	}
	if _, err := fmt.Fprintln(w, "Learning Curves"); err != nil {
		return err
	}
	width = curveWidth(width)
	for _, c := range []struct {
		name   string
		values []float64
	}{
		{"WPM", wpms},
		{"Accuracy", accs},
		{"Str/word", spws},
	} {
		if err := renderCurve(w, c.name, MovingAverage(c.values, window), width); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// curveWidth leaves room for the label and the min/max suffix.
func curveWidth(total int) int {
	if total <= 0 {
		return defaultCurveSize
	}
	return max(10, total-curveLabelWidth-24)
}

func renderCurve(w io.Writer, name string, values []float64, width int) error {
	if len(values) == 0 {
		return nil
	}
	minVal, maxVal := minMax(values)
	label := runewidth.FillRight(name, curveLabelWidth)
	_, err := fmt.Fprintf(w, "%s %s  min %.1f max %.1f\n", label, Sparkline(Resample(values, width)), minVal, maxVal)
	return err
}

// RenderWordTable prints per-word aggregates, weakest first.
func RenderWordTable(w io.Writer, aggs []model.WordAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No word stats found.")
		return err
	}
	rows := make([]model.WordAggregate, len(aggs))
	copy(rows, aggs)
	sort.Slice(rows, func(i, j int) bool {
		ai, aj := accuracy(rows[i]), accuracy(rows[j])
		if ai == aj {
			return rows[i].Word < rows[j].Word
		}
		return ai < aj
	})

	if _, err := fmt.Fprintln(w, "Per-Word (Windowed)"); err != nil {
		return err
	}
	for _, line := range wordTableLines(rows) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderWordCurves prints accuracy and latency curves for selected words.
func RenderWordCurves(w io.Writer, sessions []model.SessionAggregate, perSession map[int64]map[string]model.WordAggregate, words []string, window, width int) error {
	if len(words) == 0 || len(sessions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Per-Word Curves"); err != nil {
		return err
	}
	width = curveWidth(width)
	for _, word := range words {
		accSeries := make([]float64, len(sessions))
		latSeries := make([]float64, len(sessions))
		for i, s := range sessions {
			agg, ok := perSession[s.SessionID][word]
			if !ok {
				continue
			}
			accSeries[i] = accuracy(agg) * 100
			if agg.LatencyCount > 0 {
				latSeries[i] = float64(agg.LatencySumMs) / float64(agg.LatencyCount)
			}
		}
		if _, err := fmt.Fprintf(w, "%s\n", word); err != nil {
			return err
		}
		if err := renderCurve(w, "Accuracy", MovingAverage(accSeries, window), width); err != nil {
			return err
		}
		if err := renderCurve(w, "Latency", MovingAverage(latSeries, window), width); err != nil {
			return err
		}
	}
	return nil
}
