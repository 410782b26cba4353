package stats

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/steno/internal/model"
)

// wordColumn is one column of the per-word table.
type wordColumn struct {
	title string
	right bool
	cell  func(model.WordAggregate) string
}

var wordColumns = []wordColumn{
	{title: "Word", cell: func(a model.WordAggregate) string { return a.Word }},
	{title: "Accuracy", right: true, cell: func(a model.WordAggregate) string {
		return fmt.Sprintf("%.2f%%", accuracy(a)*100)
	}},
	{title: "Avg Latency (ms)", right: true, cell: func(a model.WordAggregate) string {
		return fmt.Sprintf("%.1f", latency(a))
	}},
	{title: "Strokes/try", right: true, cell: func(a model.WordAggregate) string {
		return fmt.Sprintf("%.2f", strokesPerTry(a))
	}},
	{title: "Correct", right: true, cell: func(a model.WordAggregate) string { return fmt.Sprint(a.Correct) }},
	{title: "Incorrect", right: true, cell: func(a model.WordAggregate) string { return fmt.Sprint(a.Incorrect) }},
}

// strokesPerTry is how many strokes a word took per attempt; 1 means it was
// always written in a single try of its outline.
func strokesPerTry(a model.WordAggregate) float64 {
	tries := a.Correct + a.Incorrect
	if tries == 0 {
		return 0
	}
	return float64(a.Strokes) / float64(tries)
}

// wordTableLines lays aggs out under a header line. Columns are sized by
// display width.
func wordTableLines(aggs []model.WordAggregate) []string {
	cells := make([][]string, 0, len(aggs)+1)
	header := make([]string, len(wordColumns))
	for i, c := range wordColumns {
		header[i] = c.title
	}
	cells = append(cells, header)
	for _, a := range aggs {
		row := make([]string, len(wordColumns))
		for i, c := range wordColumns {
			row[i] = c.cell(a)
		}
		cells = append(cells, row)
	}

	widths := make([]int, len(wordColumns))
	for _, row := range cells {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	lines := make([]string, len(cells))
	for n, row := range cells {
		var b strings.Builder
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(' ')
			}
			if wordColumns[i].right {
				b.WriteString(runewidth.FillLeft(cell, widths[i]))
			} else {
				b.WriteString(runewidth.FillRight(cell, widths[i]))
			}
		}
		lines[n] = b.String()
	}
	return lines
}
