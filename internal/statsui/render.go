package statsui

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/oklog/ulid/v2"

	"github.com/verte-zerg/steno/internal/model"
	"github.com/verte-zerg/steno/internal/stats"
)

func renderOverview(report stats.Report, window, width int) string {
	if len(report.Sessions) == 0 {
		return "No sessions found."
	}
	var buf bytes.Buffer
	if err := stats.RenderSummary(&buf, report.Sessions); err != nil {
		return fmt.Sprintf("Failed to render summary: %v", err)
	}
	if err := stats.RenderCurves(&buf, report.Sessions, window, width); err != nil {
		return fmt.Sprintf("Failed to render curves: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func renderWordCurves(report stats.Report, window, width int) string {
	if len(report.Sessions) == 0 {
		return "No sessions found."
	}
	if len(report.CurveWords) == 0 {
		return "No words selected. Press / to set words."
	}
	header := headerStyle.Render(fmt.Sprintf("Words: %s", strings.Join(report.CurveWords, ", ")))
	var buf bytes.Buffer
	if err := stats.RenderWordCurves(&buf, report.Sessions, report.WordCurves, report.CurveWords, window, width); err != nil {
		return fmt.Sprintf("Failed to render word curves: %v", err)
	}
	return strings.TrimRight(header+"\n"+buf.String(), "\n")
}

// renderStrokes lists a session's paper tape with the clock time and the
// text of each stroke; erased characters show as a leading -N.
func renderStrokes(strokes []model.StrokeLog) string {
	if len(strokes) == 0 {
		return "No strokes recorded."
	}
	lines := make([]string, 0, len(strokes))
	for _, s := range strokes {
		text := strings.TrimLeft(s.Output, "\b")
		erased := len(s.Output) - len(text)
		out := fmt.Sprintf("%4d  %s  %-12s %5dms", s.Seq, strokeClock(s.ID), s.Stroke, s.LatencyMs)
		if erased > 0 {
			out += fmt.Sprintf("  -%d", erased)
		}
		if text != "" {
			out += fmt.Sprintf("  %q", text)
		}
		if s.Undo {
			out += "  (undo)"
		}
		lines = append(lines, out)
	}
	return strings.Join(lines, "\n")
}

// strokeClock reads the stroke time out of its event id.
func strokeClock(id string) string {
	u, err := ulid.Parse(id)
	if err != nil {
		return strings.Repeat(" ", len(clockLayout))
	}
	return ulid.Time(u.Time()).Local().Format(clockLayout)
}

const clockLayout = "15:04:05.000"

func wordColumns() []table.Column {
	return []table.Column{
		{Title: "Word", Width: 16},
		{Title: "Accuracy", Width: 9},
		{Title: "Strokes/word", Width: 12},
		{Title: "Avg Latency (ms)", Width: 17},
		{Title: "Correct", Width: 7},
		{Title: "Incorrect", Width: 9},
	}
}

func wordRows(aggs []model.WordAggregate) []table.Row {
	sorted := append([]model.WordAggregate(nil), aggs...)
	sort.Slice(sorted, func(i, j int) bool {
		ti := sorted[i].Correct + sorted[i].Incorrect
		tj := sorted[j].Correct + sorted[j].Incorrect
		if ti == tj {
			return sorted[i].Word < sorted[j].Word
		}
		return ti > tj
	})
	rows := make([]table.Row, 0, len(sorted))
	for _, agg := range sorted {
		total := agg.Correct + agg.Incorrect
		acc, spw := 0.0, 0.0
		if total > 0 {
			acc = float64(agg.Correct) / float64(total) * 100
			spw = float64(agg.Strokes) / float64(total)
		}
		lat := 0.0
		if agg.LatencyCount > 0 {
			lat = float64(agg.LatencySumMs) / float64(agg.LatencyCount)
		}
		rows = append(rows, table.Row{
			agg.Word,
			fmt.Sprintf("%.2f%%", acc),
			fmt.Sprintf("%.2f", spw),
			fmt.Sprintf("%.1f", lat),
			fmt.Sprintf("%d", agg.Correct),
			fmt.Sprintf("%d", agg.Incorrect),
		})
	}
	return rows
}

func wordTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
