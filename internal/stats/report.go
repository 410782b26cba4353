package stats

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/steno/internal/model"
	"github.com/verte-zerg/steno/internal/store"
)

const defaultCurveWords = 5

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions         []model.SessionAggregate
	WindowSessionIDs []int64
	WordAggsAll      []model.WordAggregate
	WordAggsWindow   []model.WordAggregate
	CurveWords       []string
	WordCurves       map[int64]map[string]model.WordAggregate
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}

	allIDs := sessionIDs(sessions)
	windowIDs := lastSessionIDs(sessions, cfg.CurveWindow)
	wordAggsAll, err := st.ListWordAggregatesForSessions(ctx, allIDs)
	if err != nil {
		return Report{}, fmt.Errorf("failed to aggregate words: %w", err)
	}
	wordAggsWindow, err := st.ListWordAggregatesForSessions(ctx, windowIDs)
	if err != nil {
		return Report{}, fmt.Errorf("failed to aggregate words: %w", err)
	}

	curveWords := splitWords(cfg.Words)
	if len(curveWords) == 0 {
		curveWords = TopWordsByFrequency(wordAggsAll, defaultCurveWords)
	}
	perSession, err := st.ListWordStatsForSessions(ctx, allIDs, curveWords)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load word curves: %w", err)
	}

	return Report{
		Sessions:         sessions,
		WindowSessionIDs: windowIDs,
		WordAggsAll:      wordAggsAll,
		WordAggsWindow:   wordAggsWindow,
		CurveWords:       curveWords,
		WordCurves:       perSession,
	}, nil
}

// Render prints the whole report sized to width columns.
func (r Report) Render(w io.Writer, window, width int) error {
	if err := RenderSummary(w, r.Sessions); err != nil {
		return err
	}
	if len(r.Sessions) == 0 {
		return nil
	}
	if err := RenderCurves(w, r.Sessions, window, width); err != nil {
		return err
	}
	if err := RenderWordTable(w, r.WordAggsWindow); err != nil {
		return err
	}
	return RenderWordCurves(w, r.Sessions, r.WordCurves, r.CurveWords, window, width)
}

func splitWords(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sessionIDs(sessions []model.SessionAggregate) []int64 {
	ids := make([]int64, len(sessions))
	for i, s := range sessions {
		ids[i] = s.SessionID
	}
	return ids
}

func lastSessionIDs(sessions []model.SessionAggregate, window int) []int64 {
	if window <= 0 || len(sessions) <= window {
		return sessionIDs(sessions)
	}
	return sessionIDs(sessions[len(sessions)-window:])
}
