package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/verte-zerg/steno/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "data", "steno.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func insertTestSession(t *testing.T, st *Store, i int, system string, words []model.WordStats, strokes []model.StrokeLog) int64 {
	t.Helper()
	start := time.Unix(0, 0).UTC().Add(time.Duration(i) * time.Minute)
	end := start.Add(30 * time.Second)
	id, err := st.InsertSession(context.Background(), model.SessionStats{
		StartedAt:      start,
		EndedAt:        end,
		Words:          len(words),
		System:         system,
		CorrectWords:   2,
		IncorrectWords: 1,
		Strokes:        len(strokes),
		Corrections:    1,
		DurationMs:     end.Sub(start).Milliseconds(),
	}, words, strokes)
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
	return id
}

func TestInsertAndListSessions(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	strokes := []model.StrokeLog{
		{ID: "01JGZ3K2M8Q0000000000000AB", Seq: 0, Stroke: "HEL", Output: " hello", LatencyMs: 0},
		{Seq: 1, Stroke: "*", Output: "", Undo: true, LatencyMs: 120},
	}
	first := insertTestSession(t, st, 0, "English Stenotype", nil, strokes)
	second := insertTestSession(t, st, 1, "Other", nil, nil)

	all, err := st.ListSessions(ctx, model.StatsConfig{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].SessionID != first || all[1].SessionID != second {
		t.Fatalf("sessions = %+v", all)
	}
	if all[0].CorrectWords != 2 || all[0].Strokes != 2 || all[0].Corrections != 1 || all[0].DurationMs != 30000 {
		t.Fatalf("aggregate = %+v", all[0])
	}

	filtered, err := st.ListSessions(ctx, model.StatsConfig{System: "Other"})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].SessionID != second {
		t.Fatalf("filtered = %+v", filtered)
	}
	since := time.Unix(0, 0).UTC().Add(time.Minute)
	recent, err := st.ListSessions(ctx, model.StatsConfig{Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 1 || recent[0].SessionID != second {
		t.Fatalf("since = %+v", recent)
	}

	got, err := st.ListStrokes(ctx, first)
	if err != nil {
		t.Fatalf("strokes: %v", err)
	}
	if !reflect.DeepEqual(got, strokes) {
		t.Fatalf("strokes = %+v", got)
	}
}

func TestWordAggregates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		ids = append(ids, insertTestSession(t, st, i, "English Stenotype", []model.WordStats{
			{Word: "hello", Correct: 1, Strokes: 1, LatencySumMs: 300, LatencyCount: 1},
			{Word: "world", Correct: i % 2, Incorrect: 1 - i%2, Strokes: 2},
		}, nil))
	}

	weak, err := st.GetWeakWords(ctx, 2, "")
	if err != nil {
		t.Fatalf("weak: %v", err)
	}
	byWord := map[string]model.WordAggregate{}
	for _, agg := range weak {
		byWord[agg.Word] = agg
	}
	if byWord["hello"].Correct != 2 || byWord["world"].Correct != 1 || byWord["world"].Incorrect != 1 {
		t.Fatalf("weak aggregates over two sessions = %+v", weak)
	}
	if got, err := st.GetWeakWords(ctx, 0, ""); err != nil || got != nil {
		t.Fatalf("zero window = %v, %v", got, err)
	}

	aggs, err := st.ListWordAggregatesForSessions(ctx, ids)
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("aggregates = %+v", aggs)
	}

	per, err := st.ListWordStatsForSessions(ctx, ids[:2], []string{"world"})
	if err != nil {
		t.Fatalf("per session: %v", err)
	}
	if len(per) != 2 || per[ids[0]]["world"].Incorrect != 1 || per[ids[1]]["world"].Correct != 1 {
		t.Fatalf("per session = %+v", per)
	}
	if _, ok := per[ids[0]]["hello"]; ok {
		t.Fatalf("unrequested word returned")
	}
}
