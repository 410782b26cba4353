package engine

import (
	"reflect"
	"strings"
	"testing"

	"github.com/verte-zerg/steno/internal/dictionary"
)

func suggestionDict(path string, entries map[string]string) *dictionary.Dictionary {
	d := dictionary.New(path)
	for k, v := range entries {
		_ = d.Set(strings.Split(k, "/"), v)
	}
	return d
}

func TestSuggestionsFind(t *testing.T) {
	main := suggestionDict("main.json", map[string]string{
		"HEL":     "hello",
		"HEL/HRO": "hello",
		"H*EL":    "Hello",
		"-G":      "{^ing}",
		"TK-LS":   "{^^}",
	})
	s := NewSuggestions(dictionary.NewCollection(main))

	got := s.Find("hello")
	if len(got) != 2 {
		t.Fatalf("Find(hello) = %+v", got)
	}
	if got[0].Text != "hello" || !reflect.DeepEqual(got[0].Strokes, [][]string{{"HEL"}, {"HEL", "HRO"}}) {
		t.Fatalf("first suggestion = %+v", got[0])
	}
	if got[1].Text != "Hello" || !reflect.DeepEqual(got[1].Strokes, [][]string{{"H*EL"}}) {
		t.Fatalf("second suggestion = %+v", got[1])
	}

	got = s.Find(" ing ")
	if len(got) != 1 || got[0].Text != "{^ing}" {
		t.Fatalf("Find(ing) = %+v", got)
	}
	if got := s.Find("nothing"); len(got) != 0 {
		t.Fatalf("Find(nothing) = %+v", got)
	}
}

func TestSuggestionsStrokeOrder(t *testing.T) {
	main := suggestionDict("main.json", map[string]string{
		"TPHOT/-G":  "nothing",
		"TPHOG":     "nothing",
		"TPH-G":     "nothing",
		"TPHO/THEU": "nothing",
	})
	s := NewSuggestions(dictionary.NewCollection(main))
	got := s.Find("nothing")
	want := [][]string{{"TPH-G"}, {"TPHOG"}, {"TPHOT", "-G"}, {"TPHO", "THEU"}}
	if len(got) != 1 || !reflect.DeepEqual(got[0].Strokes, want) {
		t.Fatalf("strokes = %+v, want %v", got, want)
	}
}

func TestSuggestionsSimilar(t *testing.T) {
	main := suggestionDict("main.json", map[string]string{
		"HEL":  "hello",
		"H*EL": "Hello",
		"-G":   "{^ing}",
		"KAT":  "cat",
	})
	off := suggestionDict("off.json", map[string]string{"HEUL": "hellos"})
	off.Enabled = false
	s := NewSuggestions(dictionary.NewCollection(off, main))

	got := s.Similar("helo", 5)
	if len(got) != 2 || got[0].Text != "Hello" || got[1].Text != "hello" {
		t.Fatalf("Similar(helo) = %+v", got)
	}
	if got[0].Score < similarThreshold || got[0].Score != got[1].Score {
		t.Fatalf("scores = %v, %v", got[0].Score, got[1].Score)
	}
	if got := s.Similar("helo", 1); len(got) != 1 || got[0].Text != "Hello" {
		t.Fatalf("limited = %+v", got)
	}
	if got := s.Similar("hello", 5); len(got) != 0 {
		t.Fatalf("exact matches should be left out, got %+v", got)
	}
	if got := s.Similar("  ", 5); got != nil {
		t.Fatalf("blank text = %+v", got)
	}
}
