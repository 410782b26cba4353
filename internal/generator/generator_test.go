package generator

import (
	"reflect"
	"strings"
	"testing"
)

func TestCandidatesPickShortestOutline(t *testing.T) {
	outlines := map[string][][]string{
		"hello":   {{"HEL", "HRO"}, {"HEL"}},
		"nothing": {{"TPHOT", "-G"}, {"TPHOG"}, {"TPH-G"}},
		"rain":    {{"RA*EUPB"}, {"R-PB"}, {"RAEUPB"}},
	}
	reverse := func(text string) [][]string { return outlines[text] }
	got := Candidates([]string{"nothing", "missing", "hello", "hello", "", "rain"}, reverse)
	want := []Drill{
		{Word: "nothing", Strokes: []string{"TPH-G"}},
		{Word: "hello", Strokes: []string{"HEL"}},
		{Word: "rain", Strokes: []string{"R-PB"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Candidates = %+v", got)
	}
	if got[0].Hint() != "TPH-G" {
		t.Fatalf("hint = %q", got[0].Hint())
	}
}

func TestWords(t *testing.T) {
	values := []string{"the", "{^ing}", "The", "and", "the", "can't"}
	lower := func(s string) bool { return s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyz") == "" }
	if got := Words(values, lower); !reflect.DeepEqual(got, []string{"and", "the"}) {
		t.Fatalf("Words = %v", got)
	}
}

func TestGenerate(t *testing.T) {
	g := NewSeeded(1)
	drills := []Drill{{Word: "a"}, {Word: "b"}}
	got := g.Generate(drills, 10)
	if len(got) != 10 {
		t.Fatalf("expected 10 drills, got %d", len(got))
	}
	if got := g.Generate(nil, 3); len(got) != 0 {
		t.Fatalf("empty input = %v", got)
	}
}

func TestGenerateWeightedFavorsWeakWords(t *testing.T) {
	g := NewSeeded(7)
	drills := []Drill{{Word: "weak"}, {Word: "b"}, {Word: "c"}, {Word: "d"}}
	got := g.GenerateWeighted(drills, 2000, map[string]struct{}{"weak": {}}, 9)
	weak := 0
	for _, d := range got {
		if d.Word == "weak" {
			weak++
		}
	}
	// Expected share is 10/13.
	if weak < 1300 {
		t.Fatalf("weak word picked %d of 2000 times", weak)
	}
}
