package wordlist

import (
	"reflect"
	"testing"
)

func TestPlain(t *testing.T) {
	for _, word := range []string{"hello", "can't", "a"} {
		if !Plain(word) {
			t.Fatalf("expected %q to be plain", word)
		}
	}
	for _, word := range []string{"", "Hello", "{^ing}", "two words", "'tis", "résumé", "co-op"} {
		if Plain(word) {
			t.Fatalf("expected %q to be rejected", word)
		}
	}
}

func TestTop(t *testing.T) {
	ranks := map[string]int{"the": 1, "look": 52, "Paris": 3, "and": 52, "of": 2}
	got := Top(ranks, 3, Plain)
	if !reflect.DeepEqual(got, []string{"the", "of", "and"}) {
		t.Fatalf("Top = %v", got)
	}
	if got := Top(ranks, 0, nil); len(got) != 5 {
		t.Fatalf("Top without limit = %v", got)
	}
}
