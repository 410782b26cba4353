package system

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnglishBuiltin(t *testing.T) {
	sys := English()
	if sys.Name != EnglishStenotype {
		t.Fatalf("unexpected name %q", sys.Name)
	}
	if len(sys.Keys) != 23 {
		t.Fatalf("expected 23 keys, got %d", len(sys.Keys))
	}
	if idx, ok := sys.KeyIndex("1-"); !ok || sys.Keys[idx] != "S-" {
		t.Fatalf("number form 1- should share the S- slot")
	}
	if !sys.IsImplicitHyphen("*") || sys.IsImplicitHyphen("S-") {
		t.Fatalf("implicit hyphen keys are wrong")
	}
	if rank, ok := sys.OrthographyWords["canceling"]; !ok || rank <= 0 {
		t.Fatalf("wordlist not loaded: %v", rank)
	}
	if len(sys.OrthographyRules) == 0 || sys.OrthographyAliases["able"] != "ible" {
		t.Fatalf("orthography not loaded")
	}
}

func TestKeymapInvertsMachineKeys(t *testing.T) {
	km, ok := English().Keymap("Keyboard")
	if !ok {
		t.Fatalf("Keyboard keymap missing")
	}
	if km["q"] != "S-" || km["a"] != "S-" || km["space"] != "arpeggiate" || km["z"] != "no-op" {
		t.Fatalf("unexpected keymap entries: q=%q a=%q space=%q z=%q", km["q"], km["a"], km["space"], km["z"])
	}
	if _, ok := English().Keymap("Nope"); ok {
		t.Fatalf("unknown machine should not resolve")
	}
}

func TestLoadCustomSystem(t *testing.T) {
	dir := t.TempDir()
	words := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(words, []byte("alpha 2\nbeta 1\n"), 0o644); err != nil {
		t.Fatalf("write wordlist: %v", err)
	}
	def := strings.Join([]string{
		"name: Tiny",
		"keys: ['#', 'A-', '*', '-B']",
		"implicit_hyphen_keys: ['*']",
		"suffix_keys: ['-B']",
		"number_key: '#'",
		"numbers: {'A-': '1-'}",
		"undo_stroke: '*'",
		"orthography:",
		"  wordlist: words.txt",
		"  rules:",
		"    - ['^(.+) \\^ s$', '\\1es']",
	}, "\n")
	path := filepath.Join(dir, "tiny.yaml")
	if err := os.WriteFile(path, []byte(def), 0o644); err != nil {
		t.Fatalf("write system: %v", err)
	}
	sys, err := Resolve("", path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sys.Name != "Tiny" || sys.OrthographyWords["beta"] != 1 {
		t.Fatalf("unexpected system %+v", sys)
	}
	if sys.OrthographyRules[0].Replacement != `\1es` {
		t.Fatalf("rule replacement = %q", sys.OrthographyRules[0].Replacement)
	}
}

func TestLoadRejectsUnknownFieldsAndKeys(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown field": "name: X\nkeys: ['A-']\nundo_stroke: '*'\nbogus: 1\n",
		"suffix key":    "name: X\nkeys: ['A-']\nsuffix_keys: ['-Z']\nundo_stroke: 'A'\n",
		"no undo":       "name: X\nkeys: ['A-']\n",
	}
	for name, def := range cases {
		path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
		if err := os.WriteFile(path, []byte(def), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestResolveDefaultsToEnglish(t *testing.T) {
	sys, err := Resolve("", "")
	if err != nil || sys != English() {
		t.Fatalf("Resolve default = %v, %v", sys, err)
	}
	if _, err := Resolve("Klingon", ""); err == nil {
		t.Fatalf("expected unknown system error")
	}
}
