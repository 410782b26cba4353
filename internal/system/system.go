// Package system defines steno systems: key layouts, number mappings,
// orthography data and machine keymaps.
package system

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/steno/internal/wordlist"
)

// EnglishStenotype is the name of the built-in system.
const EnglishStenotype = "English Stenotype"

// MaxKeys is the largest key count a system may declare.
const MaxKeys = 64

//go:embed systems
var builtinFS embed.FS

var builtinFiles = map[string]string{
	EnglishStenotype: "systems/english_stenotype.yaml",
}

// Rule is one orthography rule: a pattern matched against "word ^ suffix"
// and its replacement, using \N group references.
type Rule struct {
	Pattern     string
	Replacement string
}

// UnmarshalYAML decodes a rule written as a two-element sequence.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var pair []string
	if err := node.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("line %d: orthography rule must be [pattern, replacement]", node.Line)
	}
	r.Pattern, r.Replacement = pair[0], pair[1]
	return nil
}

// System is the static configuration of a steno theory.
type System struct {
	Name               string
	Keys               []string
	ImplicitHyphenKeys []string
	SuffixKeys         []string
	NumberKey          string
	Numbers            map[string]string
	FeralNumberKey     bool
	UndoStroke         string
	OrthographyRules   []Rule
	OrthographyAliases map[string]string
	// OrthographyWords ranks known words; lower ranks are preferred.
	OrthographyWords map[string]int
	Keymaps          map[string]map[string][]string

	keyOrder map[string]int
	implicit map[string]struct{}
	digits   map[string]string
}

type fileSystem struct {
	Name               string            `yaml:"name"`
	Keys               []string          `yaml:"keys"`
	ImplicitHyphenKeys []string          `yaml:"implicit_hyphen_keys"`
	SuffixKeys         []string          `yaml:"suffix_keys"`
	NumberKey          string            `yaml:"number_key"`
	Numbers            map[string]string `yaml:"numbers"`
	FeralNumberKey     bool              `yaml:"feral_number_key"`
	UndoStroke         string            `yaml:"undo_stroke"`
	Orthography        struct {
		Wordlist string            `yaml:"wordlist"`
		Aliases  map[string]string `yaml:"aliases"`
		Rules    []Rule            `yaml:"rules"`
	} `yaml:"orthography"`
	Keymaps map[string]map[string][]string `yaml:"keymaps"`
}

var (
	englishOnce sync.Once
	english     *System
)

// English returns the built-in English Stenotype system.
func English() *System {
	englishOnce.Do(func() {
		sys, err := Builtin(EnglishStenotype)
		if err != nil {
			panic(fmt.Sprintf("system: invalid built-in %s: %v", EnglishStenotype, err))
		}
		english = sys
	})
	return english
}

// Builtin loads one of the systems embedded in the binary.
func Builtin(name string) (*System, error) {
	path, ok := builtinFiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown system %q", name)
	}
	file, err := builtinFS.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for embedded file.
			_ = cerr
		}
	}()
	return decode(file, func(name string) (io.ReadCloser, error) {
		return builtinFS.Open(filepath.ToSlash(filepath.Join("systems", name)))
	})
}

// Load reads a custom system definition from a YAML file. The orthography
// wordlist, when named, is resolved relative to the file.
func Load(path string) (*System, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open system file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only system file.
			_ = cerr
		}
	}()
	dir := filepath.Dir(path)
	sys, err := decode(file, func(name string) (io.ReadCloser, error) {
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		return os.Open(name)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load system %s: %w", path, err)
	}
	return sys, nil
}

// Resolve picks a custom system file when one is given, a built-in
// system otherwise.
func Resolve(name, file string) (*System, error) {
	if file != "" {
		return Load(file)
	}
	if name == "" || name == EnglishStenotype {
		return English(), nil
	}
	return Builtin(name)
}

func decode(r io.Reader, open func(string) (io.ReadCloser, error)) (*System, error) {
	var fs fileSystem
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fs); err != nil {
		return nil, fmt.Errorf("failed to decode system: %w", err)
	}
	sys := &System{
		Name:               fs.Name,
		Keys:               fs.Keys,
		ImplicitHyphenKeys: fs.ImplicitHyphenKeys,
		SuffixKeys:         fs.SuffixKeys,
		NumberKey:          fs.NumberKey,
		Numbers:            fs.Numbers,
		FeralNumberKey:     fs.FeralNumberKey,
		UndoStroke:         fs.UndoStroke,
		OrthographyRules:   fs.Orthography.Rules,
		OrthographyAliases: fs.Orthography.Aliases,
		OrthographyWords:   map[string]int{},
		Keymaps:            fs.Keymaps,
	}
	if fs.Orthography.Wordlist != "" {
		rc, err := open(fs.Orthography.Wordlist)
		if err != nil {
			return nil, fmt.Errorf("failed to open orthography wordlist: %w", err)
		}
		words, err := wordlist.ParseRanked(rc)
		if cerr := rc.Close(); cerr != nil {
			// Best-effort close for read-only wordlist.
			_ = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read orthography wordlist: %w", err)
		}
		sys.OrthographyWords = words
	}
	if err := sys.init(); err != nil {
		return nil, err
	}
	return sys, nil
}

func (s *System) init() error {
	if s.Name == "" {
		return fmt.Errorf("system name is empty")
	}
	if len(s.Keys) == 0 {
		return fmt.Errorf("system %q declares no keys", s.Name)
	}
	if len(s.Keys) > MaxKeys {
		return fmt.Errorf("system %q declares %d keys (max %d)", s.Name, len(s.Keys), MaxKeys)
	}
	s.keyOrder = make(map[string]int, len(s.Keys)+len(s.Numbers))
	for i, key := range s.Keys {
		if key == "" || key == "-" {
			return fmt.Errorf("system %q: invalid key %q", s.Name, key)
		}
		if _, dup := s.keyOrder[key]; dup {
			return fmt.Errorf("system %q: duplicate key %q", s.Name, key)
		}
		s.keyOrder[key] = i
	}
	s.implicit = make(map[string]struct{}, len(s.ImplicitHyphenKeys))
	for _, key := range s.ImplicitHyphenKeys {
		if _, ok := s.keyOrder[key]; !ok {
			return fmt.Errorf("system %q: unknown implicit hyphen key %q", s.Name, key)
		}
		s.implicit[key] = struct{}{}
	}
	for _, key := range s.SuffixKeys {
		if _, ok := s.keyOrder[key]; !ok {
			return fmt.Errorf("system %q: unknown suffix key %q", s.Name, key)
		}
	}
	if s.NumberKey != "" {
		if _, ok := s.keyOrder[s.NumberKey]; !ok {
			return fmt.Errorf("system %q: unknown number key %q", s.Name, s.NumberKey)
		}
	}
	s.digits = make(map[string]string, len(s.Numbers))
	for key, number := range s.Numbers {
		idx, ok := s.keyOrder[key]
		if !ok {
			return fmt.Errorf("system %q: unknown number mapping key %q", s.Name, key)
		}
		s.keyOrder[number] = idx
		s.digits[number] = key
	}
	if s.UndoStroke == "" {
		return fmt.Errorf("system %q: undo stroke is empty", s.Name)
	}
	for machine, mapping := range s.Keymaps {
		for action := range mapping {
			if action == "no-op" || action == "arpeggiate" {
				continue
			}
			if _, ok := s.keyOrder[action]; !ok {
				return fmt.Errorf("system %q: keymap %q maps unknown key %q", s.Name, machine, action)
			}
		}
	}
	return nil
}

// KeyIndex returns the position of a key (or its number form) in key order.
func (s *System) KeyIndex(key string) (int, bool) {
	idx, ok := s.keyOrder[key]
	return idx, ok
}

// IsImplicitHyphen reports whether key makes the hyphen implicit.
func (s *System) IsImplicitHyphen(key string) bool {
	_, ok := s.implicit[key]
	return ok
}

// NumberFor returns the number form of a key, if it has one.
func (s *System) NumberFor(key string) (string, bool) {
	n, ok := s.Numbers[key]
	return n, ok
}

// KeyForNumber returns the plain key behind a number form such as "1-".
func (s *System) KeyForNumber(number string) (string, bool) {
	k, ok := s.digits[number]
	return k, ok
}

// Keymap returns the machine key to steno key assignment for a machine.
// Keys mapped to "no-op" are included so callers can swallow them.
func (s *System) Keymap(machine string) (map[string]string, bool) {
	mapping, ok := s.Keymaps[machine]
	if !ok {
		return nil, false
	}
	out := make(map[string]string)
	for action, machineKeys := range mapping {
		for _, mk := range machineKeys {
			out[mk] = action
		}
	}
	return out, true
}
