// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/steno/internal/model"
)

// Defaults applied when neither the config file nor a flag sets a value.
const (
	DefaultSpacePlacement = "Before Output"
	DefaultUndoLevels     = 100
	DefaultKeymap         = "Keyboard"
	DefaultLogLevel       = "warn"
	DefaultWords          = 20
	DefaultWeakTop        = 10
	DefaultWeakFactor     = 2.0
	DefaultWeakWindow     = 20
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Engine       EngineConfig       `toml:"engine"`
	Dictionaries []DictionaryConfig `toml:"dictionaries"`
	Trainer      TrainerConfig      `toml:"trainer"`

	// dir is where the file was read from; relative paths resolve against it.
	dir string
}

// EngineConfig maps the [engine] table.
type EngineConfig struct {
	SpacePlacement   *string `toml:"space_placement"`
	StartAttached    *bool   `toml:"start_attached"`
	StartCapitalized *bool   `toml:"start_capitalized"`
	UndoLevels       *int    `toml:"undo_levels"`
	SystemName       *string `toml:"system_name"`
	SystemFile       *string `toml:"system_file"`
	SystemKeymap     *string `toml:"system_keymap"`
	LogLevel         *string `toml:"log_level"`
}

// DictionaryConfig maps one [[dictionaries]] entry. Entries are listed
// highest priority first.
type DictionaryConfig struct {
	Path    string `toml:"path"`
	Enabled *bool  `toml:"enabled"`
}

// TrainerConfig maps the [trainer] table.
type TrainerConfig struct {
	Words      *int     `toml:"words"`
	WordsFile  *string  `toml:"words_file"`
	FocusWeak  *bool    `toml:"focus_weak"`
	WeakTop    *int     `toml:"weak_top"`
	WeakFactor *float64 `toml:"weak_factor"`
	WeakWindow *int     `toml:"weak_window"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	dir := filepath.Dir(path)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{dir: dir}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return FileConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	for i, d := range cfg.Dictionaries {
		if strings.TrimSpace(d.Path) == "" {
			return FileConfig{}, fmt.Errorf("dictionaries[%d]: path is empty", i)
		}
	}
	cfg.dir = dir
	return cfg, nil
}

// EngineSettings converts the file into engine settings, filling defaults.
// Without configured dictionaries the user dictionary is used.
func (c FileConfig) EngineSettings() model.EngineConfig {
	out := model.EngineConfig{
		SpacePlacement: DefaultSpacePlacement,
		UndoLevels:     DefaultUndoLevels,
		SystemKeymap:   DefaultKeymap,
	}
	e := c.Engine
	setString(&out.SpacePlacement, e.SpacePlacement)
	setBool(&out.StartAttached, e.StartAttached)
	setBool(&out.StartCapitalized, e.StartCapitalized)
	setInt(&out.UndoLevels, e.UndoLevels)
	setString(&out.SystemName, e.SystemName)
	setString(&out.SystemKeymap, e.SystemKeymap)
	if e.SystemFile != nil && *e.SystemFile != "" {
		out.SystemFile = ExpandPath(*e.SystemFile, c.dir)
	}
	for _, d := range c.Dictionaries {
		enabled := true
		setBool(&enabled, d.Enabled)
		out.Dictionaries = append(out.Dictionaries, model.DictionaryConfig{
			Path:    ExpandPath(d.Path, c.dir),
			Enabled: enabled,
		})
	}
	if len(out.Dictionaries) == 0 {
		out.Dictionaries = []model.DictionaryConfig{{Path: DefaultUserDictionaryPath(), Enabled: true}}
	}
	return out
}

// TrainerSettings converts the [trainer] table, filling defaults.
func (c FileConfig) TrainerSettings() model.TrainerConfig {
	out := model.TrainerConfig{
		Words:      DefaultWords,
		WeakTop:    DefaultWeakTop,
		WeakFactor: DefaultWeakFactor,
		WeakWindow: DefaultWeakWindow,
	}
	t := c.Trainer
	setInt(&out.Words, t.Words)
	setBool(&out.FocusWeak, t.FocusWeak)
	setInt(&out.WeakTop, t.WeakTop)
	setInt(&out.WeakWindow, t.WeakWindow)
	if t.WeakFactor != nil {
		out.WeakFactor = *t.WeakFactor
	}
	if t.WordsFile != nil && *t.WordsFile != "" {
		out.WordsFile = ExpandPath(*t.WordsFile, c.dir)
	}
	return out
}

// LogLevel returns the configured log level or the default.
func (c FileConfig) LogLevel() string {
	if c.Engine.LogLevel != nil && *c.Engine.LogLevel != "" {
		return *c.Engine.LogLevel
	}
	return DefaultLogLevel
}

// ExpandPath expands a leading "~" and resolves relative paths against base.
func ExpandPath(path, base string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}
	return filepath.Clean(path)
}

func setString(target *string, value *string) {
	if value != nil && *value != "" {
		*target = *value
	}
}

func setBool(target *bool, value *bool) {
	if value != nil {
		*target = *value
	}
}

func setInt(target *int, value *int) {
	if value != nil {
		*target = *value
	}
}
