package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfg, err := LoadConfig(filepath.Join(dir, "nope.toml"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	settings := cfg.EngineSettings()
	if settings.SpacePlacement != DefaultSpacePlacement || settings.UndoLevels != DefaultUndoLevels {
		t.Fatalf("defaults = %+v", settings)
	}
	if len(settings.Dictionaries) != 1 || settings.Dictionaries[0].Path != DefaultUserDictionaryPath() {
		t.Fatalf("expected user dictionary, got %+v", settings.Dictionaries)
	}
	if !strings.HasPrefix(DefaultUserDictionaryPath(), filepath.Join(dir, "steno")) {
		t.Fatalf("user dictionary outside config home: %s", DefaultUserDictionaryPath())
	}
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := writeConfig(t, `
[engine]
space_placement = "After Output"
start_capitalized = true
undo_levels = 30
system_file = "systems/custom.yaml"
log_level = "debug"

[[dictionaries]]
path = "user.json"

[[dictionaries]]
path = "/abs/main.json"
enabled = false

[trainer]
words = 5
focus_weak = true
weak_factor = 3.5
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	dir := filepath.Dir(path)
	e := cfg.EngineSettings()
	if e.SpacePlacement != "After Output" || !e.StartCapitalized || e.StartAttached || e.UndoLevels != 30 {
		t.Fatalf("engine = %+v", e)
	}
	if e.SystemFile != filepath.Join(dir, "systems", "custom.yaml") {
		t.Fatalf("system file = %q", e.SystemFile)
	}
	if len(e.Dictionaries) != 2 {
		t.Fatalf("dictionaries = %+v", e.Dictionaries)
	}
	if d := e.Dictionaries[0]; d.Path != filepath.Join(dir, "user.json") || !d.Enabled {
		t.Fatalf("first dictionary = %+v", d)
	}
	if d := e.Dictionaries[1]; d.Path != "/abs/main.json" || d.Enabled {
		t.Fatalf("second dictionary = %+v", d)
	}
	if cfg.LogLevel() != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel())
	}
	tr := cfg.TrainerSettings()
	if tr.Words != 5 || !tr.FocusWeak || tr.WeakFactor != 3.5 || tr.WeakTop != DefaultWeakTop {
		t.Fatalf("trainer = %+v", tr)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[engine]\nspace = 1\n")
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "engine.space") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
	path = writeConfig(t, "[[dictionaries]]\nenabled = true\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for dictionary without path")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/dicts/main.json", "/base"); got != filepath.Join(home, "dicts", "main.json") {
		t.Fatalf("home expansion = %q", got)
	}
	if got := ExpandPath("main.json", "/base"); got != filepath.Join("/base", "main.json") {
		t.Fatalf("relative = %q", got)
	}
	if got := ExpandPath("/x/../y.json", "/base"); got != "/y.json" {
		t.Fatalf("absolute = %q", got)
	}
}
