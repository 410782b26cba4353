// Package main provides the CLI entrypoint for steno.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/steno/internal/config"
	"github.com/verte-zerg/steno/internal/dictionary"
	"github.com/verte-zerg/steno/internal/engine"
	"github.com/verte-zerg/steno/internal/generator"
	"github.com/verte-zerg/steno/internal/model"
	"github.com/verte-zerg/steno/internal/stats"
	"github.com/verte-zerg/steno/internal/store"
	"github.com/verte-zerg/steno/internal/system"
	"github.com/verte-zerg/steno/internal/tui"
	"github.com/verte-zerg/steno/internal/wordlist"
)

// drillPool caps how many common words of the system word list are tried
// as drill words.
const drillPool = 2000

var (
	rootConfigPath string
	rootLogLevel   string
	rootDicts      []string
	rootSystem     string
	rootSystemFile string

	trainerWords      int
	trainerWordsFile  string
	trainerFocusWeak  bool
	trainerWeakTop    int
	trainerWeakFactor float64
	trainerWeakWindow int
	trainerKeymap     string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "steno",
		Short:         "Stenography translation engine and trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runTrainerCmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootConfigPath, "config", config.DefaultConfigPath(), "config file")
	pf.StringVar(&rootLogLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	pf.StringArrayVar(&rootDicts, "dict", nil, "dictionary file, highest priority first (repeatable; replaces configured dictionaries)")
	pf.StringVar(&rootSystem, "system", "", "built-in steno system name")
	pf.StringVar(&rootSystemFile, "system-file", "", "custom steno system YAML file")

	rootCmd.Flags().IntVar(&trainerWords, "words", config.DefaultWords, "words per drill")
	rootCmd.Flags().StringVar(&trainerWordsFile, "words-file", "", "drill word list (one word per line)")
	rootCmd.Flags().BoolVar(&trainerFocusWeak, "focus-weak", false, "bias drills toward weak words")
	rootCmd.Flags().IntVar(&trainerWeakTop, "weak-top", config.DefaultWeakTop, "number of weak words to focus on")
	rootCmd.Flags().Float64Var(&trainerWeakFactor, "weak-factor", config.DefaultWeakFactor, "weight factor for weak words")
	rootCmd.Flags().IntVar(&trainerWeakWindow, "weak-window", config.DefaultWeakWindow, "number of recent sessions to compute weak words")
	rootCmd.Flags().StringVar(&trainerKeymap, "keymap", config.DefaultKeymap, "machine keymap of the steno system")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newTranslateCmd())
	rootCmd.AddCommand(newLookupCmd())
	rootCmd.AddCommand(newNormalizeCmd())
	rootCmd.AddCommand(newComboCmd())
	rootCmd.AddCommand(newSystemCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

// settings is the merged view of the config file and the global flags.
type settings struct {
	file   config.FileConfig
	engine model.EngineConfig
	logger *slog.Logger
}

func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.LoadConfig(rootConfigPath)
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	level := fileCfg.LogLevel()
	applyStringConfig(cmd, "log-level", &rootLogLevel, &level)
	logger, err := newLogger(rootLogLevel, os.Stderr)
	if err != nil {
		return settings{}, err
	}
	slog.SetDefault(logger)

	engCfg := fileCfg.EngineSettings()
	if cmd.Flags().Changed("system") {
		engCfg.SystemName = rootSystem
		engCfg.SystemFile = ""
	}
	if cmd.Flags().Changed("system-file") {
		engCfg.SystemFile = config.ExpandPath(rootSystemFile, cwd())
	}
	if len(rootDicts) > 0 {
		engCfg.Dictionaries = nil
		for _, path := range rootDicts {
			engCfg.Dictionaries = append(engCfg.Dictionaries, model.DictionaryConfig{
				Path:    config.ExpandPath(path, cwd()),
				Enabled: true,
			})
		}
	}
	return settings{file: fileCfg, engine: engCfg, logger: logger}, nil
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func cwd() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return dir
}

// runningEngine is an engine whose Run loop is active.
type runningEngine struct {
	*engine.Engine
	errc chan error
}

// startEngine runs an engine with cfg and waits until its dictionaries are
// installed. Dictionaries that failed to load are logged and skipped.
func startEngine(ctx context.Context, cfg model.EngineConfig, logger *slog.Logger, opts ...engine.Option) (*runningEngine, error) {
	sys, err := system.Resolve(cfg.SystemName, cfg.SystemFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load system: %w", err)
	}
	opts = append([]engine.Option{engine.WithLogger(logger), engine.WithSystem(sys)}, opts...)
	eng := engine.New(opts...)

	ready := make(chan engine.Event, 1)
	id := eng.Subscribe(func(ev engine.Event) {
		if ev.Kind != engine.EventDictionariesLoaded && ev.Kind != engine.EventError {
			return
		}
		select {
		case ready <- ev:
		default:
		}
	})
	defer eng.Unsubscribe(id)

	re := &runningEngine{Engine: eng, errc: make(chan error, 1)}
	go func() {
		re.errc <- eng.Run(ctx)
	}()
	eng.Configure(cfg)

	select {
	case ev := <-ready:
		if ev.Kind == engine.EventError {
			re.stop()
			return nil, ev.Err
		}
		for _, d := range ev.Dictionaries {
			if d.Err != nil {
				logger.Warn("dictionary not loaded", "path", d.Path, "err", d.Err)
			}
		}
		return re, nil
	case err := <-re.errc:
		if err == nil {
			err = engine.ErrStopped
		}
		return nil, fmt.Errorf("engine stopped during startup: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stop quits the engine and returns the error Run ended with.
func (re *runningEngine) stop() error {
	re.Quit()
	<-re.Done()
	err := <-re.errc
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runTrainerCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ts := s.file.TrainerSettings()
	applyIntConfig(cmd, "words", &trainerWords, &ts.Words)
	applyStringConfig(cmd, "words-file", &trainerWordsFile, &ts.WordsFile)
	applyBoolConfig(cmd, "focus-weak", &trainerFocusWeak, &ts.FocusWeak)
	applyIntConfig(cmd, "weak-top", &trainerWeakTop, &ts.WeakTop)
	applyFloatConfig(cmd, "weak-factor", &trainerWeakFactor, &ts.WeakFactor)
	applyIntConfig(cmd, "weak-window", &trainerWeakWindow, &ts.WeakWindow)
	applyStringConfig(cmd, "keymap", &trainerKeymap, &s.engine.SystemKeymap)

	cfg := model.TrainerConfig{
		Words:      trainerWords,
		WordsFile:  trainerWordsFile,
		FocusWeak:  trainerFocusWeak,
		WeakTop:    trainerWeakTop,
		WeakFactor: trainerWeakFactor,
		WeakWindow: trainerWeakWindow,
	}
	if err := validateTrainerConfig(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng, err := startEngine(ctx, s.engine, s.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.stop(); err != nil {
			logErrf("engine stopped with error: %v\n", err)
		}
	}()
	go func() {
		if err := eng.Watch(ctx); err != nil {
			s.logger.Warn("dictionary watcher stopped", "err", err)
		}
	}()

	sys := eng.System()
	keymap, ok := sys.Keymap(trainerKeymap)
	if !ok {
		return fmt.Errorf("system %q has no %q keymap", sys.Name, trainerKeymap)
	}
	drills, err := loadDrills(cfg, sys, eng.Engine)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	weakSet := map[string]struct{}{}
	if cfg.FocusWeak {
		aggs, err := st.GetWeakWords(ctx, cfg.WeakWindow, sys.Name)
		if err != nil {
			logErrf("failed to load weak words: %v\n", err)
		} else {
			weakSet = stats.SelectWeakWords(aggs, cfg.WeakTop)
			if len(weakSet) == 0 {
				logErrln("no stats available for weak-word focus yet; using normal generator")
			}
		}
	}

	events, unsubscribe := tui.Subscribe(eng, s.logger)
	defer unsubscribe()
	eng.SetMachineState(engine.MachineConnected)
	defer eng.SetMachineState(engine.MachineStopped)

	m := tui.NewModel(tui.Options{
		Engine:    eng,
		Events:    events,
		System:    sys,
		Keymap:    keymap,
		Store:     st,
		Generator: generator.New(),
		Drills:    drills,
		Config:    cfg,
		WeakSet:   weakSet,
		Logger:    s.logger,
	})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// loadDrills picks the drill words: the configured word list, else the
// most common words of the system word list, else every plain word of the
// dictionaries. Only words the dictionaries can write are kept.
func loadDrills(cfg model.TrainerConfig, sys *system.System, eng *engine.Engine) ([]generator.Drill, error) {
	var words []string
	if cfg.WordsFile != "" {
		list, err := wordlist.LoadWords(cfg.WordsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load word list: %w", err)
		}
		words = list
	} else {
		words = wordlist.Top(sys.OrthographyWords, drillPool, wordlist.Plain)
	}
	drills := generator.Candidates(words, eng.ReverseLookup)
	if len(drills) == 0 && cfg.WordsFile == "" {
		drills = generator.Candidates(generator.Words(dictionaryValues(eng.Dictionaries()), wordlist.Plain), eng.ReverseLookup)
	}
	if len(drills) == 0 {
		return nil, fmt.Errorf("no drill words can be written with the loaded dictionaries; add dictionaries with: steno config")
	}
	return drills, nil
}

func dictionaryValues(dicts []*dictionary.Dictionary) []string {
	var values []string
	for _, d := range dicts {
		if !d.Enabled {
			continue
		}
		for _, v := range d.Items() {
			values = append(values, v)
		}
	}
	return values
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := rootConfigPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil || *value == "" {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# steno configuration
# Uncomment a value to enable it. CLI flags override config values.
# Relative paths are resolved against this file's directory.

[engine]
# space_placement = %q   # "Before Output" or "After Output"
# start_attached = false
# start_capitalized = false
# undo_levels = %d
# system_name = %q
# system_file = "my_system.yaml"
# system_keymap = %q
# log_level = %q

# Dictionaries, highest priority first. Without any, %s is used.
# [[dictionaries]]
# path = "dictionaries/user.json"
# enabled = true
#
# [[dictionaries]]
# path = "dictionaries/main.json"

[trainer]
# words = %d              # Words per drill
# words_file = "words.txt"  # Drill words; defaults to common words the dictionaries can write
# focus_weak = false      # Bias drills toward weak words
# weak_top = %d           # Number of weak words to focus on
# weak_factor = %.1f      # Weight factor for weak words
# weak_window = %d        # Number of recent sessions to compute weak words
`,
		config.DefaultSpacePlacement,
		config.DefaultUndoLevels,
		system.EnglishStenotype,
		config.DefaultKeymap,
		config.DefaultLogLevel,
		config.DefaultUserDictionaryPath(),
		config.DefaultWords,
		config.DefaultWeakTop,
		config.DefaultWeakFactor,
		config.DefaultWeakWindow,
	)
}

func validateTrainerConfig(cfg model.TrainerConfig) error {
	if cfg.Words <= 0 {
		return fmt.Errorf("--words must be > 0")
	}
	if cfg.WeakTop < 0 {
		return fmt.Errorf("--weak-top must be >= 0")
	}
	if cfg.WeakFactor < 0 {
		return fmt.Errorf("--weak-factor must be >= 0")
	}
	if cfg.WeakWindow < 0 {
		return fmt.Errorf("--weak-window must be >= 0")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
