package engine

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/verte-zerg/steno/internal/dictionary"
	"github.com/verte-zerg/steno/internal/formatting"
	"github.com/verte-zerg/steno/internal/model"
	"github.com/verte-zerg/steno/internal/system"
)

// Configure applies settings and reloads the dictionary stack. Dictionary
// files load in the background; EventDictionariesLoaded follows once the
// new stack is installed.
func (e *Engine) Configure(cfg model.EngineConfig) {
	e.post(func() error {
		return e.configure(cfg)
	})
}

func (e *Engine) configure(cfg model.EngineConfig) error {
	placement, err := formatting.ParseSpacePlacement(cfg.SpacePlacement)
	if err != nil {
		return fmt.Errorf("failed to configure: %w", err)
	}
	if cfg.UndoLevels < 1 {
		return fmt.Errorf("failed to configure: undo levels must be at least 1, got %d", cfg.UndoLevels)
	}
	sys, err := system.Resolve(cfg.SystemName, cfg.SystemFile)
	if err != nil {
		return fmt.Errorf("failed to configure: %w", err)
	}
	if sys != e.sys {
		e.logger.Info("loading system", "system", sys.Name)
		e.useSystem(sys)
		e.translator.ClearState()
		e.runningState = e.translator.State()
	}
	settings := e.formatter.Settings()
	settings.SpacePlacement = placement
	settings.StartAttached = cfg.StartAttached
	settings.StartCapitalized = cfg.StartCapitalized
	e.formatter.SetSettings(settings)
	e.translator.SetMinUndoLength(cfg.UndoLevels)
	e.config = cfg
	e.config.Dictionaries = slices.Clone(cfg.Dictionaries)
	e.emit(Event{Kind: EventConfigChanged})
	e.loadDictionaries()
	return nil
}

// ReloadDictionaries reloads the files that changed since they were read.
func (e *Engine) ReloadDictionaries() {
	e.post(func() error {
		e.loadDictionaries()
		return nil
	})
}

// loadDictionaries hands the stack to the loading manager off the engine
// goroutine and installs the result when it comes back, unless a newer
// load started meanwhile.
func (e *Engine) loadDictionaries() {
	var paths []string
	enabled := map[string]bool{}
	for _, d := range e.config.Dictionaries {
		path := filepath.Clean(d.Path)
		if _, dup := enabled[path]; dup {
			continue
		}
		paths = append(paths, path)
		enabled[path] = d.Enabled
	}
	slices.Reverse(paths)
	e.loadSeq++
	seq, loader, ctx := e.loadSeq, e.loader, e.runCtx
	go func() {
		dicts, err := loader.Load(ctx, paths)
		e.post(func() error {
			if err != nil {
				return fmt.Errorf("failed to load dictionaries: %w", err)
			}
			if seq != e.loadSeq {
				return nil
			}
			e.installDictionaries(dicts, enabled)
			return nil
		})
	}()
}

func (e *Engine) installDictionaries(dicts []*dictionary.Dictionary, enabled map[string]bool) {
	status := make([]DictionaryStatus, 0, len(dicts))
	for _, d := range dicts {
		if d.Err == nil {
			d.Enabled = enabled[d.Path]
		}
		status = append(status, DictionaryStatus{Path: d.Path, Entries: d.Len(), Enabled: d.Enabled, Err: d.Err})
	}
	e.dicts.Set(dicts)
	e.emit(Event{Kind: EventDictionariesLoaded, Dictionaries: status})
}

// dictionaryPaths lists the configured files.
func (e *Engine) dictionaryPaths() []string {
	paths := make([]string, 0, len(e.config.Dictionaries))
	for _, d := range e.config.Dictionaries {
		paths = append(paths, filepath.Clean(d.Path))
	}
	return paths
}
