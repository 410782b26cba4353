package dictionary

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// OpenFunc loads one dictionary file.
type OpenFunc func(path string) (*Dictionary, error)

// Operation is one in-flight or finished load of a dictionary file.
type Operation struct {
	path string
	done chan struct{}
	dict *Dictionary
}

func startOperation(path string, open OpenFunc) *Operation {
	op := &Operation{path: path, done: make(chan struct{})}
	go func() {
		defer close(op.done)
		d, err := open(path)
		if err != nil {
			d = NewErrored(path, err)
			if info, serr := os.Stat(path); serr == nil {
				d.Timestamp = info.ModTime()
			}
		}
		op.dict = d
	}()
	return op
}

// Path returns the file being loaded.
func (op *Operation) Path() string {
	return op.path
}

// Done is closed once the load finished.
func (op *Operation) Done() <-chan struct{} {
	return op.done
}

// Wait blocks until the load finished and returns the dictionary, which is
// an errored placeholder when loading failed.
func (op *Operation) Wait(ctx context.Context) (*Dictionary, error) {
	select {
	case <-op.done:
		return op.dict, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// needsReloading reports whether the file changed since it was loaded.
// Loads still in flight never need reloading.
func (op *Operation) needsReloading() bool {
	select {
	case <-op.done:
	default:
		return false
	}
	info, err := os.Stat(op.path)
	if err != nil {
		return true
	}
	return info.ModTime().After(op.dict.Timestamp)
}

// LoadingManager coalesces dictionary loads by path: at most one load per
// path is in flight and finished loads are reused until the file changes.
type LoadingManager struct {
	mu     sync.Mutex
	ops    map[string]*Operation
	open   OpenFunc
	logger *slog.Logger
}

// NewLoadingManager returns a manager loading files with open.
func NewLoadingManager(open OpenFunc, logger *slog.Logger) *LoadingManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadingManager{ops: map[string]*Operation{}, open: open, logger: logger}
}

// StartLoading returns the existing operation for path unless the file
// changed since, in which case a new load starts.
func (m *LoadingManager) StartLoading(path string) *Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(path)
}

func (m *LoadingManager) startLocked(path string) *Operation {
	op, ok := m.ops[path]
	if ok && !op.needsReloading() {
		return op
	}
	if ok {
		m.logger.Info("reloading dictionary", "path", path)
	} else {
		m.logger.Info("loading dictionary", "path", path)
	}
	op = startOperation(path, m.open)
	m.ops[path] = op
	return op
}

// UnloadOutdated forgets finished loads whose file changed.
func (m *LoadingManager) UnloadOutdated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, op := range m.ops {
		if op.needsReloading() {
			delete(m.ops, path)
		}
	}
}

// Load loads paths in parallel and returns the dictionaries in the same
// order. Operations for paths not listed are dropped. Load failures come
// back as errored placeholders; only ctx cancellation is returned as an
// error.
func (m *LoadingManager) Load(ctx context.Context, paths []string) ([]*Dictionary, error) {
	start := time.Now()
	m.mu.Lock()
	ops := make(map[string]*Operation, len(paths))
	for _, path := range paths {
		ops[path] = m.startLocked(path)
	}
	m.ops = ops
	m.mu.Unlock()

	results := make([]*Dictionary, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, op := i, ops[path]
		g.Go(func() error {
			d, err := op.Wait(gctx)
			if err != nil {
				return err
			}
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, d := range results {
		if d.Err != nil {
			m.logger.Warn("dictionary failed to load", "path", d.Path, "err", d.Err)
		}
	}
	m.logger.Info("loaded dictionaries", "count", len(paths), "elapsed", time.Since(start))
	return results, nil
}
