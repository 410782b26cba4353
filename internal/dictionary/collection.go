package dictionary

import (
	"fmt"
	"log/slog"
	"sort"
)

// Filter hides an entry from Lookup when it returns true.
type Filter func(key []string, value string) bool

// Collection is an ordered stack of dictionaries. The last dictionary has
// the highest priority.
type Collection struct {
	dicts      []*Dictionary
	filters    []Filter
	filterIDs  []int
	nextFilter int
	longestKey int
	listeners  []func(int)
	logger     *slog.Logger
}

// NewCollection returns a collection over dicts, lowest priority first.
func NewCollection(dicts ...*Dictionary) *Collection {
	c := &Collection{logger: slog.Default()}
	c.dicts = append([]*Dictionary(nil), dicts...)
	for _, d := range c.dicts {
		d.attach(c)
	}
	c.longestKey = c.computeLongestKey()
	return c
}

// SetLogger replaces the logger used for listener failures.
func (c *Collection) SetLogger(l *slog.Logger) {
	c.logger = l
}

// Set replaces the dictionary stack. Entries changed directly on a member
// dictionary still reach the longest key listeners.
func (c *Collection) Set(dicts []*Dictionary) {
	for _, d := range c.dicts {
		d.detach(c)
	}
	c.dicts = append([]*Dictionary(nil), dicts...)
	for _, d := range c.dicts {
		d.attach(c)
	}
	c.Refresh()
}

// Dicts returns the stack, lowest priority first.
func (c *Collection) Dicts() []*Dictionary {
	return append([]*Dictionary(nil), c.dicts...)
}

// Get returns the dictionary loaded from path.
func (c *Collection) Get(path string) (*Dictionary, bool) {
	for _, d := range c.dicts {
		if d.Path == path {
			return d, true
		}
	}
	return nil, false
}

// FirstWritable returns the highest priority dictionary accepting writes.
func (c *Collection) FirstWritable() (*Dictionary, error) {
	for i := len(c.dicts) - 1; i >= 0; i-- {
		if !c.dicts[i].ReadOnly {
			return c.dicts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no writable dictionary", ErrNotFound)
}

// LongestKey is the longest entry over enabled dictionaries.
func (c *Collection) LongestKey() int {
	return c.longestKey
}

// Lookup returns the translation of key from the highest priority
// dictionary whose entry no filter hides.
func (c *Collection) Lookup(key []string) (string, bool) {
	return c.lookup(key, c.dicts, true)
}

// RawLookup is Lookup without filters.
func (c *Collection) RawLookup(key []string) (string, bool) {
	return c.lookup(key, c.dicts, false)
}

func (c *Collection) lookup(key []string, dicts []*Dictionary, filtered bool) (string, bool) {
	for i := len(dicts) - 1; i >= 0; i-- {
		d := dicts[i]
		if !d.Enabled || d.longestKey < len(key) {
			continue
		}
		value, ok := d.Get(key)
		if !ok {
			continue
		}
		if filtered && c.blocked(key, value) {
			continue
		}
		return value, true
	}
	return "", false
}

func (c *Collection) blocked(key []string, value string) bool {
	for _, f := range c.filters {
		if f(key, value) {
			return true
		}
	}
	return false
}

// Reverse returns every key mapping to value, ignoring keys that a higher
// priority dictionary overrides.
func (c *Collection) Reverse(value string) [][]string {
	seen := map[string]struct{}{}
	var out [][]string
	for i := len(c.dicts) - 1; i >= 0; i-- {
		d := c.dicts[i]
		if !d.Enabled {
			continue
		}
		for _, key := range d.Reverse(value) {
			if _, overridden := c.lookup(key, c.dicts[i+1:], false); overridden {
				continue
			}
			joined := joinKey(key)
			if _, dup := seen[joined]; dup {
				continue
			}
			seen[joined] = struct{}{}
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return joinKey(out[i]) < joinKey(out[j])
	})
	return out
}

// CaseReverse returns the stored values equal to value ignoring case.
func (c *Collection) CaseReverse(value string) []string {
	set := map[string]struct{}{}
	for _, d := range c.dicts {
		if !d.Enabled {
			continue
		}
		for _, v := range d.CaseReverse(value) {
			set[v] = struct{}{}
		}
	}
	return sortedSet(set)
}

// SetEntry writes a translation to the dictionary at path, or to the first
// writable one when path is empty.
func (c *Collection) SetEntry(key []string, value, path string) (*Dictionary, error) {
	d, err := c.target(path)
	if err != nil {
		return nil, err
	}
	if err := d.Set(key, value); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteEntry removes key from the dictionary at path, or from the first
// writable one when path is empty.
func (c *Collection) DeleteEntry(key []string, path string) error {
	d, err := c.target(path)
	if err != nil {
		return err
	}
	return d.Delete(key)
}

func (c *Collection) target(path string) (*Dictionary, error) {
	if path == "" {
		return c.FirstWritable()
	}
	d, ok := c.Get(path)
	if !ok {
		return nil, fmt.Errorf("%w: dictionary %s", ErrNotFound, path)
	}
	return d, nil
}

// SetEnabled toggles the dictionary at path.
func (c *Collection) SetEnabled(path string, enabled bool) error {
	d, ok := c.Get(path)
	if !ok {
		return fmt.Errorf("%w: dictionary %s", ErrNotFound, path)
	}
	d.Enabled = enabled
	c.Refresh()
	return nil
}

// AddFilter installs f and returns a handle for RemoveFilter.
func (c *Collection) AddFilter(f Filter) int {
	c.nextFilter++
	c.filters = append(c.filters, f)
	c.filterIDs = append(c.filterIDs, c.nextFilter)
	return c.nextFilter
}

// RemoveFilter uninstalls the filter with the given handle.
func (c *Collection) RemoveFilter(id int) {
	for i, fid := range c.filterIDs {
		if fid == id {
			c.filters = append(c.filters[:i], c.filters[i+1:]...)
			c.filterIDs = append(c.filterIDs[:i], c.filterIDs[i+1:]...)
			return
		}
	}
}

// AddLongestKeyListener registers fn to run whenever LongestKey changes.
// The returned id unregisters it; slots of removed listeners stay empty so
// ids remain stable.
func (c *Collection) AddLongestKeyListener(fn func(int)) int {
	c.listeners = append(c.listeners, fn)
	return len(c.listeners) - 1
}

// RemoveLongestKeyListener unregisters a listener.
func (c *Collection) RemoveLongestKeyListener(id int) {
	if id >= 0 && id < len(c.listeners) {
		c.listeners[id] = nil
	}
}

// Refresh recomputes LongestKey after dictionaries changed outside the
// collection, notifying listeners on change.
func (c *Collection) Refresh() {
	longest := c.computeLongestKey()
	if longest == c.longestKey {
		return
	}
	c.longestKey = longest
	for _, fn := range c.listeners {
		if fn != nil {
			c.notify(fn, longest)
		}
	}
}

func (c *Collection) notify(fn func(int), longest int) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("longest key listener failed", "panic", r)
		}
	}()
	fn(longest)
}

func (c *Collection) computeLongestKey() int {
	longest := 0
	for _, d := range c.dicts {
		if d.Enabled && d.longestKey > longest {
			longest = d.longestKey
		}
	}
	return longest
}
