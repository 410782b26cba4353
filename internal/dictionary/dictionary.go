// Package dictionary maps stroke sequences to translation strings.
package dictionary

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrLoadFailed reports a dictionary that could not be loaded.
	ErrLoadFailed = errors.New("dictionary load failed")
	// ErrReadOnly reports a mutation of a read-only dictionary.
	ErrReadOnly = errors.New("dictionary is read-only")
	// ErrNotFound reports a missing key or dictionary.
	ErrNotFound = errors.New("not found")
)

const keySep = "/"

func joinKey(key []string) string {
	return strings.Join(key, keySep)
}

func splitKey(joined string) []string {
	return strings.Split(joined, keySep)
}

// Dictionary is one stroke-sequence to translation mapping with reverse
// indices. It is not safe for concurrent use; the engine serializes access.
type Dictionary struct {
	Path      string
	Enabled   bool
	ReadOnly  bool
	Timestamp time.Time
	// Err is set on placeholders standing in for dictionaries that failed
	// to load.
	Err error

	format      Format
	entries     map[string]string
	reverse     map[string]map[string]struct{}
	caseReverse map[string]map[string]struct{}
	lengths     map[int]int
	longestKey  int
	// collections holding this dictionary, refreshed when longestKey moves.
	collections []*Collection
}

// New returns an empty enabled dictionary.
func New(path string) *Dictionary {
	return &Dictionary{
		Path:        path,
		Enabled:     true,
		entries:     map[string]string{},
		reverse:     map[string]map[string]struct{}{},
		caseReverse: map[string]map[string]struct{}{},
		lengths:     map[int]int{},
	}
}

// NewErrored returns the placeholder for a dictionary that failed to load.
// It holds no entries and is disabled.
func NewErrored(path string, err error) *Dictionary {
	d := New(path)
	d.Enabled = false
	d.ReadOnly = true
	if !errors.Is(err, ErrLoadFailed) {
		err = fmt.Errorf("%w: %s: %w", ErrLoadFailed, path, err)
	}
	d.Err = err
	return d
}

// Len returns the entry count.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// LongestKey returns the stroke count of the longest entry.
func (d *Dictionary) LongestKey() int {
	return d.longestKey
}

// Get returns the translation stored for key.
func (d *Dictionary) Get(key []string) (string, bool) {
	if len(key) > d.longestKey {
		return "", false
	}
	v, ok := d.entries[joinKey(key)]
	return v, ok
}

// Set stores a translation, replacing any previous one.
func (d *Dictionary) Set(key []string, value string) error {
	if d.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, d.Path)
	}
	longest := d.longestKey
	d.set(key, value)
	d.changed(longest)
	return nil
}

func (d *Dictionary) set(key []string, value string) {
	joined := joinKey(key)
	if old, ok := d.entries[joined]; ok {
		d.unindex(joined, old)
	} else {
		d.lengths[len(key)]++
		if len(key) > d.longestKey {
			d.longestKey = len(key)
		}
	}
	d.entries[joined] = value
	addIndex(d.reverse, value, joined)
	addIndex(d.caseReverse, strings.ToLower(value), value)
}

// Update stores many entries at once. Loaders use it on fresh dictionaries
// before the read-only flag is decided.
func (d *Dictionary) Update(entries map[string]string) {
	longest := d.longestKey
	for joined, value := range entries {
		d.set(splitKey(joined), value)
	}
	d.changed(longest)
}

// Delete removes key.
func (d *Dictionary) Delete(key []string) error {
	if d.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, d.Path)
	}
	joined := joinKey(key)
	old, ok := d.entries[joined]
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrNotFound, joined, d.Path)
	}
	longest := d.longestKey
	defer d.changed(longest)
	delete(d.entries, joined)
	d.unindex(joined, old)
	d.lengths[len(key)]--
	if d.lengths[len(key)] == 0 {
		delete(d.lengths, len(key))
		if len(key) == d.longestKey {
			d.longestKey = 0
			for n := range d.lengths {
				if n > d.longestKey {
					d.longestKey = n
				}
			}
		}
	}
	return nil
}

// Clear removes all entries.
func (d *Dictionary) Clear() error {
	if d.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, d.Path)
	}
	d.entries = map[string]string{}
	d.reverse = map[string]map[string]struct{}{}
	d.caseReverse = map[string]map[string]struct{}{}
	d.lengths = map[int]int{}
	longest := d.longestKey
	d.longestKey = 0
	d.changed(longest)
	return nil
}

// changed refreshes the owning collections when the longest key moved
// from before.
func (d *Dictionary) changed(before int) {
	if d.longestKey == before {
		return
	}
	for _, c := range d.collections {
		c.Refresh()
	}
}

func (d *Dictionary) attach(c *Collection) {
	for _, o := range d.collections {
		if o == c {
			return
		}
	}
	d.collections = append(d.collections, c)
}

func (d *Dictionary) detach(c *Collection) {
	for i, o := range d.collections {
		if o == c {
			d.collections = append(d.collections[:i], d.collections[i+1:]...)
			return
		}
	}
}

func (d *Dictionary) unindex(joined, value string) {
	removeIndex(d.reverse, value, joined)
	if len(d.reverse[value]) == 0 {
		removeIndex(d.caseReverse, strings.ToLower(value), value)
	}
}

// Reverse returns the keys mapping to value, sorted.
func (d *Dictionary) Reverse(value string) [][]string {
	set := d.reverse[value]
	out := make([][]string, 0, len(set))
	for _, joined := range sortedSet(set) {
		out = append(out, splitKey(joined))
	}
	return out
}

// CaseReverse returns the stored values whose lowercase form is value.
func (d *Dictionary) CaseReverse(value string) []string {
	return sortedSet(d.caseReverse[strings.ToLower(value)])
}

// Items returns every entry as joined key to value.
func (d *Dictionary) Items() map[string]string {
	out := make(map[string]string, len(d.entries))
	for k, v := range d.entries {
		out[k] = v
	}
	return out
}

// Save writes the dictionary back through its format.
func (d *Dictionary) Save() error {
	if d.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, d.Path)
	}
	if d.format == nil {
		return fmt.Errorf("failed to save %s: no storage format", d.Path)
	}
	if err := d.format.Save(d); err != nil {
		return fmt.Errorf("failed to save %s: %w", d.Path, err)
	}
	return nil
}

func addIndex(index map[string]map[string]struct{}, key, member string) {
	set, ok := index[key]
	if !ok {
		set = map[string]struct{}{}
		index[key] = set
	}
	set[member] = struct{}{}
}

func removeIndex(index map[string]map[string]struct{}, key, member string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(index, key)
	}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
