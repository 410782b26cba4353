package engine

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventKind names what happened.
type EventKind string

// Event kinds delivered to subscribers.
const (
	EventStroked            EventKind = "stroked"
	EventTranslated         EventKind = "translated"
	EventMachineState       EventKind = "machine_state_changed"
	EventOutputChanged      EventKind = "output_changed"
	EventConfigChanged      EventKind = "config_changed"
	EventDictionariesLoaded EventKind = "dictionaries_loaded"
	EventSendString         EventKind = "send_string"
	EventSendBackspaces     EventKind = "send_backspaces"
	EventSendKeyCombination EventKind = "send_key_combination"
	EventAddTranslation     EventKind = "add_translation"
	EventTranslationAdded   EventKind = "translation_added"
	EventCaptureDone        EventKind = "capture_done"
	EventFocus              EventKind = "focus"
	EventConfigure          EventKind = "configure"
	EventLookup             EventKind = "lookup"
	EventSuggestions        EventKind = "suggestions"
	EventCommand            EventKind = "command"
	EventQuit               EventKind = "quit"
	EventError              EventKind = "error"
)

// Event is a structured notification for controllers. Only the fields
// relevant to Kind are set.
type Event struct {
	// ID is a ULID whose timestamp is Time.
	ID   string
	Time time.Time
	Kind EventKind

	Stroke       string
	Strokes      []string
	Text         string
	Count        int
	Command      string
	Undo         []string
	Do           []string
	Output       bool
	MachineState MachineState
	Suggestions  []Suggestion
	Dictionaries []DictionaryStatus
	Err          error
}

// DictionaryStatus reports one dictionary of the loaded stack.
type DictionaryStatus struct {
	Path    string
	Entries int
	Enabled bool
	Err     error
}

// Subscribe registers fn for every event and returns its id. Subscribers
// run on the engine goroutine while the engine is locked: they must not
// call the engine's locking methods and should hand work off quickly.
func (e *Engine) Subscribe(fn func(Event)) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
	return len(e.subscribers) - 1
}

// Unsubscribe removes a subscriber. Other ids stay valid.
func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id >= 0 && id < len(e.subscribers) {
		e.subscribers[id] = nil
	}
}

func (e *Engine) emit(ev Event) {
	now := time.Now()
	ev.Time = now
	ev.ID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	for id, fn := range e.subscribers {
		if fn == nil {
			continue
		}
		e.deliver(id, fn, ev)
	}
}

func (e *Engine) deliver(id int, fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event subscriber panicked", "subscriber", id, "event", ev.Kind, "panic", r)
		}
	}()
	fn(ev)
}
