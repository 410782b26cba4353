package engine

import (
	"github.com/verte-zerg/steno/internal/keycombo"
)

// output receives formatter edits. A capture takes them while active;
// otherwise they reach the sink only while output is enabled.
type output struct {
	e *Engine
}

func (o output) SendBackspaces(n int) {
	e := o.e
	if c := e.capture; c != nil {
		c.backspace(n)
		return
	}
	if !e.running {
		return
	}
	if e.sink != nil {
		e.sink.SendBackspaces(n)
	}
	e.emit(Event{Kind: EventSendBackspaces, Count: n})
}

func (o output) SendString(s string) {
	e := o.e
	if c := e.capture; c != nil {
		c.write(s)
		return
	}
	if !e.running {
		return
	}
	if e.sink != nil {
		e.sink.SendString(s)
	}
	e.emit(Event{Kind: EventSendString, Text: s})
}

func (o output) SendKeyCombination(combo string) {
	e := o.e
	if e.capture != nil || !e.running {
		return
	}
	if err := keycombo.Validate(combo); err != nil {
		e.logger.Warn("invalid key combination", "combo", combo, "err", err)
		e.emit(Event{Kind: EventError, Text: combo, Err: err})
		return
	}
	if e.sink != nil {
		e.sink.SendKeyCombination(combo)
	}
	e.emit(Event{Kind: EventSendKeyCombination, Text: combo})
}

func (o output) SendEngineCommand(command string) {
	o.e.consumeCommand(command)
}
