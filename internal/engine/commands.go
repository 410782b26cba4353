package engine

import (
	"fmt"
	"strings"
)

// Engine commands, written {PLOVER:NAME} or {PLOVER:NAME:ARG} in
// dictionaries.
const (
	CommandSuspend        = "SUSPEND"
	CommandResume         = "RESUME"
	CommandToggle         = "TOGGLE"
	CommandQuit           = "QUIT"
	CommandFocus          = "FOCUS"
	CommandConfigure      = "CONFIGURE"
	CommandAddTranslation = "ADD_TRANSLATION"
	CommandLookup         = "LOOKUP"
	CommandSuggestions    = "SUGGESTIONS"
)

// CommandFunc runs a registered command on the engine goroutine.
type CommandFunc func(arg string) error

// RegisterCommand adds a command. Names are case insensitive; built-in
// commands cannot be replaced.
func (e *Engine) RegisterCommand(name string, fn CommandFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands[strings.ToUpper(name)] = fn
}

// consumeCommand runs an engine command. RESUME, TOGGLE and QUIT always
// act; the rest are ignored while output is suspended.
func (e *Engine) consumeCommand(command string) {
	name, arg, _ := strings.Cut(command, ":")
	name = strings.ToUpper(strings.TrimSpace(name))
	switch name {
	case CommandResume:
		e.setOutput(true)
		return
	case CommandToggle:
		e.setOutput(!e.running)
		return
	case CommandQuit:
		e.emit(Event{Kind: EventQuit})
		e.quitting = true
		return
	}
	if !e.running {
		return
	}
	switch name {
	case CommandSuspend:
		e.setOutput(false)
	case CommandFocus:
		e.emit(Event{Kind: EventFocus})
	case CommandConfigure:
		e.emit(Event{Kind: EventConfigure})
	case CommandAddTranslation:
		e.emit(Event{Kind: EventAddTranslation, Text: arg})
	case CommandLookup:
		e.emit(Event{Kind: EventLookup, Text: arg})
	case CommandSuggestions:
		text := arg
		if text == "" {
			text = e.lastText()
		}
		e.emit(Event{Kind: EventSuggestions, Text: text, Suggestions: e.suggestions.Find(text)})
	default:
		fn, ok := e.commands[name]
		if !ok {
			e.emit(Event{Kind: EventCommand, Command: name, Text: arg})
			return
		}
		if err := runCommand(fn, arg); err != nil {
			e.logger.Warn("command failed", "command", name, "err", err)
			e.emit(Event{Kind: EventError, Command: name, Err: err})
		}
	}
}

// runCommand turns a panicking command into an error.
func runCommand(fn CommandFunc, arg string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()
	return fn(arg)
}

// lastText is the newest translation before the one running the command.
func (e *Engine) lastText() string {
	ts := e.translator.State().Translations
	for i := len(ts) - 2; i >= 0; i-- {
		if ts[i].HasEnglish && !strings.HasPrefix(ts[i].English, "{") {
			return ts[i].English
		}
	}
	return ""
}
