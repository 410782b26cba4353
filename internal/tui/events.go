package tui

import (
	"log/slog"

	"github.com/verte-zerg/steno/internal/engine"
)

const eventBuffer = 256

// Subscriber is the part of the engine that publishes events.
type Subscriber interface {
	Subscribe(fn func(engine.Event)) int
	Unsubscribe(id int)
}

// Subscribe forwards engine events to a channel read by the UI. Events are
// dropped when the UI falls behind so the engine never blocks on it.
func Subscribe(e Subscriber, logger *slog.Logger) (<-chan engine.Event, func()) {
	ch := make(chan engine.Event, eventBuffer)
	id := e.Subscribe(func(ev engine.Event) {
		select {
		case ch <- ev:
		default:
			logger.Warn("dropping engine event", "event", ev.Kind)
		}
	})
	return ch, func() {
		e.Unsubscribe(id)
	}
}
