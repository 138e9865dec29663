// Package events provides the in-process event bus that carries
// assignment-change notifications from the task-tracking collaborator (and
// from the engine's own accept path) to the suggestion invalidation logic.
package events

import (
	"context"
	"sync"

	"taskboard-leveler/internal/logging"
	"taskboard-leveler/pkg/types"
)

// Handler consumes one assignment-changed event.
type Handler func(ctx context.Context, ev types.AssignmentChanged)

// Bus is a small synchronous pub/sub bus. Dispatch is synchronous so a
// publisher returning from Publish knows invalidation has run; handlers are
// expected to be fast and must not block on external services.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   logging.Logger
}

// NewBus creates a new event bus
func NewBus(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Bus{logger: logger.WithComponent("event_bus")}
}

// Subscribe registers a handler for assignment-changed events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to every subscriber in registration order. A
// panicking handler is recovered and logged so one consumer cannot take down
// the publisher.
func (b *Bus) Publish(ctx context.Context, ev types.AssignmentChanged) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, ev)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, ev types.AssignmentChanged) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "task_id", ev.TaskID, "panic", r)
		}
	}()
	h(ctx, ev)
}
