package model

import (
	"context"
	"fmt"
	"slices"
)

// Event names a point in the lifecycle of an instance.
type Event string

// Lifecycle events, in firing order.
const (
	EventSaving   Event = "saving"
	EventCreating Event = "creating"
	EventCreated  Event = "created"
	EventUpdating Event = "updating"
	EventUpdated  Event = "updated"
	EventSaved    Event = "saved"
	EventDeleting Event = "deleting"
	EventDeleted  Event = "deleted"
)

// Hook observes a lifecycle event. Returned errors are logged.
type Hook func(ctx context.Context, m *Model) error

// On subscribes h to e. Hooks of one event run in subscription order.
func (t *Type) On(e Event, h Hook) *Type {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks[e] = append(t.hooks[e], h)
	return t
}

func (t *Type) fire(ctx context.Context, e Event, m *Model) {
	t.mu.RLock()
	hooks := slices.Clone(t.hooks[e])
	t.mu.RUnlock()
	for i, h := range hooks {
		if err := t.runHook(ctx, h, m); err != nil {
			t.reg.logger.ErrorContext(ctx, "model hook failed",
				"table", t.Table(),
				"event", string(e),
				"hook", i,
				"id", m.ID(),
				"error", err,
			)
		}
	}
}

func (t *Type) runHook(ctx context.Context, h Hook, m *Model) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h(ctx, m)
}
