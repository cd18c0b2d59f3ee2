package pixel

import (
	"context"
	"fmt"
	"sync"

	"lead-dispatch/internal/common/logger"
)

// TagManager is the page-side global (fbq, gtag) an event is fired on.
type TagManager interface {
	Track(ctx context.Context, ev Event) error
}

// Emitter fires events on a TagManager. A missing tag manager is a no-op, and tag
// manager errors or panics are logged and dropped.
type Emitter struct {
	managers map[string]TagManager
	logger   logger.Logger
}

func NewEmitter(log logger.Logger) *Emitter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Emitter{managers: make(map[string]TagManager), logger: log}
}

// Register attaches tm as the tag manager for name (ManagerFacebook, ManagerGoogle).
func (e *Emitter) Register(name string, tm TagManager) *Emitter {
	e.managers[name] = tm
	return e
}

// Loaded reports whether a tag manager is registered for name.
func (e *Emitter) Loaded(name string) bool {
	return e.managers[name] != nil
}

// Emit fires ev and reports whether the tag manager accepted it.
func (e *Emitter) Emit(ctx context.Context, ev Event) (fired bool) {
	tm := e.managers[ev.Manager]
	if tm == nil {
		e.logger.Warn("tag manager not loaded, skipping event", map[string]interface{}{
			"manager": ev.Manager,
			"event":   ev.Name,
		})
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tag manager panicked", map[string]interface{}{
				"manager": ev.Manager,
				"event":   ev.Name,
				"panic":   fmt.Sprint(r),
			})
			fired = false
		}
	}()

	if err := tm.Track(ctx, ev); err != nil {
		e.logger.Error("failed to track event", map[string]interface{}{
			"manager": ev.Manager,
			"event":   ev.Name,
			"error":   err.Error(),
		})
		return false
	}

	e.logger.Debug("event tracked", map[string]interface{}{
		"manager": ev.Manager,
		"event":   ev.Name,
	})
	return true
}

// EmitAll fires every event and returns how many were accepted.
func (e *Emitter) EmitAll(ctx context.Context, events []Event) int {
	n := 0
	for _, ev := range events {
		if e.Emit(ctx, ev) {
			n++
		}
	}
	return n
}

// Collector is a TagManager that records events so they can be handed to the browser.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Track(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// Events returns a copy of what was recorded.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
