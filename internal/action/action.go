// Package action implements the Action handler registry (SPEC_FULL.md
// §4.8[NEW]): a lookup from a Task's action string to the function the
// Worker Thread invokes to run it. spec.md leaves the handler lookup
// external to the core state machine; this is that lookup.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/relaydb/jobcore/internal/domain"
)

// Handler runs one Task against the immutable JobSnapshot it was triggered
// with. A non-nil error drives the Execution to the ERROR state with
// errorKind TASK, per spec.md §4.8.
type Handler func(ctx context.Context, task domain.Task, snapshot domain.JobSnapshot) error

// Registry maps action names to Handlers. Safe for concurrent use: Worker
// Threads across Execution Servers all resolve against the same process-
// wide instance.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry builds a Registry pre-populated with the two built-in
// actions spec.md's end-to-end scenarios (§8) exercise: "noop" and "http".
func NewRegistry(log *slog.Logger) *Registry {
	r := &Registry{handlers: map[string]Handler{}}
	r.Register("noop", Noop)
	r.Register("http", NewHTTPAction(log).Handle)
	return r
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// ErrUnknownAction is returned by Resolve when no handler is registered
// for the requested action name.
type ErrUnknownAction struct{ Action string }

func (e *ErrUnknownAction) Error() string {
	return fmt.Sprintf("action: no handler registered for %q", e.Action)
}

// Resolve looks up the handler for a Task's action string.
func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, &ErrUnknownAction{Action: name}
	}
	return h, nil
}

// Noop always succeeds immediately — used by spec.md §8's end-to-end test
// scenarios to drive the Execution state machine without a real side
// effect.
func Noop(_ context.Context, _ domain.Task, _ domain.JobSnapshot) error {
	return nil
}
