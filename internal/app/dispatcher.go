package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Event names handled by the pages
const (
	EventNewBillClick = "click:btn-new-bill"
	EventIconEyeClick = "click:icon-eye"
	EventFileChange   = "change:file"
	EventFormSubmit   = "submit:form-new-bill"
)

// ErrNoHandler is returned when the current page does not handle an event
var ErrNoHandler = errors.New("no handler for event")

// Handler reacts to an event
type Handler func(ctx context.Context, ev *Event)

// Dispatcher routes events to the handlers of the current page, one at a time
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string]Handler

	running sync.Mutex
}

// NewDispatcher creates an empty Dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// On registers h for the named event, replacing any previous handler
func (d *Dispatcher) On(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// Reset drops every handler
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[string]Handler)
}

// Handles reports whether a handler is registered for name
func (d *Dispatcher) Handles(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.handlers[name]
	return ok
}

// Dispatch runs the handler registered for ev. Dispatches never overlap.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) error {
	d.running.Lock()
	defer d.running.Unlock()

	d.mu.Lock()
	h, ok := d.handlers[ev.Name]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, ev.Name)
	}

	h(ctx, ev)
	return nil
}
