// Package app holds the page controllers of the employee interface and the
// plumbing that connects them: the router, the event dispatcher and the
// screen the pages are shown on.
package app

import (
	"context"

	"github.com/zombor/billed/internal/view"
)

// Logical page paths
const (
	PathLogin   = "/"
	PathBills   = "/bills"
	PathNewBill = "/bills/new"
)

// Navigator shows the page associated with a path
type Navigator interface {
	NavigateTo(ctx context.Context, path string)
}

// Screen receives the page models to show
type Screen interface {
	Show(m view.Model)
}

// Element is the target of an event, reduced to its attributes
type Element struct {
	Attrs map[string]string
}

// Attr returns an attribute value, or "" when absent
func (e Element) Attr(name string) string {
	return e.Attrs[name]
}

// File is a file picked in a file input
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Event is a user interaction forwarded from the browser
type Event struct {
	Name   string
	Target Element
	Form   map[string]string
	File   *File

	defaultPrevented bool
}

// PreventDefault marks the browser's default action as handled
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether a handler called PreventDefault
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Value returns a form field value
func (e *Event) Value(name string) string {
	return e.Form[name]
}
