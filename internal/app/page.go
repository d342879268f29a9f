package app

import (
	"log/slog"
	"sync"

	"github.com/zombor/billed/internal/view"
)

// Page is a Screen keeping the markup of the last model shown
type Page struct {
	mu     sync.RWMutex
	markup string
	model  view.Model
}

// NewPage creates an empty Page
func NewPage() *Page {
	return &Page{}
}

// Show renders m and keeps the result
func (p *Page) Show(m view.Model) {
	markup, err := view.Render(m)
	if err != nil {
		slog.Error("Error rendering page", "error", err)
		markup, err = view.Render(view.ErrorPage{Message: "Erreur d'affichage"})
		if err != nil {
			markup = "Erreur d'affichage"
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.markup = markup
	p.model = m
}

// Markup returns the last rendered markup
func (p *Page) Markup() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.markup
}

// Model returns the last model shown
func (p *Page) Model() view.Model {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}
