package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
	"github.com/zombor/billed/internal/view"
)

// Router maps paths to pages for one signed-in employee. It builds a fresh
// controller on every navigation and binds it to the dispatcher.
type Router struct {
	store      store.Store
	session    session.Session
	screen     Screen
	dispatcher *Dispatcher

	mu      sync.Mutex
	current string
	bills   *BillsList
	newBill *NewBill
}

// NewRouter creates a Router. Nothing is shown until the first NavigateTo.
func NewRouter(st store.Store, sess session.Session, screen Screen, d *Dispatcher) *Router {
	return &Router{
		store:      st,
		session:    sess,
		screen:     screen,
		dispatcher: d,
	}
}

// NavigateTo shows the page for path. Unknown paths show a not found page.
func (r *Router) NavigateTo(ctx context.Context, path string) {
	r.mu.Lock()
	prev := r.newBill
	r.newBill = nil
	r.bills = nil
	r.current = path
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	r.dispatcher.Reset()

	slog.Debug("Navigating", "path", path, "email", r.session.Email)

	switch path {
	case PathLogin:
		r.screen.Show(view.LoginPage{Email: r.session.Email})
	case PathBills:
		r.screen.Show(view.LoadingPage{})
		bills := NewBillsList(r.store, r, r.screen, r.session)
		bills.Bind(r.dispatcher)
		r.mu.Lock()
		r.bills = bills
		r.mu.Unlock()
		bills.Initiate(ctx)
	case PathNewBill:
		nb := NewNewBill(r.store, r, r.screen, r.session)
		nb.Bind(r.dispatcher)
		r.mu.Lock()
		r.newBill = nb
		r.mu.Unlock()
		nb.Render()
	default:
		r.screen.Show(view.ErrorPage{Message: "Page introuvable"})
	}
}

// Current returns the last path navigated to
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// BillsList returns the active bills controller, or nil
func (r *Router) BillsList() *BillsList {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bills
}

// NewBill returns the active new bill controller, or nil
func (r *Router) NewBill() *NewBill {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.newBill
}

// Settle waits for background work of the current page to finish
func (r *Router) Settle(ctx context.Context) error {
	nb := r.NewBill()
	if nb == nil {
		return nil
	}
	return nb.WaitUpload(ctx)
}
