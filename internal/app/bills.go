package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
	"github.com/zombor/billed/internal/view"
)

// BillsList drives the bills list page
type BillsList struct {
	store   store.Store
	nav     Navigator
	screen  Screen
	session session.Session

	mu    sync.Mutex
	bills []bill.Display
}

// NewBillsList creates the controller. st may be nil when no backend is
// available; Initiate then does nothing.
func NewBillsList(st store.Store, nav Navigator, screen Screen, sess session.Session) *BillsList {
	return &BillsList{
		store:   st,
		nav:     nav,
		screen:  screen,
		session: sess,
	}
}

// Bind registers the page's event handlers
func (b *BillsList) Bind(d *Dispatcher) {
	d.On(EventNewBillClick, func(ctx context.Context, ev *Event) {
		b.NavigateToNewBill(ctx)
	})
	d.On(EventIconEyeClick, func(ctx context.Context, ev *Event) {
		b.ViewAttachment(ev.Target)
	})
}

// Initiate fetches the employee's bills and shows them in store order.
// A failed fetch is shown as an error page and yields nil.
func (b *BillsList) Initiate(ctx context.Context) []bill.Display {
	if b.store == nil {
		return nil
	}

	raw, err := b.store.Bills().List(ctx, b.session.Email)
	if err != nil {
		slog.Error("Error listing bills", "email", b.session.Email, "error", err)
		b.screen.Show(view.BillsPage{Error: err.Error()})
		return nil
	}

	bills := make([]bill.Display, 0, len(raw))
	for _, r := range raw {
		d, err := bill.ToDisplay(r)
		if err != nil {
			slog.Warn("Keeping unformatted bill date", "id", r.ID, "date", r.Date, "error", err)
		}
		bills = append(bills, d)
	}

	b.mu.Lock()
	b.bills = bills
	b.mu.Unlock()

	b.screen.Show(view.BillsPage{Bills: bills})
	return bills
}

// NavigateToNewBill opens the new bill form
func (b *BillsList) NavigateToNewBill(ctx context.Context) {
	b.nav.NavigateTo(ctx, PathNewBill)
}

// ViewAttachment opens the attachment modal for the element's data-bill-url
func (b *BillsList) ViewAttachment(el Element) {
	url := el.Attr("data-bill-url")
	if url == "" {
		url = view.PlaceholderAttachment
	}

	b.mu.Lock()
	bills := b.bills
	b.mu.Unlock()

	b.screen.Show(view.BillsPage{Bills: bills, Modal: &view.Modal{URL: url}})
}
