package web

import (
	"context"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/store"
)

// linkedStore points the attachments of listed bills at the attachment
// route of the web server
type linkedStore struct {
	store.Store
}

func (l linkedStore) Bills() store.Bills {
	return linkedBills{l.Store.Bills()}
}

type linkedBills struct {
	store.Bills
}

func (b linkedBills) List(ctx context.Context, email string) ([]bill.Bill, error) {
	bills, err := b.Bills.List(ctx, email)
	if err != nil {
		return nil, err
	}
	for i := range bills {
		if bills[i].FileURL != nil {
			link := bill.FileURL(bills[i].ID)
			bills[i].FileURL = &link
		}
	}
	return bills, nil
}
