package store

import (
	"context"

	"github.com/zombor/billed/internal/bill"
)

// Local serves the Store contract from an in-process bill.Service
type Local struct {
	bills *localBills
}

// NewLocal wraps service
func NewLocal(service *bill.Service) *Local {
	return &Local{bills: &localBills{service: service}}
}

// Bills returns the bill resource
func (l *Local) Bills() Bills {
	return l.bills
}

// Attachment returns the attachment of a bill owned by email
func (l *Local) Attachment(ctx context.Context, email, id string) (*Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := l.bills.service.Get(id)
	if err != nil {
		return nil, reject(err)
	}
	if b.Email != email {
		return nil, notFound(id)
	}
	data, contentType, err := l.bills.service.Attachment(id)
	if err != nil {
		return nil, reject(err)
	}
	return &Attachment{ContentType: contentType, Data: data}, nil
}

type localBills struct {
	service *bill.Service
}

func reject(err error) error {
	return &Error{Status: bill.StatusCode(err), Detail: err.Error()}
}

func (b *localBills) List(ctx context.Context, email string) ([]bill.Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bills, err := b.service.List(email)
	if err != nil {
		return nil, reject(err)
	}
	return bills, nil
}

func (b *localBills) Create(ctx context.Context, upload bill.Upload) (*bill.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	draft, err := b.service.CreateDraft(upload)
	if err != nil {
		return nil, reject(err)
	}
	return draft, nil
}

func (b *localBills) Update(ctx context.Context, id string, data bill.Bill) (*bill.Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	updated, err := b.service.Update(id, data)
	if err != nil {
		return nil, reject(err)
	}
	return updated, nil
}
