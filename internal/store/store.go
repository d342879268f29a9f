// Package store defines the bill store contract consumed by the page
// controllers, with an in-process implementation and an HTTP client for the
// bill API.
package store

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zombor/billed/internal/bill"
)

// Store gives access to store resources
type Store interface {
	Bills() Bills
}

// Bills is the bill resource of a Store
type Bills interface {
	// List returns the submitted bills of an employee
	List(ctx context.Context, email string) ([]bill.Bill, error)

	// Create uploads an attachment and returns its URL and the draft key
	Create(ctx context.Context, upload bill.Upload) (*bill.Draft, error)

	// Update finalizes the bill stored under id. An empty id finalizes a
	// bill that has no attachment.
	Update(ctx context.Context, id string, data bill.Bill) (*bill.Bill, error)
}

// Attachment is the content of a bill attachment
type Attachment struct {
	ContentType string
	Data        []byte
}

// Attachments serves bill attachments to the employee owning the bill
type Attachments interface {
	// Attachment returns the attachment of bill id. Bills of other
	// employees are reported as not found.
	Attachment(ctx context.Context, email, id string) (*Attachment, error)
}

// Error is a rejected store call. Its message is the one shown to employees.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Erreur %d", e.Status)
}

func notFound(id string) error {
	return &Error{Status: http.StatusNotFound, Detail: fmt.Sprintf("bill %s not found", id)}
}
