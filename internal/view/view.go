// Package view renders page models to HTML. Rendering is a pure function of
// the model; controllers never build markup themselves.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"

	"github.com/zombor/billed/internal/bill"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// PlaceholderAttachment is shown when a bill has no attachment URL
const PlaceholderAttachment = "/static/no-attachment.svg"

// Model is a renderable page
type Model interface {
	templateName() string
}

// LoginPage asks who the employee is
type LoginPage struct {
	Email string
	Error string
}

// LoadingPage is shown while the bills are fetched
type LoadingPage struct{}

// ErrorPage shows a message verbatim
type ErrorPage struct {
	Message string
	Active  string
}

// BillsPage lists bills. A non-empty Error or Loading replaces the list.
type BillsPage struct {
	Bills   []bill.Display
	Error   string
	Loading bool
	Modal   *Modal
}

// Modal previews an attachment
type Modal struct {
	URL string
}

// Rows returns the bills most recent first. ISO dates order lexically.
func (p BillsPage) Rows() []bill.Display {
	rows := make([]bill.Display, len(p.Bills))
	copy(rows, p.Bills)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RawDate > rows[j].RawDate
	})
	return rows
}

// NewBillPage is the submission form
type NewBillPage struct {
	Form      Form
	FileError bool
	FileName  string
}

// Types lists the options of the expense type select
func (NewBillPage) Types() []bill.Type {
	return bill.Types
}

// Form holds the values shown in the new bill form
type Form struct {
	Type       string
	Name       string
	Amount     string
	Date       string
	VAT        string
	Pct        string
	Commentary string
}

func (LoginPage) templateName() string   { return "login" }
func (LoadingPage) templateName() string { return "loading" }
func (ErrorPage) templateName() string   { return "error" }
func (BillsPage) templateName() string   { return "bills" }
func (NewBillPage) templateName() string { return "newbill" }

// Render returns the markup of a page
func Render(m Model) (string, error) {
	if p, ok := m.(BillsPage); ok {
		switch {
		case p.Error != "":
			m = ErrorPage{Message: p.Error, Active: "bills"}
		case p.Loading:
			m = LoadingPage{}
		}
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, m.templateName(), m); err != nil {
		return "", fmt.Errorf("rendering %s: %w", m.templateName(), err)
	}
	return buf.String(), nil
}
