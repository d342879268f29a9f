package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
	"github.com/zombor/billed/internal/view"
)

// State is the progress of the draft bill
type State int

const (
	StateEmpty State = iota
	StateFileValidated
	StateSubmitting
	StateSubmitted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFileValidated:
		return "file-validated"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// NewBill drives the new bill form and owns the draft being composed
type NewBill struct {
	store   store.Store
	nav     Navigator
	screen  Screen
	session session.Session

	mu        sync.Mutex
	state     State
	fileError bool
	fileName  string
	form      view.Form

	// set by a successful upload only
	billID       string
	fileURL      string
	uploadedName string
	fingerprint  string

	generation int
	pending    chan struct{}
	closed     bool
}

// NewNewBill creates the controller for an empty form
func NewNewBill(st store.Store, nav Navigator, screen Screen, sess session.Session) *NewBill {
	return &NewBill{
		store:   st,
		nav:     nav,
		screen:  screen,
		session: sess,
	}
}

// Bind registers the form's event handlers
func (n *NewBill) Bind(d *Dispatcher) {
	d.On(EventFileChange, n.OnFileSelected)
	d.On(EventFormSubmit, n.OnSubmit)
}

// Render shows the form in its current state
func (n *NewBill) Render() {
	n.mu.Lock()
	page := n.pageLocked()
	n.mu.Unlock()
	n.screen.Show(page)
}

func (n *NewBill) pageLocked() view.NewBillPage {
	return view.NewBillPage{
		Form:      n.form,
		FileError: n.fileError,
		FileName:  n.fileName,
	}
}

// OnFileSelected validates the picked file and starts its upload
func (n *NewBill) OnFileSelected(ctx context.Context, ev *Event) {
	file := ev.File

	n.mu.Lock()
	if n.closed || n.state == StateSubmitted || n.state == StateSubmitting {
		n.mu.Unlock()
		return
	}

	if file == nil || bill.ValidateAttachmentName(file.Name) != nil {
		name := ""
		if file != nil {
			name = file.Name
		}
		slog.Info("Rejected attachment", "filename", name)
		n.fileError = true
		page := n.pageLocked()
		n.mu.Unlock()
		n.screen.Show(page)
		return
	}

	n.fileError = false
	n.fileName = file.Name

	sum := sha256.Sum256(file.Data)
	fp := file.Name + ":" + hex.EncodeToString(sum[:])
	if fp == n.fingerprint && n.billID != "" {
		n.state = StateFileValidated
		page := n.pageLocked()
		n.mu.Unlock()
		n.screen.Show(page)
		return
	}

	n.state = StateFileValidated
	n.generation++
	gen := n.generation
	done := make(chan struct{})
	n.pending = done
	upload := bill.Upload{
		Email:       n.session.Email,
		FileName:    file.Name,
		ContentType: file.ContentType,
		Data:        file.Data,
	}
	page := n.pageLocked()
	n.mu.Unlock()

	n.screen.Show(page)
	go n.upload(context.WithoutCancel(ctx), gen, fp, upload, done)
}

func (n *NewBill) upload(ctx context.Context, gen int, fp string, upload bill.Upload, done chan struct{}) {
	defer close(done)

	draft, err := n.store.Bills().Create(ctx, upload)

	n.mu.Lock()
	if n.closed || gen != n.generation {
		n.mu.Unlock()
		return
	}
	if err != nil {
		slog.Error("Error uploading attachment", "filename", upload.FileName, "error", err)
		n.state = StateRejected
		n.mu.Unlock()
		return
	}

	n.billID = draft.Key
	n.fileURL = draft.FileURL
	n.uploadedName = upload.FileName
	n.fingerprint = fp
	n.applySuggestionLocked(draft.Suggestion)

	// shown under the lock so a concurrent Close cannot be overtaken
	n.screen.Show(n.pageLocked())
	n.mu.Unlock()
}

// applySuggestionLocked fills empty form fields from a scanned receipt
func (n *NewBill) applySuggestionLocked(s *bill.Suggestion) {
	if s == nil {
		return
	}
	if n.form.Type == "" && s.Type != "" {
		n.form.Type = string(s.Type)
	}
	if n.form.Name == "" {
		n.form.Name = s.Name
	}
	if n.form.Date == "" {
		n.form.Date = s.Date
	}
	if n.form.Amount == "" && s.Amount > 0 {
		n.form.Amount = strconv.Itoa(s.Amount)
	}
	if n.form.VAT == "" {
		n.form.VAT = s.VAT
	}
}

// WaitUpload blocks until the in-flight upload, if any, has settled
func (n *NewBill) WaitUpload(ctx context.Context) error {
	n.mu.Lock()
	pending := n.pending
	n.mu.Unlock()
	if pending == nil {
		return nil
	}

	select {
	case <-pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnSubmit assembles the bill from the form and finalizes it
func (n *NewBill) OnSubmit(ctx context.Context, ev *Event) {
	ev.PreventDefault()

	if err := n.WaitUpload(ctx); err != nil {
		slog.Error("Error waiting for attachment upload", "error", err)
		return
	}

	n.mu.Lock()
	if n.closed || n.state == StateSubmitting || n.state == StateSubmitted {
		n.mu.Unlock()
		return
	}

	n.form = view.Form{
		Type:       ev.Value("expense-type"),
		Name:       ev.Value("expense-name"),
		Amount:     ev.Value("amount"),
		Date:       ev.Value("datepicker"),
		VAT:        ev.Value("vat"),
		Pct:        ev.Value("pct"),
		Commentary: ev.Value("commentary"),
	}

	vat, err := bill.ParseVAT(n.form.VAT)
	if err != nil {
		slog.Warn("Dropping invalid vat", "vat", n.form.VAT, "error", err)
	}

	data := bill.Bill{
		Email:      n.session.Email,
		Type:       bill.Type(n.form.Type),
		Name:       n.form.Name,
		Amount:     leadingInt(n.form.Amount, 0),
		Date:       n.form.Date,
		VAT:        vat,
		Pct:        leadingInt(n.form.Pct, bill.DefaultPct),
		Commentary: n.form.Commentary,
		Status:     bill.StatusPending,
	}
	if n.fileURL != "" {
		fileURL, fileName := n.fileURL, n.uploadedName
		data.FileURL = &fileURL
		data.FileName = &fileName
	}
	id := n.billID
	n.state = StateSubmitting
	n.mu.Unlock()

	_, err = n.store.Bills().Update(ctx, id, data)

	n.mu.Lock()
	if err != nil {
		slog.Error("Error submitting bill", "id", id, "error", err)
		n.state = StateRejected
		n.mu.Unlock()
		return
	}
	n.state = StateSubmitted
	n.mu.Unlock()

	n.nav.NavigateTo(ctx, PathBills)
}

// Close abandons the draft. Pending results are ignored afterwards.
func (n *NewBill) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
}

// State returns the draft state
func (n *NewBill) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// BillID returns the draft key of the last successful upload, or ""
func (n *NewBill) BillID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.billID
}

// FileURL returns the URL of the last successful upload, or ""
func (n *NewBill) FileURL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fileURL
}

// FileName returns the name of the last valid file selected
func (n *NewBill) FileName() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fileName
}

// Form returns the current form values, including scanned suggestions
func (n *NewBill) Form() view.Form {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.form
}

// FileErrorVisible reports whether the file error indicator is set
func (n *NewBill) FileErrorVisible() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fileError
}

// leadingInt parses the leading digits of s. Empty, invalid or negative
// input yields def.
func leadingInt(s string, def int) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return def
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return def
	}
	return v
}
