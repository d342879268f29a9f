package bill

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/billed/internal/scanning"
)

// IDGenerator generates unique IDs for bills
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// FileURL returns the API path an attachment is served from
func FileURL(id string) string {
	return fmt.Sprintf("/api/bills/%s/file", id)
}

func storedName(id, fileName string) string {
	return fmt.Sprintf("%s_%s", id, sanitizeFilename(fileName))
}

// Service implements the bill store: attachment drafts, finalization and listing
type Service struct {
	db          DB
	storage     Storage
	scanner     scanning.Scanner
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service. scanner may be nil, in which case drafts
// carry no suggestion.
func NewService(db DB, storage Storage, scanner scanning.Scanner) *Service {
	return NewServiceWithDeps(db, storage, scanner, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with custom ID and time sources for testing
func NewServiceWithDeps(db DB, storage Storage, scanner scanning.Scanner, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		scanner:     scanner,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// CreateDraft stores an attachment and a draft bill keyed by the returned Key
func (s *Service) CreateDraft(u Upload) (*Draft, error) {
	if strings.TrimSpace(u.Email) == "" {
		return nil, &ValidationError{Fields: map[string]string{"email": "employee email is required"}}
	}
	if err := ValidateAttachmentName(u.FileName); err != nil {
		return nil, err
	}
	if len(u.Data) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"file": "attachment is empty"}}
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	saved, err := s.storage.Save(storedName(id, u.FileName), u.Data)
	if err != nil {
		return nil, fmt.Errorf("saving attachment: %w", err)
	}

	fileURL := FileURL(id)
	fileName := u.FileName
	draft := &Bill{
		ID:        id,
		Email:     u.Email,
		Pct:       DefaultPct,
		FileURL:   &fileURL,
		FileName:  &fileName,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.SaveBill(draft); err != nil {
		if delErr := s.storage.Delete(saved); delErr != nil {
			slog.Warn("Failed to delete attachment", "name", saved, "error", delErr)
		}
		return nil, fmt.Errorf("saving draft bill: %w", err)
	}

	contentType := u.ContentType
	if contentType == "" {
		contentType = ContentType(u.FileName)
	}

	return &Draft{
		FileURL:    fileURL,
		Key:        id,
		Suggestion: s.suggest(u.Data, contentType),
	}, nil
}

// suggest scans the attachment when a scanner is configured. Scanning
// problems never fail the upload.
func (s *Service) suggest(data []byte, contentType string) *Suggestion {
	if s.scanner == nil {
		return nil
	}

	scanned, err := s.scanner.ScanBill(data, contentType)
	if err != nil {
		slog.Warn("Failed to scan attachment", "content_type", contentType, "file_size", len(data), "error", err)
		return nil
	}

	suggestion := &Suggestion{
		Name:   scanned.Name,
		Date:   scanned.Date,
		Amount: int(decimal.NewFromFloat(scanned.Amount).Round(0).IntPart()),
	}
	if t := Type(scanned.Type); t.Valid() {
		suggestion.Type = t
	}
	if scanned.VAT > 0 {
		suggestion.VAT = decimal.NewFromFloat(scanned.VAT).String()
	}
	return suggestion
}

// Update finalizes a bill. An empty id creates a bill without attachment.
// Attachment fields always come from the stored draft, never from data.
func (s *Service) Update(id string, data Bill) (*Bill, error) {
	now := s.timeSource.Now()
	b := data

	if id == "" {
		b.ID = s.idGenerator.Generate()
		b.FileURL = nil
		b.FileName = nil
		b.CreatedAt = now
	} else {
		existing, err := s.db.GetBill(id)
		if err != nil {
			return nil, fmt.Errorf("getting bill: %w", err)
		}
		if existing.Submitted || existing.Status != StatusPending {
			return nil, fmt.Errorf("updating bill %s: %w", id, ErrImmutable)
		}
		if data.Email != "" && data.Email != existing.Email {
			return nil, &ValidationError{Fields: map[string]string{"email": "bill belongs to another employee"}}
		}
		b.ID = existing.ID
		b.Email = existing.Email
		b.FileURL = existing.FileURL
		b.FileName = existing.FileName
		b.CreatedAt = existing.CreatedAt
	}

	vat, err := ParseVAT(b.VAT)
	if err == nil {
		b.VAT = vat
	}
	b.Status = StatusPending
	b.CommentAdmin = ""
	b.Submitted = true
	b.UpdatedAt = now

	if err := Validate(&b); err != nil {
		return nil, err
	}
	if err := s.db.SaveBill(&b); err != nil {
		return nil, fmt.Errorf("saving bill: %w", err)
	}
	return &b, nil
}

// List returns the submitted bills of an employee in store order
func (s *Service) List(email string) ([]Bill, error) {
	if strings.TrimSpace(email) == "" {
		return nil, &ValidationError{Fields: map[string]string{"email": "employee email is required"}}
	}

	all, err := s.db.ListBills()
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}

	bills := make([]Bill, 0, len(all))
	for _, b := range all {
		if b.Submitted && b.Email == email {
			bills = append(bills, *b)
		}
	}
	return bills, nil
}

// Get retrieves a bill by ID
func (s *Service) Get(id string) (*Bill, error) {
	b, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return b, nil
}

// Attachment returns the attachment bytes of a bill and their content type
func (s *Service) Attachment(id string) ([]byte, string, error) {
	b, err := s.db.GetBill(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill: %w", err)
	}
	if !b.HasAttachment() {
		return nil, "", fmt.Errorf("bill %s has no attachment: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(storedName(b.ID, *b.FileName))
	if err != nil {
		return nil, "", fmt.Errorf("getting attachment: %w", err)
	}
	return data, ContentType(*b.FileName), nil
}
