package bill

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// AllowedExtensions are the attachment extensions accepted, lower case and without the dot
var AllowedExtensions = []string{"jpg", "jpeg", "png"}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaces      = regexp.MustCompile(`\s+`)
)

// Extension returns the lower-cased extension of name without the dot
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// ValidateAttachmentName checks the file name of an attachment
func ValidateAttachmentName(name string) error {
	ext := Extension(name)
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return &ValidationError{
		Fields: map[string]string{"file": ErrInvalidExtension.Error()},
		Err:    ErrInvalidExtension,
	}
}

// ContentType guesses the MIME type of an attachment from its extension
func ContentType(name string) string {
	switch Extension(name) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// sanitizeFilename keeps the stored file name short and free of special characters
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "justificatif"
	}
	return base + ext
}

// ParseVAT normalizes a VAT amount. Empty input is valid and stays empty;
// a decimal comma is accepted.
func ParseVAT(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return "", fmt.Errorf("parsing vat %q: %w", s, err)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("vat %q is negative", s)
	}
	return d.String(), nil
}

// Validate checks a bill submitted by an employee
func Validate(b *Bill) error {
	fields := make(map[string]string)

	if !b.Type.Valid() {
		fields["type"] = fmt.Sprintf("unknown expense type %q", b.Type)
	}
	if strings.TrimSpace(b.Email) == "" {
		fields["email"] = "employee email is required"
	}
	if b.Amount < 0 {
		fields["amount"] = "amount must not be negative"
	}
	if b.Pct < 0 {
		fields["pct"] = "percentage must not be negative"
	}
	if _, err := ParseDate(b.Date); err != nil {
		fields["date"] = "date must be formatted as YYYY-MM-DD"
	}
	if _, err := ParseVAT(b.VAT); err != nil {
		fields["vat"] = "vat must be a number"
	}
	if (b.FileURL == nil) != (b.FileName == nil) {
		fields["file"] = "attachment url and name must be set together"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
