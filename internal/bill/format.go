package bill

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire format of Bill.Date
const DateLayout = "2006-01-02"

var frenchMonths = [...]string{
	"janv.", "févr.", "mars", "avr.", "mai", "juin",
	"juil.", "août", "sept.", "oct.", "nov.", "déc.",
}

// ParseDate parses an ISO date, with or without a time part
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders an ISO date the way the bills list shows it, e.g.
// "2004-04-04" becomes "4 Avr. 04".
func FormatDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}

	month := frenchMonths[t.Month()-1]
	first, size := utf8.DecodeRuneInString(month)
	rest := []rune(month[size:])
	if len(rest) > 2 {
		rest = rest[:2]
	}
	label := strings.ToUpper(string(first)) + string(rest)

	return fmt.Sprintf("%d %s. %02d", t.Day(), label, t.Year()%100), nil
}

// FormatStatus returns the label shown for a status
func FormatStatus(s Status) string {
	switch s {
	case StatusPending:
		return "En attente"
	case StatusAccepted:
		return "Accepté"
	case StatusRefused:
		return "Refusé"
	default:
		return string(s)
	}
}

// Display is a bill prepared for the bills list
type Display struct {
	ID           string
	Type         Type
	Name         string
	Amount       int
	Date         string
	RawDate      string
	Status       string
	StatusCode   Status
	Commentary   string
	CommentAdmin string
	FileURL      string
	FileName     string
}

// ToDisplay formats a bill for the list. A date that cannot be parsed is kept
// as received and reported through err; the returned record is always usable.
func ToDisplay(b Bill) (Display, error) {
	d := Display{
		ID:           b.ID,
		Type:         b.Type,
		Name:         b.Name,
		Amount:       b.Amount,
		Date:         b.Date,
		RawDate:      b.Date,
		Status:       FormatStatus(b.Status),
		StatusCode:   b.Status,
		Commentary:   b.Commentary,
		CommentAdmin: b.CommentAdmin,
	}
	if b.FileURL != nil {
		d.FileURL = *b.FileURL
	}
	if b.FileName != nil {
		d.FileName = *b.FileName
	}

	formatted, err := FormatDate(b.Date)
	if err != nil {
		return d, err
	}
	d.Date = formatted
	return d, nil
}
