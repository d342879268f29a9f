package bill

import "time"

// Status is the review state of a bill
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusAccepted || s == StatusRefused
}

// Type is the expense category of a bill
type Type string

const (
	TypeTransports  Type = "Transports"
	TypeRestaurants Type = "Restaurants"
	TypeHotel       Type = "Hôtel et logement"
	TypeOnline      Type = "Services en ligne"
	TypeIT          Type = "IT et électronique"
	TypeEquipment   Type = "Équipement et matériel"
	TypeOffice      Type = "Fournitures de bureau"
)

// Types lists the expense categories in the order the form offers them
var Types = []Type{
	TypeTransports,
	TypeRestaurants,
	TypeHotel,
	TypeOnline,
	TypeIT,
	TypeEquipment,
	TypeOffice,
}

// Valid reports whether t is one of Types
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// DefaultPct is the VAT percentage used when the form leaves it empty or invalid
const DefaultPct = 20

// Bill is an expense report as stored and exchanged with the store
type Bill struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Type         Type      `json:"type"`
	Name         string    `json:"name"`
	Amount       int       `json:"amount"`
	Date         string    `json:"date"` // ISO 2006-01-02 on the wire
	VAT          string    `json:"vat,omitempty"`
	Pct          int       `json:"pct"`
	Commentary   string    `json:"commentary,omitempty"`
	FileURL      *string   `json:"fileUrl"`
	FileName     *string   `json:"fileName"`
	Status       Status    `json:"status"`
	CommentAdmin string    `json:"commentAdmin,omitempty"`
	Submitted    bool      `json:"submitted"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasAttachment reports whether both attachment fields are set
func (b *Bill) HasAttachment() bool {
	return b.FileURL != nil && b.FileName != nil
}

// Upload is an attachment sent to the store on behalf of an employee
type Upload struct {
	Email       string
	FileName    string
	ContentType string
	Data        []byte
}

// Draft is the result of storing an attachment. Key is the id the bill is
// later finalized under.
type Draft struct {
	FileURL    string      `json:"fileUrl"`
	Key        string      `json:"key"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

// Suggestion holds form values read from an uploaded receipt
type Suggestion struct {
	Type   Type   `json:"type,omitempty"`
	Name   string `json:"name,omitempty"`
	Date   string `json:"date,omitempty"`
	Amount int    `json:"amount,omitempty"`
	VAT    string `json:"vat,omitempty"`
}
