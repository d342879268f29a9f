package scanning

// BillData holds the values a scanner read from an expense receipt
type BillData struct {
	Type   string  `json:"type"`
	Name   string  `json:"name"`
	Date   string  `json:"date"` // YYYY-MM-DD, empty when unreadable
	Amount float64 `json:"amount"`
	VAT    float64 `json:"vat"`
}

// Scanner reads expense details from a receipt image
type Scanner interface {
	// ScanBill analyzes a receipt image and extracts bill fields
	ScanBill(imageData []byte, contentType string) (*BillData, error)
	// Close releases resources held by the scanner
	Close() error
}
