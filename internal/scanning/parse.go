package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order when a model ignores the requested format
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
}

// parseBillJSON extracts the JSON object from a model response
func parseBillJSON(text string) (*BillData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var data BillData
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.Date = normalizeDate(data.Date)
	data.Name = strings.TrimSpace(data.Name)
	data.Type = strings.TrimSpace(data.Type)
	if data.Amount < 0 {
		data.Amount = 0
	}
	if data.VAT < 0 {
		data.VAT = 0
	}

	return &data, nil
}

// normalizeDate returns s as YYYY-MM-DD, or "" when it cannot be read
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}
