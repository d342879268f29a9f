package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/heic"
)

// billScanPrompt is shared by all providers
const billScanPrompt = `You are reading a receipt attached to an employee expense report. Read all text in the image and extract:

1. **type**: the expense category, exactly one of "Transports", "Restaurants", "Hôtel et logement", "Services en ligne", "IT et électronique", "Équipement et matériel", "Fournitures de bureau".
2. **name**: a short label starting with the merchant name, e.g. "SNCF - Paris Lyon".
3. **date**: the transaction date in YYYY-MM-DD format.
4. **amount**: the total paid including taxes, as a number.
5. **vat**: the VAT amount, as a number, or 0 when not printed.

Return ONLY valid JSON in this exact format:
{
  "type": "Transports",
  "name": "Merchant - Description",
  "date": "YYYY-MM-DD",
  "amount": 0.00,
  "vat": 0.00
}

Use null for fields you cannot find. Do not add text around the JSON and do not use markdown code blocks.`

// isHEIC checks the ftyp box brand. Phones sometimes export HEIC data under
// a .jpg name.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// toPNG decodes a JPEG or HEIC image and re-encodes it as PNG
func toPNG(data []byte) ([]byte, error) {
	var (
		img image.Image
		err error
	)
	if isHEIC(data) {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// prepareImageData returns PNG bytes for any accepted attachment
func prepareImageData(data []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "image/png" && !isHEIC(data) {
		return data, nil
	}
	return toPNG(data)
}
