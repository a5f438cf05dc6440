// Package extract recovers gifticon fields (item, merchant, expiry date and
// redemption code) from noisy OCR text.
//
// Every function is pure. The lexicons are built once at package init and
// are only read afterwards, so extraction may run from any number of
// goroutines.
package extract

import (
	"strings"
	"time"
)

// Result holds the fields extracted from one recognized text.
type Result struct {
	ItemName   string `json:"item_name"`
	Merchant   string `json:"merchant"`
	ExpiryDate string `json:"expiry_date"` // YYYY-MM-DD, empty when absent
	Code       string `json:"code"`        // CodeNotFound when absent
}

// Complete reports whether the result carries every required field.
func (r *Result) Complete() bool {
	return Validate(r.ItemName, r.Merchant, r.ExpiryDate) == nil
}

// HasCode reports whether a redemption code was found.
func (r *Result) HasCode() bool {
	return r.Code != "" && r.Code != CodeNotFound
}

// Extract runs every extractor over text. today anchors year inference for
// dates printed without a year.
//
// Blank text yields ErrNoText and a nil result. Otherwise the result is
// always returned, together with an *IncompleteError when a required field
// is missing.
func Extract(text string, today time.Time) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}
	text = canonical(text)

	r := &Result{
		ItemName:   ExtractMenuName(text),
		Merchant:   ExtractMerchant(text),
		ExpiryDate: ExtractExpiry(text, today),
		Code:       ExtractCode(text),
	}
	return r, Validate(r.ItemName, r.Merchant, r.ExpiryDate)
}
