package gifticon

import "time"

// Gifticon is a validated voucher record. It is never modified after it
// has been inserted.
type Gifticon struct {
	ID          string    `json:"id"`
	ItemName    string    `json:"item_name"`
	Merchant    string    `json:"merchant"`
	ExpiryDate  string    `json:"expiry_date"` // YYYY-MM-DD
	Code        string    `json:"code"`        // extract.CodeNotFound when the image had none
	SourceRef   string    `json:"source_ref"`  // opaque reference to the original image
	Memo        string    `json:"memo,omitempty"`
	Filename    string    `json:"filename,omitempty"` // stored copy of an uploaded image
	ContentType string    `json:"content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Expiry parses ExpiryDate as the last day the voucher can be used.
func (g *Gifticon) Expiry() (time.Time, error) {
	return time.Parse(time.DateOnly, g.ExpiryDate)
}

// DaysLeft returns the number of whole days from now until the expiry date;
// negative once expired.
func (g *Gifticon) DaysLeft(now time.Time) int {
	expiry, err := g.Expiry()
	if err != nil {
		return 0
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(expiry.Sub(today).Hours() / 24)
}
