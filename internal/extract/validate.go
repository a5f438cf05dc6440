package extract

import (
	"errors"
	"fmt"
	"strings"
)

// Field names a required voucher field.
type Field string

const (
	FieldItemName Field = "item_name"
	FieldMerchant Field = "merchant"
	FieldExpiry   Field = "expiry_date"
)

// ErrNoText is returned when the recognized text is blank.
var ErrNoText = errors.New("no text recognized")

// IncompleteError lists the required fields that could not be extracted.
type IncompleteError struct {
	Missing []Field
}

func (e *IncompleteError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("required fields not extracted: %s", strings.Join(names, ", "))
}

// Validate checks that a record has an item name, a merchant and a calendar
// valid expiry date. It returns an *IncompleteError naming every failure.
func Validate(itemName, merchant, expiry string) error {
	var missing []Field
	if strings.TrimSpace(itemName) == "" {
		missing = append(missing, FieldItemName)
	}
	if strings.TrimSpace(merchant) == "" {
		missing = append(missing, FieldMerchant)
	}
	if !IsValidDate(expiry) {
		missing = append(missing, FieldExpiry)
	}
	if len(missing) > 0 {
		return &IncompleteError{Missing: missing}
	}
	return nil
}
