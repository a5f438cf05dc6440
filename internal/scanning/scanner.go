package scanning

import "errors"

// ErrNoResponse is returned when the model answered without any text part.
var ErrNoResponse = errors.New("empty response from model")

// Scanner recognizes the text printed on a voucher image.
type Scanner interface {
	// RecognizeText returns the raw text found in an image or PDF. The
	// text is returned as read; it may be empty.
	RecognizeText(imageData []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
