package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ocrConfusions maps glyphs OCR engines commonly misread inside numbers.
var ocrConfusions = strings.NewReplacer(
	"–", "-",
	"—", "-",
	"l", "1",
	"I", "1",
	"O", "0",
)

// reLabelNoise matches a label whose separator was read as a stray l or I.
var reLabelNoise = regexp.MustCompile(`^(` + labelAlternation + `)\s*[lI] `)

// canonical converts text to NFC so decomposed Hangul matches the lexicons.
func canonical(s string) string {
	return norm.NFC.String(s)
}

// NormalizeOCR replaces dash variants with '-' and OCR-confusable letters
// with digits. The result is only suitable for date scanning: legitimate
// uses of l, I and O are destroyed.
func NormalizeOCR(s string) string {
	return ocrConfusions.Replace(s)
}

// NormalizeLabelNoise repairs label separators on a single line ahead of
// menu extraction.
func NormalizeLabelNoise(line string) string {
	line = strings.ReplaceAll(line, "：", ":")
	line = reLabelNoise.ReplaceAllString(line, "$1: ")
	return strings.TrimSpace(line)
}

// splitLines returns the trimmed, non-blank lines of s.
func splitLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
