package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const labelAlternation = `상품명|제품명|메뉴명|상품|Item|ITEM|Product|PRODUCT`

var (
	reLabelLine   = regexp.MustCompile(`^(` + labelAlternation + `)\s*[:：\-]?\s*(.*)$`)
	reLabelPrefix = regexp.MustCompile(`^(` + labelAlternation + `)\s*[:：\-]?\s*`)
	reParens      = regexp.MustCompile(`\([^)]*\)`)
	reBrackets    = regexp.MustCompile(`\[[^\]]*\]`)
	reMultiSpace  = regexp.MustCompile(`\s{2,}`)

	reCount      = regexp.MustCompile(`\d+\s*개`)
	reTimes      = regexp.MustCompile(`(?i)\bx\s*\d+\b`)
	reLongDigits = regexp.MustCompile(`\d{8,}`)
	reAmount     = regexp.MustCompile(`[₩\\]?\s?\d{2,3}(,\d{3})*\s*(원|KRW)?`)
	reSizeToken  = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(옵션|사이즈|HOT|ICE|L|R|Tall|Grande|Venti)(?:$|[^\p{L}\p{N}_])`)
)

const (
	minMenuLen = 2
	maxMenuLen = 40

	// brandWindow is how many lines after the brand line may hold the item.
	brandWindow = 3
)

// menuStrategy picks an item name from label-normalized lines, returning ""
// when it finds nothing.
type menuStrategy func(lines []string) string

// menuStrategies run in order; the first non-empty answer wins.
var menuStrategies = []menuStrategy{
	fromLabel,
	nearBrand,
	firstKeywordLine,
	firstPlausibleLine,
}

// ExtractMenuName returns the most plausible item or menu name in text, or
// "" when no line survives the quality filter.
func ExtractMenuName(text string) string {
	raw := splitLines(text)
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		lines = append(lines, NormalizeLabelNoise(l))
	}
	for _, strategy := range menuStrategies {
		if name := strategy(lines); name != "" {
			return name
		}
	}
	return ""
}

// fromLabel takes the value printed after an explicit field label, on the
// same line or the next one.
func fromLabel(lines []string) string {
	for i, line := range lines {
		m := reLabelLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if after := strings.TrimSpace(m[2]); after != "" {
			if v := cleanMenuLine(after); isMenuItem(v) {
				return v
			}
		}
		if i+1 < len(lines) {
			if v := cleanMenuLine(lines[i+1]); isMenuItem(v) {
				return v
			}
		}
	}
	return ""
}

// nearBrand looks at the few lines after the first brand line.
func nearBrand(lines []string) string {
	for i, line := range lines {
		if !brandLexicon.contains(line) {
			continue
		}
		end := min(i+1+brandWindow, len(lines))
		for _, next := range lines[i+1 : end] {
			if v := cleanMenuLine(next); isMenuItem(v) {
				return v
			}
		}
		return ""
	}
	return ""
}

func firstKeywordLine(lines []string) string {
	for _, line := range lines {
		if v := cleanMenuLine(line); isMenuItem(v) {
			return v
		}
	}
	return ""
}

// firstPlausibleLine drops the keyword requirement. Last resort.
func firstPlausibleLine(lines []string) string {
	for _, line := range lines {
		if v := cleanMenuLine(line); !looksBad(v) {
			return v
		}
	}
	return ""
}

func isMenuItem(s string) bool {
	return !looksBad(s) && menuLexicon.contains(s)
}

// cleanMenuLine strips labels, parenthesised and bracketed notes, repeated
// spaces and surrounding bullets.
func cleanMenuLine(s string) string {
	s = reLabelPrefix.ReplaceAllString(s, "")
	s = reParens.ReplaceAllString(s, "")
	s = reBrackets.ReplaceAllString(s, "")
	s = reMultiSpace.ReplaceAllString(s, " ")
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("-•·:：", r)
	})
}

// looksBad reports whether a cleaned line cannot be an item name. Any single
// rule rejects it.
func looksBad(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	if isQuantityLine(s) {
		return true
	}
	for _, label := range LabelWords {
		if hasPrefixFold(s, label) {
			return true
		}
	}
	if n := utf8.RuneCountInString(s); n < minMenuLen || n > maxMenuLen {
		return true
	}
	if reLongDigits.MatchString(s) || reAmount.MatchString(s) || reSizeToken.MatchString(s) {
		return true
	}
	return blockLexicon.contains(s)
}

func isQuantityLine(s string) bool {
	return quantityLexicon.contains(s) || reCount.MatchString(s) || reTimes.MatchString(s)
}
