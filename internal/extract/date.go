package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// datePattern is one date shape in the scan table.
type datePattern struct {
	name string
	re   *regexp.Regexp
}

// datePatterns are scanned in order, most specific first. Every pattern runs
// over every candidate; they are not mutually exclusive.
var datePatterns = []datePattern{
	{"korean", regexp.MustCompile(`(20\d{2})\s*년\s*(1[0-2]|0?[1-9])\s*월\s*(3[01]|[12]\d|0?[1-9])\s*일?(\s*\([^)]+\))?(\s*\d{1,2}:\d{2})?\s*(까지|만료)?`)},
	{"yyyy.mm.dd", regexp.MustCompile(`(20\d{2})[.\-/](1[0-2]|0?[1-9])[.\-/](3[01]|[12]\d|0?[1-9])`)},
	{"yy.mm.dd", regexp.MustCompile(`(2\d)[.\-/](1[0-2]|0?[1-9])[.\-/](3[01]|[12]\d|0?[1-9])`)},
	{"yyyymmdd", regexp.MustCompile(`\b(20\d{2})(1[0-2]|0[1-9])(3[01]|[12]\d|0[1-9])\b`)},
	{"yymmdd", regexp.MustCompile(`\b(\d{2})(1[0-2]|0[1-9])(3[01]|[12]\d|0[1-9])\b`)},
	{"mm-dd", regexp.MustCompile(`\b(1[0-2]|0?[1-9])[.\-/](3[01]|[12]\d|0?[1-9])\b`)},
}

var (
	reDigits = regexp.MustCompile(`\d+`)

	rangeSeparators = "~〜～–—"
)

// ExtractExpiry returns the latest valid calendar date found in text as
// YYYY-MM-DD, or "" when there is none. today anchors year inference for
// dates printed without a year.
//
// Vouchers usually print an issue date next to the expiry date, and the
// expiry date is the later one, so the maximum wins over the first match.
func ExtractExpiry(text string, today time.Time) string {
	var latest string
	for _, entry := range candidatePool(text) {
		target := rightOfRange(entry)
		for _, p := range datePatterns {
			for _, loc := range p.re.FindAllStringIndex(target, -1) {
				if embedded(target, loc[0], loc[1]) {
					continue
				}
				d, ok := toYMD(target[loc[0]:loc[1]], today)
				if !ok {
					continue
				}
				if ymd := d.String(); IsValidDate(ymd) && ymd > latest {
					latest = ymd
				}
			}
		}
	}
	return latest
}

// candidatePool lists the expiry keyword lines followed by the whole text,
// all normalized, without duplicates. Keywords are looked up before
// normalization since it rewrites the l in "valid".
func candidatePool(text string) []string {
	var pool []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			pool = append(pool, s)
		}
	}
	for _, line := range splitLines(text) {
		if expiryLexicon.contains(line) {
			add(NormalizeOCR(line))
		}
	}
	add(NormalizeOCR(text))
	return pool
}

// rightOfRange keeps the end of a "from ~ to" range.
func rightOfRange(s string) string {
	if i := strings.LastIndexAny(s, rangeSeparators); i >= 0 {
		_, size := utf8.DecodeRuneInString(s[i:])
		return strings.TrimSpace(s[i+size:])
	}
	return strings.TrimRight(s, " \t\r\n")
}

// embedded reports whether s[start:end] is a fragment of a longer numeric
// date, such as the "12.31" inside "2024.12.31". Shorter shapes must stand
// alone so they do not shadow the full date with an inferred year.
func embedded(s string, start, end int) bool {
	if start > 0 {
		prev := s[start-1]
		if isDigit(prev) {
			return true
		}
		if isDateSep(prev) && start > 1 && isDigit(s[start-2]) {
			return true
		}
	}
	if end < len(s) {
		next := s[end]
		if isDigit(next) {
			return true
		}
		if isDateSep(next) && end+1 < len(s) && isDigit(s[end+1]) {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool   { return b >= '0' && b <= '9' }
func isDateSep(b byte) bool { return b == '.' || b == '-' || b == '/' }

// toYMD interprets the digit runs of a matched date.
func toYMD(raw string, today time.Time) (YMD, bool) {
	tokens := reDigits.FindAllString(raw, -1)
	switch {
	case len(tokens) >= 3 && len(tokens[0]) == 4:
		return ymdFrom(tokens[0], tokens[1], tokens[2], 0)
	case len(tokens) >= 3 && len(tokens[0]) == 2:
		return ymdFrom(tokens[0], tokens[1], tokens[2], 2000)
	case len(tokens) == 1 && len(tokens[0]) == 8:
		n := tokens[0]
		return ymdFrom(n[:4], n[4:6], n[6:], 0)
	case len(tokens) == 1 && len(tokens[0]) == 6:
		n := tokens[0]
		return ymdFrom(n[:2], n[2:4], n[4:], 2000)
	case len(tokens) == 2:
		m, err1 := strconv.Atoi(tokens[0])
		d, err2 := strconv.Atoi(tokens[1])
		if err1 != nil || err2 != nil {
			return YMD{}, false
		}
		return inferYear(m, d, today)
	}
	return YMD{}, false
}

func ymdFrom(y, m, d string, century int) (YMD, bool) {
	year, err := strconv.Atoi(y)
	if err != nil {
		return YMD{}, false
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return YMD{}, false
	}
	day, err := strconv.Atoi(d)
	if err != nil {
		return YMD{}, false
	}
	return YMD{Year: century + year, Month: month, Day: day}, true
}

// inferYear places a month/day in today's year, or the next one when that
// date has already passed.
func inferYear(m, d int, today time.Time) (YMD, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return YMD{}, false
	}
	y := today.Year()
	candidate := y*10000 + m*100 + d
	now := y*10000 + int(today.Month())*100 + today.Day()
	if candidate < now {
		y++
	}
	return YMD{Year: y, Month: m, Day: d}, true
}
