package extract

import (
	"fmt"
	"regexp"
	"strconv"
)

var reCanonical = regexp.MustCompile(`^(20\d{2})-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)

// YMD is an unvalidated calendar date candidate.
type YMD struct {
	Year, Month, Day int
}

// String formats the date as fixed-width YYYY-MM-DD.
func (d YMD) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsValidDate reports whether ymd is a real calendar date in canonical
// YYYY-MM-DD form with a year between 2000 and 2099.
func IsValidDate(ymd string) bool {
	m := reCanonical.FindStringSubmatch(ymd)
	if m == nil {
		return false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	return d >= 1 && d <= daysIn(y, mo)
}

func daysIn(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeap(year) {
			return 29
		}
		return 28
	}
	return 0
}

func isLeap(y int) bool {
	return y%4 == 0 && y%100 != 0 || y%400 == 0
}
