package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"repair-dashboard/internal/models"
)

var (
	leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	requestDate   = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
)

// dateLayouts are tried in order by ParseDate. Day-first layouts win over the
// month-first fallback.
var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	time.RFC3339,
}

// ParseCost converts a currency-like cell ("1,250,000", "980000.5", "12 VND")
// to a number. Comma thousands separators are dropped and the longest numeric
// prefix is used; anything without one yields 0.
func ParseCost(c models.Cell) float64 {
	s := strings.TrimSpace(strings.ReplaceAll(string(c), ",", ""))
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// MatchRequestDate extracts day, month and year from the first d/m/yyyy
// pattern in the cell.
func MatchRequestDate(c models.Cell) (day, month, year int, ok bool) {
	if c.IsEmpty() {
		return 0, 0, 0, false
	}
	m := requestDate.FindStringSubmatch(string(c))
	if m == nil {
		return 0, 0, 0, false
	}
	day, _ = strconv.Atoi(m[1])
	month, _ = strconv.Atoi(m[2])
	year, _ = strconv.Atoi(m[3])
	return day, month, year, true
}

// IsRejected applies the strict literal-true policy: only the boolean literal
// marks a request as rejected. "yes", "1" and "x" do not.
func IsRejected(c models.Cell) bool {
	switch strings.TrimSpace(string(c)) {
	case "true", "TRUE":
		return true
	}
	return false
}

// ParseDate parses the date formats seen in repair sheets.
func ParseDate(c models.Cell) (time.Time, bool) {
	s := strings.TrimSpace(string(c))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
