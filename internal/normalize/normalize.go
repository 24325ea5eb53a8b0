// Package normalize converts free-text money, date, phone, and contact
// strings into canonical forms. Every function is pure and total: bad input
// produces a zero value or a documented fallback, never a panic.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	currencyStripRe = regexp.MustCompile(`[^0-9.]`)
	emailRe         = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneDigitsRe   = regexp.MustCompile(`\D`)
	numericDateRe   = regexp.MustCompile(`^(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})$`)
	textualDateRe   = regexp.MustCompile(`(?i)^([A-Za-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})$`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// ParseCurrency converts a money-ish value into a non-negative float.
// Numbers pass through; strings are stripped to digits and decimal points
// before parsing. Anything unparseable, negative, or non-finite becomes 0.
func ParseCurrency(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return clampAmount(n)
	case float32:
		return clampAmount(float64(n))
	case int:
		return clampAmount(float64(n))
	case int64:
		return clampAmount(float64(n))
	case string:
		s := currencyStripRe.ReplaceAllString(n, "")
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return clampAmount(f)
	default:
		return 0
	}
}

func clampAmount(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// dateLayouts are tried first, before the pattern-based fallbacks.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

var monthsByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// NormalizeDate converts an arbitrary date-ish string to an ISO calendar date
// (YYYY-MM-DD). Strategies in order: known layouts, numeric MM/DD/YYYY or
// MM-DD-YYYY (2-digit years assumed 2000s), textual month name with optional
// ordinal day suffix. If everything fails, today's UTC date is returned, so
// the result is always a syntactically valid ISO date.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format("2006-01-02")
			}
		}

		if m := numericDateRe.FindStringSubmatch(s); m != nil {
			month, _ := strconv.Atoi(m[1])
			day, _ := strconv.Atoi(m[2])
			year, _ := strconv.Atoi(m[3])
			if len(m[3]) == 2 {
				year += 2000
			}
			if t, ok := calendarDate(year, month, day); ok {
				return t.Format("2006-01-02")
			}
		}

		if m := textualDateRe.FindStringSubmatch(s); m != nil {
			if month, ok := monthsByName[strings.ToLower(m[1])]; ok {
				day, _ := strconv.Atoi(m[2])
				year, _ := strconv.Atoi(m[3])
				if t, ok := calendarDate(year, int(month), day); ok {
					return t.Format("2006-01-02")
				}
			}
		}
	}

	return time.Now().UTC().Format("2006-01-02")
}

// calendarDate builds a date and rejects values that rolled over (e.g. a
// month of 13 or day of 40), which time.Date would otherwise normalize.
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1000 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// CleanEmail returns the first mailbox-like substring, lowercased, or "".
func CleanEmail(s string) string {
	return strings.ToLower(emailRe.FindString(s))
}

// CleanPhone strips a phone string down to its digits.
func CleanPhone(s string) string {
	return phoneDigitsRe.ReplaceAllString(s, "")
}

// FormatPhone renders US numbers in a standard display form. 10 digits become
// (XXX) XXX-XXXX; 11 digits with a leading country code 1 become
// +1 (XXX) XXX-XXXX. Anything else is passed through trimmed.
func FormatPhone(s string) string {
	digits := CleanPhone(s)
	switch {
	case len(digits) == 10:
		return "(" + digits[0:3] + ") " + digits[3:6] + "-" + digits[6:10]
	case len(digits) == 11 && digits[0] == '1':
		return "+1 (" + digits[1:4] + ") " + digits[4:7] + "-" + digits[7:11]
	default:
		return strings.TrimSpace(s)
	}
}

// CleanCompany trims leading/trailing punctuation and collapses internal
// whitespace in a company name.
func CleanCompany(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool {
		return strings.ContainsRune(" \t\r\n.,:;-–—*\"'`|", r)
	})
	return whitespaceRe.ReplaceAllString(s, " ")
}
