package extract

import (
	"regexp"
	"strings"
	"time"
)

var dateSeparators = regexp.MustCompile(`[/\s.]+`)

// Day-month first, which is the common Spanish order, then ISO, then
// month-day as a last resort
var dateLayouts = []string{
	"2-1-2006", "2-1-06",
	"2006-1-2",
	"1-2-2006", "1-2-06",
}

// NormalizeDate parses a date in day-month-year or year-month-day order
// with "-", "/", "." or whitespace separators into "YYYY-MM-DD". Two-digit
// years expand to the current century; if that lands more than ten years in
// the future, a century is subtracted. Unparseable input returns ok=false.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	s = dateSeparators.ReplaceAllString(s, "-")

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() > time.Now().Year()+10 {
			t = t.AddDate(-100, 0, 0)
		}
		return t.Format("2006-01-02"), true
	}
	return "", false
}
