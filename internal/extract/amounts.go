package extract

import (
	"regexp"
	"strings"

	dec "github.com/shopspring/decimal"
)

var currencyChars = regexp.MustCompile(`[€$£\s]`)

// NormalizeAmount parses an amount that may use either "." or "," as the
// decimal separator. When both appear, the rightmost is the decimal
// separator. A lone separator followed by exactly two digits is decimal;
// any other lone separator is a thousands separator and is stripped.
// Unparseable input returns ok=false.
func NormalizeAmount(raw string) (dec.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return dec.Decimal{}, false
	}
	s = currencyChars.ReplaceAllString(s, "")

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")

	switch {
	case hasDot && hasComma:
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case hasDot:
		if !(strings.Count(s, ".") == 1 && twoDigitTail(s, ".")) {
			s = strings.ReplaceAll(s, ".", "")
		}
	case hasComma:
		if strings.Count(s, ",") == 1 && twoDigitTail(s, ",") {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	d, err := dec.NewFromString(s)
	if err != nil {
		return dec.Decimal{}, false
	}
	return d, true
}

// twoDigitTail reports whether exactly two digits follow the last sep
func twoDigitTail(s, sep string) bool {
	return len(s)-strings.LastIndex(s, sep)-1 == 2
}
