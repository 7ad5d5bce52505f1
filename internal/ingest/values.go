package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// maxExcelSerial is 9999-12-31 in the 1900 date system.
const maxExcelSerial = 2958465

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-1-2 15:04:05",
	"2006/1/2 15:04:05",
	"2006-01-02 15:04",
	"2006/1/2 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006年1月2日",
	"20060102",
}

var amountUnits = []struct {
	suffix string
	exp    int32
}{
	{"亿", 8},
	{"万", 4},
}

// ParseAmount reads a currency cell. Separators and currency symbols are
// dropped and a trailing 万 or 亿 scales the value; anything that still
// does not parse is 0. The sign is kept, see NonNegative.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d.InexactFloat64()
	}

	var exp int32
	unitless := strings.TrimSpace(strings.TrimSuffix(s, "元"))
	for _, u := range amountUnits {
		if strings.HasSuffix(unitless, u.suffix) {
			exp = u.exp
			break
		}
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0
	}
	return d.Shift(exp).InexactFloat64()
}

// NonNegative clamps a negative amount to 0 and reports whether it did.
func NonNegative(v float64) (float64, bool) {
	if v < 0 {
		return 0, true
	}
	return v, false
}

// ParseDate reads a signing date written either as an Excel serial or in
// one of the layouts the exports are known to use.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t, true
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
