// Package fiscal holds the April to March financial-year calendar and the
// document-number formats derived from it.
package fiscal

import (
	"fmt"
	"time"
)

// Location is the calendar used to decide which financial year an instant falls in.
var Location = time.FixedZone("IST", 5*60*60+30*60)

// FinancialYear returns the April-start financial year containing t, as "2025-26".
func FinancialYear(t time.Time) string {
	local := t.In(Location)
	start := local.Year()
	if local.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// Bounds returns the first instant of the financial year and the first instant of the next one.
func Bounds(fy string) (time.Time, time.Time, error) {
	var start, end int
	if _, err := fmt.Sscanf(fy, "%4d-%2d", &start, &end); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid financial year %q", fy)
	}
	// Sscanf stops at the last verb, so trailing input only shows up on a round trip.
	if (start+1)%100 != end || fmt.Sprintf("%04d-%02d", start, end) != fy {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid financial year %q", fy)
	}
	from := time.Date(start, time.April, 1, 0, 0, 0, 0, Location)
	return from, from.AddDate(1, 0, 0), nil
}

// Previous returns the financial year before fy.
func Previous(fy string) (string, error) {
	from, _, err := Bounds(fy)
	if err != nil {
		return "", err
	}
	return FinancialYear(from.AddDate(0, -1, 0)), nil
}

// FormatNumber renders a document number such as INV/2025-26/00001.
func FormatNumber(prefix string, fy string, seq int64) string {
	return fmt.Sprintf("%s/%s/%05d", prefix, fy, seq)
}

// FormatCode renders a master-data code such as MED00001.
func FormatCode(prefix string, seq int64) string {
	return fmt.Sprintf("%s%05d", prefix, seq)
}
