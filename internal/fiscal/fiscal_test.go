package fiscal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinancialYear(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"april first", time.Date(2025, time.April, 1, 0, 0, 0, 0, Location), "2025-26"},
		{"march last", time.Date(2026, time.March, 31, 23, 59, 0, 0, Location), "2025-26"},
		{"january", time.Date(2026, time.January, 15, 12, 0, 0, 0, Location), "2025-26"},
		{"december", time.Date(2025, time.December, 15, 12, 0, 0, 0, Location), "2025-26"},
		{"century rollover", time.Date(2099, time.May, 1, 0, 0, 0, 0, Location), "2099-00"},
		// 31 March 20:00 UTC is already 1 April in India.
		{"utc evening crosses boundary", time.Date(2025, time.March, 31, 20, 0, 0, 0, time.UTC), "2025-26"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FinancialYear(tc.at))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "INV/2025-26/00001", FormatNumber("INV", "2025-26", 1))
	assert.Equal(t, "PAY/2024-25/123456", FormatNumber("PAY", "2024-25", 123456))
	assert.Equal(t, "MED00042", FormatCode("MED", 42))
}

func TestBoundsAndPrevious(t *testing.T) {
	from, to, err := Bounds("2025-26")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, Location), from)
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, Location), to)

	prev, err := Previous("2025-26")
	require.NoError(t, err)
	assert.Equal(t, "2024-25", prev)

	_, _, err = Bounds("2025-27")
	assert.Error(t, err)
	_, _, err = Bounds("garbage")
	assert.Error(t, err)
}

func TestBoundsRejectsLooseFormats(t *testing.T) {
	for _, fy := range []string{"2025-26xyz", "2025-26 ", " 2025-26", "2025-6", "+2025-26", "2025-026"} {
		_, _, err := Bounds(fy)
		assert.Error(t, err, fy)
	}
	_, err := Previous("2025-26/extra")
	assert.Error(t, err)
}
