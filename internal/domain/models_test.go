package domain

import (
	"testing"
	"time"
)

func TestTimePeriod(t *testing.T) {
	t.Parallel()

	cases := []struct {
		year int
		want string
	}{
		{2001, ""},
		{2002, "2002-2018"},
		{2018, "2002-2018"},
		{2019, "2018-2022"},
		{2022, "2018-2022"},
		{2023, "2023-2024"},
		{2024, "2023-2024"},
		{2025, ""},
	}

	for _, tc := range cases {
		got := TimePeriod(time.Date(tc.year, time.June, 1, 0, 0, 0, 0, time.UTC))
		if got != tc.want {
			t.Errorf("TimePeriod(%d) = %q, want %q", tc.year, got, tc.want)
		}
	}

	if got := TimePeriod(time.Time{}); got != "" {
		t.Fatalf("zero time should have no period, got %q", got)
	}
}
