package calendar

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsTradingDay(t *testing.T) {
	cal := New([]time.Time{date(2024, time.December, 25)})

	cases := []struct {
		d    time.Time
		want bool
	}{
		{date(2024, time.December, 23), true},  // Monday
		{date(2024, time.December, 25), false}, // holiday
		{date(2024, time.December, 28), false}, // Saturday
		{date(2024, time.December, 29), false}, // Sunday
	}
	for _, tc := range cases {
		if got := cal.IsTradingDay(tc.d); got != tc.want {
			t.Errorf("%s: IsTradingDay=%v, want %v", tc.d.Format(dateLayout), got, tc.want)
		}
	}
}

func TestDates_SkipsWeekendsAndHolidays(t *testing.T) {
	cal := New([]time.Time{date(2024, time.December, 25)})

	// Last bar Tuesday 2024-12-24
	got := cal.Dates(date(2024, time.December, 24), 4)
	want := []time.Time{
		date(2024, time.December, 26),
		date(2024, time.December, 27),
		date(2024, time.December, 30),
		date(2024, time.December, 31),
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("step %d: got %s, want %s", i+1, got[i].Format(dateLayout), want[i].Format(dateLayout))
		}
	}
}

func TestParseHolidays(t *testing.T) {
	hs, err := ParseHolidays([]string{"2024-01-01", " ", "2024-07-04"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hs) != 2 {
		t.Fatalf("expected 2 holidays, got %d", len(hs))
	}
	if _, err := ParseHolidays([]string{"07/04/2024"}); err == nil {
		t.Error("expected parse error for wrong layout")
	}
}
