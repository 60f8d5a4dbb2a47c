package calendar

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func mustWindow(t *testing.T, start, end time.Time, loc *time.Location) Window {
	t.Helper()
	w, err := WindowOf(start, end, loc)
	if err != nil {
		t.Fatalf("WindowOf(%v, %v): %v", start, end, err)
	}
	return w
}

//
// WindowOf
//

func TestWindowOf_MinutesOfDay(t *testing.T) {
	w := mustWindow(t, mustTime(t, 2024, 5, 1, 10, 0), mustTime(t, 2024, 5, 1, 11, 30), time.UTC)

	if w.Date != (Date{2024, time.May, 1}) {
		t.Fatalf("unexpected date %v", w.Date)
	}
	if w.StartMinute != 600 || w.EndMinute != 690 {
		t.Fatalf("expected [600,690), got [%d,%d)", w.StartMinute, w.EndMinute)
	}
	if w.DurationMin() != 90 {
		t.Fatalf("expected 90 minutes, got %d", w.DurationMin())
	}
}

func TestWindowOf_UsesSchedulingZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 22:30 UTC 30 апреля: это уже 1 мая 01:30 по Москве.
	w := mustWindow(t, mustTime(t, 2024, 4, 30, 22, 30), mustTime(t, 2024, 4, 30, 23, 30), loc)

	if w.Date.String() != "2024-05-01" {
		t.Fatalf("expected 2024-05-01 in Moscow, got %s", w.Date)
	}
	if w.StartMinute != 90 || w.EndMinute != 150 {
		t.Fatalf("expected [90,150), got [%d,%d)", w.StartMinute, w.EndMinute)
	}
}

func TestWindowOf_UntilMidnight(t *testing.T) {
	w := mustWindow(t, mustTime(t, 2024, 5, 1, 18, 0), mustTime(t, 2024, 5, 2, 0, 0), time.UTC)
	if w.EndMinute != MinutesPerDay {
		t.Fatalf("expected end minute 1440, got %d", w.EndMinute)
	}
}

func TestWindowOf_Invalid(t *testing.T) {
	start := mustTime(t, 2024, 5, 1, 10, 0)

	if _, err := WindowOf(start, start, time.UTC); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange for empty range, got %v", err)
	}
	if _, err := WindowOf(time.Time{}, start, time.UTC); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange for zero start, got %v", err)
	}
	if _, err := WindowOf(start, start.Add(time.Hour), nil); !errors.Is(err, ErrNilLocation) {
		t.Fatalf("expected ErrNilLocation, got %v", err)
	}
}

//
// Overlaps / Contains
//

func TestOverlaps_TouchingIsNotConflict(t *testing.T) {
	d := Date{2024, time.May, 1}
	a := Window{Date: d, StartMinute: 600, EndMinute: 660}
	b := Window{Date: d, StartMinute: 660, EndMinute: 720}

	if a.Overlaps(b) || b.Overlaps(a) {
		t.Fatalf("touching windows must not overlap")
	}
}

func TestOverlaps_PartialOverlap(t *testing.T) {
	d := Date{2024, time.May, 1}
	a := Window{Date: d, StartMinute: 600, EndMinute: 660}
	b := Window{Date: d, StartMinute: 630, EndMinute: 690}

	if !a.Overlaps(b) || !b.Overlaps(a) {
		t.Fatalf("expected overlap")
	}
}

func TestOverlaps_DifferentDates(t *testing.T) {
	a := Window{Date: Date{2024, time.May, 1}, StartMinute: 600, EndMinute: 660}
	b := Window{Date: Date{2024, time.May, 2}, StartMinute: 600, EndMinute: 660}
	if a.Overlaps(b) {
		t.Fatalf("windows on different dates must not overlap")
	}
}

func TestContains_Boundaries(t *testing.T) {
	d := Date{2024, time.May, 1}
	avail := Window{Date: d, StartMinute: 540, EndMinute: 1080}

	cases := []struct {
		name string
		req  Window
		want bool
	}{
		{"inside", Window{Date: d, StartMinute: 600, EndMinute: 660}, true},
		{"exact", Window{Date: d, StartMinute: 540, EndMinute: 1080}, true},
		{"end past", Window{Date: d, StartMinute: 1020, EndMinute: 1081}, false},
		{"start before", Window{Date: d, StartMinute: 539, EndMinute: 600}, false},
		{"other date", Window{Date: Date{2024, time.May, 2}, StartMinute: 600, EndMinute: 660}, false},
	}
	for _, tc := range cases {
		if got := avail.Contains(tc.req); got != tc.want {
			t.Fatalf("%s: Contains = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHasOverlap_ReturnsConflicts(t *testing.T) {
	d := Date{2024, time.May, 1}
	w := Window{Date: d, StartMinute: 630, EndMinute: 690}
	existing := []Window{
		{Date: d, StartMinute: 540, EndMinute: 600},
		{Date: d, StartMinute: 660, EndMinute: 720},
	}

	has, conflicts := HasOverlap(w, existing)
	if !has {
		t.Fatalf("expected overlap")
	}
	if len(conflicts) != 1 || conflicts[0].StartMinute != 660 {
		t.Fatalf("expected single conflict starting at 660, got %+v", conflicts)
	}
}

//
// Date helpers / formatting
//

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-05-01" {
		t.Fatalf("round trip failed: %s", d)
	}
	if got := d.At(630, time.UTC); !got.Equal(mustTime(t, 2024, 5, 1, 10, 30)) {
		t.Fatalf("At(630) = %v", got)
	}
	if _, err := ParseDate("01.05.2024"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestFormatWindow(t *testing.T) {
	w := Window{Date: Date{2024, time.May, 1}, StartMinute: 600, EndMinute: 660}
	got := FormatWindow(w)
	for _, part := range []string{"Среда", "01.05.2024", "10:00", "11:00"} {
		if !strings.Contains(got, part) {
			t.Fatalf("expected %q in %q", part, got)
		}
	}
}
