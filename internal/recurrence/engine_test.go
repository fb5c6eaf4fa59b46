package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func starts(instances []Instance) []time.Time {
	out := make([]time.Time, 0, len(instances))
	for _, instance := range instances {
		out = append(out, instance.Start)
	}
	return out
}

func assertStarts(t *testing.T, got []Instance, want []time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d occurrences, got %d (%v)", len(want), len(got), starts(got))
	}
	for i, instance := range got {
		if !instance.Start.Equal(want[i]) {
			t.Fatalf("occurrence %d: expected start %v, got %v", i, want[i], instance.Start)
		}
	}
}

func TestExpand_NonRecurring(t *testing.T) {
	t.Parallel()

	anchor := Anchor{Start: at(2026, time.March, 10, 18)}

	t.Run("inside the window yields the anchor unmodified", func(t *testing.T) {
		t.Parallel()

		got, err := Expand(anchor, nil, date(2026, time.March, 1), date(2026, time.March, 31))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertStarts(t, got, []time.Time{anchor.Start})
		if got[0].End != nil {
			t.Fatalf("expected nil end, got %v", *got[0].End)
		}
	})

	t.Run("outside the window yields nothing", func(t *testing.T) {
		t.Parallel()

		got, err := Expand(anchor, nil, date(2026, time.April, 1), date(2026, time.April, 30))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no occurrences, got %v", starts(got))
		}
	})

	t.Run("window bounds are inclusive", func(t *testing.T) {
		t.Parallel()

		got, err := Expand(anchor, nil, anchor.Start, anchor.Start)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertStarts(t, got, []time.Time{anchor.Start})
	})
}

func TestExpand_BiweeklyMonday(t *testing.T) {
	t.Parallel()

	// Anchor on Monday 2026-01-05, every second Monday.
	anchor := Anchor{Start: date(2026, time.January, 5)}
	rule := &Rule{Frequency: FrequencyWeekly, Interval: 2, ByDay: []Weekday{Monday}}

	got, err := Expand(anchor, rule, date(2026, time.January, 1), date(2026, time.February, 28))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertStarts(t, got, []time.Time{
		date(2026, time.January, 5),
		date(2026, time.January, 19),
		date(2026, time.February, 2),
		date(2026, time.February, 16),
	})
}

func TestExpand_CountCapsSeriesFromAnchor(t *testing.T) {
	t.Parallel()

	count := 2
	anchor := Anchor{Start: date(2026, time.January, 5)}
	rule := &Rule{Frequency: FrequencyWeekly, Interval: 2, ByDay: []Weekday{Monday}, Count: &count}

	t.Run("window extending far beyond the series", func(t *testing.T) {
		t.Parallel()

		got, err := Expand(anchor, rule, date(2026, time.January, 1), date(2027, time.December, 31))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertStarts(t, got, []time.Time{
			date(2026, time.January, 5),
			date(2026, time.January, 19),
		})
	})

	t.Run("later window yields nothing once the cap is spent", func(t *testing.T) {
		t.Parallel()

		got, err := Expand(anchor, rule, date(2026, time.February, 1), date(2026, time.December, 31))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no occurrences, got %v", starts(got))
		}
	})

	t.Run("sequential disjoint windows never exceed the cap", func(t *testing.T) {
		t.Parallel()

		three := 3
		daily := &Rule{Frequency: FrequencyDaily, Interval: 1, Count: &three}
		windows := [][2]time.Time{
			{date(2026, time.January, 5), date(2026, time.January, 5)},
			{date(2026, time.January, 6), date(2026, time.January, 6)},
			{date(2026, time.January, 7), date(2026, time.January, 31)},
		}

		total := 0
		for _, window := range windows {
			got, err := Expand(anchor, daily, window[0], window[1])
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			total += len(got)
		}
		if total != 3 {
			t.Fatalf("expected 3 occurrences across all windows, got %d", total)
		}
	})
}

func TestExpand_Deterministic(t *testing.T) {
	t.Parallel()

	anchor := Anchor{Start: at(2026, time.January, 5, 9)}
	rule := &Rule{Frequency: FrequencyDaily, Interval: 3}
	rangeStart := date(2026, time.January, 1)
	rangeEnd := date(2026, time.March, 1)

	first, err := Expand(anchor, rule, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Expand(anchor, rule, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("expected identical occurrence counts, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) {
			t.Fatalf("occurrence %d differs: %v vs %v", i, first[i].Start, second[i].Start)
		}
	}
}

func TestExpand_WindowCorrectness(t *testing.T) {
	t.Parallel()

	// Anchor years before the window.
	anchor := Anchor{Start: at(2020, time.June, 1, 8)}
	rule := &Rule{Frequency: FrequencyWeekly, Interval: 1}
	rangeStart := at(2026, time.February, 1, 0)
	rangeEnd := at(2026, time.February, 28, 23)

	got, err := Expand(anchor, rule, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected occurrences inside the window")
	}
	for _, instance := range got {
		if instance.Start.Before(rangeStart) || instance.Start.After(rangeEnd) {
			t.Fatalf("occurrence %v escapes window [%v, %v]", instance.Start, rangeStart, rangeEnd)
		}
		if instance.Start.Weekday() != time.Monday {
			t.Fatalf("expected anchor weekday to carry over, got %v", instance.Start.Weekday())
		}
	}
}

func TestExpand_DurationCarriesOver(t *testing.T) {
	t.Parallel()

	end := at(2026, time.January, 5, 11)
	anchor := Anchor{Start: at(2026, time.January, 5, 9), End: &end}
	rule := &Rule{Frequency: FrequencyDaily, Interval: 1}

	got, err := Expand(anchor, rule, date(2026, time.January, 6), at(2026, time.January, 6, 23))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertStarts(t, got, []time.Time{at(2026, time.January, 6, 9)})
	if got[0].End == nil || !got[0].End.Equal(at(2026, time.January, 6, 11)) {
		t.Fatalf("expected end %v, got %v", at(2026, time.January, 6, 11), got[0].End)
	}

	// Timed events compare by instant: a window ending at midnight does not
	// admit that day's 09:00 occurrence.
	got, err = Expand(anchor, rule, date(2026, time.January, 6), date(2026, time.January, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no occurrences before the window end instant, got %v", starts(got))
	}
}

func TestExpand_UntilBound(t *testing.T) {
	t.Parallel()

	t.Run("timed events compare by instant, inclusive", func(t *testing.T) {
		t.Parallel()

		until := at(2026, time.January, 8, 9)
		anchor := Anchor{Start: at(2026, time.January, 5, 9)}
		rule := &Rule{Frequency: FrequencyDaily, Interval: 1, Until: &until}

		got, err := Expand(anchor, rule, date(2026, time.January, 1), date(2026, time.January, 31))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertStarts(t, got, []time.Time{
			at(2026, time.January, 5, 9),
			at(2026, time.January, 6, 9),
			at(2026, time.January, 7, 9),
			at(2026, time.January, 8, 9),
		})
	})

	t.Run("all-day events compare by calendar date", func(t *testing.T) {
		t.Parallel()

		// Midnight until on the 7th still admits the 7th's occurrence even
		// though the anchor clock time is later in the day.
		until := date(2026, time.January, 7)
		anchor := Anchor{Start: at(2026, time.January, 5, 15), AllDay: true}
		rule := &Rule{Frequency: FrequencyDaily, Interval: 1, Until: &until}

		got, err := Expand(anchor, rule, date(2026, time.January, 1), date(2026, time.January, 31))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 occurrences through the until date, got %v", starts(got))
		}
	})
}

func TestExpand_MonthlyAndYearly(t *testing.T) {
	t.Parallel()

	t.Run("monthly keeps the anchor day of month", func(t *testing.T) {
		t.Parallel()

		anchor := Anchor{Start: date(2026, time.January, 15)}
		rule := &Rule{Frequency: FrequencyMonthly, Interval: 1}

		got, err := Expand(anchor, rule, date(2026, time.January, 1), date(2026, time.April, 30))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertStarts(t, got, []time.Time{
			date(2026, time.January, 15),
			date(2026, time.February, 15),
			date(2026, time.March, 15),
			date(2026, time.April, 15),
		})
	})

	t.Run("monthly on a day short months lack skips those months", func(t *testing.T) {
		t.Parallel()

		anchor := Anchor{Start: date(2026, time.January, 31)}
		rule := &Rule{Frequency: FrequencyMonthly, Interval: 1}

		got, err := Expand(anchor, rule, date(2026, time.January, 1), date(2026, time.April, 30))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertStarts(t, got, []time.Time{
			date(2026, time.January, 31),
			date(2026, time.March, 31),
		})
	})

	t.Run("monthly byMonthDay selects explicit days", func(t *testing.T) {
		t.Parallel()

		anchor := Anchor{Start: date(2026, time.January, 1)}
		rule := &Rule{Frequency: FrequencyMonthly, Interval: 1, ByMonthDay: []int{1, 15}}

		got, err := Expand(anchor, rule, date(2026, time.January, 1), date(2026, time.February, 28))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertStarts(t, got, []time.Time{
			date(2026, time.January, 1),
			date(2026, time.January, 15),
			date(2026, time.February, 1),
			date(2026, time.February, 15),
		})
	})

	t.Run("yearly honors byMonth", func(t *testing.T) {
		t.Parallel()

		anchor := Anchor{Start: date(2024, time.June, 20)}
		rule := &Rule{Frequency: FrequencyYearly, Interval: 1, ByMonth: []time.Month{time.June, time.December}}

		got, err := Expand(anchor, rule, date(2024, time.January, 1), date(2025, time.December, 31))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertStarts(t, got, []time.Time{
			date(2024, time.June, 20),
			date(2024, time.December, 20),
			date(2025, time.June, 20),
			date(2025, time.December, 20),
		})
	})

	t.Run("yearly default repeats the anchor date", func(t *testing.T) {
		t.Parallel()

		anchor := Anchor{Start: date(2020, time.February, 29)}
		rule := &Rule{Frequency: FrequencyYearly, Interval: 1}

		got, err := Expand(anchor, rule, date(2020, time.January, 1), date(2025, time.December, 31))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Only leap years have a February 29th.
		assertStarts(t, got, []time.Time{
			date(2020, time.February, 29),
			date(2024, time.February, 29),
		})
	})
}

func TestExpand_DailyWeekdayFilter(t *testing.T) {
	t.Parallel()

	// Weekday-only daily series, e.g. a school run.
	anchor := Anchor{Start: date(2026, time.January, 5)}
	rule := &Rule{Frequency: FrequencyDaily, Interval: 1, ByDay: []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}}

	got, err := Expand(anchor, rule, date(2026, time.January, 5), date(2026, time.January, 11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 weekday occurrences, got %v", starts(got))
	}
	for _, instance := range got {
		if wd := instance.Start.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("weekend occurrence leaked through: %v", instance.Start)
		}
	}
}

func TestExpand_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	anchor := Anchor{Start: date(2026, time.January, 5)}

	t.Run("inverted window", func(t *testing.T) {
		t.Parallel()

		_, err := Expand(anchor, nil, date(2026, time.February, 1), date(2026, time.January, 1))
		if err != ErrInvalidWindow {
			t.Fatalf("expected ErrInvalidWindow, got %v", err)
		}
	})

	t.Run("zero interval", func(t *testing.T) {
		t.Parallel()

		rule := &Rule{Frequency: FrequencyDaily, Interval: 0}
		_, err := Expand(anchor, rule, date(2026, time.January, 1), date(2026, time.January, 31))
		if err == nil {
			t.Fatal("expected an interval validation error")
		}
	})
}
