package recurrence

import (
	"errors"
	"time"
)

// Anchor carries the series-defining fields of an event: the first
// occurrence's start, the optional end that fixes every occurrence's
// duration, and the all-day flag that switches boundary comparisons from
// instants to calendar dates.
type Anchor struct {
	Start  time.Time
	End    *time.Time
	AllDay bool
}

// Instance is one concrete expansion of an anchor. End is nil when the
// anchor itself has no end.
type Instance struct {
	Start time.Time
	End   *time.Time
}

// ErrInvalidWindow indicates the query window's end precedes its start.
var ErrInvalidWindow = errors.New("recurrence: range end must not precede range start")

// Expand produces the occurrences of an event whose starts fall inside the
// inclusive window [rangeStart, rangeEnd].
//
// With a nil rule the anchor itself is the only candidate. With a rule, the
// logical candidate sequence begins at the anchor start and is walked in
// order, so Count caps the series as counted from the anchor regardless of
// how the window is placed. All-day anchors compare against the window and
// Until by calendar date rather than instant.
//
// Expand reads no global state and never consults the current time: equal
// arguments always yield equal results.
func Expand(anchor Anchor, rule *Rule, rangeStart, rangeEnd time.Time) ([]Instance, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, ErrInvalidWindow
	}

	if rule == nil {
		if inWindow(anchor.Start, anchor.AllDay, rangeStart, rangeEnd) {
			return []Instance{makeInstance(anchor, anchor.Start)}, nil
		}
		return nil, nil
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}

	loc := anchor.Start.Location()
	anchorDay := dateOnly(anchor.Start)
	horizon := dateOnly(rangeEnd.In(loc))

	weekdays := rule.weekdaySet()
	months := rule.monthSet()
	monthDays := rule.monthDaySet()

	var out []Instance
	produced := 0

	for day := anchorDay; !day.After(horizon); day = day.AddDate(0, 0, 1) {
		if !matchesRule(rule, anchor.Start, day, weekdays, months, monthDays) {
			continue
		}

		candidate := atAnchorClock(day, anchor.Start, loc)

		if rule.Until != nil && exceedsUntil(candidate, anchor.AllDay, *rule.Until) {
			break
		}

		produced++
		if inWindow(candidate, anchor.AllDay, rangeStart, rangeEnd) {
			out = append(out, makeInstance(anchor, candidate))
		}

		if rule.Count != nil && produced >= *rule.Count {
			break
		}
	}

	return out, nil
}

// matchesRule reports whether the calendar day holds a candidate of the
// series anchored at anchorStart.
func matchesRule(rule *Rule, anchorStart, day time.Time, weekdays map[time.Weekday]struct{}, months map[time.Month]struct{}, monthDays map[int]struct{}) bool {
	anchorDay := dateOnly(anchorStart)

	switch rule.Frequency {
	case FrequencyDaily:
		if daysBetween(anchorDay, day)%rule.Interval != 0 {
			return false
		}
		return weekdayAllowed(weekdays, day.Weekday(), true)

	case FrequencyWeekly:
		weeks := daysBetween(startOfWeek(anchorDay), startOfWeek(day)) / 7
		if weeks%rule.Interval != 0 {
			return false
		}
		if len(weekdays) == 0 {
			return day.Weekday() == anchorStart.Weekday()
		}
		_, ok := weekdays[day.Weekday()]
		return ok

	case FrequencyMonthly:
		if monthsBetween(anchorDay, day)%rule.Interval != 0 {
			return false
		}
		if !monthAllowed(months, day.Month()) {
			return false
		}
		if !weekdayAllowed(weekdays, day.Weekday(), true) {
			return false
		}
		if monthDays != nil {
			_, ok := monthDays[day.Day()]
			return ok
		}
		if len(weekdays) > 0 {
			// Weekday-driven monthly rules accept any matching day; the
			// anchor day-of-month default only applies without modifiers.
			return true
		}
		return day.Day() == anchorDay.Day()

	case FrequencyYearly:
		if (day.Year()-anchorDay.Year())%rule.Interval != 0 {
			return false
		}
		if months != nil {
			if _, ok := months[day.Month()]; !ok {
				return false
			}
		} else if day.Month() != anchorDay.Month() {
			return false
		}
		if monthDays != nil {
			_, ok := monthDays[day.Day()]
			return ok
		}
		return day.Day() == anchorDay.Day()
	}

	return false
}

func weekdayAllowed(set map[time.Weekday]struct{}, day time.Weekday, emptyMeansAny bool) bool {
	if len(set) == 0 {
		return emptyMeansAny
	}
	_, ok := set[day]
	return ok
}

func monthAllowed(set map[time.Month]struct{}, month time.Month) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[month]
	return ok
}

func makeInstance(anchor Anchor, start time.Time) Instance {
	instance := Instance{Start: start}
	if anchor.End != nil {
		end := start.Add(anchor.End.Sub(anchor.Start))
		instance.End = &end
	}
	return instance
}

// inWindow applies the inclusive window bounds, comparing by calendar date
// for all-day events and by instant otherwise.
func inWindow(start time.Time, allDay bool, rangeStart, rangeEnd time.Time) bool {
	if allDay {
		day := dateOnly(start)
		return !day.Before(dateOnly(rangeStart.In(start.Location()))) &&
			!day.After(dateOnly(rangeEnd.In(start.Location())))
	}
	return !start.Before(rangeStart) && !start.After(rangeEnd)
}

func exceedsUntil(start time.Time, allDay bool, until time.Time) bool {
	if allDay {
		return dateOnly(start).After(dateOnly(until.In(start.Location())))
	}
	return start.After(until)
}

// atAnchorClock places the anchor's time of day onto the given calendar day.
func atAnchorClock(day, anchor time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), loc)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days from a to b. Both arguments must be
// dateOnly values, which live in UTC and are immune to DST arithmetic.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// startOfWeek returns the Monday of the week containing the given dateOnly day.
func startOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
