package recurrence

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Frequency identifies the unit a recurrence rule steps by.
type Frequency string

const (
	// FrequencyDaily repeats every Interval days.
	FrequencyDaily Frequency = "DAILY"
	// FrequencyWeekly repeats every Interval weeks on the selected weekdays.
	FrequencyWeekly Frequency = "WEEKLY"
	// FrequencyMonthly repeats every Interval months.
	FrequencyMonthly Frequency = "MONTHLY"
	// FrequencyYearly repeats every Interval years.
	FrequencyYearly Frequency = "YEARLY"
)

// Weekday is the two-letter weekday code used on the wire (MO..SU).
type Weekday string

const (
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
	Sunday    Weekday = "SU"
)

var weekdayCodes = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// Std converts the wire code to the standard library weekday.
func (w Weekday) Std() (time.Weekday, bool) {
	day, ok := weekdayCodes[w]
	return day, ok
}

var (
	// ErrInvalidFrequency indicates the rule frequency is missing or unknown.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidInterval indicates the rule interval is zero or negative.
	ErrInvalidInterval = errors.New("recurrence: interval must be at least 1")
	// ErrInvalidCount indicates the occurrence cap is zero or negative.
	ErrInvalidCount = errors.New("recurrence: count must be at least 1")
	// ErrInvalidWeekday indicates an unknown weekday code in byDay.
	ErrInvalidWeekday = errors.New("recurrence: invalid weekday code")
	// ErrInvalidMonth indicates a byMonth entry outside 1..12.
	ErrInvalidMonth = errors.New("recurrence: month must be between 1 and 12")
	// ErrInvalidMonthDay indicates a byMonthDay entry outside 1..31.
	ErrInvalidMonthDay = errors.New("recurrence: day of month must be between 1 and 31")
	// ErrModifierNotAllowed indicates a modifier that the rule frequency does not support.
	ErrModifierNotAllowed = errors.New("recurrence: modifier not allowed for frequency")
)

// Rule describes how an event series repeats. The zero value is invalid;
// callers must run Validate before handing a rule to the expander.
//
// Wire form keys: frequency, interval, until, count, byDay,
// byMonth, byMonthDay. A JSON null in place of the whole object means the
// event does not recur.
type Rule struct {
	Frequency  Frequency    `json:"frequency"`
	Interval   int          `json:"interval"`
	Until      *time.Time   `json:"until,omitempty"`
	Count      *int         `json:"count,omitempty"`
	ByDay      []Weekday    `json:"byDay,omitempty"`
	ByMonth    []time.Month `json:"byMonth,omitempty"`
	ByMonthDay []int        `json:"byMonthDay,omitempty"`
}

// UnmarshalJSON decodes the wire form, defaulting an absent interval to 1.
// An explicit zero or negative interval is preserved so Validate can reject it.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type wire struct {
		Frequency  Frequency    `json:"frequency"`
		Interval   *int         `json:"interval"`
		Until      *time.Time   `json:"until"`
		Count      *int         `json:"count"`
		ByDay      []Weekday    `json:"byDay"`
		ByMonth    []time.Month `json:"byMonth"`
		ByMonthDay []int        `json:"byMonthDay"`
	}

	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	interval := 1
	if w.Interval != nil {
		interval = *w.Interval
	}

	*r = Rule{
		Frequency:  w.Frequency,
		Interval:   interval,
		Until:      w.Until,
		Count:      w.Count,
		ByDay:      w.ByDay,
		ByMonth:    w.ByMonth,
		ByMonthDay: w.ByMonthDay,
	}
	return nil
}

// ParseRule decodes and validates a stored wire representation.
func ParseRule(data []byte) (*Rule, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var rule Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("recurrence: decode rule: %w", err)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Validate checks the rule's invariants and modifier combinations. Go has no
// closed sum over the four frequencies, so the combinations the type system
// cannot rule out are rejected here instead.
func (r *Rule) Validate() error {
	if r == nil {
		return nil
	}

	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}

	if r.Interval < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, r.Interval)
	}

	if r.Count != nil && *r.Count < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCount, *r.Count)
	}

	for _, day := range r.ByDay {
		if _, ok := day.Std(); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidWeekday, day)
		}
	}
	for _, month := range r.ByMonth {
		if month < time.January || month > time.December {
			return fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
		}
	}
	for _, day := range r.ByMonthDay {
		if day < 1 || day > 31 {
			return fmt.Errorf("%w: got %d", ErrInvalidMonthDay, day)
		}
	}

	// Weekday selections apply to daily, weekly and monthly rules; month and
	// day-of-month selections only make sense at monthly or yearly cadence.
	if len(r.ByDay) > 0 && r.Frequency == FrequencyYearly {
		return fmt.Errorf("%w: byDay on %s", ErrModifierNotAllowed, r.Frequency)
	}
	if len(r.ByMonth) > 0 && (r.Frequency == FrequencyDaily || r.Frequency == FrequencyWeekly) {
		return fmt.Errorf("%w: byMonth on %s", ErrModifierNotAllowed, r.Frequency)
	}
	if len(r.ByMonthDay) > 0 && (r.Frequency == FrequencyDaily || r.Frequency == FrequencyWeekly) {
		return fmt.Errorf("%w: byMonthDay on %s", ErrModifierNotAllowed, r.Frequency)
	}

	return nil
}

// weekdaySet materialises ByDay for membership tests.
func (r *Rule) weekdaySet() map[time.Weekday]struct{} {
	if len(r.ByDay) == 0 {
		return nil
	}
	set := make(map[time.Weekday]struct{}, len(r.ByDay))
	for _, code := range r.ByDay {
		if day, ok := code.Std(); ok {
			set[day] = struct{}{}
		}
	}
	return set
}

func (r *Rule) monthSet() map[time.Month]struct{} {
	if len(r.ByMonth) == 0 {
		return nil
	}
	set := make(map[time.Month]struct{}, len(r.ByMonth))
	for _, month := range r.ByMonth {
		set[month] = struct{}{}
	}
	return set
}

func (r *Rule) monthDaySet() map[int]struct{} {
	if len(r.ByMonthDay) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(r.ByMonthDay))
	for _, day := range r.ByMonthDay {
		set[day] = struct{}{}
	}
	return set
}
