// Package ics renders the viewer's calendar as an iCalendar feed that
// external clients can subscribe to.
package ics

import (
	"fmt"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/example/family-portal/internal/application"
	"github.com/example/family-portal/internal/recurrence"
)

// Export renders the given events as an iCalendar document. Recurring
// anchors carry an RRULE so subscribing clients expand the series
// themselves.
func Export(events []application.Event) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//family-portal//calendar//EN")

	for _, event := range events {
		vevent := cal.AddEvent(event.ID)
		vevent.SetDtStampTime(event.UpdatedAt.UTC())
		vevent.SetSummary(event.Title)
		if event.Description != "" {
			vevent.SetDescription(event.Description)
		}
		if event.Location != "" {
			vevent.SetLocation(event.Location)
		}
		vevent.SetProperty(ical.ComponentPropertyCategories, string(event.Category))

		if event.AllDay {
			vevent.SetAllDayStartAt(event.Start.UTC())
			if event.End != nil {
				vevent.SetAllDayEndAt(event.End.UTC())
			}
		} else {
			vevent.SetStartAt(event.Start.UTC())
			if event.End != nil {
				vevent.SetEndAt(event.End.UTC())
			}
		}

		if event.Recurrence != nil {
			rule, err := rruleFor(event.Recurrence)
			if err != nil {
				return "", fmt.Errorf("event %s: %w", event.ID, err)
			}
			vevent.AddRrule(rule)
		}
	}

	return cal.Serialize(), nil
}

func rruleFor(rule *recurrence.Rule) (string, error) {
	option := rrule.ROption{Interval: rule.Interval}

	switch rule.Frequency {
	case recurrence.FrequencyDaily:
		option.Freq = rrule.DAILY
	case recurrence.FrequencyWeekly:
		option.Freq = rrule.WEEKLY
	case recurrence.FrequencyMonthly:
		option.Freq = rrule.MONTHLY
	case recurrence.FrequencyYearly:
		option.Freq = rrule.YEARLY
	default:
		return "", fmt.Errorf("unsupported frequency %q", rule.Frequency)
	}

	if rule.Until != nil {
		option.Until = rule.Until.UTC()
	}
	if rule.Count != nil {
		option.Count = *rule.Count
	}
	for _, day := range rule.ByDay {
		weekday, err := rruleWeekday(day)
		if err != nil {
			return "", err
		}
		option.Byweekday = append(option.Byweekday, weekday)
	}
	for _, month := range rule.ByMonth {
		option.Bymonth = append(option.Bymonth, int(month))
	}
	option.Bymonthday = append(option.Bymonthday, rule.ByMonthDay...)

	return option.RRuleString(), nil
}

func rruleWeekday(day recurrence.Weekday) (rrule.Weekday, error) {
	switch day {
	case recurrence.Monday:
		return rrule.MO, nil
	case recurrence.Tuesday:
		return rrule.TU, nil
	case recurrence.Wednesday:
		return rrule.WE, nil
	case recurrence.Thursday:
		return rrule.TH, nil
	case recurrence.Friday:
		return rrule.FR, nil
	case recurrence.Saturday:
		return rrule.SA, nil
	case recurrence.Sunday:
		return rrule.SU, nil
	}
	return rrule.Weekday{}, fmt.Errorf("unknown weekday %q", day)
}
