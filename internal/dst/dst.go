// Package dst evaluates daylight-saving switchover rules. The controller
// does not support timezones; it only needs to know whether a wall-clock
// instant falls in summer time so scheduled events fire at the right hour.
package dst

import "time"

// Season is what a rule switches to.
type Season int

const (
	Winter Season = iota
	Summer
)

// Week selects which occurrence of the weekday within the month.
type Week int

const (
	First Week = iota
	Second
	Third
	Fourth
	Last
)

// Rule describes one switchover: at Hour on the Week'th Weekday of Month,
// the clock enters Season.
type Rule struct {
	Season  Season
	Week    Week
	Weekday time.Weekday
	Month   time.Month
	Hour    int
}

// Rules holds exactly two rules in calendar succession.
type Rules [2]Rule

// Common rule sets. The southern-hemisphere set is reversed on purpose.
var (
	US = Rules{
		{Summer, Second, time.Sunday, time.March, 2},
		{Winter, First, time.Sunday, time.November, 2},
	}
	EU = Rules{
		{Summer, Last, time.Sunday, time.March, 1},
		{Winter, Last, time.Sunday, time.October, 1},
	}
	AU = Rules{
		{Winter, First, time.Sunday, time.April, 2},
		{Summer, First, time.Sunday, time.October, 2},
	}
)

// boundary returns the rule's switchover instant in the given year,
// evaluated in t's location.
func (r Rule) boundary(t time.Time) time.Time {
	loc := t.Location()
	var day time.Time
	if r.Week != Last {
		// Start of the rule's week, then the next matching weekday
		// (inclusive: the same weekday resolves to that day).
		day = time.Date(t.Year(), r.Month, 1+7*int(r.Week), 0, 0, 0, 0, loc)
		for day.Weekday() != r.Weekday {
			day = day.AddDate(0, 0, 1)
		}
	} else {
		// Last day of the month, then the previous matching weekday.
		day = time.Date(t.Year(), r.Month+1, 0, 0, 0, 0, 0, loc)
		for day.Weekday() != r.Weekday {
			day = day.AddDate(0, 0, -1)
		}
	}
	return day.Add(time.Duration(r.Hour) * time.Hour)
}

// passed reports whether t is at or past the rule's boundary in t's year.
func (r Rule) passed(t time.Time) bool {
	return !t.Before(r.boundary(t))
}

// IsSummer reports whether t falls in summer time. Within the current year,
// the most recently passed rule wins; before the first rule, the second
// rule is assumed to continue from the previous year.
func IsSummer(rules Rules, t time.Time) bool {
	for i := 1; i >= 0; i-- {
		if rules[i].passed(t) {
			return rules[i].Season == Summer
		}
	}
	return rules[1].Season == Summer
}

// ToDST applies the summer offset to t when t is in summer time.
func ToDST(rules Rules, t time.Time) time.Time {
	if IsSummer(rules, t) {
		return t.Add(time.Hour)
	}
	return t
}
