package schedule

import "time"

// Calendar answers whether a date is a trading day.
type Calendar interface {
	IsTradingDay(date time.Time) bool
}

// WeekdayCalendar treats Monday through Friday as trading days, minus
// an optional holiday set.
type WeekdayCalendar struct {
	holidays map[string]bool // key: YYYY-MM-DD
}

// NewWeekdayCalendar creates a weekday calendar with optional holidays
func NewWeekdayCalendar(holidays ...time.Time) *WeekdayCalendar {
	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		set[h.Format("2006-01-02")] = true
	}
	return &WeekdayCalendar{holidays: set}
}

// IsTradingDay reports whether date is a weekday and not a holiday
func (c *WeekdayCalendar) IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[date.Format("2006-01-02")]
}

// CalendarFunc adapts a plain predicate into a Calendar.
type CalendarFunc func(date time.Time) bool

func (f CalendarFunc) IsTradingDay(date time.Time) bool {
	return f(date)
}
