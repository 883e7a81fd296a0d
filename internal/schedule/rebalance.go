package schedule

import (
	"fmt"
	"time"
)

// maxAdjustDays bounds the forward search for a trading day so a
// degenerate calendar cannot spin forever.
const maxAdjustDays = 366

// Schedule is the ordered sequence of rebalance as-of dates for a
// backtest horizon: the first trading day on or after each cadence
// boundary, truncated at the end date. Purely a function of its
// inputs; Reset restarts the iteration.
type Schedule struct {
	start       time.Time
	end         time.Time
	cadenceDays int
	calendar    Calendar

	boundary time.Time
	last     time.Time
}

// New creates a rebalance schedule. Cadence is in calendar days and
// must be positive; start must not be after end.
func New(start, end time.Time, cadenceDays int, calendar Calendar) (*Schedule, error) {
	if cadenceDays <= 0 {
		return nil, fmt.Errorf("cadence must be positive, got %d days", cadenceDays)
	}
	if start.After(end) {
		return nil, fmt.Errorf("start %s is after end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if calendar == nil {
		calendar = NewWeekdayCalendar()
	}

	s := &Schedule{
		start:       truncateDay(start),
		end:         truncateDay(end),
		cadenceDays: cadenceDays,
		calendar:    calendar,
	}
	s.Reset()
	return s, nil
}

// Reset restarts the sequence from the beginning
func (s *Schedule) Reset() {
	s.boundary = s.start
	s.last = time.Time{}
}

// Next returns the next as-of date, or false when the schedule is
// exhausted. A boundary on a non-trading day advances forward to the
// next trading day; dates past the end date are truncated.
func (s *Schedule) Next() (time.Time, bool) {
	for !s.boundary.After(s.end) {
		boundary := s.boundary
		s.boundary = s.boundary.AddDate(0, 0, s.cadenceDays)

		asOf, ok := s.advanceToTradingDay(boundary)
		if !ok || asOf.After(s.end) {
			continue
		}
		// Two boundaries can adjust onto the same trading day
		if !s.last.IsZero() && !asOf.After(s.last) {
			continue
		}
		s.last = asOf
		return asOf, true
	}
	return time.Time{}, false
}

// Dates materializes the full sequence
func (s *Schedule) Dates() []time.Time {
	s.Reset()
	dates := make([]time.Time, 0)
	for {
		d, ok := s.Next()
		if !ok {
			break
		}
		dates = append(dates, d)
	}
	s.Reset()
	return dates
}

// advanceToTradingDay walks forward to the first trading day on or
// after date
func (s *Schedule) advanceToTradingDay(date time.Time) (time.Time, bool) {
	for i := 0; i < maxAdjustDays; i++ {
		if s.calendar.IsTradingDay(date) {
			return date, true
		}
		date = date.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
