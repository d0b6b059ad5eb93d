package booking

import (
	"fmt"
	"time"

	"github.com/eventoh/service-booking/internal/platform/domain"
)

// MaxBookingDays bounds the length of a single booking.
const MaxBookingDays = 366

// DateRange is an inclusive range of calendar dates, stored as UTC midnights.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// CalendarDate returns UTC midnight of t's calendar date as seen in t's location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDateRange builds a range from two instants, keeping only their calendar dates.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, domain.NewValidationError("start and end dates are required")
	}
	r := DateRange{Start: CalendarDate(start), End: CalendarDate(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, domain.NewValidationError("end date must not be before start date")
	}
	if r.Days() > MaxBookingDays {
		return DateRange{}, domain.NewValidationError(fmt.Sprintf("a booking cannot span more than %d days", MaxBookingDays))
	}
	return r, nil
}

// ParseDateRange parses two ISO calendar dates.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return DateRange{}, domain.NewValidationError(fmt.Sprintf("invalid start date %q, expected YYYY-MM-DD", start))
	}
	e, err := time.Parse(domain.DateLayout, end)
	if err != nil {
		return DateRange{}, domain.NewValidationError(fmt.Sprintf("invalid end date %q, expected YYYY-MM-DD", end))
	}
	return NewDateRange(s, e)
}

// Days returns the number of calendar days covered, counting both ends.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Overlaps applies the half-open test: r.Start < o.End && r.End > o.Start.
// Ranges that only touch (one ends the day the other starts) do not overlap,
// and a single-day range conflicts only with a range strictly around it.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.Start.Before(o.End) && r.End.After(o.Start)
}

// StartString returns the start date as YYYY-MM-DD.
func (r DateRange) StartString() string { return r.Start.Format(domain.DateLayout) }

// EndString returns the end date as YYYY-MM-DD.
func (r DateRange) EndString() string { return r.End.Format(domain.DateLayout) }

func (r DateRange) String() string {
	return r.StartString() + ".." + r.EndString()
}
