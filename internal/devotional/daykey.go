package devotional

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

const (
	// DefaultTimezone is the reference zone the day rolls over in.
	DefaultTimezone = "America/New_York"
	// DefaultRolloverHour is the hour of day, in the reference zone, at which the day key advances.
	DefaultRolloverHour = 7

	dayKeyLayout = "2006-01-02"
)

// DayKey identifies one devotional day, formatted YYYY-MM-DD.
type DayKey string

func (k DayKey) String() string { return string(k) }

// Date parses the key back into midnight UTC of its calendar date.
func (k DayKey) Date() (time.Time, error) {
	t, err := time.Parse(dayKeyLayout, string(k))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", string(k), err)
	}
	return t, nil
}

// ResolveDayKey returns the devotional day that now belongs to. The calendar date is
// read in loc, and instants before rolloverHour belong to the previous date. The result
// does not depend on the zone now carries.
func ResolveDayKey(now time.Time, loc *time.Location, rolloverHour int) DayKey {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	if local.Hour() < rolloverHour {
		d--
	}
	// Civil date arithmetic in UTC so DST never shifts the date.
	return DayKey(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(dayKeyLayout))
}

// Rollover pairs a reference zone with the hour the day key advances.
type Rollover struct {
	Location *time.Location
	Hour     int
}

// DefaultRollover returns 07:00 America/New_York.
func DefaultRollover() Rollover {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		// tzdata is embedded, so this only happens if the zone name is wrong.
		panic(err)
	}
	return Rollover{Location: loc, Hour: DefaultRolloverHour}
}

// NewRollover validates hour and loads the named zone.
func NewRollover(timezone string, hour int) (Rollover, error) {
	if hour < 0 || hour > 23 {
		return Rollover{}, fmt.Errorf("rollover hour must be between 0 and 23, got %d", hour)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Rollover{}, fmt.Errorf("load rollover zone: %w", err)
	}
	return Rollover{Location: loc, Hour: hour}, nil
}

// Key resolves the day key for now.
func (r Rollover) Key(now time.Time) DayKey {
	return ResolveDayKey(now, r.Location, r.Hour)
}

// Next returns the first rollover instant strictly after now.
func (r Rollover) Next(now time.Time) time.Time {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	next := time.Date(y, m, d, r.Hour, 0, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(y, m, d+1, r.Hour, 0, 0, 0, loc)
	}
	return next
}

// CronSpec returns a robfig/cron spec firing at every rollover.
func (r Rollover) CronSpec() string {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("CRON_TZ=%s 0 %d * * *", loc.String(), r.Hour)
}
