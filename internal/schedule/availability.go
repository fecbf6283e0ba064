package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTime    = errors.New("time must be formatted as HH:MM")
	ErrInvalidDate    = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidWeekday = errors.New("unknown weekday")
)

const DateLayout = "2006-01-02"

// TimeOfDay is a clock time stored as minutes since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, ErrInvalidTime
	}
	return TimeOfDay(hour*60 + minute), nil
}

// ParseTimeOfDay parses "HH:MM" (single digit hours are accepted).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

// Valid reports whether t is within a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseDate parses "YYYY-MM-DD" into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// DateOf drops the clock part of t, keeping its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Weekday mirrors time.Weekday but carries the English day name in JSON.
type Weekday time.Weekday

func WeekdayOf(date time.Time) Weekday {
	return Weekday(date.Weekday())
}

func ParseWeekday(s string) (Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return Weekday(d), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

func (d Weekday) String() string {
	return time.Weekday(d).String()
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// TimeRange is a half-open window of opening hours on one day.
type TimeRange struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Contains reports whether t is within the range, both ends included.
func (r TimeRange) Contains(t TimeOfDay) bool {
	return t >= r.Start && t <= r.End
}

type InvalidRangeError struct {
	Day   Weekday
	Range TimeRange
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range %s on %s: start must be before end", e.Range, e.Day)
}

// DayAvailability lists the opening hours of a single weekday.
type DayAvailability struct {
	Day   Weekday     `json:"day"`
	Hours []TimeRange `json:"hours"`
}

// WeeklyAvailability is a doctor's recurring schedule in stored order.
type WeeklyAvailability []DayAvailability

// Ranges returns the configured ranges for day. A missing day yields nil.
// Duplicate entries for the same day are merged in stored order.
func (w WeeklyAvailability) Ranges(day Weekday) []TimeRange {
	var out []TimeRange
	for _, d := range w {
		if d.Day == day {
			out = append(out, d.Hours...)
		}
	}
	return out
}

// AvailableDays lists the weekdays that have at least one range.
func (w WeeklyAvailability) AvailableDays() []Weekday {
	seen := make(map[Weekday]bool, len(w))
	days := make([]Weekday, 0, len(w))
	for _, d := range w {
		if len(d.Hours) == 0 || seen[d.Day] {
			continue
		}
		seen[d.Day] = true
		days = append(days, d.Day)
	}
	return days
}

// Covers reports whether t falls inside any range configured for day.
func (w WeeklyAvailability) Covers(day Weekday, t TimeOfDay) bool {
	for _, r := range w.Ranges(day) {
		if r.Contains(t) {
			return true
		}
	}
	return false
}

func (w WeeklyAvailability) Validate() error {
	for _, d := range w {
		for _, r := range d.Hours {
			if r.Start >= r.End || !r.Start.Valid() || r.End > minutesPerDay {
				return &InvalidRangeError{Day: d.Day, Range: r}
			}
		}
	}
	return nil
}
