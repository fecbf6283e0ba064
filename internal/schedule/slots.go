package schedule

import (
	"errors"
	"time"
)

var ErrInvalidGranularity = errors.New("slot granularity must be a positive number of minutes")

// EnumerateSlots walks every range configured for day in steps of granularity
// and returns the start times of the slots that fit entirely inside a range.
// Ranges are walked in stored order; a time already produced by an earlier
// overlapping range is not repeated.
func EnumerateSlots(avail WeeklyAvailability, day Weekday, granularity time.Duration) ([]TimeOfDay, error) {
	step := TimeOfDay(granularity / time.Minute)
	if step <= 0 {
		return nil, ErrInvalidGranularity
	}

	ranges := avail.Ranges(day)
	if len(ranges) == 0 {
		return nil, nil
	}

	seen := make(map[TimeOfDay]struct{})
	var slots []TimeOfDay
	for _, r := range ranges {
		if r.Start >= r.End {
			return nil, &InvalidRangeError{Day: day, Range: r}
		}
		for t := r.Start; t+step <= r.End; t += step {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			slots = append(slots, t)
		}
	}
	return slots, nil
}
