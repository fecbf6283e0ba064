package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tod(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func mondayMorning(t *testing.T) WeeklyAvailability {
	return WeeklyAvailability{
		{Day: Weekday(time.Monday), Hours: []TimeRange{{Start: tod(t, "08:00"), End: tod(t, "12:00")}}},
		{Day: Weekday(time.Wednesday), Hours: []TimeRange{
			{Start: tod(t, "14:00"), End: tod(t, "15:00")},
			{Start: tod(t, "08:00"), End: tod(t, "09:00")},
		}},
		{Day: Weekday(time.Friday)},
	}
}

func TestParseTimeOfDay(t *testing.T) {
	v, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(9*60+5), v)
	assert.Equal(t, "09:05", v.String())

	_, err = ParseTimeOfDay("25:00")
	assert.ErrorIs(t, err, ErrInvalidTime)
	_, err = ParseTimeOfDay("nine")
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2030-01-07")
	require.NoError(t, err)
	assert.Equal(t, Weekday(time.Monday), WeekdayOf(d))

	_, err = ParseDate("07-01-2030")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestWeeklyAvailability_JSON(t *testing.T) {
	raw := `[{"day":"Monday","hours":[{"start":"08:00","end":"12:00"},{"start":"14:00","end":"17:00"}]}]`

	var w WeeklyAvailability
	require.NoError(t, json.Unmarshal([]byte(raw), &w))
	require.Len(t, w, 1)
	assert.Equal(t, Weekday(time.Monday), w[0].Day)
	assert.Equal(t, tod(t, "14:00"), w[0].Hours[1].Start)

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))

	assert.Error(t, json.Unmarshal([]byte(`[{"day":"Funday","hours":[]}]`), &w))
}

func TestWeeklyAvailability_Lookup(t *testing.T) {
	w := mondayMorning(t)

	assert.Len(t, w.Ranges(Weekday(time.Monday)), 1)
	assert.Nil(t, w.Ranges(Weekday(time.Tuesday)))
	assert.Empty(t, w.Ranges(Weekday(time.Friday)))

	assert.Equal(t, []Weekday{Weekday(time.Monday), Weekday(time.Wednesday)}, w.AvailableDays())

	assert.True(t, w.Covers(Weekday(time.Monday), tod(t, "08:00")))
	assert.True(t, w.Covers(Weekday(time.Monday), tod(t, "12:00")))
	assert.False(t, w.Covers(Weekday(time.Monday), tod(t, "12:01")))
	assert.False(t, w.Covers(Weekday(time.Tuesday), tod(t, "09:00")))
}

func TestWeeklyAvailability_Validate(t *testing.T) {
	require.NoError(t, mondayMorning(t).Validate())

	bad := WeeklyAvailability{{Day: Weekday(time.Monday), Hours: []TimeRange{{Start: tod(t, "12:00"), End: tod(t, "08:00")}}}}
	var rangeErr *InvalidRangeError
	assert.ErrorAs(t, bad.Validate(), &rangeErr)
}

func TestEnumerateSlots(t *testing.T) {
	w := mondayMorning(t)

	slots, err := EnumerateSlots(w, Weekday(time.Monday), 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, slots, 16)
	assert.Equal(t, "08:00", slots[0].String())
	assert.Equal(t, "11:45", slots[len(slots)-1].String())

	// stored order, not sorted
	slots, err = EnumerateSlots(w, Weekday(time.Wednesday), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []TimeOfDay{tod(t, "14:00"), tod(t, "14:30"), tod(t, "08:00"), tod(t, "08:30")}, slots)

	slots, err = EnumerateSlots(w, Weekday(time.Tuesday), 15*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestEnumerateSlots_CountIsFloor(t *testing.T) {
	start := tod(t, "08:00")
	for _, g := range []int{1, 7, 15, 20, 45, 61} {
		for _, length := range []int{1, 14, 15, 20, 59, 240} {
			w := WeeklyAvailability{{Day: Weekday(time.Monday), Hours: []TimeRange{{Start: start, End: start + TimeOfDay(length)}}}}
			slots, err := EnumerateSlots(w, Weekday(time.Monday), time.Duration(g)*time.Minute)
			require.NoError(t, err)
			assert.Len(t, slots, length/g, "granularity=%d length=%d", g, length)
		}
	}
}

func TestEnumerateSlots_OverlapsEmittedOnce(t *testing.T) {
	w := WeeklyAvailability{{Day: Weekday(time.Monday), Hours: []TimeRange{
		{Start: tod(t, "08:00"), End: tod(t, "09:00")},
		{Start: tod(t, "08:30"), End: tod(t, "09:30")},
	}}}

	slots, err := EnumerateSlots(w, Weekday(time.Monday), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []TimeOfDay{
		tod(t, "08:00"), tod(t, "08:15"), tod(t, "08:30"), tod(t, "08:45"),
		tod(t, "09:00"), tod(t, "09:15"),
	}, slots)
}

func TestEnumerateSlots_Invalid(t *testing.T) {
	w := mondayMorning(t)
	_, err := EnumerateSlots(w, Weekday(time.Monday), 0)
	assert.ErrorIs(t, err, ErrInvalidGranularity)

	bad := WeeklyAvailability{{Day: Weekday(time.Monday), Hours: []TimeRange{{Start: tod(t, "10:00"), End: tod(t, "10:00")}}}}
	_, err = EnumerateSlots(bad, Weekday(time.Monday), 15*time.Minute)
	var rangeErr *InvalidRangeError
	assert.ErrorAs(t, err, &rangeErr)
}

func TestHasConflict(t *testing.T) {
	booked := []TimeOfDay{tod(t, "09:00")}
	buffer := 15 * time.Minute

	assert.True(t, HasConflict(tod(t, "09:00"), booked, buffer))
	assert.True(t, HasConflict(tod(t, "09:10"), booked, buffer))
	assert.True(t, HasConflict(tod(t, "08:46"), booked, buffer))
	assert.False(t, HasConflict(tod(t, "09:15"), booked, buffer))
	assert.False(t, HasConflict(tod(t, "09:16"), booked, buffer))
	assert.False(t, HasConflict(tod(t, "09:00"), nil, buffer))

	// zero buffer still rejects the exact same time
	assert.True(t, HasConflict(tod(t, "09:00"), booked, 0))
	assert.False(t, HasConflict(tod(t, "09:01"), booked, 0))
}

func TestHasConflict_Symmetric(t *testing.T) {
	buffer := 44 * time.Minute
	for a := TimeOfDay(480); a < 600; a += 7 {
		for b := TimeOfDay(480); b < 600; b += 11 {
			diff := int(a - b)
			if diff < 0 {
				diff = -diff
			}
			want := diff < 44
			assert.Equal(t, want, HasConflict(a, []TimeOfDay{b}, buffer), "%s vs %s", a, b)
			assert.Equal(t, HasConflict(a, []TimeOfDay{b}, buffer), HasConflict(b, []TimeOfDay{a}, buffer))
		}
	}
}
