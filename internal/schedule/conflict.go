package schedule

import "time"

// HasConflict reports whether candidate lies closer than buffer to any of the
// existing start times. Identical times always conflict.
func HasConflict(candidate TimeOfDay, existing []TimeOfDay, buffer time.Duration) bool {
	window := int(buffer / time.Minute)
	for _, t := range existing {
		diff := int(candidate - t)
		if diff < 0 {
			diff = -diff
		}
		if diff == 0 || diff < window {
			return true
		}
	}
	return false
}
