// Package window holds the pure time math behind conversation billing:
// 24-hour window boundaries, year-month bucketing, and quota classification.
package window

import "time"

// Duration is the billable conversation window. Messages arriving inside
// it are absorbed into the conversation that opened it.
const Duration = 24 * time.Hour

// Bounds returns the window opened by a first message at start.
func Bounds(start time.Time) (time.Time, time.Time) {
	start = start.UTC()
	return start, start.Add(Duration)
}

// End returns the expiry of a window opened at start.
func End(start time.Time) time.Time {
	return start.UTC().Add(Duration)
}

// Active reports whether a window opened at start still covers now.
func Active(start, now time.Time) bool {
	return now.UTC().Before(End(start))
}

// YearMonth buckets an instant into the billing month key, e.g. "2026-08".
// Derived once at event creation and never recomputed.
func YearMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// IsExcess classifies a new conversation against the monthly quota using
// the pre-increment used count. A non-positive limit means unlimited.
func IsExcess(used, limit int) bool {
	if limit <= 0 {
		return false
	}
	return used >= limit
}

// ReachesLimit reports whether the post-increment used count landed exactly
// on the limit, for the "quota newly reached" log branch.
func ReachesLimit(used, limit int) bool {
	return limit > 0 && used == limit
}
