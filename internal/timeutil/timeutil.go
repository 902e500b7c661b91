// ABOUTME: Time bucket helpers for day and time section grouping
// ABOUTME: Calendar-day and minute-resolution comparisons in local time

package timeutil

import "time"

// DayOf returns midnight (00:00:00) of t's calendar day in t's location.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// BucketOf returns t truncated to the minute, the granularity at which
// time sections open and close.
func BucketOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}

// SameBucket reports whether a and b fall in the same minute.
func SameBucket(a, b time.Time) bool {
	return BucketOf(a).Equal(BucketOf(b))
}
