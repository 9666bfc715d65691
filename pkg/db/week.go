package db

import "time"

// WeekID encodes the ISO week of t as year*100+week, so week 1 of a new year
// never collides with week 1 of the previous one.
func WeekID(t time.Time) int {
	year, week := t.UTC().ISOWeek()
	return year*100 + week
}
