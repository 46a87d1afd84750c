package utils

import "time"

func IsWithInRange(checked, from, to time.Time) bool {
	return (checked.Equal(from) || checked.After(from)) && (checked.Equal(to) || checked.Before(to))
}

// IsOnOrBeforeDate compares calendar days only, in the location of limit.
func IsOnOrBeforeDate(checked, limit time.Time) bool {
	cy, cm, cd := checked.In(limit.Location()).Date()
	ly, lm, ld := limit.Date()

	checkedDay := time.Date(cy, cm, cd, 0, 0, 0, 0, time.UTC)
	limitDay := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)

	return !checkedDay.After(limitDay)
}
