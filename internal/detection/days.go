package detection

import "time"

// Day is a civil date counted in days since 1970-01-01. All gap arithmetic is
// done on Days so that time-of-day and zone offsets never shift a boundary.
type Day int

const secondsPerDay = 24 * 60 * 60

// DayOf reduces t to its calendar date in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// Time returns midnight UTC of d.
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// Since returns the number of days from o to d.
func (d Day) Since(o Day) int { return int(d - o) }

func (d Day) String() string { return d.Time().Format(time.DateOnly) }

// monthIndex numbers calendar months so consecutive months differ by one.
func monthIndex(d Day) int {
	t := d.Time()
	return t.Year()*12 + int(t.Month()) - 1
}

func monthLabel(idx int) string {
	return time.Date(idx/12, time.Month(idx%12+1), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
