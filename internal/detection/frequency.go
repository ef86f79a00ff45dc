package detection

import "github.com/jask/wastewatch/internal/database/repository"

type cadenceBucket struct {
	freq     repository.Frequency
	min, max int
}

// Gap windows in days, inclusive. Monthly spans 28-31 days with +/-5 slack.
var cadenceBuckets = []cadenceBucket{
	{repository.FrequencyWeekly, 5, 9},
	{repository.FrequencyMonthly, 23, 36},
	{repository.FrequencyYearly, 355, 375},
}

// Classify infers a billing cadence from charge days. Charges on the same day
// collapse to one. A cadence must fit a strict majority of gaps; otherwise the
// result is nil.
func Classify(days []Day) *repository.Frequency {
	gaps := dayGaps(days)
	if len(gaps) == 0 {
		return nil
	}
	for _, b := range cadenceBuckets {
		hits := 0
		for _, g := range gaps {
			if g >= b.min && g <= b.max {
				hits++
			}
		}
		if hits*2 > len(gaps) {
			f := b.freq
			return &f
		}
	}
	return nil
}

// dayGaps expects days in ascending order.
func dayGaps(days []Day) []int {
	var gaps []int
	for i := 1; i < len(days); i++ {
		if g := days[i].Since(days[i-1]); g > 0 {
			gaps = append(gaps, g)
		}
	}
	return gaps
}
