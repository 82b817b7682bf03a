package utils

import (
	"sort"
	"time"
)

func SortDates(dates []time.Time, asc bool) []time.Time {
	sort.SliceStable(dates, func(i, j int) bool {
		if asc {
			return dates[i].Before(dates[j])
		}
		return dates[i].After(dates[j])
	})
	return dates
}

// FirstUnorderedDate returns the index of the first date earlier than its
// predecessor, or -1 when dates never decrease.
func FirstUnorderedDate(dates []time.Time) int {
	for i := 1; i < len(dates); i++ {
		if dates[i].Before(dates[i-1]) {
			return i
		}
	}
	return -1
}
