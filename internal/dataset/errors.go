package dataset

import (
	"errors"
	"fmt"
)

// ErrEmptyResult reports a query that matched no acquisitions. It is logged, not
// returned: the run continues with an empty series.
var ErrEmptyResult = errors.New("no images matched the collection filters")

// MissingValueError reports an index band without a single valid pixel in the region.
type MissingValueError struct {
	Band string
	Date string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("no valid %s pixels on %s", e.Band, e.Date)
}

// MisalignedSeriesError reports a band sequence whose length differs from the dates.
type MisalignedSeriesError struct {
	Band   string
	Length int
	Dates  int
}

func (e *MisalignedSeriesError) Error() string {
	return fmt.Sprintf("series %s has %d values for %d dates", e.Band, e.Length, e.Dates)
}

// UnorderedSeriesError reports a date earlier than the one before it.
type UnorderedSeriesError struct {
	Index    int
	Previous string
	Date     string
}

func (e *UnorderedSeriesError) Error() string {
	return fmt.Sprintf("series date %s at position %d precedes %s", e.Date, e.Index, e.Previous)
}
