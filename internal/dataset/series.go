package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forest-guardian/fire-index-timeseries/internal/sentinel"
	"github.com/forest-guardian/fire-index-timeseries/internal/utils"
)

// Observation is the reduced record of one acquisition. A nil value is missing.
type Observation struct {
	Date   string
	Values map[string]*float64
}

func (o Observation) Value(band string) *float64 {
	return o.Values[band]
}

// Series holds one date sequence and an index-aligned value sequence per band.
type Series struct {
	Dates  []string
	Bands  []string
	Values map[string][]*float64
}

func (s Series) Band(name string) []*float64 {
	return s.Values[name]
}

func (s Series) Len() int {
	return len(s.Dates)
}

// Validate checks that every band is aligned with the dates and that dates never
// decrease. Equal consecutive dates are accepted.
func (s Series) Validate() error {
	for _, band := range s.Bands {
		if got := len(s.Values[band]); got != len(s.Dates) {
			return &MisalignedSeriesError{Band: band, Length: got, Dates: len(s.Dates)}
		}
	}

	dates := make([]time.Time, len(s.Dates))
	for i, value := range s.Dates {
		date, err := time.Parse(DateLayout, value)
		if err != nil {
			return fmt.Errorf("invalid series date %q: %w", value, err)
		}
		dates[i] = date
	}
	if i := utils.FirstUnorderedDate(dates); i >= 0 {
		return &UnorderedSeriesError{Index: i, Previous: s.Dates[i-1], Date: s.Dates[i]}
	}
	return nil
}

// SkippedScene is an acquisition dropped under SkipMissingBands.
type SkippedScene struct {
	Scene sentinel.Scene
	Err   error
}

// Materialized is the evaluated collection.
type Materialized struct {
	bands        []string
	observations []Observation

	mu      sync.Mutex
	skipped []SkippedScene
}

func (m *Materialized) addSkipped(scene sentinel.Scene, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped = append(m.skipped, SkippedScene{Scene: scene, Err: err})
}

func (m *Materialized) Observations() []Observation {
	return append([]Observation{}, m.observations...)
}

func (m *Materialized) Skipped() []SkippedScene {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SkippedScene{}, m.skipped...)
}

func (m *Materialized) Dates() []string {
	dates := make([]string, len(m.observations))
	for i, observation := range m.observations {
		dates[i] = observation.Date
	}
	return dates
}

// Values collects one band across all observations, nil where missing.
func (m *Materialized) Values(band string) []*float64 {
	values := make([]*float64, len(m.observations))
	for i, observation := range m.observations {
		values[i] = observation.Value(band)
	}
	return values
}

// Series gathers every selected band into aligned sequences.
func (m *Materialized) Series() Series {
	series := Series{
		Dates:  m.Dates(),
		Bands:  append([]string{}, m.bands...),
		Values: make(map[string][]*float64, len(m.bands)),
	}
	for _, band := range m.bands {
		series.Values[band] = m.Values(band)
	}
	return series
}

// Params describes one time series request over a region.
type Params struct {
	Collection        string
	Start             time.Time
	End               time.Time
	Region            sentinel.Region
	CloudThreshold    float64
	Resolution        float64
	Concurrency       int
	MissingBandPolicy MissingBandPolicy
	ShowProgress      bool
}

func DefaultParams(start, end time.Time, region sentinel.Region) Params {
	return Params{
		Collection:     sentinel.DefaultCollection,
		Start:          start,
		End:            end,
		Region:         region,
		CloudThreshold: 40,
		Resolution:     10,
		Concurrency:    4,
	}
}

// BuildSeries computes the NDVI, NBR, NDWI and EVI regional means of every
// acquisition matching params.
func BuildSeries(ctx context.Context, source Source, params Params) (Series, error) {
	collection := NewCollection(source, params.Collection).
		FilterDate(params.Start, params.End).
		FilterBounds(params.Region).
		FilterCloudCover(params.CloudThreshold).
		Map(sentinel.IndexTransforms...).
		Select(sentinel.IndexBands...).
		Scale(params.Resolution).
		Concurrency(params.Concurrency).
		OnMissingBand(params.MissingBandPolicy).
		ShowProgress(params.ShowProgress)

	materialized, err := collection.Materialize(ctx)
	if err != nil {
		return Series{}, err
	}

	series := materialized.Series()
	if err := series.Validate(); err != nil {
		return Series{}, err
	}
	return series, nil
}
