package dataset

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/forest-guardian/fire-index-timeseries/internal/sentinel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	start = time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
)

type fakeSource struct {
	mu       sync.Mutex
	dates    []time.Time
	bands    map[string]float64
	size     int
	dropBand map[string]string
	searches int
	fetches  int
	queries  []sentinel.Query
}

func (f *fakeSource) Search(_ context.Context, query sentinel.Query) ([]sentinel.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	f.queries = append(f.queries, query)
	scenes := make([]sentinel.Scene, 0, len(f.dates))
	for _, date := range f.dates {
		scenes = append(scenes, sentinel.Scene{Collection: query.Collection, Date: date, MaxCloudCover: query.MaxCloudCover})
	}
	return scenes, nil
}

func (f *fakeSource) Fetch(_ context.Context, scene sentinel.Scene, _ sentinel.Region, _ float64) (*sentinel.BandImage, error) {
	f.mu.Lock()
	f.fetches++
	drop := f.dropBand[scene.Date.Format(DateLayout)]
	f.mu.Unlock()

	size := f.size
	if size == 0 {
		size = 4
	}
	img := sentinel.NewBandImage(scene.Date, size, size)
	for _, name := range sentinel.RawBands {
		if name == drop {
			continue
		}
		value := f.bands[name]
		if name == sentinel.BandDataMask {
			value = 1
		}
		data := make([]float64, size*size)
		for i := range data {
			data[i] = value
		}
		var err error
		img, err = img.WithBand(name, data)
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}

func testRegion(t *testing.T) sentinel.Region {
	t.Helper()
	region, err := sentinel.NewRegion(34.092615, -118.532875, 1000)
	require.NoError(t, err)
	return region
}

func days(values ...string) []time.Time {
	dates := make([]time.Time, len(values))
	for i, value := range values {
		dates[i], _ = time.Parse(DateLayout, value)
	}
	return dates
}

func vegetation() map[string]float64 {
	return map[string]float64{
		sentinel.BandBlue:  0.05,
		sentinel.BandGreen: 0.1,
		sentinel.BandRed:   0.1,
		sentinel.BandNIR:   0.5,
		sentinel.BandSWIR2: 0.2,
	}
}

func TestBuildSeriesEmptyResult(t *testing.T) {
	source := &fakeSource{}

	series, err := BuildSeries(context.Background(), source, DefaultParams(start, end, testRegion(t)))
	require.NoError(t, err)

	assert.Empty(t, series.Dates)
	for _, band := range sentinel.IndexBands {
		assert.NotNil(t, series.Band(band))
		assert.Empty(t, series.Band(band))
	}
	assert.Equal(t, 0, source.fetches)
}

func TestBuildSeriesAligned(t *testing.T) {
	source := &fakeSource{
		dates: days("2024-11-03", "2024-11-08", "2025-01-12"),
		bands: vegetation(),
	}

	series, err := BuildSeries(context.Background(), source, DefaultParams(start, end, testRegion(t)))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-11-03", "2024-11-08", "2025-01-12"}, series.Dates)
	assert.Equal(t, sentinel.IndexBands, series.Bands)
	for _, band := range sentinel.IndexBands {
		assert.Len(t, series.Band(band), series.Len())
	}
	require.NoError(t, series.Validate())

	ndvi := series.Band(sentinel.IndexNDVI)
	require.NotNil(t, ndvi[0])
	assert.InDelta(t, 0.6667, *ndvi[0], 1e-4)

	nbr := series.Band(sentinel.IndexNBR)
	require.NotNil(t, nbr[0])
	assert.InDelta(t, (0.2-0.5)/(0.2+0.5), *nbr[0], 1e-9)

	ndwi := series.Band(sentinel.IndexNDWI)
	require.NotNil(t, ndwi[0])
	assert.InDelta(t, (0.5-0.1)/(0.5+0.1), *ndwi[0], 1e-9)

	evi := series.Band(sentinel.IndexEVI)
	for i := range series.Dates {
		require.NotNil(t, evi[i], "EVI on %s", series.Dates[i])
		assert.InDelta(t, 2.5*((0.5-0.1)/(0.5+6*0.1-7.5*0.05+1)), *evi[i], 1e-6)
	}

	require.Len(t, source.queries, 1)
	assert.Equal(t, 40.0, source.queries[0].MaxCloudCover)
	assert.Equal(t, sentinel.DefaultCollection, source.queries[0].Collection)
}

func TestNDVIIndependentOfRegionSize(t *testing.T) {
	for _, size := range []int{1, 3, 17} {
		source := &fakeSource{
			dates: days("2025-01-12"),
			bands: map[string]float64{sentinel.BandNIR: 0.5, sentinel.BandRed: 0.1},
			size:  size,
		}

		series, err := BuildSeries(context.Background(), source, DefaultParams(start, end, testRegion(t)))
		require.NoError(t, err)

		ndvi := series.Band(sentinel.IndexNDVI)
		require.Len(t, ndvi, 1)
		require.NotNil(t, ndvi[0])
		assert.InDelta(t, 0.6667, *ndvi[0], 1e-4, "size %d", size)
	}
}

func TestBuildSeriesIdempotent(t *testing.T) {
	source := &fakeSource{
		dates: days("2024-11-03", "2024-12-18", "2025-02-01", "2025-03-10"),
		bands: vegetation(),
	}
	params := DefaultParams(start, end, testRegion(t))

	first, err := BuildSeries(context.Background(), source, params)
	require.NoError(t, err)
	second, err := BuildSeries(context.Background(), source, params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMissingValueIsNil(t *testing.T) {
	// Zero reflectance everywhere: every normalized difference has a zero denominator.
	source := &fakeSource{
		dates: days("2025-01-12"),
		bands: map[string]float64{},
	}

	series, err := BuildSeries(context.Background(), source, DefaultParams(start, end, testRegion(t)))
	require.NoError(t, err)

	require.Len(t, series.Band(sentinel.IndexNDVI), 1)
	assert.Nil(t, series.Band(sentinel.IndexNDVI)[0])
	assert.Nil(t, series.Band(sentinel.IndexNBR)[0])
	assert.Nil(t, series.Band(sentinel.IndexNDWI)[0])
	require.NotNil(t, series.Band(sentinel.IndexEVI)[0])
	assert.InDelta(t, 0, *series.Band(sentinel.IndexEVI)[0], 1e-12)
}

func TestSkipMissingBand(t *testing.T) {
	source := &fakeSource{
		dates:    days("2024-11-03", "2024-11-08", "2025-01-12"),
		bands:    vegetation(),
		dropBand: map[string]string{"2024-11-08": sentinel.BandSWIR2},
	}
	region := testRegion(t)

	materialized, err := NewCollection(source, sentinel.DefaultCollection).
		FilterDate(start, end).
		FilterBounds(region).
		Map(sentinel.IndexTransforms...).
		Select(sentinel.IndexBands...).
		Concurrency(2).
		Materialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-11-03", "2025-01-12"}, materialized.Dates())
	skipped := materialized.Skipped()
	require.Len(t, skipped, 1)
	var missing *sentinel.MissingBandError
	require.ErrorAs(t, skipped[0].Err, &missing)
	assert.Equal(t, sentinel.BandSWIR2, missing.Band)
}

func TestAbortOnMissingBand(t *testing.T) {
	source := &fakeSource{
		dates:    days("2024-11-03", "2024-11-08"),
		bands:    vegetation(),
		dropBand: map[string]string{"2024-11-08": sentinel.BandNIR},
	}
	params := DefaultParams(start, end, testRegion(t))
	params.MissingBandPolicy = AbortOnMissingBand

	_, err := BuildSeries(context.Background(), source, params)
	var missing *sentinel.MissingBandError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, sentinel.BandNIR, missing.Band)
}

func TestCollectionIsLazy(t *testing.T) {
	source := &fakeSource{dates: days("2025-01-12"), bands: vegetation()}

	base := NewCollection(source, sentinel.DefaultCollection).
		FilterDate(start, end).
		FilterBounds(testRegion(t))
	withIndexes := base.Map(sentinel.AddNDVI).Select(sentinel.IndexNDVI)

	assert.Equal(t, 0, source.searches)
	assert.Empty(t, base.transforms)
	assert.Len(t, withIndexes.transforms, 1)

	_, err := withIndexes.Materialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, source.searches)
	assert.Equal(t, 1, source.fetches)
}

func TestCollectionValidation(t *testing.T) {
	source := &fakeSource{}

	_, err := NewCollection(source, sentinel.DefaultCollection).
		FilterDate(start, end).
		Select(sentinel.IndexNDVI).
		Materialize(context.Background())
	assert.Error(t, err)

	_, err = NewCollection(source, sentinel.DefaultCollection).
		FilterDate(end, start).
		FilterBounds(testRegion(t)).
		Select(sentinel.IndexNDVI).
		Materialize(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, source.searches)
}

type failingSource struct{ fakeSource }

func (f *failingSource) Fetch(context.Context, sentinel.Scene, sentinel.Region, float64) (*sentinel.BandImage, error) {
	return nil, &sentinel.RemoteServiceError{Op: "process", StatusCode: 500, Err: errors.New("boom")}
}

func TestFetchErrorIsFatal(t *testing.T) {
	source := &failingSource{fakeSource{dates: days("2024-11-03", "2024-11-08")}}

	_, err := BuildSeries(context.Background(), source, DefaultParams(start, end, testRegion(t)))
	var remote *sentinel.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, 500, remote.StatusCode)
}

func TestSeriesValidate(t *testing.T) {
	value := 0.5
	series := Series{
		Dates:  []string{"2024-11-03", "2024-11-03", "2024-11-08"},
		Bands:  []string{sentinel.IndexNDVI},
		Values: map[string][]*float64{sentinel.IndexNDVI: {&value, nil, &value}},
	}
	require.NoError(t, series.Validate())

	series.Values[sentinel.IndexNDVI] = []*float64{&value}
	var misaligned *MisalignedSeriesError
	require.ErrorAs(t, series.Validate(), &misaligned)
	assert.Equal(t, 1, misaligned.Length)
	assert.Equal(t, 3, misaligned.Dates)

	series.Values[sentinel.IndexNDVI] = []*float64{&value, nil, &value}
	series.Dates = []string{"2024-11-08", "2024-11-03", "2024-12-01"}
	var unordered *UnorderedSeriesError
	require.ErrorAs(t, series.Validate(), &unordered)
	assert.Equal(t, 1, unordered.Index)
}
