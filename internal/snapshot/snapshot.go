// Package snapshot serves a static image collection from a CSV pixel table. Each
// row is one pixel of one acquisition; the columns are
// date,latitude,longitude,cloud_cover,b02,b03,b04,b08,b12.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/forest-guardian/fire-index-timeseries/internal/sentinel"
	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const dateLayout = "2006-01-02"

// PixelRow is one CSV record. An empty reflectance cell is NoData; a column empty
// for every pixel of a date is a missing band.
type PixelRow struct {
	Date       string   `csv:"date"`
	Latitude   float64  `csv:"latitude"`
	Longitude  float64  `csv:"longitude"`
	CloudCover float64  `csv:"cloud_cover"`
	B02        *float64 `csv:"b02,omitempty"`
	B03        *float64 `csv:"b03,omitempty"`
	B04        *float64 `csv:"b04,omitempty"`
	B08        *float64 `csv:"b08,omitempty"`
	B12        *float64 `csv:"b12,omitempty"`
}

func (r *PixelRow) band(name string) *float64 {
	switch name {
	case sentinel.BandBlue:
		return r.B02
	case sentinel.BandGreen:
		return r.B03
	case sentinel.BandRed:
		return r.B04
	case sentinel.BandNIR:
		return r.B08
	case sentinel.BandSWIR2:
		return r.B12
	}
	return nil
}

type acquisition struct {
	date       time.Time
	cloudCover float64
	pixels     []*PixelRow
}

// Source is an in-memory snapshot. It never changes after construction, so the
// same query always yields the same scenes and images.
type Source struct {
	acquisitions []*acquisition
	byDate       map[string]*acquisition
}

// Open reads a snapshot CSV file.
func Open(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var rows []*PixelRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return New(rows)
}

// Save writes rows as a snapshot CSV file.
func Save(path string, rows []*PixelRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}

func New(rows []*PixelRow) (*Source, error) {
	s := &Source{byDate: make(map[string]*acquisition)}
	for i, row := range rows {
		date, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date %q: %w", i+1, row.Date, err)
		}
		key := date.Format(dateLayout)
		acq, ok := s.byDate[key]
		if !ok {
			acq = &acquisition{date: date}
			s.byDate[key] = acq
			s.acquisitions = append(s.acquisitions, acq)
		}
		// The scene cloud cover is the cloudiest value reported for the day.
		if row.CloudCover > acq.cloudCover {
			acq.cloudCover = row.CloudCover
		}
		acq.pixels = append(acq.pixels, row)
	}
	sort.SliceStable(s.acquisitions, func(i, j int) bool {
		return s.acquisitions[i].date.Before(s.acquisitions[j].date)
	})
	return s, nil
}

// Search returns, in ascending date order, the acquisitions in [Start, End) with
// cloud cover below the threshold and at least one pixel inside the region.
func (s *Source) Search(ctx context.Context, query sentinel.Query) ([]sentinel.Scene, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	polygon := query.Region.Polygon()

	var scenes []sentinel.Scene
	for _, acq := range s.acquisitions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if acq.date.Before(query.Start) || !acq.date.Before(query.End) {
			continue
		}
		if acq.cloudCover >= query.MaxCloudCover {
			continue
		}
		if !intersects(polygon, acq.pixels) {
			continue
		}
		scenes = append(scenes, sentinel.Scene{
			Collection:    query.Collection,
			Date:          acq.date,
			MaxCloudCover: query.MaxCloudCover,
		})
	}
	return scenes, nil
}

// Fetch lays the pixels of the acquisition out as a single row image. Pixels
// outside the region are masked out. The resolution is fixed by the snapshot.
func (s *Source) Fetch(ctx context.Context, scene sentinel.Scene, region sentinel.Region, _ float64) (*sentinel.BandImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acq, ok := s.byDate[scene.Date.Format(dateLayout)]
	if !ok {
		return nil, fmt.Errorf("snapshot has no acquisition on %s", scene.Date.Format(dateLayout))
	}

	polygon := region.Polygon()
	img := sentinel.NewBandImage(acq.date, len(acq.pixels), 1)
	for _, name := range sentinel.RawBands {
		data, present := s.bandData(name, polygon, acq.pixels)
		if !present {
			continue
		}
		var err error
		img, err = img.WithBand(name, data)
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}

func (s *Source) bandData(name string, polygon orb.Polygon, pixels []*PixelRow) ([]float64, bool) {
	data := make([]float64, len(pixels))
	if name == sentinel.BandDataMask {
		for i, pixel := range pixels {
			if planar.PolygonContains(polygon, orb.Point{pixel.Longitude, pixel.Latitude}) {
				data[i] = 1
			}
		}
		return data, true
	}

	present := false
	for i, pixel := range pixels {
		value := pixel.band(name)
		if value == nil {
			data[i] = sentinel.NoData
			continue
		}
		data[i] = *value
		present = true
	}
	return data, present
}

func intersects(polygon orb.Polygon, pixels []*PixelRow) bool {
	for _, pixel := range pixels {
		if planar.PolygonContains(polygon, orb.Point{pixel.Longitude, pixel.Latitude}) {
			return true
		}
	}
	return false
}
