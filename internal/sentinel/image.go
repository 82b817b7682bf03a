package sentinel

import (
	"fmt"
	"math"
	"time"
)

// Sentinel-2 L2A band identifiers requested from the process API.
const (
	BandBlue     = "B02"
	BandGreen    = "B03"
	BandRed      = "B04"
	BandNIR      = "B08"
	BandSWIR2    = "B12"
	BandDataMask = "dataMask"
)

// Derived index band names.
const (
	IndexNDVI = "NDVI"
	IndexNBR  = "NBR"
	IndexNDWI = "NDWI"
	IndexEVI  = "EVI"
)

// RawBands lists the bands every fetched image carries, in evalscript output order.
var RawBands = []string{BandBlue, BandGreen, BandRed, BandNIR, BandSWIR2, BandDataMask}

// IndexBands lists the derived index bands in chart order.
var IndexBands = []string{IndexNDVI, IndexNBR, IndexNDWI, IndexEVI}

// NoData marks a pixel without a value.
var NoData = math.NaN()

func IsNoData(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// BandImage is a single acquisition with named row-major rasters of equal size.
// Images are never mutated once built; WithBand returns a new image.
type BandImage struct {
	Date   time.Time
	Width  int
	Height int

	bands map[string][]float64
	order []string
}

func NewBandImage(date time.Time, width, height int) *BandImage {
	return &BandImage{
		Date:   date,
		Width:  width,
		Height: height,
		bands:  make(map[string][]float64),
	}
}

// WithBand returns a copy of the image with the band added or replaced.
// The pixel slice is owned by the returned image.
func (img *BandImage) WithBand(name string, data []float64) (*BandImage, error) {
	if len(data) != img.Width*img.Height {
		return nil, fmt.Errorf("band %s has %d pixels, image is %dx%d", name, len(data), img.Width, img.Height)
	}

	out := &BandImage{
		Date:   img.Date,
		Width:  img.Width,
		Height: img.Height,
		bands:  make(map[string][]float64, len(img.bands)+1),
		order:  make([]string, 0, len(img.order)+1),
	}
	for _, key := range img.order {
		out.bands[key] = img.bands[key]
		if key != name {
			out.order = append(out.order, key)
		}
	}
	out.bands[name] = data
	out.order = append(out.order, name)
	return out, nil
}

// Band returns the raster of the named band. The slice must not be modified.
func (img *BandImage) Band(name string) ([]float64, error) {
	data, ok := img.bands[name]
	if !ok {
		return nil, &MissingBandError{Band: name, Date: img.Date}
	}
	return data, nil
}

func (img *BandImage) HasBand(name string) bool {
	_, ok := img.bands[name]
	return ok
}

// BandNames returns band names in insertion order.
func (img *BandImage) BandNames() []string {
	names := make([]string, len(img.order))
	copy(names, img.order)
	return names
}

// Select returns an image carrying only the named bands plus the data mask, if present.
func (img *BandImage) Select(names ...string) (*BandImage, error) {
	out := NewBandImage(img.Date, img.Width, img.Height)
	keep := append([]string{}, names...)
	if img.HasBand(BandDataMask) {
		keep = append(keep, BandDataMask)
	}
	for _, name := range keep {
		if out.HasBand(name) {
			continue
		}
		data, err := img.Band(name)
		if err != nil {
			return nil, err
		}
		out.bands[name] = data
		out.order = append(out.order, name)
	}
	return out, nil
}
