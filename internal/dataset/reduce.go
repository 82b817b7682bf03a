package dataset

import (
	"github.com/forest-guardian/fire-index-timeseries/internal/sentinel"
)

// ReduceMean averages each band over the pixels flagged by the data mask, skipping
// NoData. Bands without a single valid pixel map to nil.
func ReduceMean(img *sentinel.BandImage, bands ...string) (map[string]*float64, error) {
	var mask []float64
	if img.HasBand(sentinel.BandDataMask) {
		mask, _ = img.Band(sentinel.BandDataMask)
	}

	date := img.Date.Format(DateLayout)
	stats := make(map[string]*float64, len(bands))
	for _, band := range bands {
		data, err := img.Band(band)
		if err != nil {
			return nil, err
		}

		mean, err := meanBand(band, date, data, mask)
		if err != nil {
			log.WithError(err).Debug("recording missing value")
			stats[band] = nil
			continue
		}
		stats[band] = &mean
	}
	return stats, nil
}

func meanBand(band, date string, data, mask []float64) (float64, error) {
	var sum float64
	count := 0
	for i, value := range data {
		if mask != nil && mask[i] != 1 {
			continue
		}
		if sentinel.IsNoData(value) {
			continue
		}
		sum += value
		count++
	}
	if count == 0 {
		return 0, &MissingValueError{Band: band, Date: date}
	}
	return sum / float64(count), nil
}
