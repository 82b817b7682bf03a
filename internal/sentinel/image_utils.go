package sentinel

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/fire-index-timeseries/internal/utils"
)

// decodeBandImage reads a GeoTIFF whose bands follow RawBands order. GDAL is not
// safe for concurrent use here, so all dataset access is serialized.
func decodeBandImage(tiff []byte, date time.Time) (*BandImage, error) {
	tmp, err := os.CreateTemp("", "sentinel-*.tif")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp TIFF file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(tiff); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp TIFF file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp TIFF file: %w", err)
	}

	var img *BandImage
	utils.ExecuteWithMutex(func() {
		img, err = readBandImage(tmp.Name(), date)
	})
	return img, err
}

func readBandImage(path string, date time.Time) (*BandImage, error) {
	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return errors.New(msg)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open TIFF file: %w", err)
	}
	defer ds.Close()

	structure := ds.Structure()
	if structure.NBands < len(RawBands) {
		return nil, fmt.Errorf("TIFF has %d bands, expected %d", structure.NBands, len(RawBands))
	}

	width, height := structure.SizeX, structure.SizeY
	img := NewBandImage(date, width, height)
	for i, band := range ds.Bands()[:len(RawBands)] {
		data := make([]float64, width*height)
		if err := band.Read(0, 0, data, width, height); err != nil {
			return nil, fmt.Errorf("failed to read band %s: %w", RawBands[i], err)
		}
		img, err = img.WithBand(RawBands[i], data)
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}
