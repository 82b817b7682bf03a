package sentinel

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const maxOutputPixels = 2500

const evalscript = `
    //VERSION=3
    function setup() {
      return {
        input: ["B02", "B03", "B04", "B08", "B12", "dataMask"],
        output: {
          id: "default",
          bands: 6,
          sampleType: SampleType.FLOAT32,
        },
      }
    }

    function evaluatePixel(sample) {
      return [sample.B02, sample.B03, sample.B04, sample.B08, sample.B12, sample.dataMask];
    }
  `

func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (111_000.0 / resolution)
	if pixels < 1 {
		return 1
	}
	if pixels > maxOutputPixels {
		return maxOutputPixels
	}
	return int(math.Ceil(pixels))
}

// outputSize returns the raster size covering the region bounds at resolution meters.
func outputSize(region Region, resolution float64) (int, int) {
	bound := region.Bound()
	lonScale := math.Cos(region.Latitude * math.Pi / 180)
	width := calculatePixels((bound.Max.X()-bound.Min.X())*lonScale, resolution)
	height := calculatePixels(bound.Max.Y()-bound.Min.Y(), resolution)
	return width, height
}

// cloudCoverEpsilon turns the inclusive maxCloudCoverage of the process API into
// the strict bound used by the catalog filter.
const cloudCoverEpsilon = 1e-6

func strictCloudCoverage(threshold float64) float64 {
	return math.Max(threshold-cloudCoverEpsilon, 0)
}

func processPayload(scene Scene, region Region, resolution float64) (map[string]interface{}, error) {
	geometry, err := region.GeoJSON()
	if err != nil {
		return nil, err
	}
	width, height := outputSize(region, resolution)

	from := scene.Date.UTC()
	to := from.Add(24*time.Hour - time.Second)

	return map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"geometry": geometry,
			},
			"data": []map[string]interface{}{
				{
					"dataFilter": map[string]interface{}{
						"timeRange": map[string]string{
							"from": from.Format(time.RFC3339),
							"to":   to.Format(time.RFC3339),
						},
						"maxCloudCoverage": strictCloudCoverage(scene.MaxCloudCover),
						"mosaickingOrder":  "leastCC",
					},
					"type": scene.Collection,
				},
			},
		},
		"output": map[string]interface{}{
			"width":  width,
			"height": height,
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
		"evalscript": evalscript,
	}, nil
}

// Fetch downloads the raw bands of one acquisition clipped to region and sampled at
// resolution meters. Pixels outside the region carry dataMask 0.
func (c *Client) Fetch(ctx context.Context, scene Scene, region Region, resolution float64) (*BandImage, error) {
	payload, err := processPayload(scene, region, resolution)
	if err != nil {
		return nil, err
	}

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := req.SetHeader("Accept", "image/tiff").SetBody(payload).Post(processPath)
	op := fmt.Sprintf("process request for %s", scene.Date.Format("2006-01-02"))
	if err := checkResponse(op, resp, err); err != nil {
		return nil, err
	}

	img, err := decodeBandImage(resp.Body(), scene.Date)
	if err != nil {
		return nil, &RemoteServiceError{Op: op, StatusCode: resp.StatusCode(), Err: err}
	}
	c.log.WithFields(logrus.Fields{
		"date":   scene.Date.Format("2006-01-02"),
		"width":  img.Width,
		"height": img.Height,
	}).Debug("image fetched")
	return img, nil
}
