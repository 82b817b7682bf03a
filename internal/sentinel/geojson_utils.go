package sentinel

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

const bufferVertices = 64

// Region is a circular area of interest around a WGS84 point.
type Region struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

func NewRegion(latitude, longitude, radiusMeters float64) (Region, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return Region{}, fmt.Errorf("invalid coordinates %f, %f", latitude, longitude)
	}
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) {
		return Region{}, fmt.Errorf("invalid buffer radius %f", radiusMeters)
	}
	return Region{Latitude: latitude, Longitude: longitude, RadiusMeters: radiusMeters}, nil
}

func (r Region) Center() orb.Point {
	return orb.Point{r.Longitude, r.Latitude}
}

// Polygon approximates the buffered point with a closed geodesic ring.
func (r Region) Polygon() orb.Polygon {
	ring := make(orb.Ring, 0, bufferVertices+1)
	for i := 0; i < bufferVertices; i++ {
		bearing := 360.0 * float64(i) / bufferVertices
		ring = append(ring, geo.PointAtBearingAndDistance(r.Center(), bearing, r.RadiusMeters))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

func (r Region) Bound() orb.Bound {
	return r.Polygon().Bound()
}

func (r Region) Contains(longitude, latitude float64) bool {
	return planar.PolygonContains(r.Polygon(), orb.Point{longitude, latitude})
}

// GeoJSON returns the buffer polygon as a GeoJSON geometry object.
func (r Region) GeoJSON() (map[string]interface{}, error) {
	raw, err := geojson.NewGeometry(r.Polygon()).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export region to GeoJSON: %w", err)
	}
	var geojsonMap map[string]interface{}
	if err := json.Unmarshal(raw, &geojsonMap); err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}
	return geojsonMap, nil
}

func (r Region) String() string {
	return fmt.Sprintf("(%f, %f) +%.0fm", r.Latitude, r.Longitude, r.RadiusMeters)
}
