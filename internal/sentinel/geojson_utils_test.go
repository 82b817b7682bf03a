package sentinel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegionValidation(t *testing.T) {
	_, err := NewRegion(91, 0, 100)
	assert.Error(t, err)
	_, err = NewRegion(0, 0, 0)
	assert.Error(t, err)

	region, err := NewRegion(34.092615, -118.532875, 1000)
	require.NoError(t, err)
	assert.Equal(t, 34.092615, region.Latitude)
}

func TestRegionContains(t *testing.T) {
	region, err := NewRegion(34.092615, -118.532875, 1000)
	require.NoError(t, err)

	assert.True(t, region.Contains(-118.532875, 34.092615))
	// ~500 m north
	assert.True(t, region.Contains(-118.532875, 34.097115))
	// ~2 km north
	assert.False(t, region.Contains(-118.532875, 34.110615))
}

func TestRegionPolygonIsClosed(t *testing.T) {
	region, err := NewRegion(34.092615, -118.532875, 1000)
	require.NoError(t, err)

	ring := region.Polygon()[0]
	require.Len(t, ring, bufferVertices+1)
	assert.Equal(t, ring[0], ring[len(ring)-1])

	bound := region.Bound()
	// 2 km diameter is roughly 0.018 degrees of latitude
	assert.InDelta(t, 0.018, bound.Max.Y()-bound.Min.Y(), 0.001)
}

func TestRegionGeoJSON(t *testing.T) {
	region, err := NewRegion(34.092615, -118.532875, 1000)
	require.NoError(t, err)

	geometry, err := region.GeoJSON()
	require.NoError(t, err)
	assert.Equal(t, "Polygon", geometry["type"])
	assert.NotEmpty(t, geometry["coordinates"])
}

func TestOutputSize(t *testing.T) {
	region, err := NewRegion(34.092615, -118.532875, 1000)
	require.NoError(t, err)

	width, height := outputSize(region, 10)
	assert.InDelta(t, 200, width, 10)
	assert.InDelta(t, 200, height, 10)

	assert.Equal(t, 1, calculatePixels(0, 10))
	assert.Equal(t, maxOutputPixels, calculatePixels(10, 10))
}
