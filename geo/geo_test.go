package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.fiblab.net/sim/streetcover/geo"
)

func TestHaversine(t *testing.T) {
	// 赤道上1度经度约111.19km
	d := geo.Haversine(geo.LatLng{Lat: 0, Lon: 0}, geo.LatLng{Lat: 0, Lon: 1})
	assert.InDelta(t, 111.195, d, 0.01)

	// 沿经线0.008983度约1km
	d = geo.Haversine(geo.LatLng{Lat: 0, Lon: 0}, geo.LatLng{Lat: 0.008983, Lon: 0})
	assert.InDelta(t, 0.999, d, 0.002)

	assert.Equal(t, 0.0, geo.Haversine(geo.LatLng{Lat: 10, Lon: 20}, geo.LatLng{Lat: 10, Lon: 20}))
}

func TestPointToSegmentMeters(t *testing.T) {
	a := geo.LatLng{Lat: 0, Lon: 0}
	b := geo.LatLng{Lat: 0, Lon: 0.01}
	// 线段中点正上方0.0001度纬度，约11.13m
	p := geo.LatLng{Lat: 0.0001, Lon: 0.005}
	assert.InDelta(t, 11.13, geo.PointToSegmentMeters(p, a, b), 0.1)

	// 投影在端点外，距离按端点截断
	p = geo.LatLng{Lat: 0, Lon: 0.02}
	d := geo.PointToSegmentMeters(p, a, b)
	assert.InDelta(t, geo.Haversine(p, b)*1000, d, 5)
}

func TestPointToPathMeters(t *testing.T) {
	path := []geo.LatLng{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.01},
		{Lat: 0.01, Lon: 0.01},
	}
	p := geo.LatLng{Lat: 0.005, Lon: 0.0101}
	assert.InDelta(t, 11.13, geo.PointToPathMeters(p, path), 0.2)

	// 点数不足返回正无穷
	assert.True(t, math.IsInf(geo.PointToPathMeters(p, path[:1]), 1))
}

func TestPolylineDistanceKm(t *testing.T) {
	path := []geo.LatLng{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.01},
		{Lat: 0, Lon: 0.02},
	}
	assert.InDelta(t, 2*geo.Haversine(path[0], path[1]), geo.PolylineDistanceKm(path), 1e-9)
	assert.Equal(t, 0.0, geo.PolylineDistanceKm(path[:1]))
}

func TestBoundsContains(t *testing.T) {
	b := geo.Bounds{South: 0, North: 0.01, West: 0, East: 0.01}
	assert.True(t, b.Contains(geo.LatLng{Lat: 0.005, Lon: 0.005}, 0))
	assert.False(t, b.Contains(geo.LatLng{Lat: 0.02, Lon: 0.005}, 0))
	// 40米外扩后边缘点在内
	assert.True(t, b.Contains(geo.LatLng{Lat: 0.0102, Lon: 0.005}, 40))
}
