package osm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/osm"
)

// 约1.1km见方的正方形边界
func squareBoundary() *osm.Boundary {
	return &osm.Boundary{Rings: [][]geo.LatLng{{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.01},
		{Lat: 0.01, Lon: 0.01},
		{Lat: 0.01, Lon: 0},
	}}}
}

func TestContainsPoint(t *testing.T) {
	b := squareBoundary()
	assert.True(t, b.ContainsPoint(geo.LatLng{Lat: 0.005, Lon: 0.005}))
	assert.False(t, b.ContainsPoint(geo.LatLng{Lat: 0.02, Lon: 0.005}))
	// 边上的共线点视作在内
	assert.True(t, b.ContainsPoint(geo.LatLng{Lat: 0, Lon: 0.005}))
	// 孔洞：奇偶规则下内环中的点在外
	withHole := &osm.Boundary{Rings: append(squareBoundary().Rings, []geo.LatLng{
		{Lat: 0.004, Lon: 0.004},
		{Lat: 0.004, Lon: 0.006},
		{Lat: 0.006, Lon: 0.006},
		{Lat: 0.006, Lon: 0.004},
	})}
	assert.False(t, withHole.ContainsPoint(geo.LatLng{Lat: 0.005, Lon: 0.005}))
	assert.True(t, withHole.ContainsPoint(geo.LatLng{Lat: 0.002, Lon: 0.005}))
}

// 构造n个点的路径，前outside个点在边界外约75m处
func pathWithOutside(n, outside int) []geo.LatLng {
	path := make([]geo.LatLng, 0, n)
	for i := 0; i < n; i++ {
		lon := 0.001 + 0.0003*float64(i)
		if i > 0 && i <= outside {
			// 边界以南约78m
			path = append(path, geo.LatLng{Lat: -0.0007, Lon: lon})
		} else {
			path = append(path, geo.LatLng{Lat: 0.005, Lon: lon})
		}
	}
	return path
}

func TestRetainsSegment(t *testing.T) {
	b := squareBoundary()
	// 76%在内：保留
	assert.True(t, b.RetainsSegment(pathWithOutside(25, 6)))
	// 64%在内：剔除
	assert.False(t, b.RetainsSegment(pathWithOutside(25, 9)))
	// 端点越界直接剔除
	outsideEnds := pathWithOutside(25, 6)
	outsideEnds[0] = geo.LatLng{Lat: -0.01, Lon: 0.005}
	assert.False(t, b.RetainsSegment(outsideEnds))
	assert.False(t, b.RetainsSegment(nil))
}

func TestRetainsSegmentInBounds(t *testing.T) {
	bounds := geo.Bounds{South: 0, North: 0.01, West: 0, East: 0.01}
	inside := []geo.LatLng{
		{Lat: 0.002, Lon: 0.002},
		{Lat: 0.002, Lon: 0.008},
	}
	assert.True(t, osm.RetainsSegmentInBounds(bounds, inside))

	farOut := []geo.LatLng{
		{Lat: 0.002, Lon: 0.002},
		{Lat: 0.05, Lon: 0.05},
	}
	assert.False(t, osm.RetainsSegmentInBounds(bounds, farOut))

	// 40米外扩内的端点仍可保留
	nearEdge := []geo.LatLng{
		{Lat: 0.0102, Lon: 0.005},
		{Lat: 0.008, Lon: 0.005},
	}
	assert.True(t, osm.RetainsSegmentInBounds(bounds, nearEdge))
}
