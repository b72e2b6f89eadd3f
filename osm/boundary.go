package osm

import (
	"math"

	"git.fiblab.net/sim/streetcover/geo"
)

const (
	// 端点允许偏离边界的距离/m
	BOUNDARY_ENDPOINT_TOLERANCE_M = 40
	// 路径点允许偏离边界的距离/m
	BOUNDARY_PATH_TOLERANCE_M = 22
	// 判定保留所需落在边界内的路径点占比
	BOUNDARY_PATH_RATIO = 0.72
)

// 城市边界多边形集合：外环与孔洞、多重多边形统一为环列表
// 存在时覆盖包围盒判定，包含性用奇偶射线法
type Boundary struct {
	Rings [][]geo.LatLng
}

// 奇偶射线法判断点是否在多边形集合内
// 落在环边上的共线点视作在内
func (b *Boundary) ContainsPoint(p geo.LatLng) bool {
	inside := false
	for _, ring := range b.Rings {
		n := len(ring)
		if n < 3 {
			continue
		}
		for i := 0; i < n; i++ {
			a := ring[i]
			c := ring[(i+1)%n]
			if onSegment(p, a, c) {
				return true
			}
			if (a.Lat > p.Lat) != (c.Lat > p.Lat) {
				x := a.Lon + (p.Lat-a.Lat)/(c.Lat-a.Lat)*(c.Lon-a.Lon)
				if p.Lon < x {
					inside = !inside
				}
			}
		}
	}
	return inside
}

// 点是否与线段共线且在其范围内
func onSegment(p, a, b geo.LatLng) bool {
	cross := (b.Lon-a.Lon)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lon-a.Lon)
	if math.Abs(cross) > 1e-12 {
		return false
	}
	return p.Lat >= math.Min(a.Lat, b.Lat) && p.Lat <= math.Max(a.Lat, b.Lat) &&
		p.Lon >= math.Min(a.Lon, b.Lon) && p.Lon <= math.Max(a.Lon, b.Lon)
}

// 点到边界环的最小距离/m，环按闭合处理
func (b *Boundary) DistanceToMeters(p geo.LatLng) float64 {
	best := math.Inf(1)
	for _, ring := range b.Rings {
		if len(ring) < 2 {
			continue
		}
		closed := append(append(make([]geo.LatLng, 0, len(ring)+1), ring...), ring[0])
		if d := geo.PointToPathMeters(p, closed); d < best {
			best = d
		}
	}
	return best
}

// 点在边界内或距边界不超过tolM米
func (b *Boundary) containsWithin(p geo.LatLng, tolM float64) bool {
	return b.ContainsPoint(p) || b.DistanceToMeters(p) <= tolM
}

// 多边形边界下的路段保留判定
// 两端点都在边界内（或40米内），且至少72%的路径点在边界22米内
func (b *Boundary) RetainsSegment(path []geo.LatLng) bool {
	if len(path) < 2 {
		return false
	}
	if !b.containsWithin(path[0], BOUNDARY_ENDPOINT_TOLERANCE_M) ||
		!b.containsWithin(path[len(path)-1], BOUNDARY_ENDPOINT_TOLERANCE_M) {
		return false
	}
	within := 0
	for _, p := range path {
		if b.containsWithin(p, BOUNDARY_PATH_TOLERANCE_M) {
			within++
		}
	}
	return float64(within) >= BOUNDARY_PATH_RATIO*float64(len(path))
}

// 包围盒回退判定：40米外扩，端点必须在内且72%路径点在内
func RetainsSegmentInBounds(bounds geo.Bounds, path []geo.LatLng) bool {
	if len(path) < 2 {
		return false
	}
	if !bounds.Contains(path[0], BOUNDARY_ENDPOINT_TOLERANCE_M) ||
		!bounds.Contains(path[len(path)-1], BOUNDARY_ENDPOINT_TOLERANCE_M) {
		return false
	}
	within := 0
	for _, p := range path {
		if bounds.Contains(p, BOUNDARY_ENDPOINT_TOLERANCE_M) {
			within++
		}
	}
	return float64(within) >= BOUNDARY_PATH_RATIO*float64(len(path))
}
