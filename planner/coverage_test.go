package planner_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/planner"
)

func seg(id, name string, completed bool, path ...geo.LatLng) *planner.StreetSegment {
	return &planner.StreetSegment{
		ID:        id,
		Name:      name,
		Path:      path,
		Completed: completed,
		Source:    planner.SOURCE_MANUAL,
	}
}

func hardMax(targetKm float64) float64 {
	return math.Max(1.2, targetKm*1.1+0.35)
}

// 单条1km路段，目标1英里
func TestPlanSingleSegment(t *testing.T) {
	home := geo.LatLng{Lat: 0, Lon: 0}
	streets := []*planner.StreetSegment{
		seg("s1", "Main Street", false,
			geo.LatLng{Lat: 0, Lon: 0}, geo.LatLng{Lat: 0.008983, Lon: 0}),
	}
	targetKm := 1.609

	route, err := planner.BuildEfficientCoverageRoute(streets, home, targetKm, nil)
	require.NoError(t, err)
	require.NotNil(t, route)

	assert.Equal(t, []string{"s1"}, route.StreetIDs)
	assert.Equal(t, []string{"Main Street"}, route.StreetNames)
	assert.GreaterOrEqual(t, route.DistanceKm, 0.99)
	assert.LessOrEqual(t, route.DistanceKm, hardMax(targetKm))
	// 里程与折线长度一致（1%以内）
	assert.InEpsilon(t, geo.PolylineDistanceKm(route.Points), route.DistanceKm, 0.01)
}

// T字路口带一条断头支
//
//	A --0.5km-- B --0.2km-- C(度1)
func TestPlanTIntersectionSpur(t *testing.T) {
	a := geo.LatLng{Lat: 0, Lon: 0}
	b := geo.LatLng{Lat: 0, Lon: 0.004495} // ~0.5km
	cc := geo.LatLng{Lat: 0.0018, Lon: 0.004495}
	streets := []*planner.StreetSegment{
		seg("ab", "Long Road", false, a, b),
		seg("bc", "Dead End Court", false, b, cc),
	}
	route, err := planner.BuildEfficientCoverageRoute(streets, a, 1.5, nil)
	require.NoError(t, err)
	require.NotNil(t, route)

	assert.Contains(t, route.StreetNames, "Long Road")
	assert.Contains(t, route.StreetNames, "Dead End Court")
	assert.LessOrEqual(t, route.DistanceKm, hardMax(1.5))
}

// 目标0被钳到0.8且规划终止
func TestPlanZeroTargetClamped(t *testing.T) {
	home := geo.LatLng{Lat: 0, Lon: 0}
	streets := []*planner.StreetSegment{
		seg("s1", "Main Street", false,
			geo.LatLng{Lat: 0, Lon: 0}, geo.LatLng{Lat: 0.008983, Lon: 0}),
	}
	route, err := planner.BuildEfficientCoverageRoute(streets, home, 0, nil)
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.LessOrEqual(t, route.DistanceKm, hardMax(0.8))
	// 预算不够折返，单程走完即止
	assert.Len(t, route.Points, 2)
}

// 全部完成的数据集不可规划
func TestPlanAllCompleted(t *testing.T) {
	home := geo.LatLng{Lat: 0, Lon: 0}
	streets := []*planner.StreetSegment{
		seg("s1", "Main Street", true,
			geo.LatLng{Lat: 0, Lon: 0}, geo.LatLng{Lat: 0.008983, Lon: 0}),
	}
	route, err := planner.BuildEfficientCoverageRoute(streets, home, 2, nil)
	assert.Nil(t, route)
	assert.True(t, errors.Is(err, planner.ErrPlanInfeasible))
}

func TestPlanNoStreets(t *testing.T) {
	route, err := planner.BuildEfficientCoverageRoute(nil, geo.LatLng{}, 2, nil)
	assert.Nil(t, route)
	assert.True(t, errors.Is(err, planner.ErrPlanInfeasible))
}

// 小网格上的整体不变式：硬上限、折线连续性、结点覆盖互补
func TestPlanGridInvariants(t *testing.T) {
	// 3x3路网，间距约200m
	step := 0.0018
	streets := make([]*planner.StreetSegment, 0)
	id := 0
	at := func(i, j int) geo.LatLng {
		return geo.LatLng{Lat: float64(i) * step, Lon: float64(j) * step}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if j < 2 {
				id++
				streets = append(streets, seg(
					// 横向街道
					fmt.Sprintf("h%d", id), "Row Street", false, at(i, j), at(i, j+1)))
			}
			if i < 2 {
				id++
				streets = append(streets, seg(
					// 纵向街道
					fmt.Sprintf("v%d", id), "Column Avenue", false, at(i, j), at(i+1, j)))
			}
		}
	}
	targetKm := 3.0
	route, err := planner.BuildEfficientCoverageRoute(streets, at(0, 0), targetKm, nil)
	require.NoError(t, err)
	require.NotNil(t, route)

	assert.LessOrEqual(t, route.DistanceKm, hardMax(targetKm))
	assert.InEpsilon(t, geo.PolylineDistanceKm(route.Points), route.DistanceKm, 0.01)

	// 相邻折线点间距不超过图中最长的单段折线步长
	maxStep := 0.0
	for _, s := range streets {
		for i := 0; i < len(s.Path)-1; i++ {
			if d := geo.Haversine(s.Path[i], s.Path[i+1]); d > maxStep {
				maxStep = d
			}
		}
	}
	for i := 0; i < len(route.Points)-1; i++ {
		assert.LessOrEqual(t, geo.Haversine(route.Points[i], route.Points[i+1]), maxStep+1e-9)
	}

	// 覆盖结点都在折线20英尺内，未覆盖结点都在20英尺外
	covered := make(map[string]bool)
	for _, nid := range route.NodeIDsCovered {
		covered[nid] = true
	}
	for _, p := range route.NodePoints {
		assert.LessOrEqual(t, geo.PointToPathMeters(p, route.Points), 6.096)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			nid := planner.QuantizedNodeID(at(i, j))
			if !covered[nid] {
				assert.Greater(t, geo.PointToPathMeters(at(i, j), route.Points), 6.096)
			}
		}
	}
}

// 半径候选按端点直线距离选取，孤立簇也会入选（刻意行为）
func TestPlanIsolatedClusterIncluded(t *testing.T) {
	home := geo.LatLng{Lat: 0, Lon: 0}
	streets := []*planner.StreetSegment{
		seg("near", "Near Street", false,
			geo.LatLng{Lat: 0, Lon: 0}, geo.LatLng{Lat: 0.0018, Lon: 0}),
		// 1km外的孤立段，仍在候选半径内但图上不连通
		seg("far", "Far Street", false,
			geo.LatLng{Lat: 0.008983, Lon: 0.008983}, geo.LatLng{Lat: 0.0108, Lon: 0.008983}),
	}
	route, err := planner.BuildEfficientCoverageRoute(streets, home, 1.0, nil)
	require.NoError(t, err)
	require.NotNil(t, route)
	// 孤立段不可达，只覆盖可达街道
	assert.Contains(t, route.StreetIDs, "near")
	assert.NotContains(t, route.StreetIDs, "far")
	// 孤立段的结点仍出现在可用结点清单中
	assert.Contains(t, route.AvailableNodes, planner.QuantizedNodeID(streets[1].Path[0]))
}

func TestCompletedByActivity(t *testing.T) {
	street := seg("s1", "Main Street", false,
		geo.LatLng{Lat: 0, Lon: 0},
		geo.LatLng{Lat: 0, Lon: 0.0009},
		geo.LatLng{Lat: 0, Lon: 0.0018})
	// 与路段几乎重合的活动轨迹
	activity := []geo.LatLng{
		{Lat: 0.00001, Lon: -0.0001},
		{Lat: 0.00001, Lon: 0.002},
	}
	done := planner.CompletedByActivity([]*planner.StreetSegment{street}, activity)
	assert.Equal(t, []string{"s1"}, done)

	// 远处的活动不会标记完成
	away := []geo.LatLng{
		{Lat: 0.01, Lon: 0},
		{Lat: 0.01, Lon: 0.002},
	}
	assert.Empty(t, planner.CompletedByActivity([]*planner.StreetSegment{street}, away))
}
