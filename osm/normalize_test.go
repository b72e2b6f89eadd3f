package osm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/osm"
	"git.fiblab.net/sim/streetcover/planner"
)

func node(id int64, lat, lon float64) osm.Element {
	return osm.Element{Type: "node", ID: id, Lat: lat, Lon: lon}
}

func way(id int64, nodes []int64, tags map[string]string) osm.Element {
	return osm.Element{Type: "way", ID: id, Nodes: nodes, Tags: tags}
}

func runnableTags(name string) map[string]string {
	return map[string]string{"highway": "residential", "name": name}
}

// 共享内部结点处way被拆分
func TestNormalizeSplitsAtSharedNode(t *testing.T) {
	payload := &osm.Payload{Elements: []osm.Element{
		node(1, 0, 0),
		node(2, 0, 0.001),
		node(3, 0, 0.002),
		node(4, 0.001, 0.001),
		node(5, -0.001, 0.001),
		// n2被两条way共享
		way(10, []int64{1, 2, 3}, runnableTags("Main Street")),
		way(11, []int64{4, 2, 5}, runnableTags("Cross Street")),
	}}
	segs, err := osm.Normalize(payload, nil, nil)
	require.NoError(t, err)

	ids := make([]string, 0, len(segs))
	for _, s := range segs {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, "osm-10-1-2-0")
	assert.Contains(t, ids, "osm-10-2-3-1")
	assert.Contains(t, ids, "osm-11-4-2-0")
	assert.Contains(t, ids, "osm-11-2-5-1")
	require.Len(t, segs, 4)

	for _, s := range segs {
		assert.GreaterOrEqual(t, len(s.Path), 2)
		assert.Equal(t, planner.SOURCE_OSM, s.Source)
		// 折线首尾与结点id对应
		start, end := s.NodeIDs()
		assert.NotEmpty(t, start)
		assert.NotEmpty(t, end)
	}
}

// 不可跑的way被过滤
func TestNormalizeFiltersUnrunnable(t *testing.T) {
	payload := &osm.Payload{Elements: []osm.Element{
		node(1, 0, 0), node(2, 0, 0.001),
		way(10, []int64{1, 2}, map[string]string{"highway": "motorway", "name": "Freeway"}),
		way(11, []int64{1, 2}, map[string]string{"highway": "residential", "name": "Gated Lane", "access": "private"}),
		way(12, []int64{1, 2}, map[string]string{"highway": "residential", "name": "Plaza", "area": "yes"}),
		way(13, []int64{1, 2}, map[string]string{"highway": "residential", "name": "  "}),
		way(14, []int64{1, 2}, map[string]string{"highway": "residential", "name": "No Foot Road", "foot": "no"}),
		way(15, []int64{1, 2}, runnableTags("Good Street")),
	}}
	segs, err := osm.Normalize(payload, nil, nil)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "Good Street", segs[0].Name)
}

func TestNormalizeNameFixedPoint(t *testing.T) {
	n := osm.NormalizeName("  E.  Main   St. ")
	assert.Equal(t, "e main st", n)
	// 已归一化的名字是不动点
	assert.Equal(t, n, osm.NormalizeName(n))
}

// 归一化名+无序端点对相同时保留第一条
func TestDedupeAcrossSources(t *testing.T) {
	a := &planner.StreetSegment{
		ID: "osm-1", Name: "Main St.",
		Path:        []geo.LatLng{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.001}},
		StartNodeID: "osm-node-1", EndNodeID: "osm-node-2",
		Source: planner.SOURCE_OSM,
	}
	b := &planner.StreetSegment{
		ID: "manual-1", Name: "main st",
		Path:        []geo.LatLng{{Lat: 0, Lon: 0.001}, {Lat: 0, Lon: 0}},
		StartNodeID: "osm-node-2", EndNodeID: "osm-node-1",
		Source: planner.SOURCE_MANUAL,
	}
	out := osm.Dedupe([]*planner.StreetSegment{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, "osm-1", out[0].ID)

	// 幂等
	again := osm.Dedupe(out)
	assert.Equal(t, out, again)
}

// 缺失结点坐标的way被整体丢弃
func TestNormalizeDropsWaysWithMissingNodes(t *testing.T) {
	payload := &osm.Payload{Elements: []osm.Element{
		node(1, 0, 0),
		way(10, []int64{1, 99}, runnableTags("Ghost Street")),
		node(2, 0, 0.001), node(3, 0, 0.002),
		way(11, []int64{2, 3}, runnableTags("Real Street")),
	}}
	segs, err := osm.Normalize(payload, nil, nil)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "Real Street", segs[0].Name)
}
