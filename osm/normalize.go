package osm

import (
	"fmt"
	"strings"

	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/planner"
)

// 可跑城市街道的highway标签
var runnableHighways = map[string]bool{
	"residential":   true,
	"unclassified":  true,
	"tertiary":      true,
	"secondary":     true,
	"primary":       true,
	"living_street": true,
}

// way是否为可跑的有名城市街道
func isRunnableWay(tags map[string]string) bool {
	if !runnableHighways[tags["highway"]] {
		return false
	}
	if access := tags["access"]; access == "private" || access == "no" {
		return false
	}
	if foot := tags["foot"]; foot == "private" || foot == "no" {
		return false
	}
	if tags["area"] == "yes" {
		return false
	}
	name := strings.TrimSpace(tags["name"])
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	if lower == "unnamed road" || lower == "unnamed street" {
		return false
	}
	return true
}

// 街道名归一化：小写、去首尾空白、去句点、压缩空白
// 已归一化的名字是不动点
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), " ")
}

// 将Overpass载荷归一化为街道路段列表
// 流程：收结点坐标 -> 过滤可跑way -> 在共享结点处拆分 -> 去重 -> 边界过滤
// boundary存在时覆盖bounds判定，二者皆空则不过滤
func Normalize(payload *Payload, boundary *Boundary, bounds *geo.Bounds) ([]*planner.StreetSegment, error) {
	nodePos := make(map[int64]geo.LatLng)
	ways := make([]Element, 0)
	for _, el := range payload.Elements {
		switch el.Type {
		case "node":
			nodePos[el.ID] = geo.LatLng{Lat: el.Lat, Lon: el.Lon}
		case "way":
			if isRunnableWay(el.Tags) {
				ways = append(ways, el)
			}
		}
	}

	// 统计结点在保留way间的使用次数，找出共享交叉点
	nodeUse := make(map[int64]int)
	for _, w := range ways {
		for _, n := range w.Nodes {
			nodeUse[n]++
		}
	}

	segments := make([]*planner.StreetSegment, 0, len(ways))
	for _, w := range ways {
		segments = append(segments, splitWay(w, nodePos, nodeUse)...)
	}
	// 拆分一无所获时回退为每way一段
	if len(segments) == 0 {
		for _, w := range ways {
			if seg := wholeWaySegment(w, nodePos); seg != nil {
				segments = append(segments, seg)
			}
		}
	}

	segments = Dedupe(segments)

	if boundary != nil {
		segments = filterSegments(segments, boundary.RetainsSegment)
	} else if bounds != nil {
		segments = filterSegments(segments, func(path []geo.LatLng) bool {
			return RetainsSegmentInBounds(*bounds, path)
		})
	}
	if len(segments) == 0 {
		return nil, ErrNoStreetsInBoundary
	}
	log.Infof("normalized %d ways into %d street segments", len(ways), len(segments))
	return segments, nil
}

func filterSegments(segs []*planner.StreetSegment, keep func([]geo.LatLng) bool) []*planner.StreetSegment {
	out := segs[:0]
	for _, s := range segs {
		if keep(s.Path) {
			out = append(out, s)
		}
	}
	return out
}

// 在下标0、末尾以及被至少两条way使用的内部结点处拆分way
func splitWay(w Element, nodePos map[int64]geo.LatLng, nodeUse map[int64]int) []*planner.StreetSegment {
	cuts := make([]int, 0, len(w.Nodes))
	for i, n := range w.Nodes {
		if i == 0 || i == len(w.Nodes)-1 || nodeUse[n] >= 2 {
			cuts = append(cuts, i)
		}
	}
	segs := make([]*planner.StreetSegment, 0, len(cuts))
	name := strings.TrimSpace(w.Tags["name"])
	for c := 0; c < len(cuts)-1; c++ {
		lo, hi := cuts[c], cuts[c+1]
		path := make([]geo.LatLng, 0, hi-lo+1)
		ok := true
		for _, n := range w.Nodes[lo : hi+1] {
			p, exists := nodePos[n]
			if !exists {
				ok = false
				break
			}
			path = append(path, p)
		}
		if !ok || len(path) < 2 {
			continue
		}
		startRaw, endRaw := w.Nodes[lo], w.Nodes[hi]
		segs = append(segs, &planner.StreetSegment{
			ID:          fmt.Sprintf("osm-%d-%d-%d-%d", w.ID, startRaw, endRaw, c),
			Name:        name,
			Path:        path,
			StartNodeID: fmt.Sprintf("osm-node-%d", startRaw),
			EndNodeID:   fmt.Sprintf("osm-node-%d", endRaw),
			Source:      planner.SOURCE_OSM,
		})
	}
	return segs
}

// 回退：整条way作为一段
func wholeWaySegment(w Element, nodePos map[int64]geo.LatLng) *planner.StreetSegment {
	path := make([]geo.LatLng, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		p, ok := nodePos[n]
		if !ok {
			continue
		}
		path = append(path, p)
	}
	if len(path) < 2 {
		return nil
	}
	return &planner.StreetSegment{
		ID:          fmt.Sprintf("osm-%d", w.ID),
		Name:        strings.TrimSpace(w.Tags["name"]),
		Path:        path,
		StartNodeID: fmt.Sprintf("osm-node-%d", w.Nodes[0]),
		EndNodeID:   fmt.Sprintf("osm-node-%d", w.Nodes[len(w.Nodes)-1]),
		Source:      planner.SOURCE_OSM,
	}
}

// 去重：归一化名+无序端点对相同的第二条被丢弃
// 幂等：对已去重的输入是恒等变换
func Dedupe(segs []*planner.StreetSegment) []*planner.StreetSegment {
	seen := make(map[string]bool, len(segs))
	out := make([]*planner.StreetSegment, 0, len(segs))
	for _, s := range segs {
		left, right := s.NodeIDs()
		if right < left {
			left, right = right, left
		}
		key := NormalizeName(s.Name) + ":" + left + ":" + right
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
