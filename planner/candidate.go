package planner

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/planner/algo"
)

const (
	// 目标里程下限/km
	MIN_TARGET_KM = 0.8
)

// 按家到路段端点的较近距离升序选取候选路段
// 半径与数量上限随目标里程缩放，不依赖图连通性
func selectCandidates(streets []*StreetSegment, home geo.LatLng, targetKm float64, bounds *geo.Bounds) []*StreetSegment {
	type entry struct {
		seg *StreetSegment
		km  float64
	}
	entries := make([]entry, 0, len(streets))
	for _, s := range streets {
		if len(s.Path) < 2 {
			continue
		}
		if bounds != nil && !(bounds.Contains(s.Path[0], 0) && bounds.Contains(s.Path[len(s.Path)-1], 0)) {
			continue
		}
		km := math.Min(
			geo.Haversine(home, s.Path[0]),
			geo.Haversine(home, s.Path[len(s.Path)-1]),
		)
		entries = append(entries, entry{seg: s, km: km})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].km < entries[j].km })

	radius := lo.Clamp(targetKm*1.45+1.3, 2.2, 32)
	maxCount := int(math.Min(4200, math.Max(320, math.Round(targetKm*168))))
	picked := make([]*StreetSegment, 0, maxCount)
	for _, e := range entries {
		if e.km > radius || len(picked) >= maxCount {
			break
		}
		picked = append(picked, e.seg)
	}

	// 半径内过少时回退为按距离排序的前若干条
	minCount := int(math.Max(120, math.Round(targetKm*22)))
	if len(picked) < minCount {
		fallback := int(math.Min(float64(len(entries)), math.Max(320, math.Round(targetKm*72))))
		picked = picked[:0]
		for _, e := range entries[:fallback] {
			picked = append(picked, e.seg)
		}
	}
	return picked
}

// 由候选路段构建无向多重图，不做任何过滤
// 已完成的路段同样入图，完成状态仅由规划器的收益函数消费
func buildGraph(candidates []*StreetSegment) *algo.StreetGraph {
	g := algo.NewStreetGraph()
	for _, s := range candidates {
		if len(s.Path) < 2 {
			continue
		}
		startID, endID := s.NodeIDs()
		from := g.InitNode(startID, s.Path[0])
		to := g.InitNode(endID, s.Path[len(s.Path)-1])
		g.InitEdge(s.ID, s.ID, s.Name, from, to, s.Path)
	}
	return g
}
