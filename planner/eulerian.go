package planner

import (
	"fmt"
	"math"
	"time"

	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/planner/algo"
)

const (
	STRATEGY_EULERIAN = "eulerian"
)

// 将选中边集补成Euler化多重集
// 以每条边重数1起步，反复取首个奇度结点，经最短路配对最近的另一个奇度结点，
// 路径上每条边的重数加1，直到奇度结点耗尽
func EulerizeEdgeSet(g *algo.StreetGraph, cache *algo.DijkstraCache, edgeIdxs []int) map[int]int {
	multiset := make(map[int]int, len(edgeIdxs))
	for _, ei := range edgeIdxs {
		multiset[ei]++
	}

	oddNodes := oddDegreeNodes(g, multiset)
	for len(oddNodes) >= 2 {
		from := oddNodes[0]
		res := cache.From(from)
		bestIdx := -1
		bestKm := math.Inf(1)
		for i := 1; i < len(oddNodes); i++ {
			if d := res.Dist[oddNodes[i]]; d < bestKm {
				bestKm = d
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			// 剩余奇度结点彼此不可达
			break
		}
		for _, ei := range res.ReconstructEdges(from, oddNodes[bestIdx]) {
			multiset[ei]++
		}
		oddNodes = append(oddNodes[1:bestIdx], oddNodes[bestIdx+1:]...)
	}
	return multiset
}

// 多重集下度为奇数的结点，按图插入顺序排列
func oddDegreeNodes(g *algo.StreetGraph, multiset map[int]int) []int {
	degree := make(map[int]int)
	for ei, mult := range multiset {
		e := g.Edge(ei)
		degree[e.From] += mult
		degree[e.To] += mult
	}
	odd := make([]int, 0)
	for i := 0; i < g.NodeCount(); i++ {
		if degree[i]%2 == 1 {
			odd = append(odd, i)
		}
	}
	return odd
}

// Hierholzer算法对Euler化多重集求一条遍历
// 在每个结点消费下一个未用的邻接边记号，走不动时回退入栈，
// 最终轨迹为出栈顺序的逆序
func HierholzerTrail(g *algo.StreetGraph, multiset map[int]int, start int) []algo.TraversalStep {
	remaining := make(map[int]int, len(multiset))
	total := 0
	for ei, mult := range multiset {
		remaining[ei] = mult
		total += mult
	}
	if total == 0 {
		return []algo.TraversalStep{}
	}

	stack := []int{start}
	trailNodes := make([]int, 0, total+1)
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		next := -1
		for _, nb := range g.Adj(u) {
			if remaining[nb.EdgeIdx] > 0 {
				next = nb.NodeIdx
				remaining[nb.EdgeIdx]--
				break
			}
		}
		if next == -1 {
			trailNodes = append(trailNodes, u)
			stack = stack[:len(stack)-1]
		} else {
			stack = append(stack, next)
		}
	}

	// 逆序得到从start出发的轨迹，再配回边
	for i, j := 0, len(trailNodes)-1; i < j; i, j = i+1, j-1 {
		trailNodes[i], trailNodes[j] = trailNodes[j], trailNodes[i]
	}
	return matchTrailEdges(g, multiset, trailNodes)
}

// 对给定街道集求Euler化遍历路线（次级策略）
// 以距home最近的结点为起终点，对全部边Euler化后按Hierholzer遍历成折线
func EulerTrailRoute(streets []*StreetSegment, home geo.LatLng) (*SuggestedRoute, error) {
	g := buildGraph(streets)
	if g.EdgeCount() == 0 {
		return nil, ErrPlanInfeasible
	}
	start := g.NearestNode(home)
	cache := algo.NewDijkstraCache(g)
	edgeIdxs := make([]int, g.EdgeCount())
	for i := range edgeIdxs {
		edgeIdxs[i] = i
	}
	multiset := EulerizeEdgeSet(g, cache, edgeIdxs)
	steps := HierholzerTrail(g, multiset, start)
	if len(steps) == 0 {
		return nil, ErrPlanInfeasible
	}

	points := make([]geo.LatLng, 0)
	streetIDs := make([]string, 0)
	streetIDSeen := make(map[string]bool)
	names := make([]string, 0)
	nameSeen := make(map[string]bool)
	distanceKm := 0.0
	for _, step := range steps {
		e := g.Edge(step.EdgeIdx)
		oriented := e.Path
		if step.From == e.To {
			oriented = make([]geo.LatLng, len(e.Path))
			for i, p := range e.Path {
				oriented[len(e.Path)-1-i] = p
			}
		}
		from := 0
		if n := len(points); n > 0 {
			if geo.Haversine(points[n-1], oriented[0])*1000 <= algo.SEAMLESS_JOIN_METERS {
				from = 1
			}
		}
		points = append(points, oriented[from:]...)
		distanceKm += e.DistanceKm
		if !streetIDSeen[e.StreetID] {
			streetIDSeen[e.StreetID] = true
			streetIDs = append(streetIDs, e.StreetID)
		}
		if e.StreetName != "" && !nameSeen[e.StreetName] {
			nameSeen[e.StreetName] = true
			names = append(names, e.StreetName)
		}
	}
	covered := CoverNodes(g, points)
	return &SuggestedRoute{
		ID:             fmt.Sprintf("route-%d", time.Now().UnixNano()),
		Name:           fmt.Sprintf("Euler trail %.1f km", distanceKm),
		Points:         points,
		StreetIDs:      streetIDs,
		StreetNames:    names,
		DistanceKm:     distanceKm,
		Strategy:       STRATEGY_EULERIAN,
		NodeIDsCovered: covered.NodeIDs,
		NodePoints:     covered.NodePoints,
		AvailableNodes: covered.AvailableNodes,
	}, nil
}

// 为相邻结点对挑选尚有余量的连接边
func matchTrailEdges(g *algo.StreetGraph, multiset map[int]int, trailNodes []int) []algo.TraversalStep {
	remaining := make(map[int]int, len(multiset))
	for ei, mult := range multiset {
		remaining[ei] = mult
	}
	steps := make([]algo.TraversalStep, 0, len(trailNodes))
	for i := 0; i < len(trailNodes)-1; i++ {
		u, v := trailNodes[i], trailNodes[i+1]
		for _, nb := range g.Adj(u) {
			if nb.NodeIdx == v && remaining[nb.EdgeIdx] > 0 {
				remaining[nb.EdgeIdx]--
				steps = append(steps, algo.TraversalStep{EdgeIdx: nb.EdgeIdx, From: u, To: v})
				break
			}
		}
	}
	return steps
}
