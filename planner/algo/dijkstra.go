package algo

import (
	"container/heap"
	"math"

	"github.com/samber/lo"
)

// 单源最短路结果
// 不可达结点的Dist为正无穷且无前驱
type DijkstraResult struct {
	Dist     []float64
	PrevNode []int
	PrevEdge []int
}

// Dijkstra算法求单源最短路，边权为DistanceKm
func (g *StreetGraph) Dijkstra(source int) *DijkstraResult {
	n := len(g.nodes)
	res := &DijkstraResult{
		Dist:     make([]float64, n),
		PrevNode: make([]int, n),
		PrevEdge: make([]int, n),
	}
	for i := 0; i < n; i++ {
		res.Dist[i] = math.Inf(1)
		res.PrevNode[i] = NO_PREV
		res.PrevEdge[i] = NO_PREV
	}
	res.Dist[source] = 0

	openSet := make(PriorityQueue, 1)
	openSetMap := make(map[int]*Item, 1)
	openSet[0] = &Item{Value: source, Priority: 0, Index: 0}
	openSetMap[source] = openSet[0]
	heap.Init(&openSet)
	visited := make([]bool, n)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		delete(openSetMap, cur)
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, nb := range g.adj[cur] {
			tentative := res.Dist[cur] + g.edges[nb.EdgeIdx].DistanceKm
			if tentative < res.Dist[nb.NodeIdx] {
				res.Dist[nb.NodeIdx] = tentative
				res.PrevNode[nb.NodeIdx] = cur
				res.PrevEdge[nb.NodeIdx] = nb.EdgeIdx
				if item, ok := openSetMap[nb.NodeIdx]; ok {
					// 已入堆的结点，修改其优先级
					item.Priority = tentative
					heap.Fix(&openSet, item.Index)
				} else {
					item := &Item{Value: nb.NodeIdx, Priority: tentative}
					heap.Push(&openSet, item)
					openSetMap[nb.NodeIdx] = item
				}
			}
		}
	}
	return res
}

// 按source记忆化的Dijkstra缓存，生命周期为一次规划请求
type DijkstraCache struct {
	g       *StreetGraph
	results map[int]*DijkstraResult
}

func NewDijkstraCache(g *StreetGraph) *DijkstraCache {
	return &DijkstraCache{
		g:       g,
		results: make(map[int]*DijkstraResult),
	}
}

func (c *DijkstraCache) From(source int) *DijkstraResult {
	if r, ok := c.results[source]; ok {
		return r
	}
	r := c.g.Dijkstra(source)
	c.results[source] = r
	return r
}

// 由prev链从终点回溯到起点，链断裂时返回空边表表示不可达
func (r *DijkstraResult) ReconstructEdges(from, to int) []int {
	if math.IsInf(r.Dist[to], 1) {
		return []int{}
	}
	edgesReversed := make([]int, 0)
	cur := to
	for cur != from {
		prev := r.PrevNode[cur]
		if prev == NO_PREV {
			return []int{}
		}
		edgesReversed = append(edgesReversed, r.PrevEdge[cur])
		cur = prev
	}
	return lo.Reverse(edgesReversed)
}

// 缓存查询+回溯的组合，不可达时距离为正无穷且边表为空
func (c *DijkstraCache) ShortestPathEdges(from, to int) (float64, []int) {
	res := c.From(from)
	if math.IsInf(res.Dist[to], 1) {
		return math.Inf(1), []int{}
	}
	return res.Dist[to], res.ReconstructEdges(from, to)
}

// 带方向的一次边遍历
type TraversalStep struct {
	EdgeIdx int
	From    int
	To      int
}

// 给定起点与无向边序列，定向为首尾相接的遍历步
// 无法成链时返回nil
func (g *StreetGraph) OrientPathEdges(startNodeIdx int, edgeIdxs []int) []TraversalStep {
	steps := make([]TraversalStep, 0, len(edgeIdxs))
	cur := startNodeIdx
	for _, ei := range edgeIdxs {
		e := &g.edges[ei]
		var next int
		if e.From == cur {
			next = e.To
		} else if e.To == cur {
			next = e.From
		} else {
			return nil
		}
		steps = append(steps, TraversalStep{EdgeIdx: ei, From: cur, To: next})
		cur = next
	}
	return steps
}
