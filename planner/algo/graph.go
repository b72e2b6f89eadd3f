package algo

import (
	"git.fiblab.net/sim/streetcover/geo"
)

// 街道图中的结点
type Node struct {
	ID       string
	P        geo.LatLng
	EdgeIdxs []int
}

// 街道图中的无向边，一条边对应一个街道路段，携带完整折线
type Edge struct {
	ID         string
	StreetID   string
	StreetName string
	From       int
	To         int
	Path       []geo.LatLng
	DistanceKm float64
}

// 邻接表记录：经由哪条边到达哪个邻居
type Neighbor struct {
	EdgeIdx int
	NodeIdx int
}

// 无向多重图
// 结点与边按插入顺序保存在slice中，保证遍历顺序确定
// 同一对结点之间允许平行边
type StreetGraph struct {
	nodes   []Node
	edges   []Edge
	nodeIdx map[string]int
	adj     [][]Neighbor
}

func NewStreetGraph() *StreetGraph {
	return &StreetGraph{
		nodes:   make([]Node, 0),
		edges:   make([]Edge, 0),
		nodeIdx: make(map[string]int),
		adj:     make([][]Neighbor, 0),
	}
}

// 按id取或建结点，返回其下标
func (g *StreetGraph) InitNode(id string, p geo.LatLng) int {
	if idx, ok := g.nodeIdx[id]; ok {
		return idx
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{ID: id, P: p})
	g.adj = append(g.adj, make([]Neighbor, 0))
	g.nodeIdx[id] = idx
	return idx
}

// 建无向边，两端的邻接表各登记一次
func (g *StreetGraph) InitEdge(id, streetID, streetName string, from, to int, path []geo.LatLng) int {
	idx := len(g.edges)
	g.edges = append(g.edges, Edge{
		ID:         id,
		StreetID:   streetID,
		StreetName: streetName,
		From:       from,
		To:         to,
		Path:       path,
		DistanceKm: geo.PolylineDistanceKm(path),
	})
	g.nodes[from].EdgeIdxs = append(g.nodes[from].EdgeIdxs, idx)
	g.nodes[to].EdgeIdxs = append(g.nodes[to].EdgeIdxs, idx)
	g.adj[from] = append(g.adj[from], Neighbor{EdgeIdx: idx, NodeIdx: to})
	g.adj[to] = append(g.adj[to], Neighbor{EdgeIdx: idx, NodeIdx: from})
	return idx
}

func (g *StreetGraph) NodeCount() int { return len(g.nodes) }
func (g *StreetGraph) EdgeCount() int { return len(g.edges) }

func (g *StreetGraph) Node(idx int) *Node { return &g.nodes[idx] }
func (g *StreetGraph) Edge(idx int) *Edge { return &g.edges[idx] }

func (g *StreetGraph) NodeIndex(id string) (int, bool) {
	idx, ok := g.nodeIdx[id]
	return idx, ok
}

func (g *StreetGraph) Adj(nodeIdx int) []Neighbor { return g.adj[nodeIdx] }

func (g *StreetGraph) Degree(nodeIdx int) int { return len(g.adj[nodeIdx]) }

// 边上与given端点相对的另一端
func (g *StreetGraph) OtherEnd(edgeIdx, nodeIdx int) int {
	e := &g.edges[edgeIdx]
	if e.From == nodeIdx {
		return e.To
	}
	return e.From
}

// 距p最近的结点下标，空图返回-1
func (g *StreetGraph) NearestNode(p geo.LatLng) int {
	best := -1
	bestKm := 0.0
	for i := range g.nodes {
		d := geo.Haversine(p, g.nodes[i].P)
		if best == -1 || d < bestKm {
			best = i
			bestKm = d
		}
	}
	return best
}
