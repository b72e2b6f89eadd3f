package planner

import (
	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/planner/algo"
)

// 结点覆盖核算结果，顺序与图结点插入顺序一致
type NodeCoverage struct {
	NodeIDs        []string
	NodePoints     []geo.LatLng
	AvailableNodes []string
}

// 枚举图中所有结点，折线20英尺范围内的记为已覆盖
func CoverNodes(g *algo.StreetGraph, routePoints []geo.LatLng) NodeCoverage {
	cov := NodeCoverage{
		NodeIDs:        make([]string, 0),
		NodePoints:     make([]geo.LatLng, 0),
		AvailableNodes: make([]string, 0, g.NodeCount()),
	}
	for i := 0; i < g.NodeCount(); i++ {
		n := g.Node(i)
		cov.AvailableNodes = append(cov.AvailableNodes, n.ID)
		if geo.PointToPathMeters(n.P, routePoints) <= algo.NODE_CAPTURE_RADIUS_METERS {
			cov.NodeIDs = append(cov.NodeIDs, n.ID)
			cov.NodePoints = append(cov.NodePoints, n.P)
		}
	}
	return cov
}
