package planner

import (
	"fmt"
	"math"
	"time"

	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/planner/algo"
)

const (
	STRATEGY_EFFICIENT_COVERAGE = "efficient-coverage"
)

// 一次规划请求的全部可变状态，单线程独占
type coverageState struct {
	g     *algo.StreetGraph
	cache *algo.DijkstraCache
	// streetID -> 路段，查询规划开始时的完成状态
	segs map[string]*StreetSegment

	targetKm  float64
	hardMaxKm float64

	cur         int
	distanceKm  float64
	routePoints []geo.LatLng

	coveredStreetIDs   []string
	coveredStreetIDSet map[string]bool
	coveredNames       []string
	coveredNameSet     map[string]bool
	// 本次规划中已走过的原先未完成街道，防止重复计分
	rewardedStreetIDs map[string]bool
	coveredNodes      map[int]bool
	// 边id -> 已走次数
	traversedEdgeCount map[int]int
}

// 街道是否还能产生新收益：原先未完成且本次尚未奖励
func (s *coverageState) edgeRewardable(edgeIdx int) bool {
	e := s.g.Edge(edgeIdx)
	seg, ok := s.segs[e.StreetID]
	if !ok {
		return false
	}
	return !seg.Completed && !s.rewardedStreetIDs[e.StreetID]
}

// 应用一步遍历：折线拼接、覆盖集合与计数更新
// 当前折线末端与该边首点距离不超过阈值时跳过首点实现无缝拼接
func (s *coverageState) applyTraversalStep(step algo.TraversalStep) {
	e := s.g.Edge(step.EdgeIdx)
	oriented := e.Path
	if step.From == e.To {
		oriented = make([]geo.LatLng, len(e.Path))
		for i, p := range e.Path {
			oriented[len(e.Path)-1-i] = p
		}
	}
	start := 0
	if n := len(s.routePoints); n > 0 {
		if geo.Haversine(s.routePoints[n-1], oriented[0])*1000 <= algo.SEAMLESS_JOIN_METERS {
			start = 1
		}
	}
	s.routePoints = append(s.routePoints, oriented[start:]...)
	s.distanceKm += e.DistanceKm

	if !s.coveredStreetIDSet[e.StreetID] {
		s.coveredStreetIDSet[e.StreetID] = true
		s.coveredStreetIDs = append(s.coveredStreetIDs, e.StreetID)
	}
	if e.StreetName != "" && !s.coveredNameSet[e.StreetName] {
		s.coveredNameSet[e.StreetName] = true
		s.coveredNames = append(s.coveredNames, e.StreetName)
	}
	if seg, ok := s.segs[e.StreetID]; ok && !seg.Completed {
		s.rewardedStreetIDs[e.StreetID] = true
	}
	s.coveredNodes[step.From] = true
	s.coveredNodes[step.To] = true
	s.traversedEdgeCount[step.EdgeIdx]++
	s.cur = step.To
}

type globalMove struct {
	connectorEdges []int
	targetStep     algo.TraversalStep
	score          float64
}

// 全局覆盖移动：经最短路连接器抵达收益最高的未奖励边
func (s *coverageState) bestGlobalMove() (globalMove, bool) {
	res := s.cache.From(s.cur)
	pending := s.pendingBranchEdges()
	best := globalMove{score: math.Inf(-1)}
	found := false
	for ei := 0; ei < s.g.EdgeCount(); ei++ {
		if !s.edgeRewardable(ei) {
			continue
		}
		e := s.g.Edge(ei)
		distFrom, distTo := res.Dist[e.From], res.Dist[e.To]
		if math.IsInf(distFrom, 1) && math.IsInf(distTo, 1) {
			continue
		}
		connectorNode := e.From
		connectorKm := distFrom
		if distTo < distFrom {
			connectorNode = e.To
			connectorKm = distTo
		}
		additional := connectorKm + e.DistanceKm
		projected := s.distanceKm + additional
		if projected > s.hardMaxKm {
			continue
		}
		connectorEdges := res.ReconstructEdges(s.cur, connectorNode)
		targetStep := algo.TraversalStep{
			EdgeIdx: ei,
			From:    connectorNode,
			To:      s.g.OtherEnd(ei, connectorNode),
		}

		newStreetGain, newNodeGain := s.moveGains(connectorEdges, targetStep)
		leafBonus := 0.0
		if s.g.Degree(e.From) == 1 || s.g.Degree(e.To) == 1 {
			leafBonus = 1.75
		}
		branchTailBonus := 0.0
		if s.g.Degree(e.From) <= 2 || s.g.Degree(e.To) <= 2 {
			branchTailBonus = 0.35
		}
		proximityBonus := math.Max(0, 1.35-connectorKm) * 0.7
		usefulDistanceBonus := math.Min(1.5, e.DistanceKm*1.35)
		remaining := s.targetKm - s.distanceKm
		budgetFit := 1 - math.Min(1.4, math.Abs(remaining-additional)/math.Max(0.7, s.targetKm*0.5))
		overshootPenalty := math.Max(0, projected-s.targetKm*1.08) * 1.9
		connectorRepeatPenalty := 0.0
		for _, ci := range connectorEdges {
			connectorRepeatPenalty += s.g.Edge(ci).DistanceKm * math.Min(2.4, float64(s.traversedEdgeCount[ci]))
		}
		skipNearbyBranchPenalty := 0.0
		if len(pending) > 0 && s.distanceKm < s.targetKm*0.95 {
			firstEdge := targetStep.EdgeIdx
			if len(connectorEdges) > 0 {
				firstEdge = connectorEdges[0]
			}
			if !pending[firstEdge] {
				skipNearbyBranchPenalty = math.Min(3.6, float64(len(pending))*1.18)
			}
		}

		score := (newStreetGain*3.8+newNodeGain*2.0+leafBonus+branchTailBonus+proximityBonus+usefulDistanceBonus)/(additional+0.08) +
			budgetFit*1.45 -
			overshootPenalty -
			connectorRepeatPenalty*2.1 -
			skipNearbyBranchPenalty
		if score > best.score {
			best = globalMove{
				connectorEdges: connectorEdges,
				targetStep:     targetStep,
				score:          score,
			}
			found = true
		}
	}
	return best, found
}

// 连接器+目标边合计的新街道数与新结点数
func (s *coverageState) moveGains(connectorEdges []int, targetStep algo.TraversalStep) (float64, float64) {
	streetSeen := make(map[string]bool)
	newStreets := 0
	newNodes := 0
	nodeSeen := make(map[int]bool)
	countNode := func(n int) {
		if !s.coveredNodes[n] && !nodeSeen[n] {
			nodeSeen[n] = true
			newNodes++
		}
	}
	node := s.cur
	for _, ci := range connectorEdges {
		e := s.g.Edge(ci)
		if s.edgeRewardable(ci) && !streetSeen[e.StreetID] {
			streetSeen[e.StreetID] = true
			newStreets++
		}
		node = s.g.OtherEnd(ci, node)
		countNode(node)
	}
	te := s.g.Edge(targetStep.EdgeIdx)
	if s.edgeRewardable(targetStep.EdgeIdx) && !streetSeen[te.StreetID] {
		newStreets++
	}
	countNode(targetStep.From)
	countNode(targetStep.To)
	return float64(newStreets), float64(newNodes)
}

func (s *coverageState) applyGlobalMove(m globalMove) {
	steps := s.g.OrientPathEdges(s.cur, m.connectorEdges)
	if steps == nil {
		// 缓存与图不一致时放弃本次移动
		log.Warnf("connector edges cannot be oriented from node %d", s.cur)
		return
	}
	steps = append(steps, m.targetStep)
	for i, step := range steps {
		s.applyTraversalStep(step)
		// 中途扫掉头支时为后续步留出距离余量
		reserve := 0.0
		for _, rest := range steps[i+1:] {
			reserve += s.g.Edge(rest.EdgeIdx).DistanceKm
		}
		s.sweepSpurs(3, s.hardMaxKm-reserve)
		if i == len(steps)-1 {
			s.sweepBranches(2)
		}
	}
}

// 局部延伸：全局移动无解时迈出一步，偏好新收益、惩罚重复
func (s *coverageState) localExtension() bool {
	bestScore := math.Inf(-1)
	var bestStep algo.TraversalStep
	found := false
	for _, nb := range s.g.Adj(s.cur) {
		e := s.g.Edge(nb.EdgeIdx)
		if s.distanceKm+e.DistanceKm > s.hardMaxKm {
			continue
		}
		score := 0.0
		if s.edgeRewardable(nb.EdgeIdx) {
			score += 2.6
		}
		if !s.coveredNodes[nb.NodeIdx] {
			score += 1.2
		}
		score -= e.DistanceKm * math.Min(2.4, float64(s.traversedEdgeCount[nb.EdgeIdx]))
		score -= e.DistanceKm * 0.4
		if score > bestScore {
			bestScore = score
			bestStep = algo.TraversalStep{EdgeIdx: nb.EdgeIdx, From: s.cur, To: nb.NodeIdx}
			found = true
		}
	}
	if !found {
		return false
	}
	s.applyTraversalStep(bestStep)
	return true
}

// 贪心覆盖规划主入口
// 从home出发，在目标里程预算内最大化未完成街道与新结点的覆盖
func BuildEfficientCoverageRoute(
	streets []*StreetSegment, home geo.LatLng, targetKm float64, bounds *geo.Bounds,
) (route *SuggestedRoute, err error) {
	defer func() {
		if e := recover(); e != nil {
			route = nil
			err = fmt.Errorf("panic: BuildEfficientCoverageRoute %v with home=%v, targetKm=%v", e, home, targetKm)
			log.Errorln(err)
		}
	}()

	targetKm = math.Max(MIN_TARGET_KM, targetKm)
	candidates := selectCandidates(streets, home, targetKm, bounds)
	if len(candidates) == 0 {
		return nil, ErrPlanInfeasible
	}
	allCompleted := true
	for _, c := range candidates {
		if !c.Completed {
			allCompleted = false
			break
		}
	}
	if allCompleted {
		return nil, ErrPlanInfeasible
	}

	g := buildGraph(candidates)
	if g.EdgeCount() == 0 {
		return nil, ErrPlanInfeasible
	}
	start := g.NearestNode(home)
	if start < 0 {
		return nil, ErrPlanInfeasible
	}

	segs := make(map[string]*StreetSegment, len(candidates))
	for _, c := range candidates {
		segs[c.ID] = c
	}
	s := &coverageState{
		g:                  g,
		cache:              algo.NewDijkstraCache(g),
		segs:               segs,
		targetKm:           targetKm,
		hardMaxKm:          math.Max(1.2, targetKm*1.1+0.35),
		cur:                start,
		routePoints:        make([]geo.LatLng, 0),
		coveredStreetIDSet: make(map[string]bool),
		coveredNameSet:     make(map[string]bool),
		rewardedStreetIDs:  make(map[string]bool),
		coveredNodes:       make(map[int]bool),
		traversedEdgeCount: make(map[int]int),
	}

	maxIterations := int(math.Max(140, math.Round(targetKm*95)))
	for it := 0; it < maxIterations; it++ {
		if s.distanceKm >= s.hardMaxKm {
			break
		}
		if s.distanceKm >= targetKm*1.03 && len(s.rewardedStreetIDs) > 0 {
			break
		}
		s.sweepSpurs(5, s.hardMaxKm)
		s.sweepBranches(6)
		if s.distanceKm >= s.hardMaxKm ||
			(s.distanceKm >= targetKm*1.03 && len(s.rewardedStreetIDs) > 0) {
			break
		}
		if m, ok := s.bestGlobalMove(); ok {
			s.applyGlobalMove(m)
		} else if !s.localExtension() {
			break
		}
	}

	if len(s.traversedEdgeCount) == 0 {
		return nil, ErrPlanInfeasible
	}

	covered := CoverNodes(g, s.routePoints)
	route = &SuggestedRoute{
		ID:             fmt.Sprintf("route-%d", time.Now().UnixNano()),
		Name:           fmt.Sprintf("Coverage run %.1f km", s.distanceKm),
		Points:         s.routePoints,
		StreetIDs:      s.coveredStreetIDs,
		StreetNames:    s.coveredNames,
		DistanceKm:     s.distanceKm,
		Strategy:       STRATEGY_EFFICIENT_COVERAGE,
		NodeIDsCovered: covered.NodeIDs,
		NodePoints:     covered.NodePoints,
		AvailableNodes: covered.AvailableNodes,
	}
	log.Debugf("planned %.2fkm route covering %d streets (%d nodes)",
		s.distanceKm, len(s.coveredStreetIDs), len(covered.NodeIDs))
	return route, nil
}

// 历史别名，行为与贪心覆盖规划一致
// Euler化与Hierholzer遍历见eulerian.go，供次级策略使用
func BuildEulerianRoute(
	streets []*StreetSegment, home geo.LatLng, targetKm float64, bounds *geo.Bounds,
) (*SuggestedRoute, error) {
	return BuildEfficientCoverageRoute(streets, home, targetKm, bounds)
}
