package planner

import (
	"math"

	"git.fiblab.net/sim/streetcover/planner/algo"
)

const (
	// 单条断头支最多延伸的边数
	SPUR_MAX_CHAIN = 12
)

// 一条候选断头支：从当前结点通向度1末端的链
type spurCandidate struct {
	steps []algo.TraversalStep
	score float64
}

// 从当前结点沿nb出发走前向链
// 只经过度不超过2的中间结点，在已完成或已奖励的边处截断
// 仅当末端结点度为1（真正的死胡同）时有效
func (s *coverageState) walkSpurChain(nb algo.Neighbor) ([]algo.TraversalStep, float64) {
	if !s.edgeRewardable(nb.EdgeIdx) {
		return nil, 0
	}
	steps := make([]algo.TraversalStep, 0, SPUR_MAX_CHAIN)
	inChain := map[int]bool{nb.EdgeIdx: true}
	oneWay := 0.0
	node := s.cur
	edgeIdx := nb.EdgeIdx
	next := nb.NodeIdx
	for i := 0; i < SPUR_MAX_CHAIN; i++ {
		steps = append(steps, algo.TraversalStep{EdgeIdx: edgeIdx, From: node, To: next})
		oneWay += s.g.Edge(edgeIdx).DistanceKm
		node = next
		if s.g.Degree(node) != 2 {
			break
		}
		// 度2结点的唯一另一条边
		var forward *algo.Neighbor
		for j, n := range s.g.Adj(node) {
			if n.EdgeIdx != edgeIdx {
				forward = &s.g.Adj(node)[j]
				break
			}
		}
		if forward == nil || inChain[forward.EdgeIdx] || !s.edgeRewardable(forward.EdgeIdx) {
			break
		}
		edgeIdx = forward.EdgeIdx
		next = forward.NodeIdx
		inChain[edgeIdx] = true
	}
	if s.g.Degree(node) != 1 {
		return nil, 0
	}
	return steps, oneWay
}

// 断头支清扫：评估当前结点出发的所有断头支，择优往返执行
// maxDistanceKm为执行后的距离上限
func (s *coverageState) sweepSpurs(maxSpurs int, maxDistanceKm float64) {
	for spur := 0; spur < maxSpurs; spur++ {
		best := spurCandidate{score: math.Inf(-1)}
		found := false
		for _, nb := range s.g.Adj(s.cur) {
			steps, oneWay := s.walkSpurChain(nb)
			if steps == nil {
				continue
			}
			roundTrip := 2 * oneWay
			projected := s.distanceKm + roundTrip
			if projected > maxDistanceKm {
				continue
			}
			streetSeen := make(map[string]bool)
			newStreetGain := 0.0
			newNodeGain := 0.0
			for _, step := range steps {
				e := s.g.Edge(step.EdgeIdx)
				if s.edgeRewardable(step.EdgeIdx) && !streetSeen[e.StreetID] {
					streetSeen[e.StreetID] = true
					newStreetGain++
				}
				if !s.coveredNodes[step.To] {
					newNodeGain++
				}
			}
			budgetFit := 1 - math.Min(1.5, math.Abs(s.targetKm-projected)/math.Max(0.85, s.targetKm*0.55))
			score := (newStreetGain*4.6+newNodeGain*2.5+math.Min(1.4, oneWay*1.8))/(roundTrip+0.07) +
				budgetFit*1.1
			if score > best.score {
				best = spurCandidate{steps: steps, score: score}
				found = true
			}
		}
		if !found {
			return
		}
		// 往返执行：去程后按原路反向返回
		for _, step := range best.steps {
			s.applyTraversalStep(step)
		}
		for i := len(best.steps) - 1; i >= 0; i-- {
			step := best.steps[i]
			s.applyTraversalStep(algo.TraversalStep{EdgeIdx: step.EdgeIdx, From: step.To, To: step.From})
		}
	}
}

// 当前结点处符合就近支清扫条件的边集合
func (s *coverageState) pendingBranchEdges() map[int]bool {
	pending := make(map[int]bool)
	for _, nb := range s.g.Adj(s.cur) {
		if s.edgeRewardable(nb.EdgeIdx) &&
			s.traversedEdgeCount[nb.EdgeIdx] == 0 &&
			s.g.Degree(nb.NodeIdx) <= 2 {
			pending[nb.EdgeIdx] = true
		}
	}
	return pending
}

// 就近支清扫：单步走入度不超过2的邻居，收割家门口的短支
func (s *coverageState) sweepBranches(maxSteps int) {
	for step := 0; step < maxSteps; step++ {
		bestScore := math.Inf(-1)
		var bestStep algo.TraversalStep
		found := false
		for _, nb := range s.g.Adj(s.cur) {
			if !s.edgeRewardable(nb.EdgeIdx) ||
				s.traversedEdgeCount[nb.EdgeIdx] > 0 ||
				s.g.Degree(nb.NodeIdx) > 2 {
				continue
			}
			e := s.g.Edge(nb.EdgeIdx)
			projected := s.distanceKm + e.DistanceKm
			if projected > s.hardMaxKm {
				continue
			}
			culdesacBonus := 2.25
			if s.g.Degree(nb.NodeIdx) == 1 {
				culdesacBonus = 4.0
			}
			branchExitBonus := 0.35
			if s.g.Degree(s.cur) >= 3 {
				branchExitBonus = 1.45
			}
			shortEdgeBonus := math.Max(0, 0.95-e.DistanceKm) * 1.25
			newNode := 0.0
			if !s.coveredNodes[nb.NodeIdx] {
				newNode = 1.2
			}
			budgetFit := 1 - math.Min(1.5, math.Abs(s.targetKm-projected)/math.Max(0.85, s.targetKm*0.55))
			score := culdesacBonus + branchExitBonus + shortEdgeBonus + newNode + budgetFit
			if score > bestScore {
				bestScore = score
				bestStep = algo.TraversalStep{EdgeIdx: nb.EdgeIdx, From: s.cur, To: nb.NodeIdx}
				found = true
			}
		}
		if !found {
			return
		}
		s.applyTraversalStep(bestStep)
		s.sweepSpurs(2, s.hardMaxKm)
	}
}
