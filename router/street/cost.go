package street

import (
	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/planner/router/algo"
)

const (
	// A*估计使用的最高车速（m/s），保证估计值不超过真实代价
	MAX_DRIVE_SPEED = 33.3
)

// 步行代价：边长/步行速度，与时间无关
type WalkCostModel struct {
	Speed float64
}

func (m WalkCostModel) HeuristicEuclidean(p1 geometry.Point, p2 geometry.Point) float64 {
	return geometry.Distance(p1, p2) / m.Speed
}

func (m WalkCostModel) GetRuntimeEdgeWeight(attr algo.StreetEdgeAttr, v []float64, tIndex int) float64 {
	if !attr.Walkable {
		return algo.INF
	}
	return attr.Length / m.Speed
}

// 驾车代价：分时段通行时间
type DriveCostModel struct{}

func (m DriveCostModel) HeuristicEuclidean(p1 geometry.Point, p2 geometry.Point) float64 {
	return geometry.Distance(p1, p2) / MAX_DRIVE_SPEED
}

func (m DriveCostModel) GetRuntimeEdgeWeight(attr algo.StreetEdgeAttr, v []float64, tIndex int) float64 {
	if !attr.Drivable {
		return algo.INF
	}
	return v[tIndex]
}
