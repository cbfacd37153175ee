package raptor

import (
	"math"

	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/transit"
)

// 广义代价计算
// 乘车代价相对于本次搜索的出发时刻计算，使不同时刻上车的候选可以比较
type CostCalculator interface {
	// 上车时的累计代价，含等车
	BoardingCost(prevCost, prevArrival, boardTime int, firstBoarding bool, mode transit.Mode) int
	// 上车代价扣除从参考时刻到上车时刻的乘车代价，用于同一线路上候选的比较
	RelativeRideCost(boardingCost, boardTime, ref int, mode transit.Mode) int
	AlightingCost(boardingCost, boardTime, alightTime int, mode transit.Mode) int
	TransferCost(duration int) int
	WaitCost(duration int) int
}

type GeneralizedCostCalculator struct {
	cfg config.CostConfig
}

func NewGeneralizedCostCalculator(cfg config.CostConfig) *GeneralizedCostCalculator {
	return &GeneralizedCostCalculator{cfg: cfg}
}

func round(v float64) int {
	return int(math.Round(v))
}

func (c *GeneralizedCostCalculator) BoardingCost(
	prevCost, prevArrival, boardTime int, firstBoarding bool, mode transit.Mode,
) int {
	cost := prevCost + c.cfg.BoardCost + round(c.cfg.WaitReluctance*float64(boardTime-prevArrival))
	if !firstBoarding {
		cost += c.cfg.TransferCost
	}
	return cost
}

func (c *GeneralizedCostCalculator) RelativeRideCost(boardingCost, boardTime, ref int, mode transit.Mode) int {
	return boardingCost - round(c.cfg.Reluctance(string(mode))*float64(boardTime-ref))
}

func (c *GeneralizedCostCalculator) AlightingCost(boardingCost, boardTime, alightTime int, mode transit.Mode) int {
	return boardingCost + round(c.cfg.Reluctance(string(mode))*float64(alightTime-boardTime))
}

func (c *GeneralizedCostCalculator) TransferCost(duration int) int {
	return round(c.cfg.WalkReluctance * float64(duration))
}

func (c *GeneralizedCostCalculator) WaitCost(duration int) int {
	return round(c.cfg.WaitReluctance * float64(duration))
}

var _ CostCalculator = (*GeneralizedCostCalculator)(nil)
