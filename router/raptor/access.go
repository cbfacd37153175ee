package raptor

import (
	"git.fiblab.net/sim/planner/router/street"
	"git.fiblab.net/sim/planner/router/transit"
)

// 接驳段（起点到首站或末站到终点）
// 搜索只依赖这组能力，不关心接驳的具体方式
type AccessEgress interface {
	// 公交侧的站点
	Stop() int
	DurationInSeconds() int
	GeneralizedCost() int
	// 接驳段中的乘车次数，步行为0，灵活公交为1
	NumberOfRides() int
	// 接入段以乘车结束，或接出段以乘车开始
	StopReachedOnBoard() bool
	// 不早于t出发时的实际出发时刻，不可行时为transit.TIME_NOT_SET
	EarliestDepartureTime(t int) int
	// 不晚于t到达时的实际到达时刻，不可行时为transit.TIME_NOT_SET
	LatestArrivalTime(t int) int
}

// 步行接驳，随时可以出发
type WalkAccessEgress struct {
	Nearby street.NearbyStop
	Cost   int
}

func (w *WalkAccessEgress) Stop() int {
	return w.Nearby.Stop
}

func (w *WalkAccessEgress) DurationInSeconds() int {
	return w.Nearby.Duration
}

func (w *WalkAccessEgress) GeneralizedCost() int {
	return w.Cost
}

func (w *WalkAccessEgress) NumberOfRides() int {
	return 0
}

func (w *WalkAccessEgress) StopReachedOnBoard() bool {
	return false
}

func (w *WalkAccessEgress) EarliestDepartureTime(t int) int {
	return t
}

func (w *WalkAccessEgress) LatestArrivalTime(t int) int {
	return t
}

var _ AccessEgress = (*WalkAccessEgress)(nil)

func isSet(t int) bool {
	return t != transit.TIME_NOT_SET
}
