package flex

import (
	"git.fiblab.net/sim/planner/router/raptor"
	"git.fiblab.net/sim/planner/router/street"
	"git.fiblab.net/sim/planner/router/transit"
)

// 以灵活公交接驳的接入/接出段
// 接入：起点 -步行-> 上车点 -灵活公交-> 下车点 -换乘-> 站点
// 接出：站点 -换乘-> 上车点 -灵活公交-> 下车点 -步行-> 终点
type AccessEgress struct {
	access bool
	stop   int
	// 三段耗时（s）
	preFlex  int
	flex     int
	postFlex int
	cost     int

	trip      *transit.FlexTrip
	boardIdx  int
	alightIdx int
	// 上下车的公交站，区域内上下车时为ZONE_STOP
	boardStop  int
	alightStop int
	// 上下车的街道顶点
	boardVertex  int
	alightVertex int
	path         FlexPath
	// 起终点一侧的步行段
	walk street.NearbyStop
	// 公交侧的换乘，原地不动时为nil
	transfer *transit.Transfer
}

func (a *AccessEgress) Stop() int {
	return a.stop
}

func (a *AccessEgress) DurationInSeconds() int {
	return a.preFlex + a.flex + a.postFlex
}

func (a *AccessEgress) GeneralizedCost() int {
	return a.cost
}

func (a *AccessEgress) NumberOfRides() int {
	return 1
}

func (a *AccessEgress) StopReachedOnBoard() bool {
	if a.access {
		return a.postFlex == 0
	}
	return a.preFlex == 0
}

func (a *AccessEgress) EarliestDepartureTime(t int) int {
	board := a.trip.EarliestDepartureTime(t+a.preFlex, a.boardIdx, a.alightIdx, a.flex)
	if board == transit.TIME_NOT_SET {
		return transit.TIME_NOT_SET
	}
	return board - a.preFlex
}

func (a *AccessEgress) LatestArrivalTime(t int) int {
	alight := a.trip.LatestArrivalTime(t-a.postFlex, a.boardIdx, a.alightIdx, a.flex)
	if alight == transit.TIME_NOT_SET {
		return transit.TIME_NOT_SET
	}
	return alight + a.postFlex
}

func (a *AccessEgress) IsAccess() bool {
	return a.access
}

func (a *AccessEgress) PreFlexSeconds() int {
	return a.preFlex
}

func (a *AccessEgress) FlexSeconds() int {
	return a.flex
}

func (a *AccessEgress) PostFlexSeconds() int {
	return a.postFlex
}

func (a *AccessEgress) Trip() *transit.FlexTrip {
	return a.trip
}

func (a *AccessEgress) BoardIndex() int {
	return a.boardIdx
}

func (a *AccessEgress) AlightIndex() int {
	return a.alightIdx
}

func (a *AccessEgress) BoardStop() int {
	return a.boardStop
}

func (a *AccessEgress) AlightStop() int {
	return a.alightStop
}

func (a *AccessEgress) FlexPath() FlexPath {
	return a.path
}

func (a *AccessEgress) Walk() street.NearbyStop {
	return a.walk
}

func (a *AccessEgress) Transfer() (transit.Transfer, bool) {
	if a.transfer == nil {
		return transit.Transfer{}, false
	}
	return *a.transfer, true
}

var _ raptor.AccessEgress = (*AccessEgress)(nil)

// 不经过固定线路的灵活公交行程：起点 -步行-> 上车点 -灵活公交-> 下车点 -步行-> 终点
type Direct struct {
	Access    street.NearbyStop
	Egress    street.NearbyStop
	Trip      *transit.FlexTrip
	BoardIdx  int
	AlightIdx int
	Path      FlexPath
	Cost      int
}

// 各段的实际时刻
type Schedule struct {
	Start  int
	Board  int
	Alight int
	End    int
}

// 按出发时刻（arriveBy为false）或到达时刻排定行程
// 平移后的上下车时刻必须落在班次的服务时间内
func (d *Direct) Schedule(t int, arriveBy bool) (Schedule, bool) {
	flex := d.Path.DurationSeconds
	var board, alight int
	if arriveBy {
		alight = d.Trip.LatestArrivalTime(t-d.Egress.Duration, d.BoardIdx, d.AlightIdx, flex)
		if alight == transit.TIME_NOT_SET {
			return Schedule{}, false
		}
		board = alight - flex
	} else {
		board = d.Trip.EarliestDepartureTime(t+d.Access.Duration, d.BoardIdx, d.AlightIdx, flex)
		if board == transit.TIME_NOT_SET {
			return Schedule{}, false
		}
		alight = board + flex
	}
	if !d.Trip.ServesAt(d.BoardIdx, board) || !d.Trip.ServesAt(d.AlightIdx, alight) {
		return Schedule{}, false
	}
	return Schedule{
		Start:  board - d.Access.Duration,
		Board:  board,
		Alight: alight,
		End:    alight + d.Egress.Duration,
	}, true
}
