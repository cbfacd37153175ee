package transit

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

// 未设置的时刻
const TIME_NOT_SET = math.MinInt32

type PickDrop int

const (
	PICKDROP_SCHEDULED PickDrop = iota
	PICKDROP_NONE
	PICKDROP_CALL_AGENCY
	PICKDROP_COORDINATE_WITH_DRIVER
)

func (p PickDrop) IsRoutable() bool {
	return p != PICKDROP_NONE
}

// 灵活公交的上下车地点：单个站点或一片区域
type FlexLocation struct {
	ID   string
	Area orb.Polygon
	// 包含的公交站与街道顶点，单站点时只有该站
	Stops    []int
	Vertices []int
}

func (l *FlexLocation) IsArea() bool {
	return len(l.Area) > 0
}

func (l *FlexLocation) HasStop(stop int) bool {
	return lo.Contains(l.Stops, stop)
}

func (l *FlexLocation) HasVertex(v int) bool {
	return lo.Contains(l.Vertices, v)
}

// 可否在stop或街道顶点vertex处上下车，stop为负时只看区域是否覆盖vertex
func (l *FlexLocation) Serves(stop int, vertex int) bool {
	if stop >= 0 && l.HasStop(stop) {
		return true
	}
	return l.IsArea() && l.HasVertex(vertex)
}

type FlexStopTime struct {
	Location    *FlexLocation
	WindowStart int
	WindowEnd   int
	Arrival     int
	Departure   int
	Pickup      PickDrop
	DropOff     PickDrop
}

func (st *FlexStopTime) HasWindow() bool {
	return st.WindowStart != TIME_NOT_SET && st.WindowEnd != TIME_NOT_SET
}

func (st *FlexStopTime) midpoint() int {
	if !st.HasWindow() {
		return TIME_NOT_SET
	}
	return (st.WindowStart + st.WindowEnd) / 2
}

// 灵活公交（需求响应或区域内偏离）班次
type FlexTrip struct {
	ID        string
	RouteID   string
	StopTimes []FlexStopTime
}

// 计划离站时刻：离站、到站、时间窗中点依次回退
func (t *FlexTrip) ScheduledDeparture(i int) int {
	st := &t.StopTimes[i]
	if st.Departure != TIME_NOT_SET {
		return st.Departure
	}
	if st.Arrival != TIME_NOT_SET {
		return st.Arrival
	}
	return st.midpoint()
}

// 计划到站时刻：到站、离站、时间窗中点依次回退
func (t *FlexTrip) ScheduledArrival(i int) int {
	st := &t.StopTimes[i]
	if st.Arrival != TIME_NOT_SET {
		return st.Arrival
	}
	if st.Departure != TIME_NOT_SET {
		return st.Departure
	}
	return st.midpoint()
}

func (t *FlexTrip) IsBoardingPossible(i int) bool {
	return t.StopTimes[i].Pickup.IsRoutable()
}

func (t *FlexTrip) IsAlightingPossible(i int) bool {
	return t.StopTimes[i].DropOff.IsRoutable()
}

// 在from处不早于departureTime上车、在to处下车的最早上车时刻，不可行时为TIME_NOT_SET
func (t *FlexTrip) EarliestDepartureTime(departureTime int, from, to int, duration int) int {
	fromST, toST := &t.StopTimes[from], &t.StopTimes[to]
	if !fromST.HasWindow() {
		dep := t.ScheduledDeparture(from)
		if dep == TIME_NOT_SET || dep < departureTime {
			return TIME_NOT_SET
		}
		return dep
	}
	dep := max(departureTime, fromST.WindowStart)
	if dep > fromST.WindowEnd {
		return TIME_NOT_SET
	}
	if toST.HasWindow() && dep+duration > toST.WindowEnd {
		return TIME_NOT_SET
	}
	return dep
}

// 在to处不晚于arrivalTime下车的最晚下车时刻，不可行时为TIME_NOT_SET
func (t *FlexTrip) LatestArrivalTime(arrivalTime int, from, to int, duration int) int {
	fromST, toST := &t.StopTimes[from], &t.StopTimes[to]
	if !toST.HasWindow() {
		arr := t.ScheduledArrival(to)
		if arr == TIME_NOT_SET || arr > arrivalTime {
			return TIME_NOT_SET
		}
		return arr
	}
	arr := min(arrivalTime, toST.WindowEnd)
	if arr < toST.WindowStart {
		return TIME_NOT_SET
	}
	if fromST.HasWindow() && arr-duration < fromST.WindowStart {
		return TIME_NOT_SET
	}
	return arr
}

// 在clock时刻于i处上下车是否在服务时间内
func (t *FlexTrip) ServesAt(i int, clock int) bool {
	st := &t.StopTimes[i]
	if st.HasWindow() {
		return clock >= st.WindowStart && clock <= st.WindowEnd
	}
	if st.Departure == TIME_NOT_SET && st.Arrival == TIME_NOT_SET {
		return false
	}
	lo, hi := t.ScheduledArrival(i), t.ScheduledDeparture(i)
	return clock >= lo && clock <= hi
}
