package raptor

import "git.fiblab.net/sim/planner/router/transit"

type ArrivalKind int

const (
	ARRIVAL_ACCESS ArrivalKind = iota
	ARRIVAL_TRANSIT
	ARRIVAL_TRANSFER
	ARRIVAL_EGRESS
)

func (k ArrivalKind) String() string {
	switch k {
	case ARRIVAL_ACCESS:
		return "access"
	case ARRIVAL_TRANSIT:
		return "transit"
	case ARRIVAL_TRANSFER:
		return "transfer"
	case ARRIVAL_EGRESS:
		return "egress"
	}
	return "unknown"
}

// 到站记录，存放在数组中并以下标引用，Previous为前一条记录的下标（-1表示无）
type StopArrival struct {
	Stop  int
	Time  int
	Rides int
	Cost  int
	// 乘车到达（可以继续步行换乘）
	OnBoard  bool
	Round    int
	Previous int
	Kind     ArrivalKind
	// 本段的出发时刻
	DepartureTime int
	// 整个行程的出发时刻
	Start int

	AccessEgress AccessEgress
	Pattern      int
	Trip         int
	BoardPos     int
	AlightPos    int
	Transfer     transit.Transfer

	evicted bool
}

// 同一站点的到站记录比较：时间、乘车次数、代价，以及是否乘车到达
func arrivalBetter(arena *[]StopArrival) Better[int] {
	return func(a, b int) bool {
		x, y := &(*arena)[a], &(*arena)[b]
		return x.Time < y.Time || x.Rides < y.Rides || x.Cost < y.Cost || (x.OnBoard && !y.OnBoard)
	}
}

// 终点的比较：额外偏好更晚出发
func destinationBetter(arena *[]StopArrival) Better[int] {
	return func(a, b int) bool {
		x, y := &(*arena)[a], &(*arena)[b]
		return x.Time < y.Time || x.Rides < y.Rides || x.Cost < y.Cost || x.Start > y.Start
	}
}

// 线路上的乘车候选
type patternRide struct {
	prev      int
	trip      int
	boardPos  int
	boardTime int
	// 上车时的累计代价
	boardCost int
	// 相对参考时刻的代价
	relCost int
}

// 乘车候选的比较：相对代价，以及pos之后各站的到达时刻
// 无超车时下标更小的班次在之后各站都不晚到
func rideBetter(p *transit.TripPattern, pos *int) Better[patternRide] {
	if !p.Overtaking() {
		return func(a, b patternRide) bool {
			return a.trip < b.trip || a.relCost < b.relCost
		}
	}
	return func(a, b patternRide) bool {
		if a.relCost < b.relCost {
			return true
		}
		x, y := p.Trips[a.trip], p.Trips[b.trip]
		for i := *pos + 1; i < p.NumberOfStops(); i++ {
			if x.Times[i].Arrival < y.Times[i].Arrival {
				return true
			}
		}
		return false
	}
}
