package raptor

import (
	"sort"

	"git.fiblab.net/sim/planner/router/transit"
)

// 行程中的一段
type PathLeg struct {
	Kind ArrivalKind
	// 公交侧站点，起点/终点为-1
	FromStop  int
	ToStop    int
	StartTime int
	EndTime   int
	Cost      int

	AccessEgress AccessEgress
	Pattern      *transit.TripPattern
	Trip         *transit.Trip
	BoardPos     int
	AlightPos    int
	Transfer     transit.Transfer
}

// 搜索得到的一条完整行程
type Path struct {
	DepartureTime int
	ArrivalTime   int
	Rides         int
	Cost          int
	Legs          []PathLeg
}

func (s *search) paths() []*Path {
	res := make([]*Path, 0, s.dest.Size())
	for _, h := range s.dest.Elements() {
		res = append(res, s.reconstruct(h))
	}
	sort.SliceStable(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if a.ArrivalTime != b.ArrivalTime {
			return a.ArrivalTime < b.ArrivalTime
		}
		if a.Rides != b.Rides {
			return a.Rides < b.Rides
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.DepartureTime > b.DepartureTime
	})
	return res
}

// 沿Previous回溯
func (s *search) reconstruct(h int) *Path {
	chain := []int{}
	for cur := h; cur >= 0; cur = s.arena[cur].Previous {
		chain = append(chain, cur)
	}
	legs := make([]PathLeg, 0, len(chain))
	prevCost := 0
	for i := len(chain) - 1; i >= 0; i-- {
		a := &s.arena[chain[i]]
		leg := PathLeg{
			Kind:      a.Kind,
			StartTime: a.DepartureTime,
			EndTime:   a.Time,
			Cost:      a.Cost - prevCost,
		}
		switch a.Kind {
		case ARRIVAL_ACCESS:
			leg.FromStop, leg.ToStop = -1, a.Stop
			leg.AccessEgress = a.AccessEgress
		case ARRIVAL_TRANSIT:
			p := s.w.data.Patterns[a.Pattern]
			leg.FromStop, leg.ToStop = p.Stops[a.BoardPos], a.Stop
			leg.Pattern, leg.Trip = p, p.Trips[a.Trip]
			leg.BoardPos, leg.AlightPos = a.BoardPos, a.AlightPos
		case ARRIVAL_TRANSFER:
			leg.FromStop, leg.ToStop = a.Transfer.From, a.Transfer.To
			leg.EndTime = a.DepartureTime + a.Transfer.Duration
			leg.Transfer = a.Transfer
		case ARRIVAL_EGRESS:
			leg.FromStop, leg.ToStop = a.Stop, -1
			leg.AccessEgress = a.AccessEgress
		}
		legs = append(legs, leg)
		prevCost = a.Cost
	}
	last := &s.arena[h]
	return &Path{
		DepartureTime: legs[0].StartTime,
		ArrivalTime:   last.Time,
		Rides:         last.Rides,
		Cost:          last.Cost,
		Legs:          legs,
	}
}
