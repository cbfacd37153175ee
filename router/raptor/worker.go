package raptor

import (
	"context"
	"sort"

	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/transit"
	"github.com/samber/lo"
)

type Request struct {
	// 搜索的出发时刻，同时是乘车代价的参考时刻
	DepartureTime int
	// 出发与上车的时间窗口
	SearchWindow  int
	MaxRounds     int
	BoardSlack    int
	AlightSlack   int
	TransferSlack int
	// 允许乘坐的公交方式，nil表示不限，空切片表示全部禁用
	Modes  []transit.Mode
	Access []AccessEgress
	Egress []AccessEgress
}

type Result struct {
	Paths     []*Path
	Rounds    int
	Truncated bool
	arrivals  map[int][]StopArrival
}

// 搜索结束时站点上保留的到站记录，按时间、乘车次数、代价排序
func (r *Result) ArrivalsAt(stop int) []StopArrival {
	return r.arrivals[stop]
}

// 多目标RAPTOR搜索
// Worker本身只读，可被并发请求共享；每次Route的状态独立
type Worker struct {
	data             *transit.Snapshot
	cost             CostCalculator
	probeWindowLimit int
	probeStep        int
}

func NewWorker(data *transit.Snapshot, cost CostCalculator, cfg config.RaptorConfig) *Worker {
	return &Worker{
		data:             data,
		cost:             cost,
		probeWindowLimit: cfg.ProbeWindowLimit,
		probeStep:        cfg.ProbeStep,
	}
}

type seed struct {
	access    AccessEgress
	departure int
}

type search struct {
	w     *Worker
	req   *Request
	arena []StopArrival
	stops map[int]*ParetoSet[int]
	dest  *ParetoSet[int]
	// 接入段按乘车次数分轮加入
	pending map[int][]seed
	egress  map[int][]AccessEgress
	modes   map[transit.Mode]bool
	// 本轮新加入的记录
	marked []int
}

func (w *Worker) Route(ctx context.Context, req *Request) *Result {
	res := &Result{arrivals: make(map[int][]StopArrival)}
	if len(req.Access) == 0 || len(req.Egress) == 0 {
		return res
	}
	s := &search{
		w:       w,
		req:     req,
		stops:   make(map[int]*ParetoSet[int]),
		pending: make(map[int][]seed),
		egress:  lo.GroupBy(req.Egress, func(e AccessEgress) int { return e.Stop() }),
	}
	if req.Modes != nil {
		s.modes = lo.SliceToMap(req.Modes, func(m transit.Mode) (transit.Mode, bool) { return m, true })
	}
	s.dest = NewParetoSet[int](destinationBetter(&s.arena))
	s.seed()
	for round := 0; round <= req.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			res.Truncated = true
			log.Warnf("raptor search truncated at round %d: %v", round, err)
			break
		}
		res.Rounds = round
		prev := s.marked
		s.marked = nil
		s.admitSeeds(round)
		if round > 0 {
			s.routePatterns(round, prev)
		}
		s.relaxTransfers(round)
		s.connectEgress(round)
		if len(s.marked) == 0 && !s.hasPendingAfter(round) {
			break
		}
	}
	res.Paths = s.paths()
	for stop, set := range s.stops {
		list := lo.Map(set.Elements(), func(h int, _ int) StopArrival { return s.arena[h] })
		sort.Slice(list, func(i, j int) bool {
			a, b := list[i], list[j]
			if a.Time != b.Time {
				return a.Time < b.Time
			}
			if a.Rides != b.Rides {
				return a.Rides < b.Rides
			}
			return a.Cost < b.Cost
		})
		res.arrivals[stop] = list
	}
	log.Debugf(
		"raptor search finished: %d rounds, %d arrivals, %d paths",
		res.Rounds, len(s.arena), len(res.Paths),
	)
	return res
}

func (s *search) seed() {
	latest := s.req.DepartureTime + s.req.SearchWindow
	for _, a := range s.req.Access {
		dep := a.EarliestDepartureTime(s.req.DepartureTime)
		if !isSet(dep) || dep > latest {
			continue
		}
		rides := a.NumberOfRides()
		s.pending[rides] = append(s.pending[rides], seed{access: a, departure: dep})
	}
}

func (s *search) hasPendingAfter(round int) bool {
	for rides := range s.pending {
		if rides > round {
			return true
		}
	}
	return false
}

func (s *search) stopSet(stop int) *ParetoSet[int] {
	set, ok := s.stops[stop]
	if !ok {
		set = NewParetoSet[int](arrivalBetter(&s.arena))
		set.OnEvict(func(h int) { s.arena[h].evicted = true })
		s.stops[stop] = set
	}
	return set
}

// 尝试加入到站记录，成功时返回下标
func (s *search) add(a StopArrival) (int, bool) {
	h := len(s.arena)
	s.arena = append(s.arena, a)
	if !s.stopSet(a.Stop).Add(h) {
		s.arena = s.arena[:h]
		return -1, false
	}
	s.marked = append(s.marked, h)
	return h, true
}

// 到站后可以再次出发的时刻
func (s *search) ready(a *StopArrival) int {
	if a.Kind == ARRIVAL_TRANSIT {
		return a.Time + s.req.AlightSlack
	}
	return a.Time
}

func (s *search) admitSeeds(round int) {
	for _, sd := range s.pending[round] {
		a := sd.access
		s.add(StopArrival{
			Stop:          a.Stop(),
			Time:          sd.departure + a.DurationInSeconds(),
			Rides:         a.NumberOfRides(),
			Cost:          a.GeneralizedCost(),
			OnBoard:       a.StopReachedOnBoard(),
			Round:         round,
			Previous:      -1,
			Kind:          ARRIVAL_ACCESS,
			DepartureTime: sd.departure,
			Start:         sd.departure,
			AccessEgress:  a,
		})
	}
	delete(s.pending, round)
}

func (s *search) routePatterns(round int, prev []int) {
	byStop := make(map[int][]int)
	patterns := make(map[int]bool)
	for _, h := range prev {
		a := &s.arena[h]
		if a.evicted {
			continue
		}
		byStop[a.Stop] = append(byStop[a.Stop], h)
		for _, p := range s.w.data.PatternsByStop[a.Stop] {
			if s.modes == nil || s.modes[s.w.data.Patterns[p].Mode] {
				patterns[p] = true
			}
		}
	}
	indexes := lo.Keys(patterns)
	sort.Ints(indexes)
	for _, pi := range indexes {
		s.routePattern(round, pi, byStop)
	}
}

func (s *search) routePattern(round int, pi int, byStop map[int][]int) {
	p := s.w.data.Patterns[pi]
	var pos int
	rides := NewParetoSet[patternRide](rideBetter(p, &pos))
	for ; pos < p.NumberOfStops(); pos++ {
		stop := p.Stops[pos]
		if p.CanAlight(pos) {
			for _, r := range rides.Elements() {
				alight := p.Trips[r.trip].Times[pos].Arrival
				prev := s.arena[r.prev]
				s.add(StopArrival{
					Stop:          stop,
					Time:          alight,
					Rides:         prev.Rides + 1,
					Cost:          s.w.cost.AlightingCost(r.boardCost, r.boardTime, alight, p.Mode),
					OnBoard:       true,
					Round:         round,
					Previous:      r.prev,
					Kind:          ARRIVAL_TRANSIT,
					DepartureTime: r.boardTime,
					Start:         prev.Start,
					Pattern:       pi,
					Trip:          r.trip,
					BoardPos:      r.boardPos,
					AlightPos:     pos,
				})
			}
		}
		if p.CanBoard(pos) {
			for _, h := range byStop[stop] {
				s.board(rides, p, pos, h)
			}
		}
	}
}

// 在pos处为到站记录h寻找可乘坐的班次
// 搜索窗口较小时按固定步长探测更晚的上车时刻
func (s *search) board(rides *ParetoSet[patternRide], p *transit.TripPattern, pos int, h int) {
	prev := s.arena[h]
	earliest := s.ready(&prev) + s.req.BoardSlack
	latest := earliest + s.req.SearchWindow
	probe := s.w.probeStep > 0 && s.req.SearchWindow <= s.w.probeWindowLimit
	t := earliest
	for t <= latest {
		ti, ok := p.FindTrip(pos, t, latest)
		if !ok {
			break
		}
		dep := p.Trips[ti].Times[pos].Departure
		boardCost := s.w.cost.BoardingCost(prev.Cost, prev.Time, dep, prev.Rides == 0, p.Mode)
		rides.Add(patternRide{
			prev:      h,
			trip:      ti,
			boardPos:  pos,
			boardTime: dep,
			boardCost: boardCost,
			relCost:   s.w.cost.RelativeRideCost(boardCost, dep, s.req.DepartureTime, p.Mode),
		})
		if !probe {
			break
		}
		// 跳过会找到同一班次的探测时刻
		t = earliest + ((dep-earliest)/s.w.probeStep+1)*s.w.probeStep
	}
}

// 乘车到达的记录沿步行换乘扩展
func (s *search) relaxTransfers(round int) {
	sources := append([]int(nil), s.marked...)
	for _, h := range sources {
		a := s.arena[h]
		if a.evicted || !a.OnBoard {
			continue
		}
		start := s.ready(&a)
		for _, tr := range s.w.data.Transfers.From(a.Stop) {
			s.add(StopArrival{
				Stop:          tr.To,
				Time:          start + tr.Duration + s.req.TransferSlack,
				Rides:         a.Rides,
				Cost:          a.Cost + s.w.cost.TransferCost(tr.Duration),
				OnBoard:       false,
				Round:         round,
				Previous:      h,
				Kind:          ARRIVAL_TRANSFER,
				DepartureTime: start,
				Start:         a.Start,
				Transfer:      tr,
			})
		}
	}
}

// 连接接出段，步行到达的记录只能连接以乘车开始的接出段
func (s *search) connectEgress(round int) {
	for _, h := range s.marked {
		a := s.arena[h]
		if a.evicted {
			continue
		}
		for _, e := range s.egress[a.Stop] {
			if !a.OnBoard && !e.StopReachedOnBoard() {
				continue
			}
			ready := s.ready(&a)
			dep := e.EarliestDepartureTime(ready)
			if !isSet(dep) {
				continue
			}
			d := len(s.arena)
			s.arena = append(s.arena, StopArrival{
				Stop:          a.Stop,
				Time:          dep + e.DurationInSeconds(),
				Rides:         a.Rides + e.NumberOfRides(),
				Cost:          a.Cost + s.w.cost.WaitCost(dep-ready) + e.GeneralizedCost(),
				Round:         round,
				Previous:      h,
				Kind:          ARRIVAL_EGRESS,
				DepartureTime: dep,
				Start:         a.Start,
				AccessEgress:  e,
			})
			if !s.dest.Add(d) {
				s.arena = s.arena[:d]
			}
		}
	}
}
