package flex

import (
	"context"
	"math"
	"sort"

	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/street"
	"git.fiblab.net/sim/planner/router/transit"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// 区域内上下车的起终点，不对应任何公交站
const ZONE_STOP = -1

// 起点或终点所在的街道顶点，可在覆盖它的区域内直接上下车
func ZonePoint(vertex int) street.NearbyStop {
	return street.NearbyStop{Stop: ZONE_STOP, Vertex: vertex}
}

// 灵活公交接驳段构造
type Builder struct {
	data *transit.Snapshot
	flex config.FlexConfig
	cost config.CostConfig
}

func NewBuilder(data *transit.Snapshot, cfg *config.Config) *Builder {
	return &Builder{data: data, flex: cfg.Flex, cost: cfg.Cost}
}

// 班次上的一个停靠位置
type stopping struct {
	trip *transit.FlexTrip
	idx  int
}

// 在n处可上车（pickup）或下车的班次位置
// n.Stop为负时表示区域内的街道顶点
func (b *Builder) stoppingsAt(n street.NearbyStop, pickup bool) []stopping {
	res := make([]stopping, 0)
	for _, trip := range b.data.FlexTrips {
		for i := range trip.StopTimes {
			st := &trip.StopTimes[i]
			if st.Location == nil || !st.Location.Serves(n.Stop, n.Vertex) {
				continue
			}
			if pickup && i+1 < len(trip.StopTimes) && trip.IsBoardingPossible(i) {
				res = append(res, stopping{trip: trip, idx: i})
			}
			if !pickup && i > 0 && trip.IsAlightingPossible(i) {
				res = append(res, stopping{trip: trip, idx: i})
			}
		}
	}
	return res
}

func (b *Builder) newPool() *pool.ResultPool[[]*AccessEgress] {
	return pool.NewWithResults[[]*AccessEgress]().WithMaxGoroutines(max(b.flex.Parallelism, 1))
}

// 候选接驳段的一条边，不可通行时返回false
type edge func(a *AccessEgress) bool

// 依次通过各边，任一边不可通行则整个候选作废
func traverse(a *AccessEgress, edges ...edge) bool {
	for _, e := range edges {
		if !e(a) {
			return false
		}
	}
	return true
}

func (b *Builder) flexEdge(calc *PathCalculator) edge {
	return func(a *AccessEgress) bool {
		if a.boardVertex == a.alightVertex {
			return false
		}
		path, ok := calc.Calculate(a.boardVertex, a.alightVertex, a.trip, a.boardIdx, a.alightIdx)
		if !ok || path.DurationSeconds > b.flex.MaxFlexTripDuration {
			return false
		}
		a.path = path
		a.flex = path.DurationSeconds
		return true
	}
}

// 公交侧的换乘边，tr为nil时原地换乘
func (b *Builder) transferEdge(tr *transit.Transfer) edge {
	return func(a *AccessEgress) bool {
		stop := a.alightStop
		if !a.access {
			stop = a.boardStop
		}
		if tr != nil {
			if a.access {
				stop = tr.To
				a.postFlex = tr.Duration
			} else {
				stop = tr.From
				a.preFlex = tr.Duration
			}
		}
		// 终到站没有线路经过时无法继续
		if len(b.data.PatternsByStop[stop]) == 0 {
			return false
		}
		a.stop = stop
		a.transfer = tr
		return true
	}
}

func (b *Builder) generalizedCost(walk, flex int) int {
	return int(math.Round(b.cost.WalkReluctance*float64(walk))) +
		b.cost.BoardCost +
		int(math.Round(b.cost.Reluctance(string(transit.MODE_FLEX))*float64(flex)))
}

// 起点一侧可原地换乘与步行换乘的所有方式
func (b *Builder) transfers(stop int, access bool) []*transit.Transfer {
	res := []*transit.Transfer{nil}
	list := b.data.Transfers.From(stop)
	if !access {
		list = b.data.Transfers.Into(stop)
	}
	for i := range list {
		res = append(res, &list[i])
	}
	return res
}

// 接入段：nearby为从起点步行可达的站点，可含起点所在的区域顶点（见ZonePoint）
func (b *Builder) Access(ctx context.Context, nearby []street.NearbyStop, calc *PathCalculator) []*AccessEgress {
	p := b.newPool()
	for _, walk := range nearby {
		for _, board := range b.stoppingsAt(walk, true) {
			p.Go(func() []*AccessEgress {
				if ctx.Err() != nil {
					return nil
				}
				return b.accessCandidates(walk, board, calc)
			})
		}
	}
	return b.finish(lo.Flatten(p.Wait()), "access")
}

func (b *Builder) accessCandidates(walk street.NearbyStop, board stopping, calc *PathCalculator) []*AccessEgress {
	res := make([]*AccessEgress, 0)
	trip := board.trip
	for alightIdx := board.idx + 1; alightIdx < len(trip.StopTimes); alightIdx++ {
		loc := trip.StopTimes[alightIdx].Location
		if loc == nil || !trip.IsAlightingPossible(alightIdx) {
			continue
		}
		for _, alightStop := range loc.Stops {
			for _, tr := range b.transfers(alightStop, true) {
				a := &AccessEgress{
					access:       true,
					preFlex:      walk.Duration,
					trip:         trip,
					boardIdx:     board.idx,
					alightIdx:    alightIdx,
					boardStop:    walk.Stop,
					alightStop:   alightStop,
					boardVertex:  walk.Vertex,
					alightVertex: b.data.Stops[alightStop].Vertex,
					walk:         walk,
				}
				if !traverse(a, b.flexEdge(calc), b.transferEdge(tr)) {
					continue
				}
				a.cost = b.generalizedCost(a.preFlex+a.postFlex, a.flex)
				res = append(res, a)
			}
		}
	}
	return res
}

// 接出段：nearby为步行可达终点的站点，可含终点所在的区域顶点
func (b *Builder) Egress(ctx context.Context, nearby []street.NearbyStop, calc *PathCalculator) []*AccessEgress {
	p := b.newPool()
	for _, walk := range nearby {
		for _, alight := range b.stoppingsAt(walk, false) {
			p.Go(func() []*AccessEgress {
				if ctx.Err() != nil {
					return nil
				}
				return b.egressCandidates(walk, alight, calc)
			})
		}
	}
	return b.finish(lo.Flatten(p.Wait()), "egress")
}

func (b *Builder) egressCandidates(walk street.NearbyStop, alight stopping, calc *PathCalculator) []*AccessEgress {
	res := make([]*AccessEgress, 0)
	trip := alight.trip
	for boardIdx := 0; boardIdx < alight.idx; boardIdx++ {
		loc := trip.StopTimes[boardIdx].Location
		if loc == nil || !trip.IsBoardingPossible(boardIdx) {
			continue
		}
		for _, boardStop := range loc.Stops {
			for _, tr := range b.transfers(boardStop, false) {
				a := &AccessEgress{
					postFlex:     walk.Duration,
					trip:         trip,
					boardIdx:     boardIdx,
					alightIdx:    alight.idx,
					boardStop:    boardStop,
					alightStop:   walk.Stop,
					boardVertex:  b.data.Stops[boardStop].Vertex,
					alightVertex: walk.Vertex,
					walk:         walk,
				}
				if !traverse(a, b.flexEdge(calc), b.transferEdge(tr)) {
					continue
				}
				a.cost = b.generalizedCost(a.preFlex+a.postFlex, a.flex)
				res = append(res, a)
			}
		}
	}
	return res
}

// 保留耗时与代价最优的候选，并按站点、耗时、代价、班次排序
func (b *Builder) finish(res []*AccessEgress, side string) []*AccessEgress {
	total := len(res)
	if b.flex.MaxCandidates > 0 && len(res) > b.flex.MaxCandidates {
		sort.SliceStable(res, func(i, j int) bool {
			if res[i].DurationInSeconds() != res[j].DurationInSeconds() {
				return res[i].DurationInSeconds() < res[j].DurationInSeconds()
			}
			return res[i].cost < res[j].cost
		})
		res = res[:b.flex.MaxCandidates]
	}
	sort.SliceStable(res, func(i, j int) bool {
		a, c := res[i], res[j]
		if a.stop != c.stop {
			return a.stop < c.stop
		}
		if a.DurationInSeconds() != c.DurationInSeconds() {
			return a.DurationInSeconds() < c.DurationInSeconds()
		}
		if a.cost != c.cost {
			return a.cost < c.cost
		}
		return a.trip.ID < c.trip.ID
	})
	log.Debugf("flex %s: %d candidates, %d kept", side, total, len(res))
	return res
}

// 直达灵活公交行程，origin与dest分别为起点、终点的步行可达站点
func (b *Builder) Direct(ctx context.Context, origin, dest []street.NearbyStop, calc *PathCalculator) []*Direct {
	p := pool.NewWithResults[[]*Direct]().WithMaxGoroutines(max(b.flex.Parallelism, 1))
	for _, access := range origin {
		for _, board := range b.stoppingsAt(access, true) {
			p.Go(func() []*Direct {
				if ctx.Err() != nil {
					return nil
				}
				return b.directCandidates(access, board, dest, calc)
			})
		}
	}
	res := lo.Flatten(p.Wait())
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Cost != res[j].Cost {
			return res[i].Cost < res[j].Cost
		}
		return res[i].Trip.ID < res[j].Trip.ID
	})
	return res
}

func (b *Builder) directCandidates(
	access street.NearbyStop, board stopping, dest []street.NearbyStop, calc *PathCalculator,
) []*Direct {
	res := make([]*Direct, 0)
	trip := board.trip
	for _, egress := range dest {
		if egress.Vertex == access.Vertex {
			continue
		}
		for alightIdx := board.idx + 1; alightIdx < len(trip.StopTimes); alightIdx++ {
			loc := trip.StopTimes[alightIdx].Location
			if loc == nil || !loc.Serves(egress.Stop, egress.Vertex) || !trip.IsAlightingPossible(alightIdx) {
				continue
			}
			path, ok := calc.Calculate(access.Vertex, egress.Vertex, trip, board.idx, alightIdx)
			if !ok || path.DurationSeconds > b.flex.MaxFlexTripDuration {
				continue
			}
			res = append(res, &Direct{
				Access:    access,
				Egress:    egress,
				Trip:      trip,
				BoardIdx:  board.idx,
				AlightIdx: alightIdx,
				Path:      path,
				Cost:      b.generalizedCost(access.Duration+egress.Duration, path.DurationSeconds),
			})
			break
		}
	}
	return res
}
