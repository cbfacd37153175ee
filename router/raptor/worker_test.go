package raptor_test

import (
	"context"
	"testing"

	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/raptor"
	"git.fiblab.net/sim/planner/router/street"
	"git.fiblab.net/sim/planner/router/transit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trip(id string, times ...int) *transit.Trip {
	t := &transit.Trip{ID: id}
	for _, v := range times {
		t.Times = append(t.Times, transit.StopTime{Arrival: v, Departure: v})
	}
	return t
}

func pattern(t *testing.T, id string, stops []int, trips ...*transit.Trip) *transit.TripPattern {
	p, err := transit.NewTripPattern(id, "r-"+id, transit.MODE_BUS, stops, nil, nil, trips)
	require.NoError(t, err)
	return p
}

func snapshot(t *testing.T, stops []string, patterns []*transit.TripPattern, transfers ...transit.Transfer) *transit.Snapshot {
	index, err := transit.NewStopIndex(stops)
	require.NoError(t, err)
	s := &transit.Snapshot{
		StopIndex:      index,
		Patterns:       patterns,
		PatternsByStop: make([][]int, index.Size()),
		Transfers:      transit.NewTransferTable(index.Size()),
	}
	for pi, p := range patterns {
		for _, stop := range p.Stops {
			s.PatternsByStop[stop] = append(s.PatternsByStop[stop], pi)
		}
	}
	for _, tr := range transfers {
		s.Transfers.Add(tr)
	}
	return s
}

func walk(stop, duration int) raptor.AccessEgress {
	return &raptor.WalkAccessEgress{
		Nearby: street.NearbyStop{Stop: stop, Duration: duration},
		Cost:   2 * duration,
	}
}

// 以乘车到达/出发的固定时刻接驳，模拟灵活公交
type fakeFlex struct {
	stop      int
	departure int
	duration  int
}

func (f *fakeFlex) Stop() int                { return f.stop }
func (f *fakeFlex) DurationInSeconds() int   { return f.duration }
func (f *fakeFlex) GeneralizedCost() int     { return f.duration }
func (f *fakeFlex) NumberOfRides() int       { return 1 }
func (f *fakeFlex) StopReachedOnBoard() bool { return true }
func (f *fakeFlex) EarliestDepartureTime(t int) int {
	if t > f.departure {
		return transit.TIME_NOT_SET
	}
	return f.departure
}
func (f *fakeFlex) LatestArrivalTime(t int) int {
	if t < f.departure+f.duration {
		return transit.TIME_NOT_SET
	}
	return f.departure + f.duration
}

func request(maxRounds int, access, egress []raptor.AccessEgress) *raptor.Request {
	return &raptor.Request{
		DepartureTime: 0,
		SearchWindow:  3600,
		MaxRounds:     maxRounds,
		Access:        access,
		Egress:        egress,
	}
}

func newWorker(s *transit.Snapshot, mutate func(*config.Config)) *raptor.Worker {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	return raptor.NewWorker(s, raptor.NewGeneralizedCostCalculator(cfg.Cost), cfg.Raptor)
}

func TestSingleRide(t *testing.T) {
	const A, B, C = 0, 1, 2
	s := snapshot(t, []string{"A", "B", "C"}, []*transit.TripPattern{
		pattern(t, "p", []int{A, B, C}, trip("t", 100, 200, 300)),
	})
	w := newWorker(s, nil)
	res := w.Route(context.Background(), request(4, []raptor.AccessEgress{walk(A, 0)}, []raptor.AccessEgress{walk(C, 0)}))

	arrivals := res.ArrivalsAt(C)
	require.Len(t, arrivals, 1)
	assert.Equal(t, 1, arrivals[0].Rides)
	assert.Equal(t, 300, arrivals[0].Time)
	assert.Equal(t, raptor.ARRIVAL_TRANSIT, arrivals[0].Kind)

	require.Len(t, res.Paths, 1)
	path := res.Paths[0]
	assert.Equal(t, 300, path.ArrivalTime)
	assert.Equal(t, 1, path.Rides)
	require.Len(t, path.Legs, 3)
	assert.Equal(t, raptor.ARRIVAL_ACCESS, path.Legs[0].Kind)
	assert.Equal(t, raptor.ARRIVAL_TRANSIT, path.Legs[1].Kind)
	assert.Equal(t, 100, path.Legs[1].StartTime)
	assert.Equal(t, 300, path.Legs[1].EndTime)
	assert.Equal(t, A, path.Legs[1].FromStop)
	assert.Equal(t, "t", path.Legs[1].Trip.ID)
	assert.Equal(t, raptor.ARRIVAL_EGRESS, path.Legs[2].Kind)
	// 代价：上车60 + 等车100 + 乘车200
	assert.Equal(t, 360, path.Cost)
	assert.False(t, res.Truncated)
}

func TestEmptyAccessOrEgress(t *testing.T) {
	s := snapshot(t, []string{"A", "B"}, []*transit.TripPattern{
		pattern(t, "p", []int{0, 1}, trip("t", 100, 200)),
	})
	w := newWorker(s, nil)
	res := w.Route(context.Background(), request(4, nil, []raptor.AccessEgress{walk(1, 0)}))
	assert.Empty(t, res.Paths)
	res = w.Route(context.Background(), request(4, []raptor.AccessEgress{walk(0, 0)}, nil))
	assert.Empty(t, res.Paths)
	assert.False(t, res.Truncated)
}

// A -> C 慢车一次到达，A -> B -> C 换乘更快
func monotonicityNetwork(t *testing.T) *transit.Snapshot {
	const A, B, C = 0, 1, 2
	return snapshot(t, []string{"A", "B", "C"}, []*transit.TripPattern{
		pattern(t, "slow", []int{A, C}, trip("s", 100, 1000)),
		pattern(t, "ab", []int{A, B}, trip("ab", 100, 200)),
		pattern(t, "bc", []int{B, C}, trip("bc", 300, 400)),
	})
}

func TestMonotonicityInRounds(t *testing.T) {
	s := monotonicityNetwork(t)
	w := newWorker(s, nil)
	access := []raptor.AccessEgress{walk(0, 0)}
	egress := []raptor.AccessEgress{walk(2, 0)}

	one := w.Route(context.Background(), request(1, access, egress))
	require.Len(t, one.Paths, 1)
	assert.Equal(t, 1000, one.Paths[0].ArrivalTime)

	two := w.Route(context.Background(), request(2, access, egress))
	require.Len(t, two.Paths, 2)
	assert.Equal(t, 400, two.Paths[0].ArrivalTime)
	assert.Equal(t, 2, two.Paths[0].Rides)
	for _, p := range one.Paths {
		found := false
		for _, q := range two.Paths {
			if p.ArrivalTime == q.ArrivalTime && p.Rides == q.Rides && p.Cost == q.Cost {
				found = true
			}
		}
		assert.True(t, found)
	}
}

func TestTransferAndFlexAccess(t *testing.T) {
	const A, B, D, E = 0, 1, 2, 3
	s := snapshot(t, []string{"A", "B", "D", "E"}, []*transit.TripPattern{
		pattern(t, "p1", []int{A, B}, trip("t1", 100, 200)),
		pattern(t, "p2", []int{D, E}, trip("t2", 300, 400), trip("t3", 150, 350)),
	}, transit.Transfer{From: B, To: D, Duration: 60, Distance: 80})
	w := newWorker(s, nil)

	res := w.Route(context.Background(), request(4, []raptor.AccessEgress{walk(A, 0)}, []raptor.AccessEgress{walk(E, 0)}))
	require.Len(t, res.Paths, 1)
	path := res.Paths[0]
	assert.Equal(t, 400, path.ArrivalTime)
	assert.Equal(t, 2, path.Rides)
	kinds := []raptor.ArrivalKind{}
	for _, leg := range path.Legs {
		kinds = append(kinds, leg.Kind)
	}
	assert.Equal(t, []raptor.ArrivalKind{
		raptor.ARRIVAL_ACCESS, raptor.ARRIVAL_TRANSIT, raptor.ARRIVAL_TRANSFER, raptor.ARRIVAL_TRANSIT, raptor.ARRIVAL_EGRESS,
	}, kinds)
	assert.Equal(t, 200, path.Legs[2].StartTime)
	assert.Equal(t, 260, path.Legs[2].EndTime)

	// 乘车到达B的灵活公交接入段在第1轮参与换乘
	flex := &fakeFlex{stop: B, departure: 0, duration: 60}
	res = w.Route(context.Background(), request(4, []raptor.AccessEgress{flex}, []raptor.AccessEgress{walk(E, 0)}))
	require.NotEmpty(t, res.Paths)
	best := res.Paths[0]
	assert.Equal(t, 350, best.ArrivalTime)
	assert.Equal(t, 2, best.Rides)
	assert.Equal(t, raptor.ARRIVAL_TRANSFER, best.Legs[1].Kind)
	assert.Equal(t, "t3", best.Legs[2].Trip.ID)
}

func TestWalkArrivalNeedsOnBoardEgress(t *testing.T) {
	s := snapshot(t, []string{"A", "B"}, []*transit.TripPattern{
		pattern(t, "p", []int{0, 1}, trip("t", 100, 200)),
	})
	w := newWorker(s, nil)
	// 步行接入后不能直接步行接出
	res := w.Route(context.Background(), request(4, []raptor.AccessEgress{walk(0, 30)}, []raptor.AccessEgress{walk(0, 30)}))
	assert.Empty(t, res.Paths)

	// 以乘车开始的接出段可以连接
	flex := &fakeFlex{stop: 0, departure: 600, duration: 300}
	res = w.Route(context.Background(), request(4, []raptor.AccessEgress{walk(0, 30)}, []raptor.AccessEgress{flex}))
	require.Len(t, res.Paths, 1)
	assert.Equal(t, 900, res.Paths[0].ArrivalTime)
	assert.Equal(t, 1, res.Paths[0].Rides)
	assert.Equal(t, 0, res.Paths[0].DepartureTime)
}

func TestBoardingProbe(t *testing.T) {
	const A, B = 0, 1
	// 后一班车更快，等待代价低于乘车代价时值得等
	s := snapshot(t, []string{"A", "B"}, []*transit.TripPattern{
		pattern(t, "p", []int{A, B}, trip("slow", 100, 300), trip("fast", 200, 310)),
	})
	access := []raptor.AccessEgress{walk(A, 0)}
	egress := []raptor.AccessEgress{walk(B, 0)}
	cheapWait := func(cfg *config.Config) {
		cfg.Cost.WaitReluctance = 0.5
	}

	w := newWorker(s, cheapWait)
	res := w.Route(context.Background(), request(2, access, egress))
	assert.Len(t, res.ArrivalsAt(B), 2)
	assert.Len(t, res.Paths, 2)

	// 关闭探测只乘坐最早的一班
	w = newWorker(s, func(cfg *config.Config) {
		cheapWait(cfg)
		cfg.Raptor.ProbeWindowLimit = 0
	})
	res = w.Route(context.Background(), request(2, access, egress))
	require.Len(t, res.ArrivalsAt(B), 1)
	assert.Equal(t, 300, res.ArrivalsAt(B)[0].Time)
}

func TestOvertakingTrip(t *testing.T) {
	const A, B = 0, 1
	// express晚发车但先到
	s := snapshot(t, []string{"A", "B"}, []*transit.TripPattern{
		pattern(t, "p", []int{A, B}, trip("slow", 100, 1000), trip("express", 200, 400)),
	})
	w := newWorker(s, nil)
	res := w.Route(context.Background(), request(2, []raptor.AccessEgress{walk(A, 0)}, []raptor.AccessEgress{walk(B, 0)}))
	arrivals := res.ArrivalsAt(B)
	require.Len(t, arrivals, 1)
	assert.Equal(t, 400, arrivals[0].Time)
	// 上车60 + 等待200 + 乘车200
	assert.Equal(t, 460, arrivals[0].Cost)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, "express", res.Paths[0].Legs[1].Trip.ID)

	// 不超车时仍只保留较早的班次
	s = snapshot(t, []string{"A", "B"}, []*transit.TripPattern{
		pattern(t, "p", []int{A, B}, trip("early", 100, 300), trip("late", 200, 400)),
	})
	res = newWorker(s, nil).Route(context.Background(), request(2, []raptor.AccessEgress{walk(A, 0)}, []raptor.AccessEgress{walk(B, 0)}))
	require.Len(t, res.Paths, 1)
	assert.Equal(t, "early", res.Paths[0].Legs[1].Trip.ID)
}

func TestSearchWindowBoundsBoarding(t *testing.T) {
	s := snapshot(t, []string{"A", "B"}, []*transit.TripPattern{
		pattern(t, "p", []int{0, 1}, trip("t", 5000, 5100)),
	})
	w := newWorker(s, nil)
	res := w.Route(context.Background(), request(2, []raptor.AccessEgress{walk(0, 0)}, []raptor.AccessEgress{walk(1, 0)}))
	assert.Empty(t, res.Paths)
}

func TestCancelledContextTruncates(t *testing.T) {
	s := monotonicityNetwork(t)
	w := newWorker(s, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := w.Route(ctx, request(4, []raptor.AccessEgress{walk(0, 0)}, []raptor.AccessEgress{walk(2, 0)}))
	assert.True(t, res.Truncated)
	assert.Empty(t, res.Paths)
}

func TestModeFilter(t *testing.T) {
	const A, B = 0, 1
	fast, err := transit.NewTripPattern("subway", "r-subway", transit.MODE_SUBWAY, []int{A, B}, nil, nil,
		[]*transit.Trip{trip("s1", 100, 200)})
	require.NoError(t, err)
	s := snapshot(t, []string{"A", "B"}, []*transit.TripPattern{
		fast,
		pattern(t, "bus", []int{A, B}, trip("b1", 100, 400)),
	})
	w := newWorker(s, nil)
	access, egress := []raptor.AccessEgress{walk(A, 0)}, []raptor.AccessEgress{walk(B, 0)}

	res := w.Route(context.Background(), request(2, access, egress))
	require.Len(t, res.Paths, 1)
	assert.Equal(t, 200, res.Paths[0].ArrivalTime)

	req := request(2, access, egress)
	req.Modes = []transit.Mode{transit.MODE_BUS}
	res = w.Route(context.Background(), req)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, 400, res.Paths[0].ArrivalTime)
	assert.Equal(t, "b1", res.Paths[0].Legs[1].Trip.ID)

	// 空切片禁用全部线路
	req.Modes = []transit.Mode{}
	res = w.Route(context.Background(), req)
	assert.Empty(t, res.Paths)
}
