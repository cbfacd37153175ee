package router_test

import (
	"context"
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router"
	"git.fiblab.net/sim/planner/router/itinerary"
	"git.fiblab.net/sim/planner/router/transit"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

// 一条东西向道路，x = 0, 500, 1000, 3000, 3500, 4000
// 站点A在500，B在3500，公交线路A -> B
// 灵活公交f1可在A、B之间全天往返
func buildRouter(t *testing.T, mutate func(cfg *config.Config)) *router.Router {
	return buildRouterFrom(t, corridorDoc(), mutate)
}

// 顶点依次位于xs，相邻顶点之间为双向道路，边号从11开始
func addRoad(doc *transit.Document, xs ...float64) {
	for i, x := range xs {
		doc.Vertices = append(doc.Vertices, transit.VertexDoc{ID: int64(i + 1), X: x})
		if i > 0 {
			doc.Edges = append(doc.Edges, transit.EdgeDoc{
				ID: int64(10 + i), From: int64(i), To: int64(i + 1),
				Walkable: true, Drivable: true, Bidirectional: true,
			})
		}
	}
}

func buildRouterFrom(t *testing.T, doc *transit.Document, mutate func(cfg *config.Config)) *router.Router {
	cfg := config.Default()
	cfg.Street.WalkSpeed = 1
	cfg.Street.DriveSpeed = 10
	if mutate != nil {
		mutate(cfg)
	}
	data, err := transit.Build(doc, cfg)
	require.NoError(t, err)
	r, err := router.New(transit.NewHolder(data), cfg)
	require.NoError(t, err)
	return r
}

func corridorDoc() *transit.Document {
	doc := &transit.Document{
		Stops: []transit.StopDoc{
			{ID: "A", Name: "A", X: 500, Vertex: int64Ptr(2)},
			{ID: "B", Name: "B", X: 3500, Vertex: int64Ptr(5)},
		},
		Patterns: []transit.PatternDoc{{
			ID: "p1", RouteID: "r1", Mode: "BUS", Stops: []string{"A", "B"},
			Trips: []transit.TripDoc{
				{ID: "t1", Times: [][2]int{{600, 600}, {1200, 1200}}},
				{ID: "t2", Times: [][2]int{{1800, 1800}, {2400, 2400}}},
			},
		}},
		FlexLocations: []transit.FlexLocationDoc{
			{ID: "LA", Stop: "A"},
			{ID: "LB", Stop: "B"},
		},
		FlexTrips: []transit.FlexTripDoc{{
			ID: "f1", RouteID: "fr",
			StopTimes: []transit.FlexStopTimeDoc{
				{Location: "LA", WindowStart: intPtr(0), WindowEnd: intPtr(7200)},
				{Location: "LB", WindowStart: intPtr(0), WindowEnd: intPtr(7200)},
			},
		}},
	}
	addRoad(doc, 0, 500, 1000, 3000, 3500, 4000)
	return doc
}

func corridorRequest(dateTime int, arriveBy bool) *router.Request {
	return &router.Request{
		From:     geometry.Point{X: 0, Y: 0},
		To:       geometry.Point{X: 4000, Y: 0},
		DateTime: dateTime,
		ArriveBy: arriveBy,
	}
}

func legModes(it *itinerary.Itinerary) []transit.Mode {
	return lo.Map(it.Legs, func(l *itinerary.Leg, _ int) transit.Mode { return l.Mode })
}

func TestRouteTransit(t *testing.T) {
	r := buildRouter(t, func(cfg *config.Config) { cfg.Flex.Enabled = false })
	its, err := r.Route(context.Background(), corridorRequest(0, false))
	require.NoError(t, err)
	require.Len(t, its, 1)
	it := its[0]
	assert.Equal(t, []transit.Mode{transit.MODE_WALK, transit.MODE_BUS, transit.MODE_WALK}, legModes(it))
	// 步行接入平移到紧接上车之前
	assert.Equal(t, 100, it.StartTime())
	assert.Equal(t, 600, it.Legs[0].EndTime)
	assert.Equal(t, 1700, it.EndTime())
	assert.Equal(t, 2760, it.GeneralizedCost)
	assert.Equal(t, lo.SumBy(it.Legs, func(l *itinerary.Leg) int { return l.GeneralizedCost }), it.GeneralizedCost)

	bus := it.Legs[1]
	assert.Equal(t, "r1", bus.RouteID)
	assert.Equal(t, "t1", bus.TripID)
	assert.Equal(t, "p1", bus.PatternID)
	assert.Equal(t, "A", bus.From.StopID)
	assert.Equal(t, "B", bus.To.StopID)
	assert.InDelta(t, 3000.0, bus.Distance, 1e-6)

	walk := it.Legs[0]
	assert.Equal(t, -1, walk.From.Stop)
	assert.InDelta(t, 500.0, walk.Distance, 1e-6)
	assert.Equal(t, []int64{11}, walk.Edges)
	assert.Equal(t, []int64{15}, it.Legs[2].Edges)
}

func TestRouteFlex(t *testing.T) {
	r := buildRouter(t, nil)
	its, err := r.Route(context.Background(), corridorRequest(0, false))
	require.NoError(t, err)
	require.Len(t, its, 1)
	it := its[0]
	assert.True(t, it.HasFlex())
	assert.Equal(t, []transit.Mode{transit.MODE_WALK, transit.MODE_FLEX, transit.MODE_WALK}, legModes(it))
	assert.Equal(t, 0, it.StartTime())
	assert.Equal(t, 1300, it.EndTime())
	// 步行 2*1000 + 上车 60 + 灵活公交 1.2*300
	assert.Equal(t, 2420, it.GeneralizedCost)

	fl := it.Legs[1]
	assert.Equal(t, "f1", fl.TripID)
	assert.Equal(t, "fr", fl.RouteID)
	assert.Equal(t, 500, fl.StartTime)
	assert.Equal(t, 800, fl.EndTime)
	assert.InDelta(t, 3000.0, fl.Distance, 1e-6)
	assert.Equal(t, []int64{12, 13, 14}, fl.Edges)
}

func TestRouteFlexZone(t *testing.T) {
	// 区域Z覆盖起点所在的顶点1以及A，fz从Z开往B
	doc := corridorDoc()
	doc.FlexLocations = append(doc.FlexLocations, transit.FlexLocationDoc{
		ID: "Z", Polygon: [][][2]float64{{{-100, -100}, {2000, -100}, {2000, 100}, {-100, 100}}},
	})
	doc.FlexTrips = append(doc.FlexTrips, transit.FlexTripDoc{
		ID: "fz", RouteID: "fr",
		StopTimes: []transit.FlexStopTimeDoc{
			{Location: "Z", WindowStart: intPtr(0), WindowEnd: intPtr(7200)},
			{Location: "LB", WindowStart: intPtr(0), WindowEnd: intPtr(7200)},
		},
	})
	r := buildRouterFrom(t, doc, nil)
	its, err := r.Route(context.Background(), corridorRequest(0, false))
	require.NoError(t, err)
	require.NotEmpty(t, its)

	// 在起点直接上车，不必先步行到A
	it := its[0]
	assert.Equal(t, []transit.Mode{transit.MODE_FLEX, transit.MODE_WALK}, legModes(it))
	fl := it.Legs[0]
	assert.Equal(t, "fz", fl.TripID)
	assert.Equal(t, -1, fl.From.Stop)
	assert.Equal(t, "origin", fl.From.Name)
	assert.Equal(t, "B", fl.To.StopID)
	assert.Equal(t, 0, fl.StartTime)
	assert.Equal(t, 350, fl.EndTime)
	assert.Equal(t, []int64{11, 12, 13, 14}, fl.Edges)
	assert.Equal(t, 850, it.EndTime())
	// 上车 60 + 灵活公交 1.2*350 + 步行 2*500
	assert.Equal(t, 60+420+1000, it.GeneralizedCost)
}

// 站点A、B、C、D依次位于x = 0, 2000, 3500, 5500
// 灵活公交f1 A -> B，f2 C -> D，中间只有一段2分钟的公交B -> C
func shortTransitDoc() *transit.Document {
	doc := &transit.Document{
		Stops: []transit.StopDoc{
			{ID: "A", Name: "A", X: 0, Vertex: int64Ptr(1)},
			{ID: "B", Name: "B", X: 2000, Vertex: int64Ptr(2)},
			{ID: "C", Name: "C", X: 3500, Vertex: int64Ptr(3)},
			{ID: "D", Name: "D", X: 5500, Vertex: int64Ptr(4)},
		},
		Patterns: []transit.PatternDoc{{
			ID: "p1", RouteID: "r1", Mode: "BUS", Stops: []string{"B", "C"},
			Trips: []transit.TripDoc{{ID: "t1", Times: [][2]int{{600, 600}, {720, 720}}}},
		}},
		FlexLocations: []transit.FlexLocationDoc{
			{ID: "LA", Stop: "A"},
			{ID: "LB", Stop: "B"},
			{ID: "LC", Stop: "C"},
			{ID: "LD", Stop: "D"},
		},
	}
	for _, ft := range [][3]string{{"f1", "LA", "LB"}, {"f2", "LC", "LD"}} {
		doc.FlexTrips = append(doc.FlexTrips, transit.FlexTripDoc{
			ID: ft[0], RouteID: ft[0],
			StopTimes: []transit.FlexStopTimeDoc{
				{Location: ft[1], WindowStart: intPtr(0), WindowEnd: intPtr(7200)},
				{Location: ft[2], WindowStart: intPtr(0), WindowEnd: intPtr(7200)},
			},
		})
	}
	addRoad(doc, 0, 2000, 3500, 5500)
	return doc
}

func TestRouteFlexLegality(t *testing.T) {
	req := &router.Request{To: geometry.Point{X: 5500}}
	hasBus := func(it *itinerary.Itinerary) bool {
		return lo.SomeBy(it.Legs, func(l *itinerary.Leg) bool { return l.Mode == transit.MODE_BUS })
	}

	// 灵活公交 - 2分钟公交 - 灵活公交不合理，只剩步行
	r := buildRouterFrom(t, shortTransitDoc(), nil)
	its, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, its, 1)
	assert.True(t, its[0].IsWalkOnly())
	assert.False(t, lo.SomeBy(its, hasBus))

	r = buildRouterFrom(t, shortTransitDoc(), func(cfg *config.Config) { cfg.Filter.FlexLegality = false })
	its, err = r.Route(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, its)
	assert.True(t, its[0].HasFlex())
	bus, ok := lo.Find(its[0].Legs, func(l *itinerary.Leg) bool { return l.Mode == transit.MODE_BUS })
	require.True(t, ok)
	assert.Equal(t, 120, bus.Duration())
}

func TestRouteDirectWalkLimit(t *testing.T) {
	r := buildRouter(t, func(cfg *config.Config) {
		cfg.Flex.Enabled = false
		cfg.Street.MaxDirectWalkDuration = 3999
	})
	// 末班车已过，4000s的步行超出上限
	its, err := r.Route(context.Background(), corridorRequest(5000, false))
	require.NoError(t, err)
	assert.Empty(t, its)

	r = buildRouter(t, func(cfg *config.Config) {
		cfg.Flex.Enabled = false
		cfg.Street.MaxDirectWalkDuration = 4000
	})
	its, err = r.Route(context.Background(), corridorRequest(5000, false))
	require.NoError(t, err)
	require.Len(t, its, 1)
	assert.True(t, its[0].IsWalkOnly())
}

func TestRouteModes(t *testing.T) {
	r := buildRouter(t, nil)

	req := corridorRequest(0, false)
	req.Modes = []transit.Mode{transit.MODE_BUS}
	its, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, its, 1)
	assert.False(t, its[0].HasFlex())
	assert.Equal(t, "t1", its[0].Legs[1].TripID)

	req.Modes = []transit.Mode{transit.MODE_FLEX}
	its, err = r.Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, its, 1)
	assert.True(t, its[0].HasFlex())
	assert.Zero(t, lo.CountBy(its[0].Legs, func(l *itinerary.Leg) bool { return l.Mode == transit.MODE_BUS }))

	// 地铁不经过任何站点，只剩步行
	req.Modes = []transit.Mode{transit.MODE_SUBWAY}
	its, err = r.Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, its, 1)
	assert.True(t, its[0].IsWalkOnly())
}

func TestRouteArriveBy(t *testing.T) {
	r := buildRouter(t, func(cfg *config.Config) { cfg.Flex.Enabled = false })

	its, err := r.Route(context.Background(), corridorRequest(1700, true))
	require.NoError(t, err)
	require.Len(t, its, 1)
	assert.Equal(t, "t1", its[0].Legs[1].TripID)
	assert.Equal(t, 100, its[0].StartTime())
	assert.Equal(t, 1700, its[0].EndTime())

	// 赶不上t1时只能步行
	its, err = r.Route(context.Background(), corridorRequest(1699, true))
	require.NoError(t, err)
	require.Len(t, its, 1)
	assert.True(t, its[0].IsWalkOnly())
	assert.Equal(t, 1699, its[0].EndTime())
	assert.Equal(t, 1699-4000, its[0].StartTime())
}

func TestRouteDirectCar(t *testing.T) {
	r := buildRouter(t, func(cfg *config.Config) {
		cfg.Flex.Enabled = false
		cfg.Street.DirectCar = true
	})
	its, err := r.Route(context.Background(), corridorRequest(0, false))
	require.NoError(t, err)
	car, ok := lo.Find(its, func(it *itinerary.Itinerary) bool {
		return len(it.Legs) == 1 && it.Legs[0].Mode == transit.MODE_CAR
	})
	require.True(t, ok)
	assert.Equal(t, 400, car.Duration())
	assert.Equal(t, []int64{11, 12, 13, 14, 15}, car.Legs[0].Edges)
	// 驾车直达最优，排在最前
	assert.Same(t, car, its[0])
}

func TestRouteErrors(t *testing.T) {
	cfg := config.Default()
	r, err := router.New(transit.NewHolder(nil), cfg)
	require.NoError(t, err)
	_, err = r.Route(context.Background(), corridorRequest(0, false))
	assert.ErrorIs(t, err, router.ErrNoSnapshot)

	r = buildRouter(t, nil)
	_, err = r.Route(context.Background(), nil)
	assert.ErrorIs(t, err, router.ErrBadRequest)

	req := corridorRequest(0, false)
	req.SearchWindow = -1
	_, err = r.Route(context.Background(), req)
	assert.ErrorIs(t, err, router.ErrBadRequest)

	req = corridorRequest(0, false)
	req.Modes = []transit.Mode{transit.MODE_WALK}
	_, err = r.Route(context.Background(), req)
	assert.ErrorIs(t, err, transit.ErrUnknownMode)
}

func TestRouteNumItineraries(t *testing.T) {
	r := buildRouter(t, func(cfg *config.Config) {
		cfg.Flex.Enabled = false
		cfg.Street.DirectCar = true
		cfg.Filter.RemoveWalkOnly = false
		cfg.Filter.StreetOnlyIsBetter = false
	})
	its, err := r.Route(context.Background(), corridorRequest(0, false))
	require.NoError(t, err)
	assert.Len(t, its, 3)

	req := corridorRequest(0, false)
	req.NumItineraries = 2
	its, err = r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, its, 2)
}
