package router

import (
	"context"
	"fmt"
	"math"
	"time"

	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/algo"
	"git.fiblab.net/sim/planner/router/filter"
	"git.fiblab.net/sim/planner/router/flex"
	"git.fiblab.net/sim/planner/router/itinerary"
	"git.fiblab.net/sim/planner/router/raptor"
	"git.fiblab.net/sim/planner/router/street"
	"git.fiblab.net/sim/planner/router/transit"
	"github.com/samber/lo"
)

// 公交出行规划
// 每次请求取holder中当前的快照，请求之间只共享只读数据
type Router struct {
	holder *transit.Holder
	cfg    *config.Config
	cost   *raptor.GeneralizedCostCalculator

	// 出发时刻与到达时刻两种请求的过滤链
	departChain *filter.Chain
	arriveChain *filter.Chain
	// 直达灵活公交行程的合理性检查
	legality *filter.FlexLegalityFilter
}

func New(holder *transit.Holder, cfg *config.Config) (*Router, error) {
	departChain, err := filter.NewChainFromConfig(cfg, false)
	if err != nil {
		return nil, fmt.Errorf("build filter chain: %w", err)
	}
	arriveChain, err := filter.NewChainFromConfig(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("build filter chain: %w", err)
	}
	return &Router{
		holder:      holder,
		cfg:         cfg,
		cost:        raptor.NewGeneralizedCostCalculator(cfg.Cost),
		departChain: departChain,
		arriveChain: arriveChain,
		legality: &filter.FlexLegalityFilter{
			MaxWalkDistance:    cfg.Flex.MaxWalkDistance,
			MinTransitDuration: cfg.Flex.MinTransitDuration,
		},
	}, nil
}

// 当前生效的快照
func (r *Router) Snapshot() *transit.Snapshot {
	return r.holder.Get()
}

func (r *Router) Route(ctx context.Context, req *Request) (its []*itinerary.Itinerary, err error) {
	defer func() {
		if e := recover(); e != nil {
			its = nil
			err = fmt.Errorf("panic: Route %v with request %+v", e, req)
			log.Errorln(err)
		}
	}()
	if err := req.validate(); err != nil {
		return nil, err
	}
	data := r.holder.Get()
	if data == nil || data.Street == nil {
		return nil, ErrNoSnapshot
	}
	g := data.Street
	fromV, _, ok := g.Nearest(req.From)
	if !ok {
		return nil, fmt.Errorf("origin %v: %w", req.From, ErrOutOfGraph)
	}
	toV, _, ok := g.Nearest(req.To)
	if !ok {
		return nil, fmt.Errorf("destination %v: %w", req.To, ErrOutOfGraph)
	}
	modes := req.scheduledModes()
	useFlex := r.cfg.Flex.Enabled && req.allowFlex() && len(data.FlexTrips) > 0

	if r.cfg.Raptor.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.Raptor.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	window := req.SearchWindow
	if window == 0 {
		window = r.cfg.Raptor.SearchWindow
	}
	departure := req.DateTime
	if req.ArriveBy {
		departure = req.DateTime - window
	}

	m := newMapper(data, r.cfg, req)
	its = r.directStreet(m, g, fromV, toV, req)

	originNearby := g.NearbyStops(fromV, algo.FORWARD)
	destNearby := g.NearbyStops(toV, algo.BACKWARD)
	access := lo.Map(originNearby, func(n street.NearbyStop, _ int) raptor.AccessEgress {
		return &raptor.WalkAccessEgress{Nearby: n, Cost: m.walkCost(n.Duration)}
	})
	egress := lo.Map(destNearby, func(n street.NearbyStop, _ int) raptor.AccessEgress {
		return &raptor.WalkAccessEgress{Nearby: n, Cost: m.walkCost(n.Duration)}
	})
	if useFlex {
		b := flex.NewBuilder(data, r.cfg)
		forward := flex.NewPathCalculator(g, true, r.cfg.Flex.MaxFlexTripDuration, departure)
		backward := flex.NewPathCalculator(g, false, r.cfg.Flex.MaxFlexTripDuration, departure)
		// 起终点本身也可在覆盖它的区域内上下车
		originFlex := append([]street.NearbyStop{flex.ZonePoint(fromV)}, originNearby...)
		destFlex := append([]street.NearbyStop{flex.ZonePoint(toV)}, destNearby...)
		for _, a := range b.Access(ctx, originFlex, forward) {
			access = append(access, a)
		}
		for _, e := range b.Egress(ctx, destFlex, backward) {
			egress = append(egress, e)
		}
		direct := make([]*itinerary.Itinerary, 0)
		for _, d := range b.Direct(ctx, originFlex, destFlex, forward) {
			if s, ok := d.Schedule(req.DateTime, req.ArriveBy); ok {
				direct = append(direct, m.mapDirectFlex(d, s))
			}
		}
		its = append(its, r.legality.Filter(direct)...)
		log.Debugf(
			"flex: %d access, %d egress, %d direct, %d cached trees",
			len(access)-len(originNearby), len(egress)-len(destNearby), len(direct),
			forward.CacheSize()+backward.CacheSize(),
		)
	}

	worker := raptor.NewWorker(data, r.cost, r.cfg.Raptor)
	res := worker.Route(ctx, &raptor.Request{
		DepartureTime: departure,
		SearchWindow:  window,
		MaxRounds:     r.cfg.Raptor.MaxRounds,
		BoardSlack:    r.cfg.Raptor.BoardSlack,
		AlightSlack:   r.cfg.Raptor.AlightSlack,
		TransferSlack: r.cfg.Raptor.TransferSlack,
		Modes:         modes,
		Access:        access,
		Egress:        egress,
	})
	for _, p := range res.Paths {
		if req.ArriveBy && p.ArrivalTime > req.DateTime {
			continue
		}
		its = append(its, m.mapPath(p))
	}

	chain := r.departChain
	if req.ArriveBy {
		chain = r.arriveChain
	}
	found := len(its)
	its = chain.Filter(its)
	if req.NumItineraries > 0 && len(its) > req.NumItineraries {
		its = its[:req.NumItineraries]
	}
	log.Debugf(
		"route %v -> %v at %d (arriveBy=%v): %d paths in %d rounds, %d itineraries, %d returned",
		req.From, req.To, req.DateTime, req.ArriveBy, len(res.Paths), res.Rounds, found, len(its),
	)
	return its, nil
}

// 步行与驾车直达行程
func (r *Router) directStreet(m *mapper, g *street.Graph, fromV, toV int, req *Request) []*itinerary.Itinerary {
	res := make([]*itinerary.Itinerary, 0, 2)
	limit := r.cfg.Street.MaxDirectWalkDuration
	if path, cost, ok := g.WalkPath(fromV, toV); ok && (limit == 0 || street.Seconds(cost) <= limit) {
		duration := street.Seconds(cost)
		start := req.DateTime
		if req.ArriveBy {
			start -= duration
		}
		res = append(res, itinerary.New([]*itinerary.Leg{
			m.streetLeg(transit.MODE_WALK, m.origin, m.dest, start, duration, path, m.walkCost(duration)),
		}))
	}
	if !r.cfg.Street.DirectCar {
		return res
	}
	if path, cost, ok := g.DrivePath(fromV, toV, float64(req.DateTime)); ok {
		duration := street.Seconds(cost)
		start := req.DateTime
		if req.ArriveBy {
			start -= duration
		}
		carCost := int(math.Round(r.cfg.Cost.CarReluctance * float64(duration)))
		res = append(res, itinerary.New([]*itinerary.Leg{
			m.streetLeg(transit.MODE_CAR, m.origin, m.dest, start, duration, path, carCost),
		}))
	}
	return res
}
