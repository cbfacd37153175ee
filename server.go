package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"connectrpc.com/connect"
	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mongoutil"
	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router"
	"git.fiblab.net/sim/planner/router/itinerary"
	"git.fiblab.net/sim/planner/router/transit"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	routingv2 "git.fiblab.net/sim/protos/v2/go/city/routing/v2"
	"git.fiblab.net/sim/protos/v2/go/city/routing/v2/routingv2connect"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const REQUEST_ID_HEADER = "X-Request-Id"

var (
	ROUTE_TYPE_MODES = map[routingv2.RouteType][]transit.Mode{
		routingv2.RouteType_ROUTE_TYPE_BUS:        {transit.MODE_BUS, transit.MODE_TRAM, transit.MODE_FLEX},
		routingv2.RouteType_ROUTE_TYPE_SUBWAY:     {transit.MODE_SUBWAY, transit.MODE_RAIL},
		routingv2.RouteType_ROUTE_TYPE_BUS_SUBWAY: nil,
	}
)

func CheckPosition(pb *geov2.Position) error {
	if aoiPosition := pb.GetAoiPosition(); aoiPosition != nil {
		return nil
	} else if lanePosition := pb.GetLanePosition(); lanePosition != nil {
		return errors.New("lane position is not supported, use aoi id of a stop")
	} else {
		return fmt.Errorf("no position data in request")
	}
}

// 读取并构建快照
func loadSnapshot(ctx context.Context, cfg *config.Config, mongoURI string, path *Path) (*transit.Snapshot, error) {
	var (
		doc *transit.Document
		err error
	)
	if path.IsFile() {
		doc, err = transit.LoadFile(path.File)
	} else {
		client := mongoutil.NewClient(mongoURI)
		defer client.Disconnect(context.Background())
		doc, err = transit.LoadMongo(ctx, client, path)
	}
	if err != nil {
		return nil, err
	}
	return transit.Build(doc, cfg)
}

type RoutingServer struct {
	routingv2connect.UnimplementedRoutingServiceHandler
	router *router.Router
	holder *transit.Holder

	// 接口开启true或关闭false
	ok bool
	// 条件变量
	cond *sync.Cond
}

func NewRoutingServer(holder *transit.Holder, cfg *config.Config) (*RoutingServer, error) {
	r, err := router.New(holder, cfg)
	if err != nil {
		return nil, err
	}
	return &RoutingServer{
		router: r,
		holder: holder,
		ok:     true, cond: sync.NewCond(&sync.Mutex{})}, nil
}

// AOI ID即站点ID
func (s *RoutingServer) positionToPoint(data *transit.Snapshot, pb *geov2.Position, side string) (geometry.Point, error) {
	if err := CheckPosition(pb); err != nil {
		return geometry.Point{}, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s: %w", side, err))
	}
	id := pb.GetAoiPosition().AoiId
	stop, ok := data.StopByID(strconv.Itoa(int(id)))
	if !ok {
		return geometry.Point{}, connect.NewError(
			connect.CodeInvalidArgument,
			fmt.Errorf("no %s Aoi ID: %v", side, id),
		)
	}
	return stop.Point, nil
}

func (s *RoutingServer) GetRoute(
	ctx context.Context,
	req *connect.Request[routingv2.GetRouteRequest],
) (*connect.Response[routingv2.GetRouteResponse], error) {
	in := req.Msg
	// 暂停-恢复机制
	s.cond.L.Lock()
	for !s.ok {
		// 暂停中
		s.cond.Wait()
	}
	s.cond.L.Unlock()
	reqID := req.Header().Get(REQUEST_ID_HEADER)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	l := log.WithField("request", reqID)

	modes, ok := ROUTE_TYPE_MODES[in.GetType()]
	if !ok {
		return nil, connect.NewError(
			connect.CodeInvalidArgument,
			fmt.Errorf("unknown route type: %v", in.GetType()),
		)
	}
	data := s.holder.Get()
	if data == nil {
		return nil, connect.NewError(connect.CodeUnavailable, router.ErrNoSnapshot)
	}
	from, err := s.positionToPoint(data, in.Start, "start")
	if err != nil {
		return nil, err
	}
	to, err := s.positionToPoint(data, in.End, "end")
	if err != nil {
		return nil, err
	}
	l.Debugf("Search %v route from %v to %v", in.GetType(), in.Start, in.End)
	its, err := s.router.Route(ctx, &router.Request{
		From:           from,
		To:             to,
		DateTime:       int(in.GetTime()),
		Modes:          modes,
		NumItineraries: 1,
	})
	if err != nil {
		l.Warnf("route failed: %v", err)
		return nil, toConnectError(err)
	}
	if len(its) == 0 {
		// 无法找到通路，返回空响应
		return connect.NewResponse(&routingv2.GetRouteResponse{}), nil
	}
	return connect.NewResponse(&routingv2.GetRouteResponse{Journeys: toJourneys(its[0])}), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, router.ErrNoSnapshot):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, router.ErrBadRequest), errors.Is(err, router.ErrOutOfGraph), errors.Is(err, transit.ErrUnknownMode):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// 非数字ID无法表示为proto中的ID，记为-1
func toID(id string) int32 {
	v, err := strconv.ParseInt(id, 10, 32)
	if err != nil {
		log.Debugf("id %q is not int32: %v", id, err)
		return -1
	}
	return int32(v)
}

// 行程转换为journey序列，相邻的乘车段合并为一个公交journey
func toJourneys(it *itinerary.Itinerary) []*routingv2.Journey {
	journeys := make([]*routingv2.Journey, 0, len(it.Legs))
	var bus *routingv2.BusJourneyBody
	for _, leg := range it.Legs {
		if leg.IsTransit() {
			if bus == nil {
				bus = &routingv2.BusJourneyBody{}
				journeys = append(journeys, &routingv2.Journey{
					Type:  routingv2.JourneyType_JOURNEY_TYPE_BY_BUS,
					ByBus: bus,
				})
			}
			bus.Transfers = append(bus.Transfers, &routingv2.TransferSegment{
				SublineId:      toID(leg.RouteID),
				StartStationId: toID(leg.From.StopID),
				EndStationId:   toID(leg.To.StopID),
			})
			bus.Eta += float64(leg.Duration())
			continue
		}
		bus = nil
		switch leg.Mode {
		case transit.MODE_CAR:
			journeys = append(journeys, &routingv2.Journey{
				Type: routingv2.JourneyType_JOURNEY_TYPE_DRIVING,
				Driving: &routingv2.DrivingJourneyBody{
					RoadIds: lo.Map(leg.Edges, func(id int64, _ int) int32 { return int32(id) }),
					Eta:     float64(leg.Duration()),
				},
			})
		default:
			journeys = append(journeys, &routingv2.Journey{
				Type: routingv2.JourneyType_JOURNEY_TYPE_WALKING,
				Walking: &routingv2.WalkingJourneyBody{
					Route: lo.Map(leg.Edges, func(id int64, _ int) *routingv2.WalkingRouteSegment {
						return &routingv2.WalkingRouteSegment{
							LaneId:          int32(id),
							MovingDirection: routingv2.MovingDirection_MOVING_DIRECTION_FORWARD,
						}
					}),
					Eta: float64(leg.Duration()),
				},
			})
		}
	}
	return journeys
}

// 替换快照，进行中的请求继续使用旧快照
func (s *RoutingServer) Reload(snapshot *transit.Snapshot) {
	s.holder.Swap(snapshot)
}

// 暂停导航服务
func (s *RoutingServer) Suspend() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = false
}

// 恢复导航服务
func (s *RoutingServer) Resume() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = true
	s.cond.Broadcast()
}

// 关闭导航服务
func (s *RoutingServer) Close() {
	s.Suspend()
}
