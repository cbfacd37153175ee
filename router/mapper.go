package router

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/flex"
	"git.fiblab.net/sim/planner/router/itinerary"
	"git.fiblab.net/sim/planner/router/raptor"
	"git.fiblab.net/sim/planner/router/street"
	"git.fiblab.net/sim/planner/router/transit"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

// 搜索结果到行程的转换，属于单次请求
type mapper struct {
	data   *transit.Snapshot
	cfg    *config.Config
	origin itinerary.Place
	dest   itinerary.Place
}

func newMapper(data *transit.Snapshot, cfg *config.Config, req *Request) *mapper {
	return &mapper{
		data:   data,
		cfg:    cfg,
		origin: itinerary.Place{Name: "origin", Point: req.From, Stop: -1},
		dest:   itinerary.Place{Name: "destination", Point: req.To, Stop: -1},
	}
}

func (m *mapper) stopPlace(stop int) itinerary.Place {
	s := m.data.Stops[stop]
	return itinerary.Place{Name: s.Name, Point: s.Point, Stop: stop, StopID: s.ID}
}

// 区域内上下车时地点为起终点本身
func (m *mapper) placeOr(stop int, fallback itinerary.Place) itinerary.Place {
	if stop < 0 {
		return fallback
	}
	return m.stopPlace(stop)
}

func (m *mapper) walkCost(duration int) int {
	return int(math.Round(m.cfg.Cost.WalkReluctance * float64(duration)))
}

func straightLine(points ...geometry.Point) orb.LineString {
	line := make(orb.LineString, 0, len(points))
	for _, p := range points {
		line = append(line, orb.Point{p.X, p.Y})
	}
	return line
}

// 沿街道路径的一段
func (m *mapper) streetLeg(
	mode transit.Mode, from, to itinerary.Place, start, duration int, path street.Path, cost int,
) *itinerary.Leg {
	leg := &itinerary.Leg{
		Mode:            mode,
		From:            from,
		To:              to,
		StartTime:       start,
		EndTime:         start + duration,
		GeneralizedCost: cost,
	}
	if len(path) > 0 {
		leg.Distance = street.Distance(path)
		leg.Geometry = m.data.Street.Geometry(path)
		leg.Edges = street.EdgeIDs(path)
	} else {
		leg.Distance = geometry.Distance(from.Point, to.Point)
		leg.Geometry = straightLine(from.Point, to.Point)
	}
	return leg
}

func (m *mapper) flexLeg(
	trip *transit.FlexTrip, from, to itinerary.Place, start int, path flex.FlexPath, cost int,
) *itinerary.Leg {
	return &itinerary.Leg{
		Mode:            transit.MODE_FLEX,
		From:            from,
		To:              to,
		StartTime:       start,
		EndTime:         start + path.DurationSeconds,
		Distance:        path.DistanceMeters,
		RouteID:         trip.RouteID,
		TripID:          trip.ID,
		GeneralizedCost: cost,
		Geometry:        path.Geometry,
		Edges:           path.Edges,
	}
}

// 站点间步行换乘，有街道路径时沿路径绘制
func (m *mapper) transferLeg(tr transit.Transfer, start int, cost int) *itinerary.Leg {
	from, to := m.stopPlace(tr.From), m.stopPlace(tr.To)
	leg := &itinerary.Leg{
		Mode:            transit.MODE_WALK,
		From:            from,
		To:              to,
		StartTime:       start,
		EndTime:         start + tr.Duration,
		Distance:        tr.Distance,
		GeneralizedCost: cost,
		Geometry:        straightLine(from.Point, to.Point),
	}
	fv, tv := m.data.Stops[tr.From].Vertex, m.data.Stops[tr.To].Vertex
	if fv >= 0 && tv >= 0 && m.data.Street != nil {
		if path, _, ok := m.data.Street.WalkPath(fv, tv); ok && len(path) > 1 {
			leg.Geometry = m.data.Street.Geometry(path)
			leg.Edges = street.EdgeIDs(path)
		}
	}
	return leg
}

func (m *mapper) transitLeg(pl raptor.PathLeg) *itinerary.Leg {
	p := pl.Pattern
	points := make([]geometry.Point, 0, pl.AlightPos-pl.BoardPos+1)
	distance := 0.0
	for pos := pl.BoardPos; pos <= pl.AlightPos; pos++ {
		pt := m.data.Stops[p.Stops[pos]].Point
		if len(points) > 0 {
			distance += geometry.Distance(points[len(points)-1], pt)
		}
		points = append(points, pt)
	}
	return &itinerary.Leg{
		Mode:            p.Mode,
		From:            m.stopPlace(pl.FromStop),
		To:              m.stopPlace(pl.ToStop),
		StartTime:       pl.StartTime,
		EndTime:         pl.EndTime,
		Distance:        distance,
		RouteID:         p.RouteID,
		TripID:          pl.Trip.ID,
		PatternID:       p.ID,
		GeneralizedCost: pl.Cost,
		Geometry:        straightLine(points...),
	}
}

// 接入段：步行一段，或步行-灵活公交-换乘三段
func (m *mapper) accessLegs(pl raptor.PathLeg) []*itinerary.Leg {
	to := m.stopPlace(pl.ToStop)
	switch ae := pl.AccessEgress.(type) {
	case *flex.AccessEgress:
		legs := make([]*itinerary.Leg, 0, 3)
		t := pl.StartTime
		walk := ae.Walk()
		walkCost := m.walkCost(walk.Duration)
		board := m.placeOr(ae.BoardStop(), m.origin)
		if walk.Duration > 0 {
			legs = append(legs, m.streetLeg(
				transit.MODE_WALK, m.origin, board, t, walk.Duration, walk.Path, walkCost,
			))
		}
		t += ae.PreFlexSeconds()
		tr, hasTransfer := ae.Transfer()
		transferCost := 0
		if hasTransfer {
			transferCost = m.walkCost(tr.Duration)
		}
		legs = append(legs, m.flexLeg(
			ae.Trip(), board, m.stopPlace(ae.AlightStop()), t, ae.FlexPath(), pl.Cost-walkCost-transferCost,
		))
		t += ae.FlexSeconds()
		if hasTransfer {
			legs = append(legs, m.transferLeg(tr, t, transferCost))
		}
		return legs
	case *raptor.WalkAccessEgress:
		return []*itinerary.Leg{m.streetLeg(
			transit.MODE_WALK, m.origin, to, pl.StartTime, pl.EndTime-pl.StartTime, ae.Nearby.Path, pl.Cost,
		)}
	default:
		return []*itinerary.Leg{m.streetLeg(
			transit.MODE_WALK, m.origin, to, pl.StartTime, pl.EndTime-pl.StartTime, nil, pl.Cost,
		)}
	}
}

// 接出段：步行一段，或换乘-灵活公交-步行三段
func (m *mapper) egressLegs(pl raptor.PathLeg) []*itinerary.Leg {
	from := m.stopPlace(pl.FromStop)
	switch ae := pl.AccessEgress.(type) {
	case *flex.AccessEgress:
		legs := make([]*itinerary.Leg, 0, 3)
		t := pl.StartTime
		tr, hasTransfer := ae.Transfer()
		transferCost := 0
		if hasTransfer {
			transferCost = m.walkCost(tr.Duration)
			legs = append(legs, m.transferLeg(tr, t, transferCost))
		}
		t += ae.PreFlexSeconds()
		walk := ae.Walk()
		walkCost := m.walkCost(walk.Duration)
		alight := m.placeOr(ae.AlightStop(), m.dest)
		legs = append(legs, m.flexLeg(
			ae.Trip(), m.stopPlace(ae.BoardStop()), alight, t, ae.FlexPath(), pl.Cost-walkCost-transferCost,
		))
		t += ae.FlexSeconds()
		if walk.Duration > 0 {
			legs = append(legs, m.streetLeg(
				transit.MODE_WALK, alight, m.dest, t, walk.Duration, walk.Path, walkCost,
			))
		}
		return legs
	case *raptor.WalkAccessEgress:
		return []*itinerary.Leg{m.streetLeg(
			transit.MODE_WALK, from, m.dest, pl.StartTime, pl.EndTime-pl.StartTime, ae.Nearby.Path, pl.Cost,
		)}
	default:
		return []*itinerary.Leg{m.streetLeg(
			transit.MODE_WALK, from, m.dest, pl.StartTime, pl.EndTime-pl.StartTime, nil, pl.Cost,
		)}
	}
}

// 步行接入段平移到紧接首次上车之前，减少在站点的等待
func (m *mapper) shiftAccess(legs []*itinerary.Leg) {
	if len(legs) < 2 || !legs[0].IsWalk() || legs[0].From.Stop >= 0 {
		return
	}
	next := legs[1]
	if !next.IsTransit() || next.IsFlex() {
		return
	}
	shift := next.StartTime - m.cfg.Raptor.BoardSlack - legs[0].EndTime
	if shift > 0 {
		legs[0].StartTime += shift
		legs[0].EndTime += shift
	}
}

func (m *mapper) mapPath(p *raptor.Path) *itinerary.Itinerary {
	legs := make([]*itinerary.Leg, 0, len(p.Legs)+2)
	for _, pl := range p.Legs {
		switch pl.Kind {
		case raptor.ARRIVAL_ACCESS:
			legs = append(legs, m.accessLegs(pl)...)
		case raptor.ARRIVAL_TRANSIT:
			legs = append(legs, m.transitLeg(pl))
		case raptor.ARRIVAL_TRANSFER:
			legs = append(legs, m.transferLeg(pl.Transfer, pl.StartTime, pl.Cost))
		case raptor.ARRIVAL_EGRESS:
			legs = append(legs, m.egressLegs(pl)...)
		}
	}
	// 起终点就在站点上时没有步行
	legs = lo.Filter(legs, func(l *itinerary.Leg, _ int) bool {
		return !l.IsWalk() || l.Duration() > 0 || l.Distance > 0
	})
	m.shiftAccess(legs)
	return itinerary.New(legs)
}

// 不经过固定线路的灵活公交行程
func (m *mapper) mapDirectFlex(d *flex.Direct, s flex.Schedule) *itinerary.Itinerary {
	accessCost := m.walkCost(d.Access.Duration)
	egressCost := m.walkCost(d.Egress.Duration)
	board, alight := m.placeOr(d.Access.Stop, m.origin), m.placeOr(d.Egress.Stop, m.dest)
	legs := make([]*itinerary.Leg, 0, 3)
	if d.Access.Duration > 0 {
		legs = append(legs, m.streetLeg(
			transit.MODE_WALK, m.origin, board, s.Start, d.Access.Duration, d.Access.Path, accessCost,
		))
	}
	legs = append(legs, m.flexLeg(d.Trip, board, alight, s.Board, d.Path, d.Cost-accessCost-egressCost))
	if d.Egress.Duration > 0 {
		legs = append(legs, m.streetLeg(
			transit.MODE_WALK, alight, m.dest, s.Alight, d.Egress.Duration, d.Egress.Path, egressCost,
		))
	}
	return itinerary.New(legs)
}
