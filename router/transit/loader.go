package transit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/street"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v3"
)

var ErrNoStops = errors.New("snapshot has no stops")

// 快照的存储格式，YAML文件或MongoDB中的单个文档
type Document struct {
	Stops         []StopDoc         `yaml:"stops" bson:"stops"`
	Vertices      []VertexDoc       `yaml:"vertices" bson:"vertices"`
	Edges         []EdgeDoc         `yaml:"edges" bson:"edges"`
	Patterns      []PatternDoc      `yaml:"patterns" bson:"patterns"`
	Transfers     []TransferDoc     `yaml:"transfers" bson:"transfers"`
	FlexLocations []FlexLocationDoc `yaml:"flex_locations" bson:"flex_locations"`
	FlexTrips     []FlexTripDoc     `yaml:"flex_trips" bson:"flex_trips"`
}

type StopDoc struct {
	ID   string  `yaml:"id" bson:"id"`
	Name string  `yaml:"name" bson:"name"`
	X    float64 `yaml:"x" bson:"x"`
	Y    float64 `yaml:"y" bson:"y"`
	// 指定挂接的顶点，为空时挂接到最近顶点
	Vertex *int64 `yaml:"vertex" bson:"vertex,omitempty"`
}

type VertexDoc struct {
	ID int64   `yaml:"id" bson:"id"`
	X  float64 `yaml:"x" bson:"x"`
	Y  float64 `yaml:"y" bson:"y"`
}

type EdgeDoc struct {
	ID            int64        `yaml:"id" bson:"id"`
	From          int64        `yaml:"from" bson:"from"`
	To            int64        `yaml:"to" bson:"to"`
	Length        float64      `yaml:"length" bson:"length"`
	Walkable      bool         `yaml:"walkable" bson:"walkable"`
	Drivable      bool         `yaml:"drivable" bson:"drivable"`
	Bidirectional bool         `yaml:"bidirectional" bson:"bidirectional"`
	Geometry      [][2]float64 `yaml:"geometry" bson:"geometry"`
	DriveTimes    []float64    `yaml:"drive_times" bson:"drive_times"`
}

type PatternDoc struct {
	ID        string    `yaml:"id" bson:"id"`
	RouteID   string    `yaml:"route_id" bson:"route_id"`
	Mode      string    `yaml:"mode" bson:"mode"`
	Stops     []string  `yaml:"stops" bson:"stops"`
	Boarding  []bool    `yaml:"boarding" bson:"boarding"`
	Alighting []bool    `yaml:"alighting" bson:"alighting"`
	Trips     []TripDoc `yaml:"trips" bson:"trips"`
}

type TripDoc struct {
	ID string `yaml:"id" bson:"id"`
	// 每站的[到站, 离站]时刻
	Times [][2]int `yaml:"times" bson:"times"`
}

type TransferDoc struct {
	From     string  `yaml:"from" bson:"from"`
	To       string  `yaml:"to" bson:"to"`
	Duration int     `yaml:"duration" bson:"duration"`
	Distance float64 `yaml:"distance" bson:"distance"`
}

type FlexLocationDoc struct {
	ID string `yaml:"id" bson:"id"`
	// 单站点地点
	Stop string `yaml:"stop" bson:"stop"`
	// 区域地点，外环在前
	Polygon [][][2]float64 `yaml:"polygon" bson:"polygon"`
}

type FlexTripDoc struct {
	ID        string            `yaml:"id" bson:"id"`
	RouteID   string            `yaml:"route_id" bson:"route_id"`
	StopTimes []FlexStopTimeDoc `yaml:"stop_times" bson:"stop_times"`
}

type FlexStopTimeDoc struct {
	Location    string `yaml:"location" bson:"location"`
	WindowStart *int   `yaml:"window_start" bson:"window_start,omitempty"`
	WindowEnd   *int   `yaml:"window_end" bson:"window_end,omitempty"`
	Arrival     *int   `yaml:"arrival" bson:"arrival,omitempty"`
	Departure   *int   `yaml:"departure" bson:"departure,omitempty"`
	Pickup      string `yaml:"pickup" bson:"pickup"`
	DropOff     string `yaml:"drop_off" bson:"drop_off"`
}

// MongoDB中快照所在的库与集合
type MongoPath interface {
	GetDb() string
	GetColl() string
}

func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return doc, nil
}

// 从MongoDB读取快照文档，连接失败时指数退避重试
func LoadMongo(ctx context.Context, client *mongo.Client, path MongoPath) (*Document, error) {
	coll := client.Database(path.GetDb()).Collection(path.GetColl())
	doc := &Document{}
	op := func() error {
		err := coll.FindOne(ctx, bson.D{}).Decode(doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	err := backoff.RetryNotify(op, b, func(err error, d time.Duration) {
		log.Warnf("load snapshot from %s.%s failed, retry in %v: %v", path.GetDb(), path.GetColl(), d, err)
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot from %s.%s: %w", path.GetDb(), path.GetColl(), err)
	}
	return doc, nil
}

func toPoint(xy [2]float64) geometry.Point {
	return geometry.Point{X: xy[0], Y: xy[1]}
}

func optionalTime(t *int) int {
	if t == nil {
		return TIME_NOT_SET
	}
	return *t
}

func parsePickDrop(s string) (PickDrop, bool) {
	switch s {
	case "", "SCHEDULED":
		return PICKDROP_SCHEDULED, true
	case "NONE":
		return PICKDROP_NONE, true
	case "CALL_AGENCY":
		return PICKDROP_CALL_AGENCY, true
	case "COORDINATE_WITH_DRIVER":
		return PICKDROP_COORDINATE_WITH_DRIVER, true
	}
	return PICKDROP_NONE, false
}

// 校验并索引快照文档
// 站点ID重复等结构性错误返回error，单条不合法数据剔除并告警
func Build(doc *Document, cfg *config.Config) (*Snapshot, error) {
	if len(doc.Stops) == 0 {
		return nil, ErrNoStops
	}
	s := &Snapshot{
		Version:       uuid.NewString(),
		LoadedAt:      time.Now(),
		FlexLocations: make(map[string]*FlexLocation),
	}
	// 路网
	g := street.NewGraph(cfg.Street)
	for _, v := range doc.Vertices {
		if _, err := g.AddVertex(v.ID, geometry.Point{X: v.X, Y: v.Y}); err != nil {
			log.Warnf("skip vertex: %v", err)
		}
	}
	for _, e := range doc.Edges {
		err := g.AddEdge(street.Edge{
			ID: e.ID, From: e.From, To: e.To, Length: e.Length,
			Walkable: e.Walkable, Drivable: e.Drivable, Bidirectional: e.Bidirectional,
			Geometry:   lo.Map(e.Geometry, func(xy [2]float64, _ int) geometry.Point { return toPoint(xy) }),
			DriveTimes: e.DriveTimes,
		})
		if err != nil {
			log.Warnf("skip edge: %v", err)
		}
	}
	// 站点
	index, err := NewStopIndex(lo.Map(doc.Stops, func(st StopDoc, _ int) string { return st.ID }))
	if err != nil {
		return nil, err
	}
	s.StopIndex = index
	s.Stops = make([]*Stop, len(doc.Stops))
	// 挂接到最近顶点需要空间索引
	g.BuildSpatialIndex()
	for i, st := range doc.Stops {
		stop := &Stop{ID: st.ID, Name: st.Name, Point: geometry.Point{X: st.X, Y: st.Y}, Vertex: -1}
		if st.Vertex != nil {
			if v, ok := g.VertexIndex(*st.Vertex); ok {
				stop.Vertex = v
			} else {
				log.Warnf("stop %s: vertex %d not found", st.ID, *st.Vertex)
			}
		} else if v, d, ok := g.Nearest(stop.Point); ok && d <= cfg.Street.StopLinkRadius {
			stop.Vertex = v
		} else {
			log.Warnf("stop %s is not linked to the street network", st.ID)
		}
		if stop.Vertex >= 0 {
			g.LinkStop(i, stop.Vertex)
		}
		s.Stops[i] = stop
	}
	g.Freeze()
	s.Street = g
	// 线路模式
	s.PatternsByStop = make([][]int, index.Size())
	for _, pd := range doc.Patterns {
		p, err := buildPattern(index, pd)
		if err != nil {
			log.Warnf("skip pattern: %v", err)
			continue
		}
		pi := len(s.Patterns)
		s.Patterns = append(s.Patterns, p)
		for _, stop := range lo.Uniq(p.Stops) {
			s.PatternsByStop[stop] = append(s.PatternsByStop[stop], pi)
		}
	}
	// 换乘
	s.Transfers = NewTransferTable(index.Size())
	if len(doc.Transfers) > 0 {
		for _, td := range doc.Transfers {
			from, ok1 := index.IndexOf(td.From)
			to, ok2 := index.IndexOf(td.To)
			if !ok1 || !ok2 {
				log.Warnf("skip transfer %s -> %s: unknown stop", td.From, td.To)
				continue
			}
			s.Transfers.Add(Transfer{From: from, To: to, Duration: td.Duration, Distance: td.Distance})
		}
	} else {
		for i, stop := range s.Stops {
			if stop.Vertex < 0 {
				continue
			}
			for _, ns := range g.TransfersFrom(i, stop.Vertex, cfg.Street.MaxTransferDuration) {
				s.Transfers.Add(Transfer{From: i, To: ns.Stop, Duration: ns.Duration, Distance: ns.Distance})
			}
		}
	}
	s.Transfers.sort()
	// 灵活公交
	for _, ld := range doc.FlexLocations {
		loc, err := buildFlexLocation(s, ld)
		if err != nil {
			log.Warnf("skip flex location %s: %v", ld.ID, err)
			continue
		}
		s.FlexLocations[loc.ID] = loc
	}
	for _, td := range doc.FlexTrips {
		trip, err := buildFlexTrip(s, td)
		if err != nil {
			log.Warnf("skip flex trip %s: %v", td.ID, err)
			continue
		}
		s.FlexTrips = append(s.FlexTrips, trip)
	}
	log.Infof(
		"snapshot %s built: %d stops, %d patterns, %d transfers, %d flex trips",
		s.Version, index.Size(), len(s.Patterns), s.Transfers.Size(), len(s.FlexTrips),
	)
	return s, nil
}

func buildPattern(index *StopIndex, pd PatternDoc) (*TripPattern, error) {
	mode, err := ParseMode(pd.Mode)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", pd.ID, err)
	}
	stops := make([]int, len(pd.Stops))
	for i, id := range pd.Stops {
		stop, ok := index.IndexOf(id)
		if !ok {
			return nil, fmt.Errorf("pattern %s: unknown stop %s", pd.ID, id)
		}
		stops[i] = stop
	}
	trips := lo.Map(pd.Trips, func(td TripDoc, _ int) *Trip {
		return &Trip{
			ID: td.ID,
			Times: lo.Map(td.Times, func(t [2]int, _ int) StopTime {
				return StopTime{Arrival: t[0], Departure: t[1]}
			}),
		}
	})
	return NewTripPattern(pd.ID, pd.RouteID, mode, stops, pd.Boarding, pd.Alighting, trips)
}

func buildFlexLocation(s *Snapshot, ld FlexLocationDoc) (*FlexLocation, error) {
	loc := &FlexLocation{ID: ld.ID}
	if len(ld.Polygon) == 0 {
		stop, ok := s.StopIndex.IndexOf(ld.Stop)
		if !ok {
			return nil, fmt.Errorf("unknown stop %s", ld.Stop)
		}
		loc.Stops = []int{stop}
		if v := s.Stops[stop].Vertex; v >= 0 {
			loc.Vertices = []int{v}
		}
		return loc, nil
	}
	for _, ring := range ld.Polygon {
		r := orb.Ring(lo.Map(ring, func(xy [2]float64, _ int) orb.Point { return orb.Point(xy) }))
		if len(r) < 3 {
			return nil, errors.New("polygon ring has less than 3 points")
		}
		if !r.Closed() {
			r = append(r, r[0])
		}
		loc.Area = append(loc.Area, r)
	}
	for i, stop := range s.Stops {
		if planar.PolygonContains(loc.Area, orb.Point{stop.Point.X, stop.Point.Y}) {
			loc.Stops = append(loc.Stops, i)
		}
	}
	for v := 0; v < s.Street.VertexCount(); v++ {
		p := s.Street.VertexPoint(v)
		if planar.PolygonContains(loc.Area, orb.Point{p.X, p.Y}) {
			loc.Vertices = append(loc.Vertices, v)
		}
	}
	if len(loc.Stops) == 0 {
		return nil, errors.New("area contains no stop")
	}
	return loc, nil
}

func buildFlexTrip(s *Snapshot, td FlexTripDoc) (*FlexTrip, error) {
	if len(td.StopTimes) < 2 {
		return nil, errors.New("flex trip should have at least 2 stop times")
	}
	trip := &FlexTrip{ID: td.ID, RouteID: td.RouteID}
	for i, sd := range td.StopTimes {
		loc, ok := s.FlexLocations[sd.Location]
		if !ok {
			return nil, fmt.Errorf("stop time %d: unknown location %s", i, sd.Location)
		}
		pickup, ok1 := parsePickDrop(sd.Pickup)
		dropOff, ok2 := parsePickDrop(sd.DropOff)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("stop time %d: bad pickup/drop off type", i)
		}
		st := FlexStopTime{
			Location:    loc,
			WindowStart: optionalTime(sd.WindowStart),
			WindowEnd:   optionalTime(sd.WindowEnd),
			Arrival:     optionalTime(sd.Arrival),
			Departure:   optionalTime(sd.Departure),
			Pickup:      pickup,
			DropOff:     dropOff,
		}
		if st.HasWindow() && st.WindowStart > st.WindowEnd {
			return nil, fmt.Errorf("stop time %d: window start after end", i)
		}
		if !st.HasWindow() && st.Arrival == TIME_NOT_SET && st.Departure == TIME_NOT_SET {
			return nil, fmt.Errorf("stop time %d: no time or window", i)
		}
		trip.StopTimes = append(trip.StopTimes, st)
	}
	return trip, nil
}
