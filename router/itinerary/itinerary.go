package itinerary

import (
	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/planner/router/transit"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

type Place struct {
	Name  string
	Point geometry.Point
	// 公交站下标，非站点为-1
	Stop   int
	StopID string
}

type Leg struct {
	Mode            transit.Mode
	From            Place
	To              Place
	StartTime       int
	EndTime         int
	Distance        float64
	RouteID         string
	TripID          string
	PatternID       string
	GeneralizedCost int
	Geometry        orb.LineString
	// 经过的路段ID，只有街道与灵活公交段有
	Edges []int64
}

func (l *Leg) Duration() int {
	return l.EndTime - l.StartTime
}

func (l *Leg) IsTransit() bool {
	return l.Mode.IsTransit()
}

func (l *Leg) IsFlex() bool {
	return l.Mode == transit.MODE_FLEX
}

func (l *Leg) IsWalk() bool {
	return l.Mode == transit.MODE_WALK
}

// 由搜索结果生成，之后只有过滤器会修改Notices
type Itinerary struct {
	Legs            []*Leg
	GeneralizedCost int
	// 调试模式下标记该行程的过滤器名称
	Notices []string
}

func New(legs []*Leg) *Itinerary {
	return &Itinerary{
		Legs:            legs,
		GeneralizedCost: lo.SumBy(legs, func(l *Leg) int { return l.GeneralizedCost }),
	}
}

func (it *Itinerary) StartTime() int {
	return it.Legs[0].StartTime
}

func (it *Itinerary) EndTime() int {
	return it.Legs[len(it.Legs)-1].EndTime
}

func (it *Itinerary) Duration() int {
	return it.EndTime() - it.StartTime()
}

// 乘车次数减一，灵活公交计为乘车
func (it *Itinerary) NumberOfTransfers() int {
	rides := lo.CountBy(it.Legs, func(l *Leg) bool { return l.IsTransit() })
	return max(rides-1, 0)
}

func (it *Itinerary) IsWalkOnly() bool {
	return lo.EveryBy(it.Legs, func(l *Leg) bool { return l.IsWalk() })
}

// 只使用街道方式（步行、驾车）
func (it *Itinerary) IsStreetOnly() bool {
	return !lo.SomeBy(it.Legs, func(l *Leg) bool { return l.IsTransit() })
}

func (it *Itinerary) HasFlex() bool {
	return lo.SomeBy(it.Legs, func(l *Leg) bool { return l.IsFlex() })
}

// 非乘车段的总距离
func (it *Itinerary) NonTransitDistance() float64 {
	return lo.SumBy(it.Legs, func(l *Leg) float64 {
		if l.IsTransit() {
			return 0
		}
		return l.Distance
	})
}

func (it *Itinerary) AddNotice(name string) {
	if !lo.Contains(it.Notices, name) {
		it.Notices = append(it.Notices, name)
	}
}

func (it *Itinerary) IsFlagged() bool {
	return len(it.Notices) > 0
}
