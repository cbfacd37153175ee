package filter

import (
	"fmt"
	"strings"

	"git.fiblab.net/sim/planner/router/itinerary"
	"github.com/samber/lo"
)

// 行程过滤器，返回保留的行程，不修改输入切片
type Filter interface {
	Name() string
	Filter(its []*itinerary.Itinerary) []*itinerary.Itinerary
}

// 相似行程分组，每组保留代价最小的N条
// 相同线路、相同上下车站的行程视为相似，纯街道行程按方式序列分组
type GroupBySimilarityFilter struct {
	KeepN int
}

func (f *GroupBySimilarityFilter) Name() string {
	return "group-by-similarity"
}

func similarityKey(it *itinerary.Itinerary) string {
	parts := make([]string, 0, len(it.Legs))
	if it.IsStreetOnly() {
		for _, l := range it.Legs {
			parts = append(parts, string(l.Mode))
		}
		return "street|" + strings.Join(parts, ",")
	}
	for _, l := range it.Legs {
		if !l.IsTransit() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%s:%s>%s", l.Mode, l.RouteID, l.From.StopID, l.To.StopID))
	}
	return "transit|" + strings.Join(parts, ",")
}

func (f *GroupBySimilarityFilter) Filter(its []*itinerary.Itinerary) []*itinerary.Itinerary {
	keep := make(map[*itinerary.Itinerary]bool, len(its))
	for _, group := range lo.GroupBy(its, similarityKey) {
		ranked := sortedCopy(group, func(a, b *itinerary.Itinerary) int {
			return firstNonZero(
				a.GeneralizedCost-b.GeneralizedCost,
				a.EndTime()-b.EndTime(),
				a.NumberOfTransfers()-b.NumberOfTransfers(),
			)
		})
		for _, it := range ranked[:min(f.KeepN, len(ranked))] {
			keep[it] = true
		}
	}
	return lo.Filter(its, func(it *itinerary.Itinerary, _ int) bool { return keep[it] })
}

// 灵活公交行程的合理性检查
// 去掉相邻的两段灵活公交、紧邻灵活公交的过短乘车，以及灵活公交两端步行过远的行程
// 存在合理的灵活公交行程时同时去掉纯步行行程
type FlexLegalityFilter struct {
	MaxWalkDistance float64
	// 与灵活公交相邻的固定线路乘车的最短时长（s）
	MinTransitDuration int
}

func (f *FlexLegalityFilter) Name() string {
	return "flex-legality"
}

func (f *FlexLegalityFilter) Filter(its []*itinerary.Itinerary) []*itinerary.Itinerary {
	legal := lo.Filter(its, func(it *itinerary.Itinerary, _ int) bool { return f.legal(it) })
	// 只看通过检查的灵活公交行程
	hasFlex := lo.SomeBy(legal, func(it *itinerary.Itinerary) bool { return it.HasFlex() })
	return lo.Filter(legal, func(it *itinerary.Itinerary, _ int) bool {
		return !(hasFlex && it.IsWalkOnly())
	})
}

func (f *FlexLegalityFilter) legal(it *itinerary.Itinerary) bool {
	if !it.HasFlex() {
		return true
	}
	// 只看乘车段之间的相邻关系，步行段不影响
	rides := lo.Filter(it.Legs, func(l *itinerary.Leg, _ int) bool { return l.IsTransit() })
	for i := 0; i+1 < len(rides); i++ {
		a, b := rides[i], rides[i+1]
		if !a.IsFlex() && !b.IsFlex() {
			continue
		}
		if a.IsFlex() && b.IsFlex() {
			return false
		}
		fixed := a
		if a.IsFlex() {
			fixed = b
		}
		if fixed.Duration() < f.MinTransitDuration {
			return false
		}
	}
	walk := 0.0
	for i, l := range it.Legs {
		if !l.IsWalk() {
			continue
		}
		if (i > 0 && it.Legs[i-1].IsFlex()) || (i+1 < len(it.Legs) && it.Legs[i+1].IsFlex()) {
			walk += l.Distance
		}
	}
	return walk <= f.MaxWalkDistance
}

// 存在纯街道行程时，公交行程的代价须低于最优街道行程代价加上Buffer
type StreetOnlyIsBetterFilter struct {
	Buffer int
}

func (f *StreetOnlyIsBetterFilter) Name() string {
	return "street-only-is-better"
}

func (f *StreetOnlyIsBetterFilter) Filter(its []*itinerary.Itinerary) []*itinerary.Itinerary {
	streets := lo.Filter(its, func(it *itinerary.Itinerary, _ int) bool { return it.IsStreetOnly() })
	if len(streets) == 0 {
		return its
	}
	best := lo.MinBy(streets, func(a, b *itinerary.Itinerary) bool {
		return a.GeneralizedCost < b.GeneralizedCost
	}).GeneralizedCost
	limit := best + f.Buffer
	return lo.Filter(its, func(it *itinerary.Itinerary, _ int) bool {
		return it.IsStreetOnly() || it.GeneralizedCost < limit
	})
}

// 去掉纯步行行程，全部为纯步行时保留
type WalkOnlyFilter struct{}

func (f *WalkOnlyFilter) Name() string {
	return "walk-only"
}

func (f *WalkOnlyFilter) Filter(its []*itinerary.Itinerary) []*itinerary.Itinerary {
	res := lo.Filter(its, func(it *itinerary.Itinerary, _ int) bool { return !it.IsWalkOnly() })
	if len(res) == 0 {
		return its
	}
	return res
}

// 最多保留Max条
type MaxLimitFilter struct {
	Max int
}

func (f *MaxLimitFilter) Name() string {
	return "max-limit"
}

func (f *MaxLimitFilter) Filter(its []*itinerary.Itinerary) []*itinerary.Itinerary {
	if len(its) <= f.Max {
		return its
	}
	return its[:f.Max]
}

var (
	_ Filter = (*GroupBySimilarityFilter)(nil)
	_ Filter = (*FlexLegalityFilter)(nil)
	_ Filter = (*StreetOnlyIsBetterFilter)(nil)
	_ Filter = (*WalkOnlyFilter)(nil)
	_ Filter = (*MaxLimitFilter)(nil)
)
