package filter

import (
	"errors"
	"fmt"

	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/itinerary"
	"github.com/samber/lo"
)

var (
	ErrEmptyChain = errors.New("empty itinerary filter chain")
	ErrBadBounds  = errors.New("min itineraries is greater than max itineraries")
)

// 行程过滤链
// 依次执行各过滤器，之后排序并截断到上限
// 过滤后少于下限时，按排序规则补回被去掉的最优行程
type Chain struct {
	filters []Filter
	sort    *SortFilter
	limit   *MaxLimitFilter
	min     int
	debug   bool
}

type ChainOptions struct {
	Filters []Filter
	Sort    []string
	// 按到达时刻搜索，影响ARRIVAL_OR_DEPARTURE
	ArriveBy bool
	Min      int
	Max      int
	// 被去掉的行程打上过滤器名称后附在结果末尾
	Debug bool
}

func NewChain(opts ChainOptions) (*Chain, error) {
	if len(opts.Filters) == 0 && len(opts.Sort) == 0 {
		return nil, ErrEmptyChain
	}
	if opts.Min < 0 || opts.Max <= 0 || opts.Min > opts.Max {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrBadBounds, opts.Min, opts.Max)
	}
	cmp, err := NewComparator(opts.Sort, opts.ArriveBy)
	if err != nil {
		return nil, err
	}
	return &Chain{
		filters: opts.Filters,
		sort:    &SortFilter{Cmp: cmp},
		limit:   &MaxLimitFilter{Max: opts.Max},
		min:     opts.Min,
		debug:   opts.Debug,
	}, nil
}

// 按配置构造过滤链
func NewChainFromConfig(cfg *config.Config, arriveBy bool) (*Chain, error) {
	fc := cfg.Filter
	filters := make([]Filter, 0)
	if fc.GroupSimilarityKeepN > 0 {
		filters = append(filters, &GroupBySimilarityFilter{KeepN: fc.GroupSimilarityKeepN})
	}
	if fc.FlexLegality && cfg.Flex.Enabled {
		filters = append(filters, &FlexLegalityFilter{
			MaxWalkDistance:    cfg.Flex.MaxWalkDistance,
			MinTransitDuration: cfg.Flex.MinTransitDuration,
		})
	}
	if fc.StreetOnlyIsBetter {
		filters = append(filters, &StreetOnlyIsBetterFilter{Buffer: fc.StreetOnlyBuffer})
	}
	if fc.RemoveWalkOnly {
		filters = append(filters, &WalkOnlyFilter{})
	}
	return NewChain(ChainOptions{
		Filters:  filters,
		Sort:     fc.Sort,
		ArriveBy: arriveBy,
		Min:      fc.MinItineraries,
		Max:      fc.MaxItineraries,
		Debug:    fc.Debug,
	})
}

func (c *Chain) Filter(its []*itinerary.Itinerary) []*itinerary.Itinerary {
	removed := make([]*itinerary.Itinerary, 0)
	cur := its
	steps := append(append([]Filter{}, c.filters...), c.sort, c.limit)
	for _, f := range steps {
		kept := f.Filter(cur)
		dropped := difference(cur, kept)
		if len(dropped) == 0 {
			cur = kept
			continue
		}
		if len(kept) < c.min {
			restore := c.sort.Filter(dropped)[:min(c.min-len(kept), len(dropped))]
			kept = append(kept, restore...)
			dropped = difference(dropped, restore)
		}
		log.Debugf("filter %s removed %d itineraries", f.Name(), len(dropped))
		if c.debug {
			for _, it := range dropped {
				it.AddNotice(f.Name())
			}
			removed = append(removed, dropped...)
		}
		cur = kept
	}
	// 补回的行程可能打乱顺序
	cur = c.sort.Filter(cur)
	return append(cur, removed...)
}

// 在all中但不在kept中的行程，保持原顺序
func difference(all, kept []*itinerary.Itinerary) []*itinerary.Itinerary {
	set := lo.SliceToMap(kept, func(it *itinerary.Itinerary) (*itinerary.Itinerary, bool) { return it, true })
	return lo.Filter(all, func(it *itinerary.Itinerary, _ int) bool { return !set[it] })
}
