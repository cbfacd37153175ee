package filter

import (
	"errors"
	"fmt"
	"slices"

	"git.fiblab.net/sim/planner/router/itinerary"
)

var ErrUnknownSortDirective = errors.New("unknown sort directive")

// 排序指令
const (
	SORT_STREET_ONLY_FIRST    = "STREET_ONLY_FIRST"
	SORT_ARRIVAL_TIME         = "ARRIVAL_TIME"
	SORT_DEPARTURE_TIME       = "DEPARTURE_TIME"
	SORT_ARRIVAL_OR_DEPARTURE = "ARRIVAL_OR_DEPARTURE"
	SORT_GENERALIZED_COST     = "GENERALIZED_COST"
	SORT_NUMBER_OF_TRANSFERS  = "NUMBER_OF_TRANSFERS"
)

// 负数表示a排在b前
type Comparator func(a, b *itinerary.Itinerary) int

func boolFirst(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func comparatorOf(directive string, arriveBy bool) (Comparator, error) {
	switch directive {
	case SORT_STREET_ONLY_FIRST:
		return func(a, b *itinerary.Itinerary) int { return boolFirst(a.IsStreetOnly(), b.IsStreetOnly()) }, nil
	case SORT_ARRIVAL_TIME:
		return func(a, b *itinerary.Itinerary) int { return a.EndTime() - b.EndTime() }, nil
	case SORT_DEPARTURE_TIME:
		// 出发越晚越靠前
		return func(a, b *itinerary.Itinerary) int { return b.StartTime() - a.StartTime() }, nil
	case SORT_ARRIVAL_OR_DEPARTURE:
		if arriveBy {
			return comparatorOf(SORT_DEPARTURE_TIME, arriveBy)
		}
		return comparatorOf(SORT_ARRIVAL_TIME, arriveBy)
	case SORT_GENERALIZED_COST:
		return func(a, b *itinerary.Itinerary) int { return a.GeneralizedCost - b.GeneralizedCost }, nil
	case SORT_NUMBER_OF_TRANSFERS:
		return func(a, b *itinerary.Itinerary) int { return a.NumberOfTransfers() - b.NumberOfTransfers() }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortDirective, directive)
	}
}

// 按指令依次比较，第一个不相等的结果决定顺序
func NewComparator(directives []string, arriveBy bool) (Comparator, error) {
	cmps := make([]Comparator, 0, len(directives))
	for _, d := range directives {
		c, err := comparatorOf(d, arriveBy)
		if err != nil {
			return nil, err
		}
		cmps = append(cmps, c)
	}
	return func(a, b *itinerary.Itinerary) int {
		for _, c := range cmps {
			if r := c(a, b); r != 0 {
				return r
			}
		}
		return 0
	}, nil
}

func sortedCopy(its []*itinerary.Itinerary, cmp Comparator) []*itinerary.Itinerary {
	res := slices.Clone(its)
	slices.SortStableFunc(res, (func(a, b *itinerary.Itinerary) int)(cmp))
	return res
}

type SortFilter struct {
	Cmp Comparator
}

func (f *SortFilter) Name() string {
	return "sort"
}

func (f *SortFilter) Filter(its []*itinerary.Itinerary) []*itinerary.Itinerary {
	return sortedCopy(its, f.Cmp)
}

var _ Filter = (*SortFilter)(nil)
