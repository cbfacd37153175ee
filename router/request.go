package router

import (
	"errors"
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/planner/router/transit"
	"github.com/samber/lo"
)

var (
	ErrNoSnapshot = errors.New("no transit snapshot loaded")
	ErrOutOfGraph = errors.New("position can not be snapped to street graph")
	ErrBadRequest = errors.New("invalid routing request")
)

type Request struct {
	From geometry.Point
	To   geometry.Point
	// 出发时刻（ArriveBy为false）或最晚到达时刻，相对服务日零点的秒数
	DateTime int
	ArriveBy bool
	// 允许的公交方式，为空表示全部（含灵活公交）
	Modes []transit.Mode
	// 为0时取配置值
	SearchWindow   int
	NumItineraries int
}

func (r *Request) validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrBadRequest)
	}
	if r.SearchWindow < 0 {
		return fmt.Errorf("%w: negative search window %d", ErrBadRequest, r.SearchWindow)
	}
	if r.NumItineraries < 0 {
		return fmt.Errorf("%w: negative itinerary number %d", ErrBadRequest, r.NumItineraries)
	}
	for _, m := range r.Modes {
		if !m.IsTransit() {
			return fmt.Errorf("%w: %s", transit.ErrUnknownMode, m)
		}
	}
	return nil
}

// 允许灵活公交
func (r *Request) allowFlex() bool {
	return len(r.Modes) == 0 || lo.Contains(r.Modes, transit.MODE_FLEX)
}

// 固定线路方式，nil表示不限
func (r *Request) scheduledModes() []transit.Mode {
	if len(r.Modes) == 0 {
		return nil
	}
	modes := lo.Filter(r.Modes, func(m transit.Mode, _ int) bool { return m != transit.MODE_FLEX })
	if len(modes) == 0 {
		// 只有灵活公交时固定线路全部禁用
		return []transit.Mode{}
	}
	return lo.Uniq(modes)
}
