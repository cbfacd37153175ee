package transit

import (
	"errors"
	"fmt"
	"sort"
)

type Mode string

const (
	MODE_WALK   Mode = "WALK"
	MODE_CAR    Mode = "CAR"
	MODE_FLEX   Mode = "FLEX"
	MODE_BUS    Mode = "BUS"
	MODE_TRAM   Mode = "TRAM"
	MODE_SUBWAY Mode = "SUBWAY"
	MODE_RAIL   Mode = "RAIL"
	MODE_FERRY  Mode = "FERRY"
)

var TRANSIT_MODES = []Mode{MODE_BUS, MODE_TRAM, MODE_SUBWAY, MODE_RAIL, MODE_FERRY}

func (m Mode) IsTransit() bool {
	switch m {
	case MODE_BUS, MODE_TRAM, MODE_SUBWAY, MODE_RAIL, MODE_FERRY, MODE_FLEX:
		return true
	}
	return false
}

func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	for _, t := range TRANSIT_MODES {
		if t == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMode, s)
}

var (
	ErrUnknownMode   = errors.New("unknown transit mode")
	ErrShortPattern  = errors.New("trip pattern should have at least 2 stops")
	ErrBadPickDrop   = errors.New("boarding/alighting flags do not match stops")
	ErrEmptyPattern  = errors.New("trip pattern has no valid trips")
	ErrBadStopTimes  = errors.New("stop times are not monotonic")
	ErrBadTripLength = errors.New("trip length differs from pattern")
)

// 到站/离站时刻，相对服务日零点的秒数，可以超过86400
type StopTime struct {
	Arrival   int
	Departure int
}

type Trip struct {
	ID    string
	Times []StopTime
}

func (t *Trip) validate(n int) error {
	if len(t.Times) != n {
		return ErrBadTripLength
	}
	for i, st := range t.Times {
		if st.Arrival > st.Departure {
			return fmt.Errorf("%w at %d", ErrBadStopTimes, i)
		}
		if i+1 < n && st.Departure > t.Times[i+1].Arrival {
			return fmt.Errorf("%w at %d", ErrBadStopTimes, i)
		}
	}
	return nil
}

// 经停站序列相同的一组班次
type TripPattern struct {
	ID      string
	RouteID string
	Mode    Mode
	Stops   []int
	// 各位置是否允许上车/下车
	Boarding  []bool
	Alighting []bool
	// 按首站发车时刻排序
	Trips []*Trip
	// 存在班次间超车，不能二分查找
	overtaking bool
}

// 构造线路模式，时刻表不合法的班次被剔除
// boarding/alighting为空表示全部允许
func NewTripPattern(
	id, routeID string, mode Mode, stops []int, boarding, alighting []bool, trips []*Trip,
) (*TripPattern, error) {
	n := len(stops)
	if n < 2 {
		return nil, fmt.Errorf("pattern %s: %w", id, ErrShortPattern)
	}
	if boarding == nil {
		boarding = allowAll(n)
	}
	if alighting == nil {
		alighting = allowAll(n)
	}
	if len(boarding) != n || len(alighting) != n {
		return nil, fmt.Errorf("pattern %s: %w", id, ErrBadPickDrop)
	}
	valid := make([]*Trip, 0, len(trips))
	for _, trip := range trips {
		if err := trip.validate(n); err != nil {
			log.Warnf("pattern %s: skip trip %s: %v", id, trip.ID, err)
			continue
		}
		valid = append(valid, trip)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("pattern %s: %w", id, ErrEmptyPattern)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		a, b := valid[i].Times[0].Departure, valid[j].Times[0].Departure
		if a != b {
			return a < b
		}
		return valid[i].ID < valid[j].ID
	})
	p := &TripPattern{
		ID: id, RouteID: routeID, Mode: mode,
		Stops: stops, Boarding: boarding, Alighting: alighting,
		Trips: valid,
	}
	// 检查每个位置上的到站、发车时刻是否随班次单调
	for i := 1; i < len(valid) && !p.overtaking; i++ {
		for pos := 0; pos < n; pos++ {
			cur, prev := valid[i].Times[pos], valid[i-1].Times[pos]
			if cur.Departure < prev.Departure || cur.Arrival < prev.Arrival {
				p.overtaking = true
				break
			}
		}
	}
	return p, nil
}

// 班次间存在超车，班次下标不再代表各站的先后
func (p *TripPattern) Overtaking() bool {
	return p.overtaking
}

func allowAll(n int) []bool {
	res := make([]bool, n)
	for i := range res {
		res[i] = true
	}
	return res
}

func (p *TripPattern) NumberOfStops() int {
	return len(p.Stops)
}

func (p *TripPattern) CanBoard(pos int) bool {
	return pos+1 < len(p.Stops) && p.Boarding[pos]
}

func (p *TripPattern) CanAlight(pos int) bool {
	return pos > 0 && p.Alighting[pos]
}

// 在pos处离站时刻落在[earliest, latest]内的最早班次
func (p *TripPattern) FindTrip(pos, earliest, latest int) (int, bool) {
	if earliest > latest {
		return -1, false
	}
	if !p.overtaking {
		i := sort.Search(len(p.Trips), func(i int) bool {
			return p.Trips[i].Times[pos].Departure >= earliest
		})
		if i < len(p.Trips) && p.Trips[i].Times[pos].Departure <= latest {
			return i, true
		}
		return -1, false
	}
	best := -1
	for i, trip := range p.Trips {
		dep := trip.Times[pos].Departure
		if dep < earliest || dep > latest {
			continue
		}
		if best < 0 || dep < p.Trips[best].Times[pos].Departure {
			best = i
		}
	}
	return best, best >= 0
}
