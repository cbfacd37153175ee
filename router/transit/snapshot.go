package transit

import (
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/planner/router/street"
)

// 一次搜索所需的全部只读数据
// 构建后不再修改，重新加载时整体替换
type Snapshot struct {
	Version   string
	LoadedAt  time.Time
	Stops     []*Stop
	StopIndex *StopIndex
	Patterns  []*TripPattern
	// 站点 -> 经过该站的线路模式下标（升序）
	PatternsByStop [][]int
	Transfers      *TransferTable
	FlexTrips      []*FlexTrip
	FlexLocations  map[string]*FlexLocation
	Street         *street.Graph
}

func (s *Snapshot) StopByID(id string) (*Stop, bool) {
	i, ok := s.StopIndex.IndexOf(id)
	if !ok {
		return nil, false
	}
	return s.Stops[i], true
}

// 当前生效的快照，支持运行期间原子替换
// 进行中的搜索继续持有旧快照
type Holder struct {
	current atomic.Pointer[Snapshot]
}

func NewHolder(s *Snapshot) *Holder {
	h := &Holder{}
	h.current.Store(s)
	return h
}

func (h *Holder) Get() *Snapshot {
	return h.current.Load()
}

// 替换快照，返回旧快照
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	old := h.current.Swap(s)
	if old != nil {
		log.Infof(
			"snapshot swapped: %s -> %s (loaded at %s)",
			old.Version, s.Version, s.LoadedAt.Format(time.DateTime),
		)
	}
	return old
}
