package transit

import (
	"errors"
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
)

var ErrDuplicateStop = errors.New("duplicate stop id")

type Stop struct {
	ID    string
	Name  string
	Point geometry.Point
	// 挂接的街道顶点，-1表示未挂接
	Vertex int
}

// 站点ID与稠密下标[0, N)的双向映射
type StopIndex struct {
	ids   []string
	index map[string]int
}

func NewStopIndex(ids []string) (*StopIndex, error) {
	s := &StopIndex{
		ids:   make([]string, len(ids)),
		index: make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		if _, ok := s.index[id]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStop, id)
		}
		s.ids[i] = id
		s.index[id] = i
	}
	return s, nil
}

func (s *StopIndex) IndexOf(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

func (s *StopIndex) StopID(i int) string {
	return s.ids[i]
}

func (s *StopIndex) Size() int {
	return len(s.ids)
}
