package raptor

// a在至少一个维度上严格优于b
type Better[T any] func(a, b T) bool

// 互不支配的元素集合
// 新元素若在每个已有元素面前都有至少一个维度严格更优则加入，并淘汰被它支配的元素
type ParetoSet[T any] struct {
	elems   []T
	better  Better[T]
	onEvict func(T)
}

func NewParetoSet[T any](better Better[T]) *ParetoSet[T] {
	return &ParetoSet[T]{better: better}
}

// 元素被淘汰时回调
func (s *ParetoSet[T]) OnEvict(f func(T)) {
	s.onEvict = f
}

func (s *ParetoSet[T]) Add(e T) bool {
	for _, x := range s.elems {
		if !s.better(e, x) {
			return false
		}
	}
	kept := s.elems[:0]
	for _, x := range s.elems {
		if s.better(x, e) {
			kept = append(kept, x)
		} else if s.onEvict != nil {
			s.onEvict(x)
		}
	}
	s.elems = append(kept, e)
	return true
}

func (s *ParetoSet[T]) Elements() []T {
	return s.elems
}

func (s *ParetoSet[T]) Size() int {
	return len(s.elems)
}

func (s *ParetoSet[T]) Clear() {
	s.elems = s.elems[:0]
}
