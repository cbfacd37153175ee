package transit

import "sort"

type Transfer struct {
	From     int
	To       int
	Duration int     // s
	Distance float64 // m
}

// 站点间步行换乘表，同一对站点只保留耗时最短的一条
type TransferTable struct {
	from [][]Transfer
	into [][]Transfer
}

func NewTransferTable(n int) *TransferTable {
	return &TransferTable{
		from: make([][]Transfer, n),
		into: make([][]Transfer, n),
	}
}

// 自身换乘不记录，返回是否写入
func (t *TransferTable) Add(tr Transfer) bool {
	if tr.From == tr.To || tr.Duration < 0 {
		return false
	}
	for i, old := range t.from[tr.From] {
		if old.To == tr.To {
			if old.Duration <= tr.Duration {
				return false
			}
			t.from[tr.From][i] = tr
			for j, o := range t.into[tr.To] {
				if o.From == tr.From {
					t.into[tr.To][j] = tr
				}
			}
			return true
		}
	}
	t.from[tr.From] = append(t.from[tr.From], tr)
	t.into[tr.To] = append(t.into[tr.To], tr)
	return true
}

// 按目标站排序，保证遍历顺序确定
func (t *TransferTable) sort() {
	for _, list := range t.from {
		sort.Slice(list, func(i, j int) bool { return list[i].To < list[j].To })
	}
	for _, list := range t.into {
		sort.Slice(list, func(i, j int) bool { return list[i].From < list[j].From })
	}
}

// 从stop出发的换乘
func (t *TransferTable) From(stop int) []Transfer {
	return t.from[stop]
}

// 到达stop的换乘
func (t *TransferTable) Into(stop int) []Transfer {
	return t.into[stop]
}

func (t *TransferTable) Size() int {
	n := 0
	for _, list := range t.from {
		n += len(list)
	}
	return n
}
