package algo

import (
	"container/heap"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
)

type node[T any] struct {
	p     geometry.Point
	attr  T
	noOut bool // 是否没有出边
}

type edge[T any] struct {
	v    []float64
	attr T
}

type SearchGraph[NT any, ET any] struct {
	// 邻接表，in node -> out node -> edge length with time
	// Runtime期间出边入边不变，因此不需要考虑并发问题
	edges []map[int]edge[ET]
	// 反向邻接表，out node -> in node，供反向一对多搜索使用
	redges []map[int]edge[ET]
	// 点的位置
	nodes []node[NT]
	// 是否是time dependent的图
	isTD bool

	mu *xsync.RBMutex
}

type IHeuristics interface {
	HeuristicEuclidean(geometry.Point, geometry.Point) float64
}

type IEdgeWeight[ET any] interface {
	GetRuntimeEdgeWeight(ET, []float64, int) float64
}

// 出行方式对应的边权与A*估计
type ICostModel[ET any] interface {
	IHeuristics
	IEdgeWeight[ET]
}

func NewSearchGraph[NT any, ET any](isTD bool) *SearchGraph[NT, ET] {
	return &SearchGraph[NT, ET]{
		edges:  make([]map[int]edge[ET], 0),
		redges: make([]map[int]edge[ET], 0),
		nodes:  make([]node[NT], 0),
		isTD:   isTD,
		mu:     xsync.NewRBMutex(),
	}
}

func (g *SearchGraph[NT, ET]) InitNode(p geometry.Point, attr NT, noOut bool) int {
	g.nodes = append(g.nodes, node[NT]{p: p, attr: attr, noOut: noOut})
	g.edges = append(g.edges, make(map[int]edge[ET]))
	g.redges = append(g.redges, make(map[int]edge[ET]))
	return len(g.nodes) - 1
}

func (g *SearchGraph[NT, ET]) InitEdge(from, to int, lengths []float64, attr ET) error {
	if !g.isTD && len(lengths) != 1 {
		// 非time dependent的图，length长度为1
		return ErrNoTDGraph
	}
	if g.isTD && len(lengths) != 1 && len(lengths) != TIME_SLICE_LENGTH {
		return ErrBadTimeSlices
	}
	if from < 0 || from >= len(g.edges) || to < 0 || to >= len(g.edges) {
		return ErrNodeNotFound
	}
	e := edge[ET]{v: lengths, attr: attr}
	g.edges[from][to] = e
	g.redges[to][from] = e
	return nil
}

func (g *SearchGraph[NT, ET]) NodeCount() int {
	return len(g.nodes)
}

func (g *SearchGraph[NT, ET]) NodePoint(n int) geometry.Point {
	return g.nodes[n].p
}

func (g *SearchGraph[NT, ET]) NodeAttr(n int) NT {
	return g.nodes[n].attr
}

func (g *SearchGraph[NT, ET]) GetEdgeLengthAndAttr(from, to int, tIndex int) (float64, ET) {
	edge := g.edges[from][to]
	return edge.v[g.sliceIndex(edge.v, tIndex)], edge.attr
}

func (g *SearchGraph[NT, ET]) sliceIndex(v []float64, tIndex int) int {
	if !g.isTD || len(v) == 1 {
		return 0
	}
	return tIndex
}

func (g *SearchGraph[NT, ET]) reconstructPath(cameFrom map[int]int, curNode int) []PathItem[NT, ET] {
	pathBeforeReversed := []PathItem[NT, ET]{{Node: curNode, NodeAttr: g.nodes[curNode].attr}}
	for {
		if from, ok := cameFrom[curNode]; ok {
			attr := g.edges[from][curNode].attr
			curNode = from
			pathBeforeReversed = append(pathBeforeReversed, PathItem[NT, ET]{
				Node:     curNode,
				NodeAttr: g.nodes[curNode].attr,
				EdgeAttr: attr,
			})
		} else {
			break
		}
	}
	return lo.Reverse(pathBeforeReversed)
}

func (g *SearchGraph[NT, ET]) ShortestPath(start, end int, curTime float64, m ICostModel[ET]) ([]PathItem[NT, ET], float64) {
	return g.ShortestPathAStar(start, end, curTime, m)
}

// A Star算法求最短路
func (g *SearchGraph[NT, ET]) ShortestPathAStar(start, end int, curTime float64, m ICostModel[ET]) ([]PathItem[NT, ET], float64) {
	token := g.mu.RLock()
	defer g.mu.RUnlock(token)
	if start == end {
		return []PathItem[NT, ET]{{Node: start, NodeAttr: g.nodes[start].attr}}, 0
	}
	openSet := make(PriorityQueue, 1)
	openSetMap := make(map[int]*Item, 1) // openSet value -> openSet item
	closed := make(map[int]bool)
	cameFrom := make(map[int]int, 0)
	gScore := make(map[int]float64, 0)
	gScore[start] = .0
	fScore := m.HeuristicEuclidean(g.nodes[start].p, g.nodes[end].p)
	openSet[0] = &Item{Value: start, Priority: fScore, Index: 0}
	openSetMap[start] = openSet[0]
	heap.Init(&openSet)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		if cur == end {
			return g.reconstructPath(cameFrom, cur), gScore[cur]
		}
		closed[cur] = true
		for neighbor, edge := range g.edges[cur] {
			// 如果没有出边，跳过
			if (g.nodes[neighbor].noOut && neighbor != end) || closed[neighbor] {
				continue
			}
			// Time Dependent图
			tIndex := 0
			if g.isTD {
				tIndex = TimeToIndex(curTime + gScore[cur])
			}
			w := m.GetRuntimeEdgeWeight(edge.attr, edge.v, g.sliceIndex(edge.v, tIndex))
			if w == INF {
				continue
			}
			gScoreTentative := gScore[cur] + w
			gScoreNeighbor, ok := gScore[neighbor]
			if !ok {
				gScoreNeighbor = INF
			}
			if gScoreTentative < gScoreNeighbor {
				cameFrom[neighbor] = cur
				gScore[neighbor] = gScoreTentative
				fScore := gScoreTentative + m.HeuristicEuclidean(g.nodes[neighbor].p, g.nodes[end].p)
				if item, inOpen := openSetMap[neighbor]; inOpen && item.Index >= 0 {
					// 已经访问过的节点，修改其在heap中的优先级
					item.Priority = fScore
					heap.Fix(&openSet, item.Index)
				} else {
					// 新访问的节点
					item := &Item{Value: neighbor, Priority: fScore}
					heap.Push(&openSet, item)
					openSetMap[neighbor] = item
				}
			}
		}
	}
	return nil, INF
}

// 一对多最短路树
// 正向搜索以root为起点，反向搜索以root为终点
type ShortestPathTree[NT any, ET any] struct {
	g         *SearchGraph[NT, ET]
	root      int
	direction int
	cost      map[int]float64
	// 正向：点 -> 前驱；反向：点 -> 后继
	parent map[int]int
}

// 平凡的剩余代价估计，一对多搜索没有确定的终点，退化为Dijkstra
type TrivialHeuristics struct{}

func (TrivialHeuristics) HeuristicEuclidean(geometry.Point, geometry.Point) float64 {
	return 0
}

// 一对多搜索，代价超过maxCost的点不再扩展
// 以最早到达为支配关系：每个点只保留代价最小的标签
func (g *SearchGraph[NT, ET]) ShortestPathTree(
	root int, direction int, curTime float64, maxCost float64, w IEdgeWeight[ET],
) *ShortestPathTree[NT, ET] {
	token := g.mu.RLock()
	defer g.mu.RUnlock(token)
	h := TrivialHeuristics{}
	tree := &ShortestPathTree[NT, ET]{
		g:         g,
		root:      root,
		direction: direction,
		cost:      map[int]float64{root: 0},
		parent:    make(map[int]int),
	}
	adjacency := g.edges
	if direction == BACKWARD {
		adjacency = g.redges
	}
	openSet := PriorityQueue{{Value: root, Priority: 0, Index: 0}}
	openSetMap := map[int]*Item{root: openSet[0]}
	closed := make(map[int]bool)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		closed[cur] = true
		for neighbor, edge := range adjacency[cur] {
			if closed[neighbor] {
				continue
			}
			// 没有出边的点不再向外扩展（根除外）
			if direction == FORWARD && g.nodes[cur].noOut && cur != root {
				continue
			}
			tIndex := 0
			if g.isTD {
				// 反向搜索无法得知真实出发时刻，取根的时间片
				t := curTime
				if direction == FORWARD {
					t += tree.cost[cur]
				}
				tIndex = TimeToIndex(t)
			}
			weight := w.GetRuntimeEdgeWeight(edge.attr, edge.v, g.sliceIndex(edge.v, tIndex))
			if weight == INF {
				continue
			}
			tentative := tree.cost[cur] + weight
			if tentative > maxCost {
				continue
			}
			old, ok := tree.cost[neighbor]
			if ok && old <= tentative {
				continue
			}
			tree.cost[neighbor] = tentative
			tree.parent[neighbor] = cur
			priority := tentative + h.HeuristicEuclidean(g.nodes[neighbor].p, g.nodes[root].p)
			if item, inOpen := openSetMap[neighbor]; inOpen && item.Index >= 0 {
				item.Priority = priority
				heap.Fix(&openSet, item.Index)
			} else {
				item := &Item{Value: neighbor, Priority: priority}
				heap.Push(&openSet, item)
				openSetMap[neighbor] = item
			}
		}
	}
	return tree
}

// 到达（或出发自）点n的代价
func (t *ShortestPathTree[NT, ET]) Cost(n int) (float64, bool) {
	c, ok := t.cost[n]
	return c, ok
}

// 树中所有可达点，按编号排序
func (t *ShortestPathTree[NT, ET]) Reached() []int {
	nodes := lo.Keys(t.cost)
	sort.Ints(nodes)
	return nodes
}

// 按行进方向给出root与n之间的路径
// 正向：root -> n；反向：n -> root
func (t *ShortestPathTree[NT, ET]) Path(n int) ([]PathItem[NT, ET], float64, bool) {
	cost, ok := t.cost[n]
	if !ok {
		return nil, INF, false
	}
	g := t.g
	if t.direction == FORWARD {
		return g.reconstructPath(t.parent, n), cost, true
	}
	path := []PathItem[NT, ET]{}
	cur := n
	for {
		next, ok := t.parent[cur]
		if !ok {
			break
		}
		path = append(path, PathItem[NT, ET]{
			Node:     cur,
			NodeAttr: g.nodes[cur].attr,
			EdgeAttr: g.edges[cur][next].attr,
		})
		cur = next
	}
	path = append(path, PathItem[NT, ET]{Node: cur, NodeAttr: g.nodes[cur].attr})
	return path, cost, true
}
