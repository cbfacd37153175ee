package street

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/algo"
	"github.com/bluele/gcache"
	"github.com/kyroy/kdtree"
	"github.com/paulmach/orb"
)

var (
	ErrDuplicateVertex = errors.New("duplicate street vertex")
	ErrFrozen          = errors.New("street graph is frozen")
)

type Path = []algo.PathItem[algo.StreetNodeAttr, algo.StreetEdgeAttr]
type Tree = algo.ShortestPathTree[algo.StreetNodeAttr, algo.StreetEdgeAttr]

// 路网边的输入
type Edge struct {
	ID            int64
	From, To      int64
	Length        float64 // 为0时取两端点直线距离
	Walkable      bool
	Drivable      bool
	Bidirectional bool
	Geometry      []geometry.Point
	// 驾车通行时间（s），长度为1或288个时间片，为空时按默认车速计算
	DriveTimes []float64
}

// 街道网络
// 点为路口/站点挂接点，边为可步行或可驾车的路段
type Graph struct {
	g           *algo.SearchGraph[algo.StreetNodeAttr, algo.StreetEdgeAttr]
	vertexIndex map[int64]int
	// 顶点 -> 挂接在该顶点上的公交站下标
	stopsAt map[int][]int
	tree    *kdtree.KDTree
	nearby  gcache.Cache
	cfg     config.StreetConfig
	walk    WalkCostModel
	frozen  bool
}

// kd树中的顶点
type vertexPoint struct {
	geometry.Point
	vertex int
}

func (p *vertexPoint) Dimensions() int {
	return 2
}

func (p *vertexPoint) Dimension(i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		panic("invalid dimension")
	}
}

func NewGraph(cfg config.StreetConfig) *Graph {
	return &Graph{
		g:           algo.NewSearchGraph[algo.StreetNodeAttr, algo.StreetEdgeAttr](true),
		vertexIndex: make(map[int64]int),
		stopsAt:     make(map[int][]int),
		cfg:         cfg,
		walk:        WalkCostModel{Speed: cfg.WalkSpeed},
	}
}

func (g *Graph) AddVertex(id int64, p geometry.Point) (int, error) {
	if g.frozen {
		return 0, ErrFrozen
	}
	if _, ok := g.vertexIndex[id]; ok {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateVertex, id)
	}
	v := g.g.InitNode(p, algo.StreetNodeAttr{ID: id}, false)
	g.vertexIndex[id] = v
	g.tree = nil
	return v, nil
}

func (g *Graph) AddEdge(e Edge) error {
	if g.frozen {
		return ErrFrozen
	}
	from, ok := g.vertexIndex[e.From]
	if !ok {
		return fmt.Errorf("edge %d: %w: %d", e.ID, algo.ErrNodeNotFound, e.From)
	}
	to, ok := g.vertexIndex[e.To]
	if !ok {
		return fmt.Errorf("edge %d: %w: %d", e.ID, algo.ErrNodeNotFound, e.To)
	}
	pFrom, pTo := g.g.NodePoint(from), g.g.NodePoint(to)
	length := e.Length
	if length <= 0 {
		length = geometry.Distance(pFrom, pTo)
	}
	shape := e.Geometry
	if len(shape) < 2 {
		shape = []geometry.Point{pFrom, pTo}
	}
	driveTimes := e.DriveTimes
	if len(driveTimes) == 0 {
		driveTimes = []float64{length / g.cfg.DriveSpeed}
	}
	attr := algo.StreetEdgeAttr{
		ID: e.ID, Length: length, Walkable: e.Walkable, Drivable: e.Drivable, Geometry: shape,
	}
	if err := g.g.InitEdge(from, to, driveTimes, attr); err != nil {
		return fmt.Errorf("edge %d: %w", e.ID, err)
	}
	if e.Bidirectional {
		reversed := make([]geometry.Point, len(shape))
		for i, p := range shape {
			reversed[len(shape)-1-i] = p
		}
		attr.Geometry = reversed
		if err := g.g.InitEdge(to, from, driveTimes, attr); err != nil {
			return fmt.Errorf("edge %d: %w", e.ID, err)
		}
	}
	return nil
}

// 将公交站挂接到顶点上
func (g *Graph) LinkStop(stop int, vertex int) {
	g.stopsAt[vertex] = append(g.stopsAt[vertex], stop)
}

// 建立顶点的kd树索引
func (g *Graph) BuildSpatialIndex() {
	points := make([]kdtree.Point, 0, g.g.NodeCount())
	for v := 0; v < g.g.NodeCount(); v++ {
		points = append(points, &vertexPoint{Point: g.g.NodePoint(v), vertex: v})
	}
	g.tree = kdtree.New(points)
}

// 建立空间索引与邻近站点缓存，此后图只读
func (g *Graph) Freeze() {
	if g.tree == nil {
		g.BuildSpatialIndex()
	}
	for _, stops := range g.stopsAt {
		sort.Ints(stops)
	}
	if g.cfg.NearbyCacheSize > 0 {
		g.nearby = gcache.New(g.cfg.NearbyCacheSize).
			LRU().
			LoaderFunc(func(key interface{}) (interface{}, error) {
				k := key.(nearbyKey)
				return g.findNearbyStops(k.vertex, k.direction), nil
			}).
			Build()
	}
	g.frozen = true
	log.Debugf("street graph frozen with %d vertices, %d linked vertices", g.g.NodeCount(), len(g.stopsAt))
}

func (g *Graph) VertexCount() int {
	return g.g.NodeCount()
}

func (g *Graph) VertexIndex(id int64) (int, bool) {
	v, ok := g.vertexIndex[id]
	return v, ok
}

func (g *Graph) VertexID(v int) int64 {
	return g.g.NodeAttr(v).ID
}

func (g *Graph) VertexPoint(v int) geometry.Point {
	return g.g.NodePoint(v)
}

// 距离p最近的顶点
func (g *Graph) Nearest(p geometry.Point) (int, float64, bool) {
	if g.tree == nil || g.g.NodeCount() == 0 {
		return -1, algo.INF, false
	}
	res := g.tree.KNN(&vertexPoint{Point: p}, 1)
	if len(res) == 0 {
		return -1, algo.INF, false
	}
	vp := res[0].(*vertexPoint)
	return vp.vertex, geometry.Distance(p, vp.Point), true
}

// 步行最短路，返回路径与耗时（s）
func (g *Graph) WalkPath(from, to int) (Path, float64, bool) {
	path, cost := g.g.ShortestPath(from, to, 0, g.walk)
	if path == nil {
		return nil, algo.INF, false
	}
	return path, cost, true
}

// 驾车最短路，curTime用于选择时间片
func (g *Graph) DrivePath(from, to int, curTime float64) (Path, float64, bool) {
	path, cost := g.g.ShortestPath(from, to, curTime, DriveCostModel{})
	if path == nil {
		return nil, algo.INF, false
	}
	return path, cost, true
}

// 步行一对多搜索，耗时不超过maxDuration
func (g *Graph) WalkTree(root int, direction int, maxDuration float64) *Tree {
	return g.g.ShortestPathTree(root, direction, 0, maxDuration, g.walk)
}

// 驾车一对多搜索，耗时不超过maxDuration
func (g *Graph) DriveTree(root int, direction int, curTime float64, maxDuration float64) *Tree {
	return g.g.ShortestPathTree(root, direction, curTime, maxDuration, DriveCostModel{})
}

// 路径长度（m）
func Distance(path Path) float64 {
	d := 0.0
	for i := 0; i+1 < len(path); i++ {
		d += path[i].EdgeAttr.Length
	}
	return d
}

// 路径经过的路段ID
func EdgeIDs(path Path) []int64 {
	if len(path) < 2 {
		return nil
	}
	ids := make([]int64, 0, len(path)-1)
	for _, item := range path[:len(path)-1] {
		ids = append(ids, item.EdgeAttr.ID)
	}
	return ids
}

// 路径形状
func (g *Graph) Geometry(path Path) orb.LineString {
	line := orb.LineString{}
	add := func(p geometry.Point) {
		op := orb.Point{p.X, p.Y}
		if len(line) > 0 && line[len(line)-1] == op {
			return
		}
		line = append(line, op)
	}
	for i, item := range path {
		if i+1 < len(path) {
			for _, p := range item.EdgeAttr.Geometry {
				add(p)
			}
		} else {
			add(g.g.NodePoint(item.Node))
		}
	}
	return line
}

// 耗时取整到秒
func Seconds(cost float64) int {
	return int(math.Ceil(cost - 1e-9))
}
