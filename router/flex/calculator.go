package flex

import (
	"git.fiblab.net/sim/planner/router/algo"
	"git.fiblab.net/sim/planner/router/street"
	"git.fiblab.net/sim/planner/router/transit"
	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
)

// 一段灵活公交乘车
type FlexPath struct {
	DistanceMeters  float64
	DurationSeconds int
	Geometry        orb.LineString
	Edges           []int64
}

// 灵活公交行驶路径计算
// 以固定端点（正向为上车点，反向为下车点）为根建立驾车最短路树并缓存
// 缓存属于单次请求，可被该请求的多个goroutine共享
type PathCalculator struct {
	graph       *street.Graph
	forward     bool
	maxDuration float64
	startTime   float64
	trees       *xsync.MapOf[int, *street.Tree]
}

func NewPathCalculator(graph *street.Graph, forward bool, maxDuration int, startTime int) *PathCalculator {
	return &PathCalculator{
		graph:       graph,
		forward:     forward,
		maxDuration: float64(maxDuration),
		startTime:   float64(startTime),
		trees:       xsync.NewMapOf[int, *street.Tree](),
	}
}

func (c *PathCalculator) tree(root int) *street.Tree {
	tree, _ := c.trees.LoadOrCompute(root, func() *street.Tree {
		direction := algo.FORWARD
		if !c.forward {
			direction = algo.BACKWARD
		}
		return c.graph.DriveTree(root, direction, c.startTime, c.maxDuration)
	})
	return tree
}

// 计算fromV到toV的行驶路径，不可达时返回false
// 班次在两端有计划时刻且其差为正时，以计划时长代替路网时长
func (c *PathCalculator) Calculate(
	fromV, toV int, trip *transit.FlexTrip, fromIdx, toIdx int,
) (FlexPath, bool) {
	if fromV < 0 || toV < 0 {
		return FlexPath{}, false
	}
	root, target := fromV, toV
	if !c.forward {
		root, target = toV, fromV
	}
	path, cost, ok := c.tree(root).Path(target)
	if !ok {
		return FlexPath{}, false
	}
	duration := street.Seconds(cost)
	dep, arr := trip.ScheduledDeparture(fromIdx), trip.ScheduledArrival(toIdx)
	if dep != transit.TIME_NOT_SET && arr != transit.TIME_NOT_SET && arr-dep > 0 {
		duration = arr - dep
	}
	return FlexPath{
		DistanceMeters:  street.Distance(path),
		DurationSeconds: max(duration, 1),
		Geometry:        c.graph.Geometry(path),
		Edges:           street.EdgeIDs(path),
	}, true
}

// 已缓存的最短路树数量
func (c *PathCalculator) CacheSize() int {
	return c.trees.Size()
}
