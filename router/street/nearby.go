package street

import (
	"sort"

	"git.fiblab.net/sim/planner/router/algo"
)

// 步行可达的公交站
type NearbyStop struct {
	Stop     int
	Vertex   int
	Duration int     // s
	Distance float64 // m
	// 按行进方向排列：正向为root -> 站点，反向为站点 -> root
	Path Path
}

type nearbyKey struct {
	vertex    int
	direction int
}

// 从vertex出发（FORWARD）或到达vertex（BACKWARD）的步行可达站点，按耗时排序
// 结果在图的生命周期内缓存
func (g *Graph) NearbyStops(vertex int, direction int) []NearbyStop {
	if g.nearby == nil {
		return g.findNearbyStops(vertex, direction)
	}
	v, err := g.nearby.Get(nearbyKey{vertex: vertex, direction: direction})
	if err != nil {
		log.Warnf("nearby stop cache failed for vertex %d: %v", vertex, err)
		return g.findNearbyStops(vertex, direction)
	}
	return v.([]NearbyStop)
}

func (g *Graph) findNearbyStops(vertex int, direction int) []NearbyStop {
	tree := g.WalkTree(vertex, direction, float64(g.cfg.MaxWalkDuration))
	res := make([]NearbyStop, 0)
	for _, v := range tree.Reached() {
		stops := g.stopsAt[v]
		if len(stops) == 0 {
			continue
		}
		path, cost, ok := tree.Path(v)
		if !ok {
			continue
		}
		for _, stop := range stops {
			res = append(res, NearbyStop{
				Stop:     stop,
				Vertex:   v,
				Duration: Seconds(cost),
				Distance: Distance(path),
				Path:     path,
			})
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Duration != res[j].Duration {
			return res[i].Duration < res[j].Duration
		}
		return res[i].Stop < res[j].Stop
	})
	return res
}

// 以站点所在顶点为根的步行换乘搜索，返回可达的其他站点
func (g *Graph) TransfersFrom(stop int, vertex int, maxDuration int) []NearbyStop {
	tree := g.WalkTree(vertex, algo.FORWARD, float64(maxDuration))
	res := make([]NearbyStop, 0)
	for _, v := range tree.Reached() {
		cost, _ := tree.Cost(v)
		for _, to := range g.stopsAt[v] {
			if to == stop {
				continue
			}
			path, _, _ := tree.Path(v)
			res = append(res, NearbyStop{
				Stop:     to,
				Vertex:   v,
				Duration: Seconds(cost),
				Distance: Distance(path),
				Path:     path,
			})
		}
	}
	return res
}
