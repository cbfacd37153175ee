package street_test

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/algo"
	"git.fiblab.net/sim/planner/router/street"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1 <-> 2 <-> 3（仅步行）    4孤立
func buildGraph(t *testing.T, cacheSize int) *street.Graph {
	cfg := config.Default().Street
	cfg.WalkSpeed = 1
	cfg.DriveSpeed = 10
	cfg.MaxWalkDuration = 300
	cfg.NearbyCacheSize = cacheSize
	g := street.NewGraph(cfg)
	for _, v := range []struct {
		id int64
		p  geometry.Point
	}{
		{1, geometry.Point{X: 0, Y: 0}},
		{2, geometry.Point{X: 100, Y: 0}},
		{3, geometry.Point{X: 200, Y: 0}},
		{4, geometry.Point{X: 0, Y: 1000}},
	} {
		_, err := g.AddVertex(v.id, v.p)
		require.NoError(t, err)
	}
	require.NoError(t, g.AddEdge(street.Edge{ID: 12, From: 1, To: 2, Walkable: true, Drivable: true, Bidirectional: true}))
	require.NoError(t, g.AddEdge(street.Edge{ID: 23, From: 2, To: 3, Walkable: true, Bidirectional: true}))
	v1, _ := g.VertexIndex(1)
	v3, _ := g.VertexIndex(3)
	g.LinkStop(0, v1)
	g.LinkStop(1, v3)
	g.Freeze()
	return g
}

func TestAddErrors(t *testing.T) {
	g := street.NewGraph(config.Default().Street)
	_, err := g.AddVertex(1, geometry.Point{})
	require.NoError(t, err)
	_, err = g.AddVertex(1, geometry.Point{})
	assert.ErrorIs(t, err, street.ErrDuplicateVertex)
	assert.ErrorIs(t, g.AddEdge(street.Edge{ID: 1, From: 1, To: 9}), algo.ErrNodeNotFound)
	g.Freeze()
	_, err = g.AddVertex(2, geometry.Point{})
	assert.ErrorIs(t, err, street.ErrFrozen)
}

func TestNearest(t *testing.T) {
	g := buildGraph(t, 0)
	v, d, ok := g.Nearest(geometry.Point{X: 190, Y: 10})
	require.True(t, ok)
	assert.Equal(t, int64(3), g.VertexID(v))
	assert.InDelta(t, 14.142, d, 1e-3)
}

func TestWalkAndDrivePath(t *testing.T) {
	g := buildGraph(t, 0)
	v1, _ := g.VertexIndex(1)
	v3, _ := g.VertexIndex(3)
	v4, _ := g.VertexIndex(4)

	path, cost, ok := g.WalkPath(v1, v3)
	require.True(t, ok)
	assert.Equal(t, 200.0, cost)
	assert.Equal(t, 200.0, street.Distance(path))
	assert.Equal(t, orb.LineString{{0, 0}, {100, 0}, {200, 0}}, g.Geometry(path))
	assert.Equal(t, []int64{12, 23}, street.EdgeIDs(path))

	// 反向
	path, _, ok = g.WalkPath(v3, v1)
	require.True(t, ok)
	assert.Equal(t, orb.LineString{{200, 0}, {100, 0}, {0, 0}}, g.Geometry(path))
	assert.Equal(t, []int64{23, 12}, street.EdgeIDs(path))

	path, _, ok = g.WalkPath(v1, v1)
	require.True(t, ok)
	assert.Nil(t, street.EdgeIDs(path))

	// 2 -> 3 不可驾车
	_, _, ok = g.DrivePath(v1, v3, 0)
	assert.False(t, ok)
	v2, _ := g.VertexIndex(2)
	_, cost, ok = g.DrivePath(v1, v2, 0)
	require.True(t, ok)
	assert.Equal(t, 10.0, cost)

	_, _, ok = g.WalkPath(v1, v4)
	assert.False(t, ok)
}

func TestNearbyStops(t *testing.T) {
	for _, size := range []int{0, 16} {
		g := buildGraph(t, size)
		v1, _ := g.VertexIndex(1)
		v3, _ := g.VertexIndex(3)

		stops := g.NearbyStops(v1, algo.FORWARD)
		require.Len(t, stops, 2)
		assert.Equal(t, 0, stops[0].Stop)
		assert.Equal(t, 0, stops[0].Duration)
		assert.Equal(t, 1, stops[1].Stop)
		assert.Equal(t, 200, stops[1].Duration)
		assert.Equal(t, 200.0, stops[1].Distance)

		// 反向：站点 -> v3
		back := g.NearbyStops(v3, algo.BACKWARD)
		require.Len(t, back, 2)
		assert.Equal(t, 1, back[0].Stop)
		assert.Equal(t, 0, back[1].Stop)
		assert.Equal(t, v1, back[1].Path[0].Node)
		assert.Equal(t, v3, back[1].Path[len(back[1].Path)-1].Node)

		// 再次查询结果一致
		assert.Equal(t, stops, g.NearbyStops(v1, algo.FORWARD))
	}
}

func TestTransfersFrom(t *testing.T) {
	g := buildGraph(t, 0)
	v1, _ := g.VertexIndex(1)
	transfers := g.TransfersFrom(0, v1, 150)
	assert.Empty(t, transfers)
	transfers = g.TransfersFrom(0, v1, 600)
	require.Len(t, transfers, 1)
	assert.Equal(t, 1, transfers[0].Stop)
	assert.Equal(t, 200, transfers[0].Duration)
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 0, street.Seconds(0))
	assert.Equal(t, 2, street.Seconds(1.2))
	assert.Equal(t, 3, street.Seconds(3))
}
