package algo

import "git.fiblab.net/general/common/v2/geometry"

// 街道图的点属性
type StreetNodeAttr struct {
	ID int64 // 外部顶点ID
}

// 街道图的边属性
type StreetEdgeAttr struct {
	ID       int64
	Length   float64 // 长度（m）
	Walkable bool
	Drivable bool
	// 边的形状，首尾为两端点
	Geometry []geometry.Point
}

type PathItem[NT any, ET any] struct {
	Node     int
	NodeAttr NT
	// 从该点出发的边，最后一项为零值
	EdgeAttr ET
}
