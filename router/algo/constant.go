package algo

import (
	"errors"
	"math"
)

const (
	// 搜索方向
	FORWARD  = 1
	BACKWARD = 2

	// 道路边权的分辨率/s
	TIME_SLICE_INTERVAL = 300
	// 道路边权时间片数
	TIME_SLICE_LENGTH = 288
)

var (
	// 不可达
	INF = math.Inf(0)

	// 错误：对非时序图设置长度超过1的边权
	ErrNoTDGraph = errors.New("no time dependent graph, should set edge length with length 1")
	// 错误：时序图边权长度不等于时间片数
	ErrBadTimeSlices = errors.New("time dependent graph, edge lengths should have 288 time slices")
	// 错误：边的端点不存在
	ErrNodeNotFound = errors.New("node not found in graph")
)
