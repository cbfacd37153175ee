package main

import (
	"context"
	"flag"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	routingv2 "git.fiblab.net/sim/protos/v2/go/city/routing/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	benchmarkCount     = flag.Int("benchmark.count", 1000, "the random routing count for benchmark")
	benchmarkSeed      = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU       = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
	benchmarkStartTime = flag.Int("benchmark.start_time", 8*3600, "the departure time of benchmark requests (s)")
	benchmarkTimeRange = flag.Int("benchmark.time_range", 3600, "the random departure time range (s)")
)

// 在数字ID的站点之间随机生成请求
func benchmarkRequests(server *RoutingServer) []*connect.Request[routingv2.GetRouteRequest] {
	e := rand.New(rand.NewSource(*benchmarkSeed))
	ids := make([]int32, 0)
	for _, stop := range server.holder.Get().Stops {
		if id, err := strconv.ParseInt(stop.ID, 10, 32); err == nil {
			ids = append(ids, int32(id))
		}
	}
	if len(ids) < 2 {
		log.Warnf("benchmark needs at least 2 stops with int32 ids, got %d", len(ids))
		return nil
	}
	reqs := make([]*connect.Request[routingv2.GetRouteRequest], *benchmarkCount)
	for i := range reqs {
		startAoiID := ids[e.Intn(len(ids))]
		endAoiID := ids[e.Intn(len(ids))]
		dep := *benchmarkStartTime + e.Intn(max(*benchmarkTimeRange, 1))
		reqs[i] = connect.NewRequest(&routingv2.GetRouteRequest{
			Type: routingv2.RouteType_ROUTE_TYPE_BUS_SUBWAY,
			Start: &geov2.Position{
				AoiPosition: &geov2.AoiPosition{
					AoiId: startAoiID,
				},
			},
			End: &geov2.Position{
				AoiPosition: &geov2.AoiPosition{
					AoiId: endAoiID,
				},
			},
			Time: float64(dep),
		})
	}
	return reqs
}

func runBenchmark(server *RoutingServer) {
	log.Logger.SetLevel(logrus.WarnLevel)
	// 随机生成benchmarkCount个路径规划请求，每个请求的起点和终点都是随机的
	reqs := benchmarkRequests(server)
	if len(reqs) == 0 {
		return
	}

	// 开始benchmark
	start := time.Now()
	var success atomic.Int32
	route := func(req *connect.Request[routingv2.GetRouteRequest]) {
		res, err := server.GetRoute(context.Background(), req)
		if err != nil {
			log.Error("benchmark failed, err:", err)
			return
		}
		if len(res.Msg.Journeys) > 0 {
			success.Add(1)
		}
	}
	if *benchmarkCPU == 1 {
		lo.ForEach(reqs, func(req *connect.Request[routingv2.GetRouteRequest], _ int) { route(req) })
	} else {
		// 设置cpu数量
		runtime.GOMAXPROCS(*benchmarkCPU)
		var wg sync.WaitGroup
		wg.Add(len(reqs))
		for _, req := range reqs {
			go func() {
				defer wg.Done()
				route(req)
			}()
		}
		wg.Wait()
	}
	timeCost := time.Since(start) * time.Duration(*benchmarkCPU)
	log.Error(
		"benchmark finished", "\n",
		"count:", len(reqs), "\n",
		"time:", timeCost, "\n",
		"avg:", timeCost/time.Duration(len(reqs)), "\n",
		"success:", success.Load(), "\n",
	)
}
