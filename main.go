package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/grpcreflect"
	"git.fiblab.net/sim/planner/config"
	"git.fiblab.net/sim/planner/router/transit"
	"git.fiblab.net/sim/protos/v2/go/city/routing/v2/routingv2connect"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var (
	// 配置信息
	configPath      = flag.String("config", "", "yaml config file path (empty means default config)")
	mongoURI        = flag.String("mongo_uri", "", "mongo db uri")
	snapshotPathStr = flag.String("snapshot", "", "transit snapshot [format: {fspath} or {db}.{col}]")
	grpcEndpoint    = flag.String("listen", "localhost:52101", "gRPC listening address")
	logLevel        = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// 性能测试
	benchmark = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr = flag.String("pprof", "localhost:52102", "pprof listening address")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

var log = logrus.WithField("module", "main")

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	snapshotPath, err := NewPath(*snapshotPathStr)
	if err != nil {
		log.Fatalf("invalid snapshot path: %v", err)
	}
	snapshot, err := loadSnapshot(context.Background(), cfg, *mongoURI, snapshotPath)
	if err != nil {
		log.Fatalf("failed to load snapshot from %s: %v", snapshotPath, err)
	}
	// 启动导航服务
	server, err := NewRoutingServer(transit.NewHolder(snapshot), cfg)
	if err != nil {
		log.Fatalf("failed to create routing server: %v", err)
	}

	if *pprofAddr != "" {
		// 启动pprof
		startHTTPDebugger(*pprofAddr)
	}

	if *benchmark {
		// 性能测试
		runBenchmark(server)
		return
	}

	// 启动tcp监听和初始化connect服务端
	mux := http.NewServeMux()
	mux.Handle(routingv2connect.NewRoutingServiceHandler(server))
	// 接口反射（可选，主要支持Postman调试）
	reflector := grpcreflect.NewStaticReflector(
		routingv2connect.RoutingServiceName,
	)
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector))

	addr := *grpcEndpoint
	// 使用HTTP/2 w.o. TLS
	s := &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// SIGHUP重新加载快照
	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP)
	go func() {
		for range reloadCh {
			log.Infof("reloading snapshot from %s", snapshotPath)
			snapshot, err := loadSnapshot(context.Background(), cfg, *mongoURI, snapshotPath)
			if err != nil {
				log.Errorf("failed to reload snapshot, keep the current one: %v", err)
				continue
			}
			server.Reload(snapshot)
		}
	}()

	// 优雅退出
	// 创建监听退出chan
	signalCh := make(chan os.Signal, 1)
	//监听指定信号 ctrl+c kill
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Info("stopping...")
		go func() {
			<-signalCh
			os.Exit(1) // 强制结束
		}()
		// 退出connect-go
		s.Close()
		// 退出导航服务
		server.Close()
		os.Exit(0)
	}()

	// 启动gRPC server
	log.Infof("server listening at %v", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to serve: %v", err)
	}
	time.Sleep(1 * time.Second) // 延迟等待"优雅退出"
	log.Info("planner closes")
}
