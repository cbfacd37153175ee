package main

import (
	"errors"
	"net/http"
	"net/http/pprof"
)

// 访问/debug/pprof/进入pprof实时分析页面
func startHTTPDebugger(addr string) {
	pprofHandler := http.NewServeMux()
	pprofHandler.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
	pprofHandler.Handle("/debug/pprof/cmdline", http.HandlerFunc(pprof.Cmdline))
	pprofHandler.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
	pprofHandler.Handle("/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
	pprofHandler.Handle("/debug/pprof/trace", http.HandlerFunc(pprof.Trace))
	server := &http.Server{Addr: addr, Handler: pprofHandler}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnf("pprof server stopped: %v", err)
		}
	}()
	log.Infof("pprof listening at %v", addr)
}
