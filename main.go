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

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"git.fiblab.net/sim/streetcover/store"
)

var (
	// 配置信息
	mongoURI       = flag.String("mongo_uri", "", "mongo db uri")
	datasetPathStr = flag.String("dataset", "", "street dataset storage, can be empty [format: {fspath} or {db}.{col}]")
	httpEndpoint   = flag.String("listen", "localhost:52111", "HTTP listening address")
	logLevel       = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// 性能测试
	benchmark = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr = flag.String("pprof", "localhost:52112", "pprof listening address")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

// 由数据集位置构造存储后端，空位置表示不持久化
func newStore(datasetPath *Path) store.Store {
	if datasetPath == nil {
		return nil
	}
	if datasetPath.File != "" {
		return store.NewFileStore(datasetPath.File)
	}
	st, err := store.NewMongoStore(
		context.Background(), *mongoURI, datasetPath.GetDb(), datasetPath.GetColl(),
	)
	if err != nil {
		log.Fatalf("failed to open mongo store %s: %v", datasetPath, err)
	}
	return st
}

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
	if *logLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	datasetPath, err := NewPath(*datasetPathStr)
	if err != nil {
		logrus.Fatalf("invalid dataset path: %s", err)
	}
	// 启动覆盖规划服务
	server := NewCoverageServer(newStore(datasetPath))

	if *pprofAddr != "" {
		// 启动pprof
		startHTTPDebugger(*pprofAddr)
	}

	if *benchmark {
		// 性能测试
		runBenchmark(server)
		return
	}

	s := &http.Server{
		Addr:    *httpEndpoint,
		Handler: server.Engine(),
	}

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
		// 退出HTTP server
		s.Close()
		// 退出规划服务
		server.Close()
		os.Exit(0)
	}()

	// 启动HTTP server
	log.Infof("server listening at %v", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to serve: %v", err)
	}
	time.Sleep(1 * time.Second) // 延迟等待"优雅退出"
	log.Info("streetcover closes")
}
