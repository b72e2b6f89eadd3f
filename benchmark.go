package main

import (
	"flag"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/planner"
)

var (
	benchmarkCount       = flag.Int("benchmark.count", 100, "the random planning count for benchmark")
	benchmarkSeed        = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU         = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
	benchmarkMaxTargetKm = flag.Float64("benchmark.max_target_km", 12, "the max target distance for benchmark")
)

// 对default数据集发起随机覆盖规划请求并统计耗时
func runBenchmark(server *CoverageServer) {
	log.Logger.SetLevel(logrus.WarnLevel)
	ds, ok := server.datasets.Load("default")
	if !ok {
		log.Fatalf("benchmark requires a dataset loaded via -dataset")
	}
	streets := ds.Streets()
	if len(streets) == 0 {
		log.Fatalf("benchmark dataset is empty")
	}
	// 设置随机种子
	e := rand.New(rand.NewSource(*benchmarkSeed))
	// 随机生成benchmarkCount个规划请求，家的位置取随机路段端点
	type benchReq struct {
		home     geo.LatLng
		targetKm float64
	}
	reqs := make([]benchReq, *benchmarkCount)
	for i := 0; i < *benchmarkCount; i++ {
		seg := streets[e.Intn(len(streets))]
		reqs[i] = benchReq{
			home:     seg.Path[0],
			targetKm: 0.8 + e.Float64()*(*benchmarkMaxTargetKm-0.8),
		}
	}

	runtime.GOMAXPROCS(*benchmarkCPU)
	var wg sync.WaitGroup
	var planned, failed atomic.Int64
	start := time.Now()
	perWorker := (len(reqs) + *benchmarkCPU - 1) / *benchmarkCPU
	for w := 0; w < *benchmarkCPU; w++ {
		lo := w * perWorker
		hi := lo + perWorker
		if hi > len(reqs) {
			hi = len(reqs)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(batch []benchReq) {
			defer wg.Done()
			for _, req := range batch {
				if _, err := planner.BuildEfficientCoverageRoute(streets, req.home, req.targetKm, ds.Bounds); err != nil {
					failed.Add(1)
				} else {
					planned.Add(1)
				}
			}
		}(reqs[lo:hi])
	}
	wg.Wait()
	elapsed := time.Since(start)
	log.Warnf("benchmark: %d planned, %d failed in %v (%.1fms avg, %d cpu)",
		planned.Load(), failed.Load(), elapsed,
		float64(elapsed.Milliseconds())/float64(len(reqs)), *benchmarkCPU)
}
