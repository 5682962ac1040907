package health

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"lumen-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// DBPinger is optional for health checks. If nil, the database is reported
// as disconnected.
type DBPinger interface {
	Ping() error
}

// CollectResult is the /health/json payload.
type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	Goroutines int    `json:"goroutines"`
	HeapUsed   uint64 `json:"heapUsed"`
	GoVersion  string `json:"goVersion"`
}

type TrafficInfo struct {
	TotalRequests int    `json:"totalRequests"`
	SuccessCount  int    `json:"successCount"`
	FailedCount   int    `json:"failedCount"`
	SuccessRate   string `json:"successRate"`
}

type DepStatus struct {
	Status string      `json:"status"`
	PingMs interface{} `json:"pingMs"`
}

// CollectHealth gathers dependency status plus request stats recorded by the
// health marker middleware.
func CollectHealth(ctx context.Context, rdb *redis.Client, db DBPinger) CollectResult {
	result := CollectResult{Dependencies: make(map[string]DepStatus)}

	dbStatus := "disconnected"
	var dbPingMs *int64
	if db != nil {
		start := time.Now()
		if err := db.Ping(); err == nil {
			ms := time.Since(start).Milliseconds()
			dbPingMs = &ms
			dbStatus = "connected"
		} else {
			dbStatus = "error"
		}
	}
	result.Dependencies["database"] = DepStatus{Status: dbStatus, PingMs: dbPingMs}

	redisStatus := "disconnected"
	var redisPingMs *int64
	total, failed := 0, 0
	if rdb != nil {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisPingMs = &ms
			redisStatus = "connected"
			total = intFromRedis(ctx, rdb, middleware.KeyReqTotal)
			failed = intFromRedis(ctx, rdb, middleware.KeyReqErrors)
		} else {
			redisStatus = "error"
		}
	}
	result.Dependencies["redis"] = DepStatus{Status: redisStatus, PingMs: redisPingMs}

	rate := "100"
	if total > 0 {
		rate = strconv.Itoa((total - failed) * 100 / total)
	}
	result.Traffic = TrafficInfo{
		TotalRequests: total,
		SuccessCount:  total - failed,
		FailedCount:   failed,
		SuccessRate:   rate,
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	result.Runtime = RuntimeInfo{
		Goroutines: runtime.NumGoroutine(),
		HeapUsed:   mem.HeapAlloc,
		GoVersion:  runtime.Version(),
	}

	result.Status = "ok"
	if dbStatus != "connected" || redisStatus != "connected" {
		result.Status = "issue"
	}
	return result
}

func intFromRedis(ctx context.Context, rdb *redis.Client, key string) int {
	s, err := rdb.Get(ctx, key).Result()
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
