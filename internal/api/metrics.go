package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

const mebibyte = 1 << 20

// SystemMetrics is the JSON snapshot served at /api/v1/metrics. Counters
// and histograms are only in the Prometheus exposition at /metrics.
type SystemMetrics struct {
	Timestamp     string       `json:"timestamp"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Runtime       RuntimeStats `json:"runtime"`
	WSClients     int          `json:"websocket_clients"`
	Devices       device.Stats `json:"devices"`
}

// RuntimeStats is the subset of runtime.MemStats worth watching on a hub.
type RuntimeStats struct {
	Goroutines   int     `json:"goroutines"`
	HeapMB       float64 `json:"heap_mb"`
	AllocTotalMB float64 `json:"alloc_total_mb"`
	NumGC        uint32  `json:"num_gc"`
}

func readRuntimeStats() RuntimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return RuntimeStats{
		Goroutines:   runtime.NumGoroutine(),
		HeapMB:       float64(ms.HeapAlloc) / mebibyte,
		AllocTotalMB: float64(ms.TotalAlloc) / mebibyte,
		NumGC:        ms.NumGC,
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(now.Sub(s.startTime) / time.Second),
		Runtime:       readRuntimeStats(),
		WSClients:     s.hub.ClientCount(),
		Devices:       s.registry.Stats(),
	})
}
