package api

import (
	"net/http"
	"runtime"
	"sort"
	"sync"

	"stilllift/pkg/tracker"
)

type StatsHandler struct {
	tracker *tracker.Tracker
	mu      sync.Mutex
	maxMem  uint64
}

func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{tracker: t}
}

type ProviderStatsDTO struct {
	Name     string `json:"name"`
	Hits     int64  `json:"hits"`
	Misses   int64  `json:"misses"`
	Success  int64  `json:"success"`
	NotFound int64  `json:"not_found"`
	Failures int64  `json:"failures"`
	HitRate  int64  `json:"hit_rate"`
}

type MemoryStats struct {
	AllocMB    uint64 `json:"alloc_mb"`
	AllocMaxMB uint64 `json:"alloc_max_mb"`
	SysMB      uint64 `json:"sys_mb"`
	Goroutines int    `json:"goroutines"`
}

type StatsResponse struct {
	Memory    MemoryStats        `json:"memory"`
	Providers []ProviderStatsDTO `json:"providers"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	resp := StatsResponse{
		Memory:    h.memory(),
		Providers: make([]ProviderStatsDTO, 0, len(snapshot)),
	}

	for provider, stats := range snapshot {
		total := stats.Hits + stats.Misses
		hitRate := int64(0)
		if total > 0 {
			hitRate = (stats.Hits * 100) / total
		}
		resp.Providers = append(resp.Providers, ProviderStatsDTO{
			Name:     provider,
			Hits:     stats.Hits,
			Misses:   stats.Misses,
			Success:  stats.Success,
			NotFound: stats.NotFound,
			Failures: stats.Failures,
			HitRate:  hitRate,
		})
	}
	sort.Slice(resp.Providers, func(i, j int) bool { return resp.Providers[i].Name < resp.Providers[j].Name })

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) memory() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.mu.Lock()
	if m.Alloc > h.maxMem {
		h.maxMem = m.Alloc
	}
	peak := h.maxMem
	h.mu.Unlock()

	return MemoryStats{
		AllocMB:    bToMb(m.Alloc),
		AllocMaxMB: bToMb(peak),
		SysMB:      bToMb(m.Sys),
		Goroutines: runtime.NumGoroutine(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
