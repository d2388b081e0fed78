package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/binding_cache"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/draw_list"
)

// Frame is the renderer activity of one frame.
type Frame struct {
	Replay draw_list.ReplayStats
	// Cache holds the cumulative binding cache counters after the frame.
	Cache binding_cache.Stats
	// PendingReleases is the number of GPU resources waiting in the backend free queue.
	PendingReleases int
}

// Report is the summary of one profiling interval.
type Report struct {
	FPS    float64
	Frames int

	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64

	// Replay is the sum of the replay counters over the interval.
	Replay draw_list.ReplayStats
	// CacheHits and CacheMisses are the binding cache lookups during the interval.
	CacheHits   int
	CacheMisses int
	// PendingReleases is the free queue length at the end of the interval.
	PendingReleases int
}

// Profiler tracks frame rate, memory and renderer statistics for performance monitoring.
// Logs a Report at a configurable interval.
type Profiler struct {
	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	readMem        bool
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	replay     draw_list.ReplayStats
	lastCache  binding_cache.Stats
	cacheStart binding_cache.Stats
	started    bool
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options configuring the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		updateInterval: time.Second,
		readMem:        true,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with that frame's renderer activity.
// Logs a Report when the update interval has elapsed.
//
// Parameters:
//   - f: the frame's renderer activity
//
// Returns:
//   - Report: the interval summary, valid when the bool is true
//   - bool: true if the interval elapsed and a report was logged this tick
func (p *Profiler) Tick(f Frame) (Report, bool) {
	if !p.started {
		p.cacheStart = f.Cache
		p.started = true
	}
	p.frameCount++
	p.replay.Add(f.Replay)
	p.lastCache = f.Cache

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Report{}, false
	}

	r := Report{
		FPS:             float64(p.frameCount) / elapsed.Seconds(),
		Frames:          p.frameCount,
		Replay:          p.replay,
		CacheHits:       p.lastCache.Hits - p.cacheStart.Hits,
		CacheMisses:     p.lastCache.Misses - p.cacheStart.Misses,
		PendingReleases: f.PendingReleases,
	}
	if p.readMem {
		p.readMemStats(&r, elapsed)
	}

	common.Logger().Info("profiler",
		"fps", r.FPS,
		"heap_mb", r.HeapMB,
		"alloc_rate_mb", r.AllocRateMB,
		"gc", r.GCCount,
		"gc_last_pause_us", r.LastPauseUs,
		"gc_max_pause_us", r.MaxPauseUs,
		"sys_mb", r.SysMB,
		"draws", r.Replay.Draws,
		"set_switches", r.Replay.SetSwitches,
		"scissor_changes", r.Replay.ScissorChanges,
		"callbacks", r.Replay.Callbacks,
		"pass_restarts", r.Replay.Restarts,
		"cache_hits", r.CacheHits,
		"cache_misses", r.CacheMisses,
		"pending_releases", r.PendingReleases,
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.replay = draw_list.ReplayStats{}
	p.cacheStart = p.lastCache
	return r, true
}

func (p *Profiler) readMemStats(r *Report, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
	// Sys: Total bytes of memory obtained from the OS (actual process footprint)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	r.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}
	r.GCCount = gcCount

	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}
