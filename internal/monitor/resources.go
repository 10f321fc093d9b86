package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceWatchdog periodically samples process and system resource usage,
// logs it, and forces a garbage collection when heap allocation crosses the
// configured ceiling.
type ResourceWatchdog struct {
	cfg    config.ResourceWatchdogConfig
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ResourceSample holds one watchdog measurement.
type ResourceSample struct {
	AllocMB              int64
	SysMB                int64
	Goroutines           int
	GCCount              int64
	SystemMemUsedPercent float64
	CPUUsagePercent      float64
}

// NewResourceWatchdog creates a new instance of ResourceWatchdog.
func NewResourceWatchdog(cfg config.ResourceWatchdogConfig, baseLogger zerolog.Logger) *ResourceWatchdog {
	return &ResourceWatchdog{
		cfg:    cfg,
		logger: baseLogger.With().Str("component", "ResourceWatchdog").Logger(),
	}
}

// Start begins periodic sampling until the context is cancelled or Stop is
// called.
func (rw *ResourceWatchdog) Start(ctx context.Context) {
	if !rw.cfg.Enabled {
		return
	}

	rw.mu.Lock()
	if rw.running {
		rw.mu.Unlock()
		return
	}
	rw.running = true
	watchCtx, cancel := context.WithCancel(ctx)
	rw.cancel = cancel
	rw.mu.Unlock()

	rw.wg.Add(1)
	go rw.watch(watchCtx)

	rw.logger.Info().
		Int64("max_memory_mb", rw.cfg.MaxMemoryMB).
		Dur("check_interval", rw.cfg.CheckInterval).
		Msg("Resource watchdog started")
}

// Stop stops sampling and waits for the watch goroutine to exit.
func (rw *ResourceWatchdog) Stop() {
	rw.mu.Lock()
	if !rw.running {
		rw.mu.Unlock()
		return
	}
	rw.running = false
	cancel := rw.cancel
	rw.mu.Unlock()

	cancel()
	rw.wg.Wait()
	rw.logger.Info().Msg("Resource watchdog stopped")
}

func (rw *ResourceWatchdog) watch(ctx context.Context) {
	defer rw.wg.Done()

	interval := rw.cfg.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rw.checkOnce()
		}
	}
}

func (rw *ResourceWatchdog) checkOnce() {
	sample := rw.Sample()

	if rw.cfg.MaxMemoryMB > 0 && sample.AllocMB > rw.cfg.MaxMemoryMB {
		rw.logger.Warn().
			Int64("alloc_mb", sample.AllocMB).
			Int64("limit_mb", rw.cfg.MaxMemoryMB).
			Msg("Memory usage above limit, forcing GC")
		runtime.GC()
	}

	rw.logger.Debug().
		Int64("alloc_mb", sample.AllocMB).
		Int64("sys_mb", sample.SysMB).
		Int("goroutines", sample.Goroutines).
		Float64("system_mem_percent", sample.SystemMemUsedPercent).
		Float64("cpu_percent", sample.CPUUsagePercent).
		Msg("Resource usage stats")
}

// Sample collects one resource measurement from the runtime and the OS.
func (rw *ResourceWatchdog) Sample() ResourceSample {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sample := ResourceSample{
		AllocMB:    int64(m.Alloc / 1024 / 1024),
		SysMB:      int64(m.Sys / 1024 / 1024),
		Goroutines: runtime.NumGoroutine(),
		GCCount:    int64(m.NumGC),
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		sample.SystemMemUsedPercent = vmStat.UsedPercent
	}
	if cpuPercents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercents) > 0 {
		sample.CPUUsagePercent = cpuPercents[0]
	}

	return sample
}
