package metrics

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// Collector gathers one process-level statistic for the stats surface.
type Collector interface {
	Name() string                            // Identifier of the statistic (e.g., "cpu")
	Collect(ctx context.Context) interface{} // Collect the current value, nil on failure
	Unit() string                            // Unit of the statistic (e.g., "percentage")
}

// CPUCollector reports overall CPU utilization.
type CPUCollector struct {
	Logger zerolog.Logger
}

func (c *CPUCollector) Name() string {
	return "cpu"
}

func (c *CPUCollector) Collect(ctx context.Context) interface{} {
	cpuPercentages, err := cpu.Percent(0, false)
	if err != nil {
		c.Logger.Error().Err(err).Msg("Failed to get CPU usage")
		return nil
	}
	if len(cpuPercentages) == 0 {
		c.Logger.Warn().Msg("CPU usage data is empty")
		return nil
	}
	return cpuPercentages[0]
}

func (c *CPUCollector) Unit() string {
	return "percentage"
}

// MemoryCollector reports the percentage of used virtual memory.
type MemoryCollector struct {
	Logger zerolog.Logger
}

func (m *MemoryCollector) Name() string {
	return "memory"
}

func (m *MemoryCollector) Collect(ctx context.Context) interface{} {
	memStats, err := mem.VirtualMemory()
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to retrieve memory statistics")
		return nil
	}
	return memStats.UsedPercent
}

func (m *MemoryCollector) Unit() string {
	return "percentage"
}

// GoroutineCollector reports the number of active goroutines.
type GoroutineCollector struct{}

func (g *GoroutineCollector) Name() string {
	return "goroutines"
}

func (g *GoroutineCollector) Collect(ctx context.Context) interface{} {
	return runtime.NumGoroutine()
}

func (g *GoroutineCollector) Unit() string {
	return "count"
}

// SessionCounter exposes the size of the push session registry.
type SessionCounter interface {
	Count() int
}

// SessionCollector reports the number of live push sessions.
type SessionCollector struct {
	Sessions SessionCounter
}

func (s *SessionCollector) Name() string {
	return "sessions"
}

func (s *SessionCollector) Collect(ctx context.Context) interface{} {
	return s.Sessions.Count()
}

func (s *SessionCollector) Unit() string {
	return "count"
}
