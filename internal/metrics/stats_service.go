package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StatsService periodically logs process and hub statistics and serves them
// on demand through Snapshot.
type StatsService struct {
	interval   time.Duration
	collectors []Collector
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatsService wires the default collector set for the bridge process.
func NewStatsService(interval time.Duration, sessions SessionCounter, logger zerolog.Logger) *StatsService {
	return &StatsService{
		interval: interval,
		collectors: []Collector{
			&CPUCollector{Logger: logger},
			&MemoryCollector{Logger: logger},
			&GoroutineCollector{},
			&SessionCollector{Sessions: sessions},
		},
		logger: logger,
	}
}

// Snapshot collects every statistic once. Collectors that fail contribute
// nothing to the result.
func (s *StatsService) Snapshot(ctx context.Context) map[string]interface{} {
	stats := make(map[string]interface{}, len(s.collectors))
	for _, c := range s.collectors {
		if v := c.Collect(ctx); v != nil {
			stats[c.Name()] = v
		}
	}
	return stats
}

// Start launches the periodic stats log loop.
func (s *StatsService) Start() error {
	if s.ctx != nil {
		s.logger.Warn().Msg("StatsService is already running")
		return errors.New("stats service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runStatsLoop()
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("StatsService started")
	return nil
}

// Stop gracefully stops the stats loop.
func (s *StatsService) Stop() error {
	if s.ctx == nil {
		s.logger.Warn().Msg("StatsService is not running")
		return errors.New("stats service is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.logger.Info().Msg("StatsService stopped")
	return nil
}

func (s *StatsService) runStatsLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Info().Interface("stats", s.Snapshot(s.ctx)).Msg("Bridge statistics")
		case <-s.ctx.Done():
			return
		}
	}
}
