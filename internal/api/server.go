package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tracksecure/telemetry-bridge/internal/cache"
	"github.com/tracksecure/telemetry-bridge/internal/hub"
	"github.com/tracksecure/telemetry-bridge/internal/models"
)

// StatsSource provides the on-demand statistics snapshot.
type StatsSource interface {
	Snapshot(ctx context.Context) map[string]interface{}
}

// APIService serves the REST snapshot surface and the push channel from a
// single HTTP listener.
type APIService struct {
	addr   string
	cache  *cache.SnapshotCache
	hub    *hub.Hub
	stats  StatsSource
	logger zerolog.Logger

	server *http.Server
	wg     sync.WaitGroup
}

// NewAPIService creates the HTTP service. stats may be nil when the stats
// service is disabled; /api/stats then reports an empty object.
func NewAPIService(addr string, snapshots *cache.SnapshotCache, h *hub.Hub, stats StatsSource, logger zerolog.Logger) *APIService {
	return &APIService{
		addr:   addr,
		cache:  snapshots,
		hub:    h,
		stats:  stats,
		logger: logger,
	}
}

// Routes builds the HTTP handler tree.
func (a *APIService) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/sensor/latest", a.handleLatest)
	mux.HandleFunc("GET /api/sensor/dht", a.handleDHT)
	mux.HandleFunc("GET /api/sensor/gps", a.handleGPS)
	mux.HandleFunc("GET /api/sensor/devices", a.handleDevices)
	mux.HandleFunc("GET /api/stats", a.handleStats)
	mux.HandleFunc("GET /ws/sensor", a.handleWebSocket)
	return mux
}

// Start begins serving HTTP in the background.
func (a *APIService) Start() error {
	if a.server != nil {
		a.logger.Warn().Msg("APIService is already running")
		return errors.New("api service is already running")
	}

	a.server = &http.Server{
		Addr:    a.addr,
		Handler: a.Routes(),
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("HTTP server terminated unexpectedly")
		}
	}()

	a.logger.Info().Str("address", a.addr).Msg("APIService started")
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (a *APIService) Stop() error {
	if a.server == nil {
		a.logger.Warn().Msg("APIService is not running")
		return errors.New("api service is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.server.Shutdown(ctx)
	a.wg.Wait()
	a.server = nil

	if err != nil {
		a.logger.Error().Err(err).Msg("HTTP server shutdown failed")
		return err
	}

	a.logger.Info().Msg("APIService stopped")
	return nil
}

func (a *APIService) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte("Service is running")); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to write health response")
	}
}

// handleLatest returns the newest cached reading, 204 when nothing has been
// ingested yet. An optional packageId query selects one device's entry.
func (a *APIService) handleLatest(w http.ResponseWriter, r *http.Request) {
	reading, ok := a.lookup(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	a.writeJSON(w, reading)
}

func (a *APIService) handleDHT(w http.ResponseWriter, r *http.Request) {
	reading, ok := a.lookup(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	a.writeJSON(w, reading.DHT)
}

func (a *APIService) handleGPS(w http.ResponseWriter, r *http.Request) {
	reading, ok := a.lookup(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	a.writeJSON(w, reading.GPS)
}

func (a *APIService) handleDevices(w http.ResponseWriter, _ *http.Request) {
	devices := a.cache.Devices()
	if devices == nil {
		devices = []string{}
	}
	a.writeJSON(w, devices)
}

func (a *APIService) handleStats(w http.ResponseWriter, r *http.Request) {
	if a.stats == nil {
		a.writeJSON(w, map[string]interface{}{})
		return
	}
	a.writeJSON(w, a.stats.Snapshot(r.Context()))
}

func (a *APIService) lookup(r *http.Request) (models.Reading, bool) {
	if pkg := r.URL.Query().Get("packageId"); pkg != "" {
		return a.cache.LatestFor(pkg)
	}
	return a.cache.Latest()
}

func (a *APIService) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to write JSON response")
	}
}
