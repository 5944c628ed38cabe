package hub

import (
	"encoding/json"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"github.com/tracksecure/telemetry-bridge/internal/cache"
	"github.com/tracksecure/telemetry-bridge/internal/models"
	"github.com/tracksecure/telemetry-bridge/internal/utils"
)

// Hub tracks the set of live push sessions and fans readings out to them.
// Registration and removal run concurrently with broadcasts; the concurrent
// map gives each broadcast a weakly-consistent snapshot to iterate, so a
// session added mid-broadcast may or may not see that particular reading.
// Membership changes only through Register/Unregister: a failing send never
// removes a session.
type Hub struct {
	sessions cmap.ConcurrentMap[string, PushSession]
	cache    *cache.SnapshotCache
	pool     *utils.WorkerPool
	logger   zerolog.Logger
}

// NewHub creates a hub backed by the given snapshot cache. The worker pool
// carries the best-effort priming sends for new sessions.
func NewHub(snapshots *cache.SnapshotCache, pool *utils.WorkerPool, logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: cmap.New[PushSession](),
		cache:    snapshots,
		pool:     pool,
		logger:   logger,
	}
}

// Register adds a session to the hub. Registering the same session twice is
// a no-op. If a reading is already cached it is pushed to the new session
// best-effort; a failed prime is logged and does not undo registration.
func (h *Hub) Register(s PushSession) {
	if !h.sessions.SetIfAbsent(s.ID(), s) {
		h.logger.Warn().Str("session_id", s.ID()).Msg("Session is already registered")
		return
	}
	h.logger.Info().Str("session_id", s.ID()).Int("sessions", h.sessions.Count()).Msg("Session registered")

	reading, ok := h.cache.Latest()
	if !ok {
		return
	}
	h.pool.Submit(func() {
		h.prime(s, reading)
	})
}

// Unregister removes a session from the hub. Removing an unknown session is
// a no-op.
func (h *Hub) Unregister(s PushSession) {
	h.sessions.Remove(s.ID())
	h.logger.Info().Str("session_id", s.ID()).Int("sessions", h.sessions.Count()).Msg("Session removed")
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	return h.sessions.Count()
}

// Broadcast serializes the reading once and delivers it to every currently
// registered session. A send failure on one session is logged and does not
// affect delivery to the others. A serialization failure aborts the whole
// cycle.
func (h *Hub) Broadcast(reading models.Reading) {
	payload, err := json.Marshal(reading)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize reading for broadcast")
		return
	}

	for id, s := range h.sessions.Items() {
		if err := s.Send(payload); err != nil {
			h.logger.Warn().Err(err).Str("session_id", id).Msg("Failed to push reading to session")
		}
	}

	h.logger.Debug().Int("sessions", h.sessions.Count()).Int("payload_bytes", len(payload)).Msg("Reading broadcast")
}

func (h *Hub) prime(s PushSession, reading models.Reading) {
	payload, err := json.Marshal(reading)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize reading for session priming")
		return
	}
	if err := s.Send(payload); err != nil {
		h.logger.Warn().Err(err).Str("session_id", s.ID()).Msg("Failed to send initial reading to session")
		return
	}
	h.logger.Debug().Str("session_id", s.ID()).Msg("Initial reading sent to session")
}
