package hub_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracksecure/telemetry-bridge/internal/cache"
	"github.com/tracksecure/telemetry-bridge/internal/hub"
	"github.com/tracksecure/telemetry-bridge/internal/models"
	"github.com/tracksecure/telemetry-bridge/internal/utils"
)

type fakeSession struct {
	id       string
	failSend bool

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id}
}

func (s *fakeSession) ID() string {
	return s.id
}

func (s *fakeSession) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSend {
		return errors.New("send failed")
	}
	frame := make([]byte, len(payload))
	copy(frame, payload)
	s.frames = append(s.frames, frame)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := make([][]byte, len(s.frames))
	copy(frames, s.frames)
	return frames
}

func newTestHub(t *testing.T) (*hub.Hub, *cache.SnapshotCache) {
	t.Helper()
	snapshots := cache.NewSnapshotCache()
	pool := utils.NewWorkerPool(2, 16)
	t.Cleanup(pool.Shutdown)
	return hub.NewHub(snapshots, pool, zerolog.Nop()), snapshots
}

func testReading(pkg string, temp float64) models.Reading {
	return models.Reading{
		DHT:       models.DHTData{Temperature: temp, Humidity: 60, Timestamp: time.Now()},
		GPS:       models.GPSData{Latitude: 34.02, Longitude: -6.84, Satellites: 7, Timestamp: time.Now()},
		PackageID: pkg,
	}
}

// TestHub_RegisterUnregisterIdempotent checks that any interleaving of
// register and unregister returns the registry to its prior size.
func TestHub_RegisterUnregisterIdempotent(t *testing.T) {
	h, _ := newTestHub(t)
	s := newFakeSession("s1")

	assert.Equal(t, 0, h.Count())

	h.Register(s)
	h.Register(s)
	assert.Equal(t, 1, h.Count())

	h.Unregister(s)
	h.Unregister(s)
	assert.Equal(t, 0, h.Count())
}

// TestHub_BroadcastIsolation checks that one failing session does not
// affect delivery to the others, and that the failure does not remove the
// failing session from the registry.
func TestHub_BroadcastIsolation(t *testing.T) {
	h, _ := newTestHub(t)

	good1 := newFakeSession("good1")
	bad := newFakeSession("bad")
	bad.failSend = true
	good2 := newFakeSession("good2")

	h.Register(good1)
	h.Register(bad)
	h.Register(good2)

	reading := testReading("PKG-1", 22.5)
	h.Broadcast(reading)

	expected, err := json.Marshal(reading)
	require.NoError(t, err)

	for _, s := range []*fakeSession{good1, good2} {
		frames := s.received()
		require.Len(t, frames, 1, "session %s", s.ID())
		assert.JSONEq(t, string(expected), string(frames[0]))
	}

	// Removal happens only via the explicit close-event path.
	assert.Equal(t, 3, h.Count())
}

// TestHub_PrimesNewSession checks that a session connecting while the cache
// holds a reading receives exactly that reading as its first push.
func TestHub_PrimesNewSession(t *testing.T) {
	h, snapshots := newTestHub(t)

	reading := testReading("PKG-1", 21.0)
	snapshots.Put(reading)

	s := newFakeSession("s1")
	h.Register(s)

	expected, err := json.Marshal(reading)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(s.received()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.JSONEq(t, string(expected), string(s.received()[0]))
}

// TestHub_NoPrimeWhenEmpty checks that a session connecting with an empty
// cache receives nothing extra.
func TestHub_NoPrimeWhenEmpty(t *testing.T) {
	h, _ := newTestHub(t)

	s := newFakeSession("s1")
	h.Register(s)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, s.received())
}

// TestHub_PrimeFailureKeepsRegistration checks that a failed priming send
// does not undo registration.
func TestHub_PrimeFailureKeepsRegistration(t *testing.T) {
	h, snapshots := newTestHub(t)
	snapshots.Put(testReading("PKG-1", 21.0))

	s := newFakeSession("s1")
	s.failSend = true
	h.Register(s)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.Count())
}
