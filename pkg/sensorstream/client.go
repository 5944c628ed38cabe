package sensorstream

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State enumerates the connection states of the client.
type State int

const (
	StateDisconnected State = iota
	StateConnectingPrimary
	StateConnectingFallback
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnectingPrimary:
		return "CONNECTING_PRIMARY"
	case StateConnectingFallback:
		return "CONNECTING_FALLBACK"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

const (
	defaultFallbackDelay = 250 * time.Millisecond
	defaultBaseBackoff   = time.Second
	defaultMaxBackoff    = 30 * time.Second
	defaultGrowthFactor  = 1.5
)

// transport is the connection surface the client drives. The production
// implementation is a gorilla WebSocket connection.
type transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a transport to a push endpoint URL.
type Dialer func(url string) (transport, error)

func gorillaDial(url string) (transport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options configures a Client. Endpoints.Primary is required; every other
// field has a usable default.
type Options struct {
	Endpoints Endpoints
	PackageID string // selected package; frames for other packages are discarded

	OnReading          func(DisplayReading)
	OnConnectionChange func(connected bool)

	Logger zerolog.Logger

	FallbackDelay time.Duration
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	GrowthFactor  float64
	Dialer        Dialer
}

// Client maintains at most one live push connection against the primary
// endpoint, substituting the fallback endpoint at most once after the
// primary fails, and reconnecting forever with capped exponential backoff.
// There is no terminal failure state: connectivity is surfaced to the
// caller only as a boolean.
type Client struct {
	opts   Options
	logger zerolog.Logger

	mu            sync.Mutex
	state         State
	attemptCount  int
	fallbackUsed  bool // fallback substitution is one-shot
	usingFallback bool // current target is the fallback URL
	started       bool
	closed        bool
	conn          transport
	timer         *time.Timer
	gen           int // invalidates events from torn-down handles
}

// NewClient validates the options and creates a stopped client.
func NewClient(opts Options) (*Client, error) {
	if opts.Endpoints.Primary == "" {
		return nil, errors.New("primary endpoint is required")
	}
	if opts.FallbackDelay <= 0 {
		opts.FallbackDelay = defaultFallbackDelay
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.GrowthFactor <= 1 {
		opts.GrowthFactor = defaultGrowthFactor
	}
	if opts.Dialer == nil {
		opts.Dialer = gorillaDial
	}

	return &Client{
		opts:   opts,
		logger: opts.Logger,
		state:  StateDisconnected,
	}, nil
}

// Start begins the connection state machine, always attempting the primary
// endpoint first.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("client is closed")
	}
	if c.started {
		return errors.New("client is already started")
	}
	c.started = true
	c.dialLocked(c.opts.Endpoints.Primary, StateConnectingPrimary)
	return nil
}

// Close permanently tears the client down: it cancels any pending reconnect
// timer, closes the active handle, and disables all future scheduling.
// Close is idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	wasOpen := c.state == StateOpen
	c.gen++
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	if wasOpen {
		c.notifyConnection(false)
	}
	c.logger.Info().Msg("Push client closed")
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// dialLocked launches a connection attempt tied to the current generation.
func (c *Client) dialLocked(url string, s State) {
	c.state = s
	gen := c.gen
	go c.attempt(gen, url)
}

func (c *Client) attempt(gen int, url string) {
	conn, err := c.opts.Dialer(url)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		// A cancel or teardown raced this attempt; the handle must not
		// outlive it.
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("Push endpoint dial failed")
		c.state = StateDisconnected
		c.transitionAfterCloseLocked()
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.state = StateOpen
	c.attemptCount = 0
	go c.readLoop(gen, conn)
	c.mu.Unlock()

	c.notifyConnection(true)
	c.logger.Info().Str("url", url).Msg("Push channel open")
}

func (c *Client) readLoop(gen int, conn transport) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen)
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	c.mu.Lock()
	closed := c.closed
	selected := c.opts.PackageID
	c.mu.Unlock()
	if closed {
		return
	}

	reading, ok := decodeFrame(data, selected, time.Now)
	if !ok {
		return
	}
	if c.opts.OnReading != nil {
		c.opts.OnReading(reading)
	}
}

func (c *Client) handleClose(gen int) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}

	wasOpen := c.state == StateOpen
	c.gen++
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.transitionAfterCloseLocked()
	c.mu.Unlock()

	if wasOpen {
		c.notifyConnection(false)
	}
}

// transitionAfterCloseLocked decides what happens after any close: a
// one-shot switch to the fallback endpoint after a short fixed delay, or a
// backoff-scheduled retry of the current target. The fallback substitution
// happens at most once per client; afterwards every retry stays on the
// fallback URL.
func (c *Client) transitionAfterCloseLocked() {
	if !c.usingFallback && !c.fallbackUsed && c.opts.Endpoints.Fallback != "" {
		c.fallbackUsed = true
		c.usingFallback = true
		c.logger.Info().
			Dur("delay", c.opts.FallbackDelay).
			Str("url", c.opts.Endpoints.Fallback).
			Msg("Primary push endpoint lost, switching to fallback")
		c.scheduleLocked(c.opts.FallbackDelay, c.opts.Endpoints.Fallback, StateConnectingFallback)
		return
	}

	delay := backoffDelay(c.opts.BaseBackoff, c.opts.MaxBackoff, c.opts.GrowthFactor, c.attemptCount)
	c.attemptCount++

	url := c.opts.Endpoints.Primary
	next := StateConnectingPrimary
	if c.usingFallback {
		url = c.opts.Endpoints.Fallback
		next = StateConnectingFallback
	}

	c.logger.Info().
		Dur("delay", delay).
		Int("attempt", c.attemptCount).
		Str("url", url).
		Msg("Scheduling push reconnect")
	c.scheduleLocked(delay, url, next)
}

func (c *Client) scheduleLocked(delay time.Duration, url string, s State) {
	gen := c.gen
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		// The timer may fire after an explicit close or a newer teardown;
		// both must win over the stale callback.
		if c.closed || gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.dialLocked(url, s)
		c.mu.Unlock()
	})
}

func (c *Client) notifyConnection(connected bool) {
	if c.opts.OnConnectionChange != nil {
		c.opts.OnConnectionChange(connected)
	}
}

// backoffDelay computes min(max, base × growth^attempt).
func backoffDelay(base, max time.Duration, growth float64, attempt int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(growth, float64(attempt)))
	if d <= 0 || d > max {
		return max
	}
	return d
}
