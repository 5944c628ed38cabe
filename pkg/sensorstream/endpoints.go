package sensorstream

import (
	"fmt"
	"net/url"
)

const (
	// DefaultFallbackPort is the backend's direct WebSocket port, used when
	// the proxy-routed primary endpoint is unreachable.
	DefaultFallbackPort = 8081

	wsPath = "/ws/sensor"
)

// Endpoints holds the primary (proxy-routed) and fallback (direct) push URLs.
type Endpoints struct {
	Primary  string
	Fallback string
}

// DeriveEndpoints computes the push endpoints from the dashboard origin.
// The primary URL reuses the origin's host and scheme (http becomes ws,
// https becomes wss); the fallback targets the bare hostname on the fixed
// alternate port, bypassing the proxy.
func DeriveEndpoints(origin string, fallbackPort int) (Endpoints, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return Endpoints{}, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Host == "" {
		return Endpoints{}, fmt.Errorf("origin %q has no host", origin)
	}

	scheme := "ws"
	if u.Scheme == "https" || u.Scheme == "wss" {
		scheme = "wss"
	}
	if fallbackPort <= 0 {
		fallbackPort = DefaultFallbackPort
	}

	return Endpoints{
		Primary:  fmt.Sprintf("%s://%s%s", scheme, u.Host, wsPath),
		Fallback: fmt.Sprintf("ws://%s:%d%s", u.Hostname(), fallbackPort, wsPath),
	}, nil
}
