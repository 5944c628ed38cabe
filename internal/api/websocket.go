package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/tracksecure/telemetry-bridge/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The bridge sits behind a reverse proxy and also accepts direct
		// connections on the fallback port, so the Origin header varies.
		return true
	},
}

// handleWebSocket upgrades the request and hands the connection to the hub.
// The channel is push-only: inbound frames are logged and otherwise ignored.
// The session leaves the registry only when the connection closes.
func (a *APIService) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	session := hub.NewSession(conn)
	a.hub.Register(session)

	defer func() {
		a.hub.Unregister(session)
		if err := session.Close(); err != nil {
			a.logger.Debug().Err(err).Str("session_id", session.ID()).Msg("Session close error")
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Debug().Err(err).Str("session_id", session.ID()).Msg("Session closed unexpectedly")
			}
			return
		}
		a.logger.Debug().Str("session_id", session.ID()).Bytes("message", message).Msg("Ignoring client frame on push-only channel")
	}
}
