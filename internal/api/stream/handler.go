// Package stream upgrades media WebSocket connections and runs one relay per
// call.
package stream

import (
	"net/http"

	"github.com/gorilla/websocket"

	"ai-voice-receptionist/internal/observability/logging"
	"ai-voice-receptionist/internal/service/media"
	"ai-voice-receptionist/internal/service/relay"
)

// Telephony providers connect server-to-server and send no browser origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler owns the collaborators every relay shares.
type Handler struct {
	deps relay.Deps
	cfg  relay.Config
}

// New creates the media stream handler.
func New(deps relay.Deps, cfg relay.Config) *Handler {
	return &Handler{deps: deps, cfg: cfg}
}

// Serve handles GET /ws. The relay drives the call to completion on this
// goroutine and closes the connection on every path.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WithComponent("stream-handler").Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	relay.New(media.New(conn), h.deps, h.cfg).Run(r.Context())
}
