package collab

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inkdrift/inkdrift/internal/auth"
)

// Authorizer decides whether a websocket may join a room and returns the
// peer name to log for it.
type Authorizer interface {
	Authorize(ctx context.Context, roomID, token string) (peerName string, err error)
}

// ValidRoomID reports whether id may name a board. IDs starting with an
// underscore are kept for store namespaces that hold metadata.
func ValidRoomID(id string) bool {
	return id != "" && !strings.HasPrefix(id, "_")
}

// ServeWS upgrades GET /ws/{roomId} to a relay connection. The join token is
// read as auth.TokenFromRequest does.
func (h *Hub) ServeWS(authz Authorizer, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["roomId"]
		if !ValidRoomID(roomID) {
			http.Error(w, "invalid room", http.StatusBadRequest)
			return
		}

		peerName := r.URL.Query().Get("name")
		if authz != nil {
			name, err := authz.Authorize(r.Context(), roomID, auth.TokenFromRequest(r))
			if err != nil {
				h.logger.Debug("websocket rejected", "room", roomID, "error", err)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if name != "" {
				peerName = name
			}
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			h.logger.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(h, conn, uuid.NewString(), roomID, peerName)
		if err := h.Register(client); err != nil {
			h.logger.Error("register client", "room", roomID, "error", err)
			conn.Close(websocket.StatusInternalError, "room unavailable")
			return
		}

		ctx := r.Context()
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}
