package relay

import (
	"errors"
	"net/http"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/remote"
	"github.com/mcdev12/emdrtap/go/internal/session"
	"github.com/rs/zerolog/log"
)

// SnapshotCache returns the last snapshot relayed for a session
type SnapshotCache interface {
	Latest(sessionID string) (remote.Snapshot, bool)
}

// WebSocketHandler handles WebSocket upgrade requests for session connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	stateProvider     StateProvider
	cache             SnapshotCache
}

func NewWebSocketHandler(cm *ConnectionManager, provider StateProvider, cache SnapshotCache) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		stateProvider:     provider,
		cache:             cache,
	}
}

// HandleSessionConnection handles GET /ws/session?session_id=NNNN
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("session_id")
	if raw == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	id, err := session.ParseID(raw)
	if err != nil {
		http.Error(w, "invalid session_id format", http.StatusBadRequest)
		return
	}

	// A document that exists but does not decode yet is still joinable; the
	// watch skips it until the host writes a valid one.
	if _, err := h.stateProvider.GetSnapshot(r.Context(), id); err != nil && !errors.Is(err, remote.ErrMalformedSnapshot) {
		if errors.Is(err, docstore.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("session_id", id.String()).Msg("failed to look up session")
		http.Error(w, "failed to look up session", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r, id.String())
	if err != nil {
		// Upgrade has already replied to the client
		log.Error().
			Err(err).
			Str("session_id", id.String()).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	if snap, ok := h.cache.Latest(id.String()); ok {
		h.connectionManager.SendTo(conn, newSnapshotMessage(id.String(), snap))
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", h.HandleSessionConnection)
}
