package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/remote"
	"github.com/mcdev12/emdrtap/go/internal/session"
	"github.com/rs/zerolog/log"
)

// StateProvider reads the current snapshot of a session
type StateProvider interface {
	GetSnapshot(ctx context.Context, id session.ID) (remote.Snapshot, error)
}

type storeStateProvider struct {
	store DocumentStore
}

// NewStoreStateProvider reads snapshots straight from the document store.
func NewStoreStateProvider(store DocumentStore) StateProvider {
	return &storeStateProvider{store: store}
}

func (p *storeStateProvider) GetSnapshot(ctx context.Context, id session.ID) (remote.Snapshot, error) {
	fields, err := p.store.Get(ctx, id.String())
	if err != nil {
		return remote.Snapshot{}, fmt.Errorf("get session %s: %w", id, err)
	}
	snap, err := remote.Decode(fields)
	if err != nil {
		return remote.Snapshot{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	if snap.ID == "" {
		snap.ID = id.String()
	}
	return snap, nil
}

// StateHandler handles HTTP requests for session state
type StateHandler struct {
	stateProvider StateProvider
}

func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetSessionState handles GET /api/sessions/{id}/state
func (h *StateHandler) HandleGetSessionState(w http.ResponseWriter, r *http.Request) {
	id, err := session.ParseID(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid session ID format", http.StatusBadRequest)
		return
	}

	snap, err := h.stateProvider.GetSnapshot(r.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, docstore.ErrNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	case errors.Is(err, remote.ErrMalformedSnapshot):
		log.Warn().Err(err).Str("session_id", id.String()).Msg("session document is malformed")
		http.Error(w, "Session state unavailable", http.StatusConflict)
		return
	default:
		log.Error().Err(err).Str("session_id", id.String()).Msg("failed to get session state")
		http.Error(w, "Failed to get session state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Error().Err(err).Msg("failed to encode session state response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions/{id}/state", h.HandleGetSessionState)
}
