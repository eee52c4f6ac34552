// Package relay lets browser guests follow a hosted session. It watches the
// session document once per session and fans every snapshot out to the
// WebSocket connections of that session.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/metrics"
	"github.com/mcdev12/emdrtap/go/internal/remote"
	"github.com/rs/zerolog/log"
)

// DocumentStore is the part of the document store the relay reads from.
type DocumentStore interface {
	Get(ctx context.Context, key string) (docstore.Fields, error)
	Watch(ctx context.Context, key string) (docstore.Watcher, error)
}

// Service is the relay service that handles WebSocket connections and snapshot broadcasting
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	rpcHandler        *SnapshotRPC
	stateProvider     StateProvider

	store   DocumentStore
	metrics metrics.Collector

	mu      sync.Mutex
	watches map[string]*remote.Subscription
	latest  map[string]remote.Snapshot

	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds configuration for the relay service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the relay
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a relay backed by store.
func NewService(config Config, store DocumentStore, collector metrics.Collector) *Service {
	if collector == nil {
		collector = metrics.NoOp{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		connectionManager: NewConnectionManager(config.ConnectionConfig, collector),
		stateProvider:     NewStoreStateProvider(store),
		store:             store,
		metrics:           collector,
		watches:           make(map[string]*remote.Subscription),
		latest:            make(map[string]remote.Snapshot),
		ctx:               ctx,
		cancel:            cancel,
	}
	s.connectionManager.onFirst = s.openWatch
	s.connectionManager.onLast = s.closeWatch

	s.wsHandler = NewWebSocketHandler(s.connectionManager, s.stateProvider, s)
	s.stateHandler = NewStateHandler(s.stateProvider)
	s.rpcHandler = NewSnapshotRPC(s.stateProvider)
	return s
}

// Start runs the relay until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting relay service")

	go s.connectionManager.Start(ctx)

	<-ctx.Done()

	log.Info().Msg("relay service shutting down")
	return s.Stop()
}

// Stop cancels every open session watch
func (s *Service) Stop() error {
	s.cancel()

	s.mu.Lock()
	for id, sub := range s.watches {
		sub.Cancel()
		delete(s.watches, id)
	}
	s.mu.Unlock()

	log.Info().Msg("relay service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket, REST and RPC routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	s.rpcHandler.RegisterRoutes(mux)
	mux.HandleFunc("/ws/stats", s.handleStats)
	log.Info().Msg("relay routes registered")
}

// GetStats returns statistics about the relay
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	watches := len(s.watches)
	s.mu.Unlock()

	return Stats{
		ConnectionStats: s.connectionManager.GetConnectionStats(),
		Service:         "relay",
		Status:          "running",
		Watches:         watches,
	}
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.GetStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode relay stats")
	}
}

// Stats is the body of /ws/stats
type Stats struct {
	ConnectionStats
	Service string `json:"service"`
	Status  string `json:"status"`
	Watches int    `json:"watches"`
}

// Latest returns the last snapshot relayed for the session.
func (s *Service) Latest(sessionID string) (remote.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.latest[sessionID]
	return snap, ok
}

// openWatch and closeWatch re-check the connection count under s.mu, so a
// session that gains and loses clients concurrently ends with exactly one
// watch while it has clients and none otherwise.
func (s *Service) openWatch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watches[sessionID]; ok {
		return
	}
	if s.connectionManager.SessionConnectionCount(sessionID) == 0 {
		return
	}

	sub, err := remote.Subscribe(s.ctx, s.store, sessionID, s.metrics)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to watch session")
		return
	}
	s.watches[sessionID] = sub
	go s.forward(sessionID, sub)
}

func (s *Service) closeWatch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connectionManager.SessionConnectionCount(sessionID) > 0 {
		return
	}
	sub, ok := s.watches[sessionID]
	if !ok {
		return
	}
	delete(s.watches, sessionID)
	delete(s.latest, sessionID)
	sub.Cancel()
}

func (s *Service) forward(sessionID string, sub *remote.Subscription) {
	for snap := range sub.Snapshots() {
		s.mu.Lock()
		current := s.watches[sessionID] == sub
		if current {
			s.latest[sessionID] = snap
		}
		s.mu.Unlock()

		if !current {
			return
		}
		s.connectionManager.BroadcastToSession(sessionID, newSnapshotMessage(sessionID, snap))
	}
}
