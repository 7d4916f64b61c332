package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
	"github.com/rs/zerolog/log"
)

// Service bundles the WebSocket, REST and Connect surfaces of the countdown.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	countdownService  *CountdownService
}

// NewService creates a new gateway service
func NewService(engine Countdown, config ConnectionConfig) *Service {
	connectionManager := NewConnectionManager(engine, config)
	stateHandler := NewStateHandler(engine)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      stateHandler,
		countdownService:  NewCountdownService(stateHandler),
	}
}

// Start runs the connection manager until ctx is canceled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting world boss gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("world boss gateway stopped")
}

// OnTransition forwards engine transitions to WebSocket clients.
func (s *Service) OnTransition(t events.Transition) {
	s.connectionManager.OnTransition(t)
}

// RegisterRoutes registers every gateway route
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterRoutes(mux)
	mux.Handle(s.countdownService.Handler())
	log.Info().Msg("world boss gateway routes registered")
}

// ConnectionCount returns the number of open WebSocket connections.
func (s *Service) ConnectionCount() int {
	return s.connectionManager.ConnectionCount()
}
