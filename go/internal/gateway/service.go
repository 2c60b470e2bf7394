package gateway

import (
	"net/http"
	"slices"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Service is the gateway in front of every platform of a competition: the
// WebSocket endpoint for displays and devices, the REST API and the RPC service.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	rpc               *RPCService
	config            Config
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	AllowedOrigins   []string
	CommandTimeout   time.Duration
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		AllowedOrigins:   []string{"*"},
		CommandTimeout:   5 * time.Second,
	}
}

// NewService creates a new gateway service
func NewService(config Config, platforms Platforms) *Service {
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = DefaultConfig().CommandTimeout
	}
	config.ConnectionConfig.CommandTimeout = config.CommandTimeout
	config.ConnectionConfig.CheckOrigin = checkOrigin(config.AllowedOrigins)

	connectionManager := NewConnectionManager(platforms, config.ConnectionConfig)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(platforms, config.CommandTimeout),
		rpc:               NewRPCService(platforms, config.CommandTimeout),
		config:            config,
	}
}

// RegisterRoutes registers the WebSocket, REST and RPC routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	rpcPath, rpcHandler := s.rpc.Handler()
	mux.Handle(rpcPath, rpcHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	log.Info().Msg("gateway routes registered")
}

// Handler returns the complete HTTP handler with CORS and HTTP/2 cleartext support.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Grpc-Status", "Grpc-Message", "Connect-Protocol-Version"},
	})
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// Stop disconnects every client.
func (s *Service) Stop() {
	s.connectionManager.CloseAll()
	log.Info().Msg("gateway service stopped")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}
