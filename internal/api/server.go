// Package api provides the HTTP and WebSocket surface over the registry,
// token ledger and funding panel. Read endpoints are public; every mutating
// endpoint requires a bearer token whose "addr" claim is the acting caller
// address resolved through the registry's role checks.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Kifuda/internal/events"
	"github.com/shizukutanaka/Kifuda/internal/funding"
	"github.com/shizukutanaka/Kifuda/internal/monitoring"
	"github.com/shizukutanaka/Kifuda/internal/registry"
	"github.com/shizukutanaka/Kifuda/internal/storage"
	"github.com/shizukutanaka/Kifuda/internal/token"
)

// Config defines API server configuration.
type Config struct {
	Enabled      bool     `yaml:"enabled"`
	ListenAddr   string   `yaml:"listen_addr"`
	JWTSecret    string   `yaml:"jwt_secret"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// Server wires the HTTP API around the core components.
type Server struct {
	logger   *zap.Logger
	config   Config
	router   *mux.Router
	server   *http.Server
	upgrader websocket.Upgrader

	reg     *registry.AdminRegistry
	ledger  *token.Ledger
	panel   *funding.Panel
	journal *storage.Journal
	metrics *monitoring.Metrics
	emitter *events.Emitter
}

// Response is the uniform API response format.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Time    time.Time   `json:"time"`
}

// NewServer creates the API server.
func NewServer(config Config, logger *zap.Logger, reg *registry.AdminRegistry, ledger *token.Ledger, panel *funding.Panel, journal *storage.Journal, metrics *monitoring.Metrics, emitter *events.Emitter) *Server {
	s := &Server{
		logger:  logger,
		config:  config,
		reg:     reg,
		ledger:  ledger,
		panel:   panel,
		journal: journal,
		metrics: metrics,
		emitter: emitter,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return false
				}
				for _, allowed := range config.AllowOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}
	s.setupRoutes()
	return s
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting API server", zap.String("listen_addr", s.config.ListenAddr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)

	// Public read endpoints
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/token", s.handleTokenInfo).Methods("GET")
	api.HandleFunc("/token/balance/{address}", s.handleBalance).Methods("GET")
	api.HandleFunc("/token/allowance", s.handleAllowance).Methods("GET")
	api.HandleFunc("/whitelist/{address}", s.handleWhitelistEntry).Methods("GET")
	api.HandleFunc("/roles/{address}", s.handleRoles).Methods("GET")
	api.HandleFunc("/funding", s.handleFundingInfo).Methods("GET")
	api.HandleFunc("/funding/members", s.handleMemberList).Methods("GET")
	api.HandleFunc("/funding/members/{address}", s.handleMemberGet).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")

	// WebSocket event stream
	api.HandleFunc("/ws", s.handleWebSocket)

	// Mutating endpoints: caller identity from the bearer token
	priv := api.NewRoute().Subrouter()
	priv.Use(s.authMiddleware)

	priv.HandleFunc("/token/transfer", s.handleTransfer).Methods("POST")
	priv.HandleFunc("/token/transfer-from", s.handleTransferFrom).Methods("POST")
	priv.HandleFunc("/token/approve", s.handleApprove).Methods("POST")
	priv.HandleFunc("/token/mint", s.handleMint).Methods("POST")
	priv.HandleFunc("/token/burn", s.handleBurn).Methods("POST")

	priv.HandleFunc("/whitelist", s.handleWhitelistAdd).Methods("POST")
	priv.HandleFunc("/whitelist/{address}", s.handleWhitelistRemove).Methods("DELETE")
	priv.HandleFunc("/whitelist/threshold", s.handleSetThreshold).Methods("POST")
	priv.HandleFunc("/whitelist/max-amount", s.handleChangeMaxAmount).Methods("POST")

	priv.HandleFunc("/roles/grant", s.handleRoleGrant).Methods("POST")
	priv.HandleFunc("/roles/revoke", s.handleRoleRevoke).Methods("POST")
	priv.HandleFunc("/registry/minter", s.handleSetMinter).Methods("POST")
	priv.HandleFunc("/registry/owner-wallet", s.handleSetOwnerWallet).Methods("POST")
	priv.HandleFunc("/registry/ownership", s.handleTransferOwnership).Methods("POST")

	priv.HandleFunc("/funding/members", s.handleMemberAdd).Methods("POST")
	priv.HandleFunc("/funding/members/{address}", s.handleMemberDelete).Methods("DELETE")
	priv.HandleFunc("/funding/members/{address}/enable", s.handleMemberEnable).Methods("POST")
	priv.HandleFunc("/funding/members/{address}/disable", s.handleMemberDisable).Methods("POST")
	priv.HandleFunc("/funding/profile", s.handleMemberProfile).Methods("POST")
	priv.HandleFunc("/funding/deposit", s.handleDeposit).Methods("POST")
	priv.HandleFunc("/funding/unlock", s.handleUnlock).Methods("POST")
	priv.HandleFunc("/funding/max-supply", s.handleSetMaxSupply).Methods("POST")
	priv.HandleFunc("/funding/rates", s.handleSetRates).Methods("POST")

	// Prometheus scrape endpoint
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := s.emitter.SubscribeAll()
	defer s.emitter.Unsubscribe(ch)

	for env := range ch {
		if err := conn.WriteJSON(env); err != nil {
			return
		}
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Success: status < 400,
		Data:    data,
		Time:    time.Now().UTC(),
	})
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   message,
		Time:    time.Now().UTC(),
	})
}
