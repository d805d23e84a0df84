package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	allocationstrategy "grantpool/contexts/pool-funding/allocation-strategy"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "grantpool/internal/platform/httpserver/docs"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	allocation allocationstrategy.Module
}

func New(
	allocation allocationstrategy.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		allocation: allocation,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// ServeHTTP exposes the mux for httptest-driven integration tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/pool/recipients", s.handleRegisterRecipient)
	s.mux.HandleFunc("POST /v1/pool/recipients/{recipient_id}/review", s.handleReviewRecipient)
	s.mux.HandleFunc("GET /v1/pool/recipients/{recipient_id}", s.handleGetRecipient)
	s.mux.HandleFunc("GET /v1/pool/recipients/{recipient_id}/status", s.handleGetRecipientStatus)
	s.mux.HandleFunc("POST /v1/pool/allocations", s.handleRecordAllocation)
	s.mux.HandleFunc("POST /v1/pool/distributions", s.handleDistribute)
	s.mux.HandleFunc("GET /v1/pool/distributions/preview", s.handlePayoutPreview)
	s.mux.HandleFunc("GET /v1/pool/state", s.handleStrategyState)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
