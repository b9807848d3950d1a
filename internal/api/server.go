package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"assetbook/internal/config"
	"assetbook/internal/domain"
	"assetbook/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Services is everything the HTTP layer delegates to.
type Services struct {
	Bookings *service.BookingService
	Assets   *service.AssetService
	Auth     *service.AuthService
	Export   *service.ExportService
	Images   domain.ImageStore
}

// HTTPServer exposes the REST API.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      Services
	limiter  *rateLimiter
	maxBytes int64
	server   *http.Server
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, storage config.StorageConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	maxBytes := storage.MaxFileSizeMB << 20
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}

	s := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		limiter:  newRateLimiter(cfg.RateLimit),
		maxBytes: maxBytes,
		logger:   &base,
	}

	readTimeout := cfg.HTTP.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.HTTP.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
	return s
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog, s.rateLimit, s.authenticate)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.PathPrefix("/media/").HandlerFunc(s.handleMedia).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	// подроутер сам решает про 405, иначе отдаст 404
	v1.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	v1.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	v1.HandleFunc("/auth/verify-email", s.handleVerifyEmail).Methods(http.MethodPost)
	v1.HandleFunc("/auth/token", s.handleToken).Methods(http.MethodPost)
	v1.HandleFunc("/auth/token/refresh", s.handleTokenRefresh).Methods(http.MethodPost)

	v1.HandleFunc("/assets", s.handleListAssets).Methods(http.MethodGet)
	v1.HandleFunc("/assets/{id:[0-9]+}", s.handleGetAsset).Methods(http.MethodGet)
	v1.HandleFunc("/assets/{id:[0-9]+}/availability", s.handleAvailability).Methods(http.MethodGet)
	v1.Handle("/assets", s.adminOnly(s.handleCreateAsset)).Methods(http.MethodPost)
	v1.Handle("/assets/{id:[0-9]+}", s.adminOnly(s.handleUpdateAsset)).Methods(http.MethodPatch)
	v1.Handle("/assets/{id:[0-9]+}/move", s.adminOnly(s.handleMoveAsset)).Methods(http.MethodPost)
	v1.Handle("/assets/{id:[0-9]+}/image", s.adminOnly(s.handleAssetImage)).Methods(http.MethodPut)
	v1.Handle("/assets/{id:[0-9]+}/history", s.adminOnly(s.handleAssetHistory)).Methods(http.MethodGet)

	v1.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)
	v1.HandleFunc("/subcategories", s.handleSubCategories).Methods(http.MethodGet)
	v1.HandleFunc("/locations", s.handleLocations).Methods(http.MethodGet)

	v1.Handle("/bookings", s.userOnly(s.handleListBookings)).Methods(http.MethodGet)
	v1.Handle("/bookings", s.userOnly(s.handleCreateBooking)).Methods(http.MethodPost)
	v1.Handle("/bookings/{id:[0-9]+}", s.userOnly(s.handleGetBooking)).Methods(http.MethodGet)
	v1.Handle("/bookings/{id:[0-9]+}", s.userOnly(s.handleUpdateBooking)).Methods(http.MethodPatch)
	v1.Handle("/bookings/{id:[0-9]+}/{action:accept|reject|cancel|cancel_approve|receive|return_asset}",
		s.userOnly(s.handleTransition)).Methods(http.MethodPost)

	v1.Handle("/admin/bookings/export", s.adminOnly(s.handleExport)).Methods(http.MethodGet)

	return r
}

// Handler returns the routed handler with all middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
