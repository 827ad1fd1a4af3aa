// Package httpapi serves the identity, registry, custody and funding
// boundaries as JSON over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nova-sdk/novakeeper/internal/logging"
	"github.com/nova-sdk/novakeeper/internal/server/auth"
	"github.com/nova-sdk/novakeeper/internal/server/metrics"
	"github.com/nova-sdk/novakeeper/internal/server/models"
	"github.com/nova-sdk/novakeeper/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type AccountService interface {
	Exists(ctx context.Context, caller models.Caller, identifier string) (services.ExistsResult, error)
	Create(ctx context.Context, caller models.Caller, req services.CreateRequest) (*models.Account, error)
}

type CustodyService interface {
	Store(ctx context.Context, caller models.Caller, req services.StoreRequest) (string, error)
	Retrieve(ctx context.Context, caller models.Caller, req services.RetrieveRequest) (services.RetrieveResult, error)
}

type FundingService interface {
	Session(ctx context.Context, caller models.Caller, req services.SessionRequest) (services.SessionResult, error)
	Sessions(ctx context.Context, caller models.Caller, accountID string) ([]*models.FundingSession, error)
	Faucet(ctx context.Context, caller models.Caller, accountID string) (string, error)
}

type ProfileService interface {
	Verify(token string) (models.Caller, *auth.Claims, error)
	DevLogin(email string) (string, error)
}

// Services bundles the collaborators the handlers call.
type Services struct {
	Accounts AccountService
	Custody  CustodyService
	Funding  FundingService
	Profile  ProfileService
}

type Server struct {
	address string
	svc     Services
	metrics *metrics.Metrics
	logger  logging.Logger
}

func NewServer(address string, svc Services, m *metrics.Metrics, l logging.Logger) *Server {
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		address: address,
		svc:     svc,
		metrics: m,
		logger:  logging.OrNop(l).With("module", "http_server"),
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Get("/profile-check", s.profileCheck)
	r.Post("/session/dev", s.devLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireCaller)

		r.Post("/account/exists", s.accountExists)
		r.Post("/account/create", s.accountCreate)

		r.Post("/keys/store", s.keysStore)
		r.Post("/keys/retrieve", s.keysRetrieve)

		r.Route("/funding", func(r chi.Router) {
			r.Post("/session", s.fundingSession)
			r.Get("/sessions", s.fundingSessions)
			r.Post("/faucet", s.fundingFaucet)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorBody(w, http.StatusNotFound, "not_found", "no such route")
	})
	return r
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *Server) serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
		errCh <- srv.Serve(listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
