// Package httpapi is the public HTTP surface of the identity service:
// registration, login, the current user, media listing and fetch, and the
// billing webhook endpoint.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fittrack/internal/logging"
	"github.com/dmitrijs2005/fittrack/internal/server/billing"
	"github.com/dmitrijs2005/fittrack/internal/server/models"
	"github.com/dmitrijs2005/fittrack/internal/server/services"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, identifier, password string) (*services.Session, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type MediaService interface {
	List(ctx context.Context, userID int64) ([]services.MediaItem, time.Time, error)
	Open(ctx context.Context, token string, mediaID int64) (string, error)
}

type WebhookHandler interface {
	Handle(ctx context.Context, payload []byte, signature string) (billing.Outcome, error)
}

type HTTPServer struct {
	address string
	users   UserService
	media   MediaService
	billing WebhookHandler
	logger  logging.Logger
}

func NewHTTPServer(a string, l logging.Logger, us UserService, ms MediaService, wh WebhookHandler) *HTTPServer {
	return &HTTPServer{
		address: a,
		users:   us,
		media:   ms,
		billing: wh,
		logger:  l.With("module", "http_server"),
	}
}

// Handler builds the router with all routes and middleware attached.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.logRequests)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/login", s.login).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireSession)
	authed.HandleFunc("/me", s.me).Methods(http.MethodGet)
	authed.HandleFunc("/media", s.listMedia).Methods(http.MethodGet)

	r.HandleFunc("/media/{id:[0-9]+}", s.openMedia).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/billing", s.billingWebhook).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
