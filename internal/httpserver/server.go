package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"kanbanBackend/internal/auth"
	"kanbanBackend/internal/service"
)

// Deps bundles what the REST API needs.
type Deps struct {
	Auth   *service.AuthService
	Cards  *service.CardService
	Gate   *auth.Gate
	Logger *slog.Logger
	// LoginPerSecond <= 0 disables login rate limiting.
	LoginPerSecond float64
	LoginBurst     int
}

// NewHandler builds the router with the access gate and ambient middleware.
func NewHandler(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{auth: d.Auth, cards: d.Cards, logger: logger}

	limit := rate.Limit(d.LoginPerSecond)
	if d.LoginPerSecond <= 0 {
		limit = rate.Inf
	}
	limiter := newClientLimiter(limit, d.LoginBurst)

	r := mux.NewRouter()
	r.HandleFunc("/", h.index).Methods(http.MethodGet)
	r.HandleFunc("/cards", h.listCards).Methods(http.MethodGet)
	r.HandleFunc("/cards/create", h.createCard).Methods(http.MethodPost)
	r.HandleFunc("/cards/update", h.updateCard).Methods(http.MethodPost)
	r.HandleFunc("/cards/delete", h.deleteCard).Methods(http.MethodPost)
	r.HandleFunc("/register", h.register).Methods(http.MethodPost)
	r.Handle("/login", limiter.wrap(http.HandlerFunc(h.login))).Methods(http.MethodPost)
	r.Use(d.Gate.Middleware)

	return withRequestID(accessLog(logger, recoverer(logger, r)))
}

// StartHTTP listens on addr and serves h in the background. It returns the
// bound address and a shutdown function.
func StartHTTP(addr string, h http.Handler, logger *slog.Logger) (func(context.Context) error, string, error) {
	if addr == "" {
		addr = ":3000"
	}
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "err", err)
		}
	}()
	return srv.Shutdown, lis.Addr().String(), nil
}
