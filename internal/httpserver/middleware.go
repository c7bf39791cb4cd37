package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-Id"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by withRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID reuses a client supplied id or mints a new one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

func recoverer(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.ErrorContext(r.Context(), "panic in handler", "panic", v, "request_id", RequestIDFromContext(r.Context()))
				respondWithText(w, http.StatusInternalServerError, serverErrorText)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// maxTrackedClients bounds the limiter map; it is reset when exceeded.
const maxTrackedClients = 10000

// clientLimiter applies a token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{limit: limit, burst: burst, clients: make(map[string]*rate.Limiter)}
}

func (c *clientLimiter) allow(client string) bool {
	if c.limit == rate.Inf {
		return true
	}
	c.mu.Lock()
	l, ok := c.clients[client]
	if !ok {
		if len(c.clients) >= maxTrackedClients {
			c.clients = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(c.limit, c.burst)
		c.clients[client] = l
	}
	c.mu.Unlock()
	return l.Allow()
}

func (c *clientLimiter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.allow(clientAddr(r)) {
			respondWithJSON(w, http.StatusTooManyRequests, map[string]any{"message": "Too many requests."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
