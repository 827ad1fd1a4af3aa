package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/server/models"
	"github.com/nova-sdk/novakeeper/internal/server/services"
)

type ctxKey string

const (
	requestIDKey ctxKey = "requestID"
	callerKey    ctxKey = "caller"
)

// requestID keeps the client's correlation id, or assigns one, and echoes
// it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(common.RequestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(common.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// observe logs and measures every request by its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		s.metrics.InFlight(1)
		defer s.metrics.InFlight(-1)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, route, status, elapsed)
		s.logger.Info(r.Context(), "request",
			"request_id", requestIDFrom(r.Context()),
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
		)
	})
}

// bearerToken returns the identity token from the Authorization header or
// the session cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get(common.AuthorizationHeader); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(common.SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// requireCaller resolves the request's proof into a Caller: a verified
// identity token, or else the wallet address header.
func (s *Server) requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			caller models.Caller
			err    error
		)
		if token := bearerToken(r); token != "" {
			caller, _, err = s.svc.Profile.Verify(token)
		} else if addr := r.Header.Get(common.WalletAddressHeader); addr != "" {
			caller, err = services.WalletCaller(addr)
		} else {
			err = common.ErrUnauthorized
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))
	})
}

func callerFrom(ctx context.Context) models.Caller {
	c, _ := ctx.Value(callerKey).(models.Caller)
	return c
}
