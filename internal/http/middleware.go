package http

import (
	"context"
	"net/http"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/tab"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	OriginCookie = "sf_origin"
	TabHeader    = "X-Tab-ID"
	// browsers cannot set headers on a websocket handshake
	tabQueryParam = "tab"

	originCookieMaxAge = 365 * 24 * 60 * 60
)

type ctxKey int

const (
	originKey ctxKey = iota
	tabKey
)

// RequestIDMiddleware attaches chi's request id (or the caller's X-Request-ID)
// to the response and to the request-scoped logger.
func RequestIDMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(middleware.RequestIDHeader)
			if requestID == "" {
				requestID = middleware.GetReqID(r.Context())
			}
			if requestID == "" {
				requestID = uuid.NewString()
			}

			w.Header().Set(middleware.RequestIDHeader, requestID)
			ctx := log.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger writes one line per request through the structured logger.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			ctx := log.WithField(r.Context(), "method", r.Method)
			ctx = log.WithField(ctx, "path", r.URL.Path)
			ctx = log.WithField(ctx, "status", ww.Status())
			ctx = log.WithField(ctx, "duration_ms", time.Since(start).Milliseconds())
			log.Info(ctx, "request handled")
		})
	}
}

// OriginMiddleware resolves the shopper's storage origin from its cookie,
// issuing a new one on first visit.
func OriginMiddleware(log *logger.Logger, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := ""
			if c, err := r.Cookie(OriginCookie); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					origin = c.Value
				}
			}
			if origin == "" {
				origin = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     OriginCookie,
					Value:    origin,
					Path:     "/",
					MaxAge:   originCookieMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), originKey, origin)
			ctx = log.WithOrigin(ctx, origin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TabMiddleware opens the caller's tab in the registry. Requests without a
// tab id are served by a transient tab whose fresh id is echoed back in the
// X-Tab-ID response header; the client adopts it by sending it next time.
func TabMiddleware(registry *tab.Registry, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tabID := r.Header.Get(TabHeader)
			if tabID == "" {
				tabID = r.URL.Query().Get(tabQueryParam)
			}

			var t *tab.Tab
			var err error
			if tabID == "" {
				// nothing can address a minted id again, so it is not registered
				tabID = uuid.NewString()
				t, err = registry.Transient(getOrigin(r.Context()), tabID)
			} else {
				t, err = registry.Open(r.Context(), getOrigin(r.Context()), tabID)
			}
			if err != nil {
				log.Error(r.Context(), "open tab failed", err)
				respondError(w, http.StatusServiceUnavailable, "tab_unavailable", "could not open tab")
				return
			}

			w.Header().Set(TabHeader, tabID)
			ctx := context.WithValue(r.Context(), tabKey, t)
			ctx = log.WithTab(ctx, tabID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getOrigin(ctx context.Context) string {
	if origin, ok := ctx.Value(originKey).(string); ok {
		return origin
	}
	return ""
}

func getTab(ctx context.Context) *tab.Tab {
	if t, ok := ctx.Value(tabKey).(*tab.Tab); ok {
		return t
	}
	return nil
}
