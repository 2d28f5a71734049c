/*
middleware.go - Request logging and token authentication

PURPOSE:
  ZapLogger replaces chi's text logger with structured request logs.
  RequireRole verifies bearer tokens and puts the claims on the context.

LOG LEVELS:
  5xx  Error
  4xx  Warn
  else Info

SEE ALSO:
  - server.go: Middleware order
  - auth/auth.go: Token format
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/chwlink/commodity-engine/auth"
)

// ZapLogger logs one line per request.
func ZapLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("ip", r.RemoteAddr),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if claims := claimsFrom(r.Context()); claims != nil {
				fields = append(fields, zap.String("role", string(claims.Role)), zap.String("subject", claims.Subject))
			}

			switch {
			case status >= 500:
				logger.Error("Server error", fields...)
			case status >= 400:
				logger.Warn("Client error", fields...)
			default:
				logger.Info("Request", fields...)
			}
		})
	}
}

type claimsKey struct{}

// claimsHolder lets the logger see claims set further down the chain.
type claimsHolder struct {
	claims *auth.Claims
}

func withClaimsHolder(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), claimsKey{}, &claimsHolder{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) *auth.Claims {
	h, _ := ctx.Value(claimsKey{}).(*claimsHolder)
	if h == nil {
		return nil
	}
	return h.claims
}

// RequireRole rejects requests without a valid bearer token for role.
func RequireRole(issuer *auth.Issuer, role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}

			claims, err := issuer.Parse(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
				return
			}
			if claims.Role != role {
				writeError(w, http.StatusForbidden, "Token role not allowed here", nil)
				return
			}

			ctx := r.Context()
			if h, _ := ctx.Value(claimsKey{}).(*claimsHolder); h != nil {
				h.claims = claims
			} else {
				ctx = context.WithValue(ctx, claimsKey{}, &claimsHolder{claims: claims})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerID returns the account id of the authenticated caller.
func callerID(r *http.Request) (int64, bool) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		return 0, false
	}
	id, err := claims.SubjectID()
	return id, err == nil
}
