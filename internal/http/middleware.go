package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dimamanhura/rozetka/internal/auth"
	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const SessionCartCookie = "sessionCartId"

type contextKey string

const actorKey contextKey = "actor"

// IdentityMiddleware resolves the caller. A valid bearer token signs the
// user in; a missing or bad one leaves the request anonymous, and handlers
// decide whether that is enough. Every caller gets an anonymous cart key,
// minted into a cookie on first contact.
func IdentityMiddleware(secret []byte, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var actor domain.Actor

			if h := r.Header.Get("Authorization"); h != "" {
				a, err := auth.ParseBearer(secret, h)
				if err != nil {
					log.Debug("rejected bearer token", zap.Error(err))
				} else {
					actor = a
				}
			}

			if c, err := r.Cookie(SessionCartCookie); err == nil && c.Value != "" {
				actor.AnonymousKey = c.Value
			} else {
				actor.AnonymousKey = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCartCookie,
					Value:    actor.AnonymousKey,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int((30 * 24 * time.Hour).Seconds()),
				})
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

// RequestIDMiddleware wraps chi's RequestID, which keeps an incoming
// X-Request-Id or generates one, and echoes the id on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r)
	}))
}

func actorFromContext(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorKey).(domain.Actor)
	return actor
}

func requestIDFromContext(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

