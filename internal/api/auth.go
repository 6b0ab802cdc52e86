package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/belimuno/marketplace/internal/service"
)

type ctxKey int

const actorKey ctxKey = iota

// claims is the token payload issued by the auth service: subject is
// the user id, role one of client|worker|admin.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth resolves the acting user from a Bearer token signed with the
// shared HMAC key and stores it on the request context.
func Auth(signingKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				unauthorized(w)
				return
			}
			var c claims
			token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return signingKey, nil
			})
			if err != nil || !token.Valid {
				unauthorized(w)
				return
			}
			id, err := uuid.Parse(c.Subject)
			if err != nil {
				unauthorized(w)
				return
			}
			actor := service.Actor{ID: id, Role: service.Role(c.Role)}
			switch actor.Role {
			case service.RoleClient, service.RoleWorker, service.RoleAdmin:
			default:
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

// RequireRole rejects callers whose role is not in the allow list.
// Admins pass everywhere.
func RequireRole(roles ...service.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := actorFrom(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if actor.Admin() {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respond(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		})
	}
}

func actorFrom(ctx context.Context) (service.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(service.Actor)
	return actor, ok
}

func unauthorized(w http.ResponseWriter) {
	respond(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
}
