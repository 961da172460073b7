package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pulseroute/platform/internal/shared/config"
	"github.com/pulseroute/platform/internal/shared/types"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Actor types recognized by the platform
const (
	ActorTypeEMS      = "ems"
	ActorTypeHospital = "hospital"
)

// Actor represents the authenticated caller from JWT claims: an EMS unit
// registering patients, or a hospital acting on its transfer requests.
type Actor struct {
	ID   types.ID `json:"sub"`
	Type string   `json:"actor_type"`
	Name string   `json:"name"`
}

// IsEMS reports whether the actor is an EMS unit
func (a *Actor) IsEMS() bool {
	return a.Type == ActorTypeEMS
}

// IsHospital reports whether the actor is a hospital
func (a *Actor) IsHospital() bool {
	return a.Type == ActorTypeHospital
}

// Claims extends JWT claims with platform-specific data
type Claims struct {
	jwt.RegisteredClaims
	ActorType string `json:"actor_type"`
	Name      string `json:"name,omitempty"`
}

// IssueToken creates a signed access token for an actor. Account
// provisioning itself lives outside this service; this is used by
// development tooling and tests.
func IssueToken(cfg config.AuthConfig, actorID types.ID, actorType, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
		},
		ActorType: actorType,
		Name:      name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// Middleware creates JWT authentication middleware
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})

			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			actor := &Actor{
				ID:   types.ID(claims.Subject),
				Type: claims.ActorType,
				Name: claims.Name,
			}

			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActor extracts the actor from request context
func GetActor(ctx context.Context) *Actor {
	actor, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return actor
}

// WithActor returns a context carrying the given actor. Used by tests and
// internal callers that bypass the HTTP middleware.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// RequireActorType creates middleware that requires a specific actor type
func RequireActorType(actorType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r.Context())
			if actor == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if actor.Type != actorType {
				writeError(w, http.StatusForbidden, "operation not permitted for this actor type")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
