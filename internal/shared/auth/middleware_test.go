package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulseroute/platform/internal/shared/config"
	"github.com/pulseroute/platform/internal/shared/types"
)

var testCfg = config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour}

func protected(t *testing.T, captured **Actor) http.Handler {
	return Middleware(testCfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetActor(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMiddlewareAcceptsIssuedToken(t *testing.T) {
	actorID := types.NewID()
	token, err := IssueToken(testCfg, actorID, ActorTypeHospital, "City General")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	var actor *Actor
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	protected(t, &actor).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if actor == nil {
		t.Fatal("Expected actor in context")
	}
	if actor.ID != actorID || !actor.IsHospital() || actor.Name != "City General" {
		t.Errorf("Wrong actor claims: %+v", actor)
	}
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	otherCfg := config.AuthConfig{JWTSecret: "other-secret", TokenTTL: time.Hour}
	forged, err := IssueToken(otherCfg, types.NewID(), ActorTypeEMS, "")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + forged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var actor *Actor
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			protected(t, &actor).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", rec.Code)
			}
			if actor != nil {
				t.Error("Handler must not run for rejected tokens")
			}
		})
	}
}

func TestRequireActorType(t *testing.T) {
	handler := RequireActorType(ActorTypeHospital)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	tests := []struct {
		name     string
		actor    *Actor
		expected int
	}{
		{"hospital allowed", &Actor{ID: types.NewID(), Type: ActorTypeHospital}, http.StatusOK},
		{"ems forbidden", &Actor{ID: types.NewID(), Type: ActorTypeEMS}, http.StatusForbidden},
		{"anonymous unauthorized", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/", nil)
			if tt.actor != nil {
				req = req.WithContext(WithActor(req.Context(), tt.actor))
			}

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}
