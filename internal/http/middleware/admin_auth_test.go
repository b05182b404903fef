package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type actorKey struct{}

func TestAdminJWTRejects(t *testing.T) {
	expired := jwt.RegisteredClaims{Subject: "owner", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}
	noExpiry := jwt.RegisteredClaims{Subject: "owner"}

	tests := []struct {
		name   string
		secret string
		header string
	}{
		{"auth disabled", "", "Bearer " + signedAdminToken(t, "secret")},
		{"missing header", "secret", ""},
		{"not bearer", "secret", "Basic abc"},
		{"wrong secret", "secret", "Bearer " + signedAdminToken(t, "wrong")},
		{"expired", "secret", "Bearer " + signClaims(t, "secret", expired, jwt.SigningMethodHS256)},
		{"no expiry", "secret", "Bearer " + signClaims(t, "secret", noExpiry, jwt.SigningMethodHS256)},
		{"other hmac", "secret", "Bearer " + signClaims(t, "secret", validClaims(), jwt.SigningMethodHS512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AdminJWT(tt.secret, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("handler must not run")
			})).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("expected WWW-Authenticate header")
			}
		})
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	withActor := func(ctx context.Context, subject string) context.Context {
		return context.WithValue(ctx, actorKey{}, subject)
	}
	mw := AdminJWT("secret", withActor)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, "secret"))
	rec := httptest.NewRecorder()

	called := false
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok {
			t.Fatalf("expected admin claims in context")
		}
		if claims.Subject != "owner" {
			t.Fatalf("expected subject owner, got %q", claims.Subject)
		}
		if got, _ := r.Context().Value(actorKey{}).(string); got != "owner" {
			t.Fatalf("expected actor owner, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestAdminJWTQueryTokenOnlyForWebSocket(t *testing.T) {
	mw := AdminJWT("secret", nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	target := "/chat/ws?access_token=" + signedAdminToken(t, "secret")

	rec := httptest.NewRecorder()
	mw(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected query token to be ignored on plain requests, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	mw(ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected websocket upgrade with query token to pass, got %d", rec.Code)
	}
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "owner",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
}

func signedAdminToken(t *testing.T, secret string) string {
	t.Helper()
	return signClaims(t, secret, validClaims(), jwt.SigningMethodHS256)
}

func signClaims(t *testing.T, secret string, claims jwt.RegisteredClaims, method jwt.SigningMethod) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
