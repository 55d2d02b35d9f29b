package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/internal/httputil"
	"github.com/tendant/dailyhome/pkg/auth"
	"github.com/tendant/dailyhome/pkg/domain"
)

type userMap map[uuid.UUID]*domain.User

func (m userMap) GetUser(_ context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := m[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body["error"]
}

func TestAuth(t *testing.T) {
	tokens := auth.NewTokenService(auth.TokenConfig{JWTSecret: []byte("secret"), Issuer: "dailyhome"})
	alice := &domain.User{ID: uuid.New(), Email: "alice@example.com"}
	ghost := &domain.User{ID: uuid.New()}
	users := userMap{alice.ID: alice}

	aliceToken, _ := tokens.Issue(alice)
	ghostToken, _ := tokens.Issue(ghost)

	handler := Auth(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			t.Error("user missing from context")
			return
		}
		claims, _ := GetClaims(r.Context())
		w.Header().Set("X-User", user.ID.String())
		w.Header().Set("X-Email", claims.Email)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantError  string
	}{
		{
			name:       "bearer header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+aliceToken.AccessToken) },
			wantStatus: http.StatusOK,
		},
		{
			name: "cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: httputil.AccessTokenCookie, Value: aliceToken.AccessToken})
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
			wantError:  "missing authorization",
		},
		{
			name:       "invalid",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid or expired token",
		},
		{
			name:       "deleted user",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+ghostToken.AccessToken) },
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid or expired token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if got := w.Header().Get("X-User"); got != alice.ID.String() {
					t.Errorf("user = %q, want %q", got, alice.ID)
				}
				if got := w.Header().Get("X-Email"); got != alice.Email {
					t.Errorf("claims email = %q, want %q", got, alice.Email)
				}
				return
			}
			if got := errorBody(t, w); got != tt.wantError {
				t.Errorf("Error = %q, want %q", got, tt.wantError)
			}
		})
	}
}

func TestRequireMess(t *testing.T) {
	messID := uuid.New()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := RequireMess()(RequireMessAdmin()(ok))

	tests := []struct {
		name       string
		user       *domain.User
		handler    http.Handler
		wantStatus int
		wantError  string
	}{
		{name: "no user", handler: RequireMess()(ok), wantStatus: http.StatusUnauthorized, wantError: "missing authorization"},
		{name: "not in mess", user: &domain.User{ID: uuid.New()}, handler: RequireMess()(ok), wantStatus: http.StatusForbidden, wantError: "you are not part of any mess"},
		{name: "member", user: &domain.User{ID: uuid.New(), CurrentMessID: &messID}, handler: RequireMess()(ok), wantStatus: http.StatusOK},
		{name: "member on admin route", user: &domain.User{ID: uuid.New(), CurrentMessID: &messID}, handler: chain, wantStatus: http.StatusForbidden, wantError: "mess admin required"},
		{name: "admin", user: &domain.User{ID: uuid.New(), CurrentMessID: &messID, IsMessAdmin: true}, handler: chain, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/mess", nil)
			if tt.user != nil {
				req = req.WithContext(context.WithValue(req.Context(), UserKey, tt.user))
			}
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantError != "" {
				if got := errorBody(t, w); got != tt.wantError {
					t.Errorf("Error = %q, want %q", got, tt.wantError)
				}
			}
		})
	}
}

func TestRecoverAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logging(logger)(Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest("GET", "/explode", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}
	logs := buf.String()
	for _, want := range []string{`"msg":"panic recovered"`, `"panic":"boom"`, `"msg":"http request"`, `"status":500`} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %s", want)
		}
	}
}

func TestTokenFromRequest_HeaderWins(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: httputil.AccessTokenCookie, Value: "cookie-token"})

	if got := TokenFromRequest(req); got != "header-token" {
		t.Errorf("TokenFromRequest() = %q, want %q", got, "header-token")
	}
}
