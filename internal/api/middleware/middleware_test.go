package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dashboard/internal/service"
)

// stubValidator реализует TokenValidator для тестов
type stubValidator struct {
	claims *service.Claims
	err    error
}

func (s *stubValidator) ValidateToken(token string) (*service.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================================
// Auth
// ============================================================

func TestAuth_MissingHeader(t *testing.T) {
	handler := Auth(&stubValidator{})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_MalformedHeader(t *testing.T) {
	handler := Auth(&stubValidator{})(okHandler())

	tests := []string{"Basic abc123", "Bearer", "token-without-scheme"}
	for _, header := range tests {
		t.Run(header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	handler := Auth(&stubValidator{err: service.ErrInvalidToken})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_ValidTokenPopulatesContext(t *testing.T) {
	validator := &stubValidator{claims: testClaims("user-1", "admin@example.com", "admin")}

	var gotUserID, gotEmail, gotRole string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
		gotEmail = EmailFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := Auth(validator)(inner)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUserID != "user-1" || gotEmail != "admin@example.com" || gotRole != "admin" {
		t.Errorf("context values = %q/%q/%q", gotUserID, gotEmail, gotRole)
	}
}

func TestAuth_BearerCaseInsensitive(t *testing.T) {
	validator := &stubValidator{claims: testClaims("user-1", "a@b.c", "admin")}
	handler := Auth(validator)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// ============================================================
// RequireAdmin
// ============================================================

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		role       string
		wantStatus int
	}{
		{"admin", http.StatusOK},
		{"operator", http.StatusForbidden},
		{"", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run("role_"+tt.role, func(t *testing.T) {
			validator := &stubValidator{claims: testClaims("user-1", "x@y.z", tt.role)}
			handler := Auth(validator)(RequireAdmin(okHandler()))

			req := httptest.NewRequest(http.MethodDelete, "/", nil)
			req.Header.Set("Authorization", "Bearer token")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

// ============================================================
// CORS
// ============================================================

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
}

func TestCORS_DeniedOrigin(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty for denied origin", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Error("Allow-Methods should include DELETE")
	}
}

// ============================================================
// Recovery
// ============================================================

func TestRecovery(t *testing.T) {
	handler := Recovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	// Детали паники не утекают клиенту
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("panic details must not leak to response")
	}
}

// ============================================================
// Logging
// ============================================================

func TestLogging_PassesThrough(t *testing.T) {
	handler := Logging(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/api-keys", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if rec.Body.String() != "created" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

// Обёртка логирования обязана оставаться hijackable, иначе
// WebSocket upgrade за middleware невозможен
func TestLogging_WriterSupportsHijack(t *testing.T) {
	handler := Logging(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Hijacker); !ok {
			t.Error("wrapped writer must implement http.Hijacker")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws/stream", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

// testClaims строит claims для stubValidator
func testClaims(userID, email, role string) *service.Claims {
	claims := &service.Claims{Email: email, Role: role}
	claims.Subject = userID
	return claims
}
