package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authedRouter(keys []string) http.Handler {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return BearerAuthMiddleware(keys)(handler)
}

func TestBearerAuth_NoKeysDisablesAuth(t *testing.T) {
	router := authedRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/relay/check", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through with no keys, got %d", rec.Code)
	}
}

func TestBearerAuth_ValidKey(t *testing.T) {
	router := authedRouter([]string{"secret-key"})

	req := httptest.NewRequest(http.MethodPost, "/api/relay/query", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid key, got %d", rec.Code)
	}
}

func TestBearerAuth_InvalidKey(t *testing.T) {
	router := authedRouter([]string{"secret-key"})

	req := httptest.NewRequest(http.MethodPost, "/api/relay/query", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad key, got %d", rec.Code)
	}
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	router := authedRouter([]string{"secret-key"})

	req := httptest.NewRequest(http.MethodPost, "/api/relay/query", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}
}

func TestBearerAuth_ExemptPaths(t *testing.T) {
	router := authedRouter([]string{"secret-key"})

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected %s exempt from auth, got %d", path, rec.Code)
		}
	}
}
