package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestTokenAuth(t *testing.T) {
	handler := TokenAuth("s3cret")(okHandler)

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing token", "/api/v1/status", "", http.StatusUnauthorized},
		{"wrong token", "/api/v1/status", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "/api/v1/status", "Basic s3cret", http.StatusUnauthorized},
		{"valid token", "/api/v1/status", "Bearer s3cret", http.StatusOK},
		{"websocket query token", "/api/v1/ws/status?token=s3cret", "", http.StatusOK},
		{"query token outside websocket", "/api/v1/status?token=s3cret", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestTokenAuth_Disabled(t *testing.T) {
	rec := httptest.NewRecorder()
	TokenAuth("")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 without a configured token, got %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	defer rl.Stop()
	handler := rl.Handler(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("expected the burst to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected 429 after the burst, got %d", codes[2])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.RemoteAddr = "198.51.100.8:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected a separate budget per client, got %d", rec.Code)
	}
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	rl.limiter("198.51.100.7")
	rl.evict(time.Now().Add(time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.visitors) != 0 {
		t.Errorf("expected idle visitors evicted, got %d", len(rl.visitors))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if ip := clientIP(req); ip != "192.0.2.1" {
		t.Errorf("expected 192.0.2.1, got %s", ip)
	}

	req.Header.Set("X-Real-IP", "192.0.2.2")
	if ip := clientIP(req); ip != "192.0.2.2" {
		t.Errorf("expected 192.0.2.2, got %s", ip)
	}

	req.Header.Set("X-Forwarded-For", "192.0.2.3, 10.0.0.1")
	if ip := clientIP(req); ip != "192.0.2.3" {
		t.Errorf("expected 192.0.2.3, got %s", ip)
	}
}

func TestBodyLimit(t *testing.T) {
	handler := BodyLimit(16)(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(strings.Repeat("x", 32)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for GET, got %d", rec.Code)
	}
}

func TestTimeoutWithExclusions(t *testing.T) {
	var deadlines []bool
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		deadlines = append(deadlines, ok)
		w.WriteHeader(http.StatusOK)
	})
	handler := TimeoutWithExclusions(time.Minute, "/deploy", "/ws/")(probe)

	for _, path := range []string{"/api/v1/status", "/api/v1/deploy", "/api/v1/ws/status"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	want := []bool{true, false, false}
	for i := range want {
		if deadlines[i] != want[i] {
			t.Errorf("request %d: expected deadline %v, got %v", i, want[i], deadlines[i])
		}
	}
}

func TestRequestLogger(t *testing.T) {
	var seen int
	handler := RequestLogger(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := w.(*statusRecorder)
		if !ok {
			t.Fatal("expected a status recorder")
		}
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("short and stout"))
		seen = rec.Status()
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	handler.ServeHTTP(rec, req)

	if seen != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Errorf("expected the first status to stick, got %d and %d", seen, rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}
