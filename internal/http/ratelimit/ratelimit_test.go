package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remoteAddr string, headers map[string]string) int {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = remoteAddr
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Code
}

func TestMiddlewareLimitsPerClient(t *testing.T) {
	l := New(1, 2, time.Minute, nil)
	defer l.Close()
	h := l.Middleware()(okHandler())

	if code := doRequest(h, "198.51.100.7:1234", nil); code != http.StatusOK {
		t.Fatalf("first request = %d", code)
	}
	if code := doRequest(h, "198.51.100.7:1234", nil); code != http.StatusOK {
		t.Fatalf("second request = %d", code)
	}
	if code := doRequest(h, "198.51.100.7:1234", nil); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}
}

func TestMiddlewareSeparatesClients(t *testing.T) {
	l := New(1, 1, time.Minute, nil)
	defer l.Close()
	h := l.Middleware()(okHandler())

	if code := doRequest(h, "198.51.100.7:1234", nil); code != http.StatusOK {
		t.Fatalf("client A = %d", code)
	}
	if code := doRequest(h, "198.51.100.8:1234", nil); code != http.StatusOK {
		t.Fatalf("client B = %d", code)
	}
}

func TestClientIPWithTrustedProxy(t *testing.T) {
	l := New(1, 1, time.Minute, []string{"10.0.0.0/8"})
	defer l.Close()

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "trusted proxy unwraps forwarded chain",
			remote:  "10.1.2.3:5555",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.1.2.3"},
			want:    "203.0.113.9",
		},
		{
			name:    "trusted proxy falls back to real ip header",
			remote:  "10.1.2.3:5555",
			headers: map[string]string{"X-Real-IP": "203.0.113.10"},
			want:    "203.0.113.10",
		},
		{
			name:    "untrusted remote ignores headers",
			remote:  "192.168.1.50:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9"},
			want:    "192.168.1.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := l.clientIP(r); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPWithoutProxyListTrustsHeaders(t *testing.T) {
	l := New(1, 1, time.Minute, nil)
	defer l.Close()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.50:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")

	if got := l.clientIP(r); got != "203.0.113.9" {
		t.Errorf("clientIP = %q", got)
	}
}

func TestParseProxies(t *testing.T) {
	nets := parseProxies([]string{"10.0.0.0/8", "203.0.113.7", "2001:db8::1", "garbage"})
	if len(nets) != 3 {
		t.Fatalf("parsed %d networks, want 3", len(nets))
	}
}
