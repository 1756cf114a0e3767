package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireAdmin(t *testing.T) {
	s := &Service{adminKey: "0123456789abcdef"}

	var sawAdmin bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAdmin = IsAdmin(r.Context())
	})

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"valid key", "0123456789abcdef", http.StatusOK},
		{"wrong key", "ffffffffffffffff", http.StatusUnauthorized},
		{"missing key", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sawAdmin = false
			r := httptest.NewRequest(http.MethodGet, "/admin/sync", nil)
			if tt.key != "" {
				r.Header.Set("X-Api-Key", tt.key)
			}
			w := httptest.NewRecorder()

			s.RequireAdmin(next).ServeHTTP(w, r)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if (tt.status == http.StatusOK) != sawAdmin {
				t.Errorf("admin context flag = %v", sawAdmin)
			}
		})
	}
}

func TestRequireSubscriberWithoutVerifier(t *testing.T) {
	s := &Service{adminKey: "0123456789abcdef"}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer sometoken")
	w := httptest.NewRecorder()

	s.RequireSubscriber(next).ServeHTTP(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Bearer   abc123  ", "abc123"},
		{"Token abc123", ""},
		{"Bearer", ""},
		{"", ""},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(r); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestFeedTokenRoundTrip(t *testing.T) {
	token, hash, err := NewFeedToken()
	if err != nil {
		t.Fatalf("NewFeedToken: %v", err)
	}
	if token == "" || hash == "" {
		t.Fatalf("empty token or hash")
	}
	if token == hash {
		t.Fatalf("hash must differ from token")
	}

	if !VerifyFeedToken(hash, token) {
		t.Errorf("minted token does not verify")
	}
	if VerifyFeedToken(hash, "forged") {
		t.Errorf("forged token verified")
	}
	if VerifyFeedToken("", token) {
		t.Errorf("empty hash verified")
	}
	if VerifyFeedToken(hash, "") {
		t.Errorf("empty token verified")
	}
}
