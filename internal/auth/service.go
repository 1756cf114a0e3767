package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/campustools/gridcal/internal/config"
	"github.com/campustools/gridcal/internal/store"
)

// Service guards the API surfaces: operator endpoints behind a static API
// key, subscriber self-service behind OIDC bearer tokens, and the ICS feed
// behind per-subscriber tokens.
type Service struct {
	adminKey string
	store    *store.Store
	verifier *oidc.IDTokenVerifier
}

// NewService wires authentication from config. When no OIDC issuer is
// configured the subscriber endpoints stay disabled; admin and feed access
// do not depend on it.
func NewService(ctx context.Context, cfg *config.Config, st *store.Store) (*Service, error) {
	s := &Service{adminKey: cfg.Admin.APIKey, store: st}

	if cfg.OIDC.IssuerURL != "" {
		provider, err := oidc.NewProvider(ctx, cfg.OIDC.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("discover oidc issuer: %w", err)
		}
		s.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.OIDC.ClientID})
	}
	return s, nil
}

// RequireAdmin enforces the operator API key passed in X-Api-Key.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Api-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context())))
	})
}

// RequireSubscriber verifies the bearer token and resolves the subscriber
// record matching the token's email claim.
func (s *Service) RequireSubscriber(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			http.Error(w, "subscriber endpoints are disabled", http.StatusServiceUnavailable)
			return
		}
		raw := bearerToken(r)
		if raw == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gridcal"`)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		sub, err := s.subscriberForToken(r.Context(), raw)
		if err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubscriber(r.Context(), sub)))
	})
}

func (s *Service) subscriberForToken(ctx context.Context, raw string) (*store.Subscriber, error) {
	idToken, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	if claims.Email == "" {
		return nil, errors.New("token has no email claim")
	}

	sub, err := s.store.Subscribers.GetByEmail(ctx, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("resolve subscriber: %w", err)
	}
	if !sub.Active {
		return nil, errors.New("subscriber is deactivated")
	}
	return sub, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
