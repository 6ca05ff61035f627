package warden

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ravenfall/scrim-scheduler/internal/platform/logging"
	"github.com/ravenfall/scrim-scheduler/internal/platform/resilience"
	"github.com/ravenfall/scrim-scheduler/internal/usecase"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(ClientConfig{
		HTTPClient:     srv.Client(),
		BaseURL:        srv.URL,
		ServiceToken:   "service-secret",
		Timeout:        2 * time.Second,
		CacheTTL:       time.Minute,
		CacheSize:      16,
		Logger:         logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: false},
	})
}

func TestClientVerifyToken_SendsServiceTokenAndParsesResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/v1/tokens/introspect" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("authorization"); got != "Bearer service-secret" {
			t.Fatalf("unexpected authorization header: %s", got)
		}

		var req map[string]string
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if req["token"] != "token-abc" {
			t.Fatalf("unexpected token value: %s", req["token"])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = sonic.ConfigDefault.NewEncoder(w).Encode(map[string]any{
			"active":      true,
			"userId":      "user-123",
			"displayName": "Raven",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv)

	principal, err := client.VerifyToken(context.Background(), "token-abc")
	if err != nil {
		t.Fatalf("verify token failed: %v", err)
	}
	if principal.UserID != "user-123" {
		t.Fatalf("unexpected user id: %s", principal.UserID)
	}
	if principal.DisplayName != "Raven" {
		t.Fatalf("unexpected display name: %s", principal.DisplayName)
	}
}

func TestClientVerifyToken_InactiveToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = sonic.ConfigDefault.NewEncoder(w).Encode(map[string]any{"active": false})
	}))
	defer srv.Close()

	client := newTestClient(srv)

	_, err := client.VerifyToken(context.Background(), "stale-token")
	if !errors.Is(err, usecase.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestClientVerifyToken_UsesInMemoryCache(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = sonic.ConfigDefault.NewEncoder(w).Encode(map[string]any{
			"active": true,
			"userId": "user-cache",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv)

	for i := 0; i < 2; i++ {
		principal, err := client.VerifyToken(context.Background(), "cached-token")
		if err != nil {
			t.Fatalf("verify token failed: %v", err)
		}
		if principal.UserID != "user-cache" {
			t.Fatalf("unexpected user id: %s", principal.UserID)
		}
	}

	if calls.Load() != 1 {
		t.Fatalf("expected one introspection call with cache, got %d", calls.Load())
	}
}

func TestClientResolve_ParsesIdentityAndCachesMisses(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/v1/users/user-1":
			w.Header().Set("Content-Type", "application/json")
			_ = sonic.ConfigDefault.NewEncoder(w).Encode(map[string]any{
				"userId":      "user-1",
				"displayName": "Nightjar",
				"discordId":   "discord-1",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv)

	identity, found, err := client.Resolve(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !found {
		t.Fatalf("expected identity to be found")
	}
	if identity.DisplayName != "Nightjar" || identity.DiscordID != "discord-1" {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	for i := 0; i < 2; i++ {
		_, found, err := client.Resolve(context.Background(), "ghost")
		if err != nil {
			t.Fatalf("resolve ghost failed: %v", err)
		}
		if found {
			t.Fatalf("expected ghost to be unknown")
		}
	}

	if calls.Load() != 2 {
		t.Fatalf("expected one request per distinct user id, got %d", calls.Load())
	}
}
