// Package warden talks to the account service that owns identity. It
// verifies bearer tokens for the HTTP layer and resolves user ids to
// display identities for notification payloads.
package warden

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/ravenfall/scrim-scheduler/internal/domain/user"
	"github.com/ravenfall/scrim-scheduler/internal/platform/cache"
	"github.com/ravenfall/scrim-scheduler/internal/platform/logging"
	"github.com/ravenfall/scrim-scheduler/internal/platform/resilience"
	"github.com/ravenfall/scrim-scheduler/internal/usecase"
)

var errWardenTransient = crerr.New("warden transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	ServiceToken   string
	Timeout        time.Duration
	CacheTTL       time.Duration
	CacheSize      int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	serviceToken   string
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
	principals     *principalCache
	identities     *cache.Store
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 4096
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		serviceToken:   strings.TrimSpace(cfg.ServiceToken),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		principals:     newPrincipalCache(ttl, size),
		identities:     cache.NewStore(ttl),
	}
}

type introspectResponse struct {
	Active      bool   `json:"active"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// VerifyToken introspects a bearer token. Results are cached by token hash
// for the configured TTL so hot callers do not hammer the account service.
func (c *Client) VerifyToken(ctx context.Context, token string) (user.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.Principal{}, fmt.Errorf("%w: empty token", usecase.ErrUnauthenticated)
	}

	key := hashToken(token)
	if principal, ok := c.principals.Get(key); ok {
		return principal, nil
	}

	body, err := sonic.Marshal(map[string]string{"token": token})
	if err != nil {
		return user.Principal{}, fmt.Errorf("encode introspect request: %w", err)
	}

	raw, err := c.doJSON(ctx, http.MethodPost, "/v1/tokens/introspect", body)
	if err != nil {
		return user.Principal{}, err
	}

	var resp introspectResponse
	if err := sonic.Unmarshal(raw, &resp); err != nil {
		return user.Principal{}, fmt.Errorf("decode introspect response: %w", err)
	}
	if !resp.Active || resp.UserID == "" {
		return user.Principal{}, fmt.Errorf("%w: token is not active", usecase.ErrUnauthenticated)
	}

	principal := user.Principal{UserID: resp.UserID, DisplayName: resp.DisplayName}
	c.principals.Set(key, principal)
	return principal, nil
}

type identityResponse struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	DiscordID   string `json:"discordId"`
}

// resolvedIdentity is the cached outcome of one directory lookup. A miss is
// cached too, so an unknown id does not trigger a request per notification.
type resolvedIdentity struct {
	identity user.Identity
	found    bool
}

// Resolve implements user.Directory.
func (c *Client) Resolve(ctx context.Context, userID string) (user.Identity, bool, error) {
	if userID == "" {
		return user.Identity{}, false, nil
	}

	out, err := c.identities.GetOrLoad(ctx, userID, func() (any, error) {
		resolved, loadErr := c.fetchIdentity(ctx, userID)
		if loadErr != nil {
			return nil, loadErr
		}
		return resolved, nil
	})
	if err != nil {
		return user.Identity{}, false, err
	}

	resolved, ok := out.(resolvedIdentity)
	if !ok {
		return user.Identity{}, false, fmt.Errorf("unexpected cache payload type %T", out)
	}
	return resolved.identity, resolved.found, nil
}

func (c *Client) fetchIdentity(ctx context.Context, userID string) (resolvedIdentity, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/v1/users/"+userID, nil)
	if err != nil {
		if crerr.Is(err, errNotFound) {
			return resolvedIdentity{}, nil
		}
		return resolvedIdentity{}, err
	}

	var resp identityResponse
	if err := sonic.Unmarshal(raw, &resp); err != nil {
		return resolvedIdentity{}, fmt.Errorf("decode identity response: %w", err)
	}

	return resolvedIdentity{
		identity: user.Identity{
			UserID:      resp.UserID,
			DisplayName: resp.DisplayName,
			DiscordID:   resp.DiscordID,
		},
		found: true,
	}, nil
}

var errNotFound = crerr.New("warden resource not found")

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "warden circuit breaker rejected request", "state", c.breaker.State())
			return nil, fmt.Errorf("%w: account service is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	fullURL := c.baseURL + path
	out, err, _ := c.flight.Do(method+" "+fullURL+" "+hashBody(body), func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, method, fullURL, body)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errWardenTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return nil, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected response payload type %T", out)
	}
	return raw, nil
}

func (c *Client) executeRequest(ctx context.Context, method, fullURL string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, fullURL, requestBody(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("authorization", "Bearer "+c.serviceToken)
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", errWardenTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", errWardenTransient, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: account service rejected credentials", usecase.ErrUnauthenticated)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: account service status=%d", errWardenTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("account service status=%d", resp.StatusCode)
	}
}
