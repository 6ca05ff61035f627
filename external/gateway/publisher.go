// Package gateway posts notification records to the delivery gateway, the
// service that owns the Discord bots and any other outbound transports.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ravenfall/scrim-scheduler/internal/domain/notification"
	"github.com/ravenfall/scrim-scheduler/internal/platform/resilience"
)

var errGatewayTransient = crerr.New("gateway transient failure")

type PublisherConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Publisher implements usecase.GatewayPublisher over HTTP.
type Publisher struct {
	client         *http.Client
	baseURL        string
	token          string
	logger         *slog.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewPublisher(cfg PublisherConfig, logger *slog.Logger) *Publisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Publisher{
		client:         &http.Client{Timeout: timeout},
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:          strings.TrimSpace(cfg.Token),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

type publishRequest struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	TeamIDs    []string       `json:"teamIds"`
	ProposalID string         `json:"proposalId,omitempty"`
	MatchID    string         `json:"matchId,omitempty"`
	Payload    map[string]any `json:"payload"`
}

func (p *Publisher) Publish(ctx context.Context, record notification.Record) error {
	if p.circuitEnabled {
		if err := p.breaker.Allow(); err != nil {
			p.logger.WarnContext(ctx, "gateway circuit breaker rejected request", "state", p.breaker.State())
			return fmt.Errorf("delivery gateway is temporarily unavailable: %w", err)
		}
	}

	body, err := sonic.Marshal(publishRequest{
		ID:         record.ID,
		Kind:       record.Kind,
		TeamIDs:    record.TeamIDs,
		ProposalID: record.ProposalID,
		MatchID:    record.MatchID,
		Payload:    record.Payload,
	})
	if err != nil {
		return crerr.Wrap(err, "marshal notification payload")
	}

	publishURL := p.baseURL + "/v1/notifications"
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("gateway.publish_url", publishURL),
			attribute.String("gateway.notification_id", record.ID),
			attribute.String("gateway.kind", record.Kind),
		)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.Write(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, publishURL, strings.NewReader(buf.String()))
	if err != nil {
		return crerr.Wrap(err, "create gateway request")
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", record.ID)

	resp, err := p.client.Do(req)
	if err != nil {
		p.recordOutcome(fmt.Errorf("%w: send request: %v", errGatewayTransient, err))
		return fmt.Errorf("send notification %s: %w", record.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		p.recordOutcome(nil)
		return nil
	}

	outcome := fmt.Errorf("gateway status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		outcome = fmt.Errorf("%w: %v", errGatewayTransient, outcome)
	}
	p.recordOutcome(outcome)
	return outcome
}

func (p *Publisher) recordOutcome(err error) {
	if !p.circuitEnabled {
		return
	}
	if err != nil && crerr.Is(err, errGatewayTransient) {
		p.breaker.RecordFailure()
		return
	}
	p.breaker.RecordSuccess()
}
