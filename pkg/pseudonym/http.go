package pseudonym

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/researchportal/resultpipe/pkg/logger"
	"github.com/researchportal/resultpipe/pkg/table"

	pipelineErrors "github.com/researchportal/resultpipe/pkg/errors"
)

const (
	exchangePath = "/pseudonyms/exchange"

	defaultMaxElapsedTime  = 10 * time.Second
	defaultInitialInterval = 200 * time.Millisecond
	defaultTimeout         = 30 * time.Second

	maxResponseBytes = 16 << 20
)

type exchangeRequest struct {
	Project     string   `json:"project"`
	Identifiers []string `json:"identifiers"`
}

type exchangeResponse struct {
	Pseudonyms []*string `json:"pseudonyms"`
}

type HTTPExchangerOpt func(*HTTPExchanger)

func WithBearerToken(token string) HTTPExchangerOpt {
	return func(e *HTTPExchanger) {
		e.token = token
	}
}

func WithHTTPClient(client *http.Client) HTTPExchangerOpt {
	return func(e *HTTPExchanger) {
		e.client = client
	}
}

// WithMaxElapsedTime bounds the total time spent retrying one exchange.
func WithMaxElapsedTime(d time.Duration) HTTPExchangerOpt {
	return func(e *HTTPExchanger) {
		e.maxElapsedTime = d
	}
}

func WithInitialInterval(d time.Duration) HTTPExchangerOpt {
	return func(e *HTTPExchanger) {
		e.initialInterval = d
	}
}

func WithLogger(l logger.Logger) HTTPExchangerOpt {
	return func(e *HTTPExchanger) {
		e.logger = l
	}
}

// HTTPExchanger calls a pseudonymization service at POST {baseURL}/pseudonyms/exchange.
// Connection errors, 429 and 5xx responses are retried with exponential backoff. Other
// failures are returned immediately.
type HTTPExchanger struct {
	baseURL         string
	token           string
	client          *http.Client
	maxElapsedTime  time.Duration
	initialInterval time.Duration
	logger          logger.Logger
}

var _ Exchanger = (*HTTPExchanger)(nil)

func NewHTTPExchanger(baseURL string, opts ...HTTPExchangerOpt) *HTTPExchanger {
	e := &HTTPExchanger{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxElapsedTime:  defaultMaxElapsedTime,
		initialInterval: defaultInitialInterval,
		logger:          logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *HTTPExchanger) Exchange(ctx context.Context, ids table.IdentifierList, projectScope string) (table.PseudonymList, error) {
	if len(ids) == 0 {
		return table.PseudonymList{}, nil
	}

	body, err := json.Marshal(exchangeRequest{Project: projectScope, Identifiers: ids})
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.initialInterval
	policy.MaxElapsedTime = e.maxElapsedTime

	var pseudonyms table.PseudonymList
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		var err error
		pseudonyms, err = e.exchangeOnce(ctx, body, len(ids))
		if err != nil {
			e.logger.WarnWithContext(ctx, "pseudonym exchange attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("identifiers", len(ids)),
				zap.Error(err))
		}
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		if errors.Is(err, pipelineErrors.ErrPseudonymExchange) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", pipelineErrors.ErrPseudonymExchange, err)
	}

	return pseudonyms, nil
}

func (e *HTTPExchanger) exchangeOnce(ctx context.Context, body []byte, expected int) (table.PseudonymList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+exchangePath, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	if scope, ok := logger.RequestScopeFromContext(ctx); ok {
		req.Header.Set("X-Request-Id", scope.RequestID)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("pseudonym service returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(pipelineErrors.PseudonymExchange("pseudonym service returned status %d", resp.StatusCode))
	}

	var decoded exchangeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, backoff.Permanent(pipelineErrors.PseudonymExchange("undecodable response: %v", err))
	}

	if len(decoded.Pseudonyms) != expected {
		return nil, backoff.Permanent(pipelineErrors.PseudonymExchange("expected %d pseudonyms, got %d", expected, len(decoded.Pseudonyms)))
	}

	return decoded.Pseudonyms, nil
}
