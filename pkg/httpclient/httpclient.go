// Package httpclient builds the retrying HTTP clients used to reach the clinical data services.
package httpclient

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/researchportal/resultpipe/pkg/logger"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRetryMax     = 3
	defaultRetryWaitMin = 100 * time.Millisecond
	defaultRetryWaitMax = 3 * time.Second
)

type Option func(c *retryablehttp.Client)

// WithTimeout bounds a single attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *retryablehttp.Client) {
		if timeout > 0 {
			c.HTTPClient.Timeout = timeout
		}
	}
}

func WithRetryMax(retryMax int) Option {
	return func(c *retryablehttp.Client) {
		c.RetryMax = retryMax
	}
}

func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = minWait
		c.RetryWaitMax = maxWait
	}
}

// New returns a client that retries connection errors, 429 and 5xx responses. Once retries are
// exhausted the last response is returned to the caller instead of an error so that status
// codes can be mapped by the caller. Outgoing requests are traced.
func New(log logger.Logger, opts ...Option) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = defaultTimeout
	c.HTTPClient.Transport = otelhttp.NewTransport(c.HTTPClient.Transport)
	c.RetryMax = defaultRetryMax
	c.RetryWaitMin = defaultRetryWaitMin
	c.RetryWaitMax = defaultRetryWaitMax
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = nil
	if log != nil {
		c.Logger = &leveledLogger{logger: log}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// leveledLogger forwards retryablehttp logs to zap. Retry attempts are logged at debug level.
type leveledLogger struct {
	logger logger.Logger
}

var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, fields(keysAndValues)...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, fields(keysAndValues)...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, fields(keysAndValues)...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}
