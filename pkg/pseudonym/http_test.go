package pseudonym

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/researchportal/resultpipe/pkg/logger"
	"github.com/researchportal/resultpipe/pkg/table"

	pipelineErrors "github.com/researchportal/resultpipe/pkg/errors"
)

type fakeService struct {
	calls   atomic.Int32
	handler func(w http.ResponseWriter, req exchangeRequest, call int32)
}

func (f *fakeService) start(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := f.calls.Add(1)
		require.Equal(t, exchangePath, r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req exchangeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.handler(w, req, call)
	}))
	t.Cleanup(server.Close)
	return server
}

func echo(w http.ResponseWriter, req exchangeRequest) {
	pseudonyms := make([]*string, len(req.Identifiers))
	for i, id := range req.Identifiers {
		if id == "unknown" {
			continue
		}
		p := req.Project + ":" + id
		pseudonyms[i] = &p
	}
	_ = json.NewEncoder(w).Encode(exchangeResponse{Pseudonyms: pseudonyms})
}

func fastRetries() []HTTPExchangerOpt {
	return []HTTPExchangerOpt{WithInitialInterval(time.Millisecond), WithMaxElapsedTime(time.Second)}
}

func TestHTTPExchange(t *testing.T) {
	service := &fakeService{}
	var authorization, requestID atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization.Store(r.Header.Get("Authorization"))
		requestID.Store(r.Header.Get("X-Request-Id"))
		service.calls.Add(1)

		var req exchangeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		echo(w, req)
	}))
	t.Cleanup(server.Close)

	exchanger := NewHTTPExchanger(server.URL+"/", WithBearerToken("secret-token"))
	ctx := logger.ContextWithRequestScope(context.Background(), logger.RequestScope{RequestID: "req-1"})

	pseudonyms, err := exchanger.Exchange(ctx, table.IdentifierList{"ehr-1", "unknown", "ehr-1"}, "p7")
	require.NoError(t, err)
	require.Len(t, pseudonyms, 3)
	require.Equal(t, "p7:ehr-1", *pseudonyms[0])
	require.Nil(t, pseudonyms[1])
	require.Equal(t, "p7:ehr-1", *pseudonyms[2])

	require.Equal(t, int32(1), service.calls.Load())
	require.Equal(t, "Bearer secret-token", authorization.Load())
	require.Equal(t, "req-1", requestID.Load())
}

func TestHTTPExchangeEmptyMakesNoCall(t *testing.T) {
	service := &fakeService{handler: func(w http.ResponseWriter, req exchangeRequest, _ int32) { echo(w, req) }}
	server := service.start(t)

	pseudonyms, err := NewHTTPExchanger(server.URL).Exchange(context.Background(), table.IdentifierList{}, "p7")
	require.NoError(t, err)
	require.Empty(t, pseudonyms)
	require.NotNil(t, pseudonyms)
	require.Zero(t, service.calls.Load())
}

func TestHTTPExchangeRetriesTransientFailures(t *testing.T) {
	service := &fakeService{handler: func(w http.ResponseWriter, req exchangeRequest, call int32) {
		switch call {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			echo(w, req)
		}
	}}
	server := service.start(t)

	log, logs := logger.NewObserverLogger("warn")
	exchanger := NewHTTPExchanger(server.URL, append(fastRetries(), WithLogger(log))...)

	pseudonyms, err := exchanger.Exchange(context.Background(), table.IdentifierList{"a"}, "p")
	require.NoError(t, err)
	require.Equal(t, "p:a", *pseudonyms[0])
	require.Equal(t, int32(3), service.calls.Load())
	require.Equal(t, 2, logs.Len())
}

func TestHTTPExchangeFailures(t *testing.T) {
	tests := map[string]struct {
		handler       func(w http.ResponseWriter, req exchangeRequest, call int32)
		expectedCalls int32
	}{
		`client_error_is_permanent`: {
			handler:       func(w http.ResponseWriter, _ exchangeRequest, _ int32) { w.WriteHeader(http.StatusBadRequest) },
			expectedCalls: 1,
		},
		`cardinality_mismatch`: {
			handler: func(w http.ResponseWriter, _ exchangeRequest, _ int32) {
				p := "only-one"
				_ = json.NewEncoder(w).Encode(exchangeResponse{Pseudonyms: []*string{&p}})
			},
			expectedCalls: 1,
		},
		`undecodable_response`: {
			handler:       func(w http.ResponseWriter, _ exchangeRequest, _ int32) { _, _ = w.Write([]byte("<html>")) },
			expectedCalls: 1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			service := &fakeService{handler: test.handler}
			server := service.start(t)

			pseudonyms, err := NewHTTPExchanger(server.URL, fastRetries()...).
				Exchange(context.Background(), table.IdentifierList{"a", "b"}, "p")
			require.ErrorIs(t, err, pipelineErrors.ErrPseudonymExchange)
			require.Nil(t, pseudonyms)
			require.Equal(t, test.expectedCalls, service.calls.Load())
		})
	}

	t.Run("retries_exhausted", func(t *testing.T) {
		service := &fakeService{handler: func(w http.ResponseWriter, _ exchangeRequest, _ int32) {
			w.WriteHeader(http.StatusBadGateway)
		}}
		server := service.start(t)

		_, err := NewHTTPExchanger(server.URL, WithInitialInterval(time.Millisecond), WithMaxElapsedTime(50*time.Millisecond)).
			Exchange(context.Background(), table.IdentifierList{"a"}, "p")
		require.ErrorIs(t, err, pipelineErrors.ErrPseudonymExchange)
		require.Greater(t, service.calls.Load(), int32(1))
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := NewHTTPExchanger(url, WithInitialInterval(time.Millisecond), WithMaxElapsedTime(20*time.Millisecond)).
			Exchange(context.Background(), table.IdentifierList{"a"}, "p")
		require.ErrorIs(t, err, pipelineErrors.ErrPseudonymExchange)
	})
}

func TestHTTPExchangeCancelled(t *testing.T) {
	service := &fakeService{handler: func(w http.ResponseWriter, _ exchangeRequest, _ int32) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}}
	server := service.start(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPExchanger(server.URL, fastRetries()...).Exchange(ctx, table.IdentifierList{"a"}, "p")
	require.ErrorIs(t, err, context.Canceled)
}
