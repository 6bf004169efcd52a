package queryengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/researchportal/resultpipe/pkg/table"

	pipelineErrors "github.com/researchportal/resultpipe/pkg/errors"
)

const (
	aqlPath = "/query/aql"

	// DefaultIdentifierSelection projects the patient identifier of the EHR alias 'e'.
	DefaultIdentifierSelection = "e/ehr_id/value"

	maxResultBytes = 256 << 20
)

type aqlRequest struct {
	Query      string         `json:"q"`
	Parameters map[string]any `json:"query_parameters,omitempty"`
}

type HTTPEngineOpt func(*HTTPEngine)

func WithBasicAuth(username, password string) HTTPEngineOpt {
	return func(e *HTTPEngine) {
		e.username = username
		e.password = password
	}
}

// WithIdentifierSelectionPath sets the selection inserted for queries with SelectIdentifier.
func WithIdentifierSelectionPath(selection string) HTTPEngineOpt {
	return func(e *HTTPEngine) {
		e.identifierSelection = selection
	}
}

// HTTPEngine executes queries through the REST interface of the clinical data engine.
type HTTPEngine struct {
	baseURL             string
	username            string
	password            string
	identifierSelection string
	client              *retryablehttp.Client
}

var _ Engine = (*HTTPEngine)(nil)

func NewHTTPEngine(baseURL string, client *retryablehttp.Client, opts ...HTTPEngineOpt) *HTTPEngine {
	e := &HTTPEngine{
		baseURL:             strings.TrimRight(baseURL, "/"),
		identifierSelection: DefaultIdentifierSelection,
		client:              client,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute posts the query and decodes the tabular result. Response bodies are never copied
// into returned errors.
func (e *HTTPEngine) Execute(ctx context.Context, query Query) (*table.Table, error) {
	aql := query.AQL
	if query.SelectIdentifier {
		var err error
		if aql, err = WithIdentifierSelection(aql, e.identifierSelection); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(aqlRequest{Query: aql, Parameters: query.Parameters})
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+aqlPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.username != "" {
		req.SetBasicAuth(e.username, e.password)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResultBytes))
		return nil, fmt.Errorf("query engine returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes))
	if err != nil {
		return nil, fmt.Errorf("read query engine response: %w", err)
	}

	result, err := table.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(result.Columns) == 0 && len(result.Rows) > 0 {
		return nil, pipelineErrors.ContractViolation("result has rows but no columns")
	}
	return result, nil
}
