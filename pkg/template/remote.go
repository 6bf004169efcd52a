package template

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

const maxSchemaBytes = 4 << 20

// RemoteRegistry fetches schemas from a template service at GET {baseURL}/templates/{id}.
type RemoteRegistry struct {
	baseURL string
	client  *retryablehttp.Client
}

var _ Registry = (*RemoteRegistry)(nil)

func NewRemoteRegistry(baseURL string, client *retryablehttp.Client) *RemoteRegistry {
	return &RemoteRegistry{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (r *RemoteRegistry) Resolve(ctx context.Context, templateID string) (*Schema, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet,
		r.baseURL+"/templates/"+url.PathEscape(templateID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("template service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: '%s'", ErrNotFound, templateID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("template service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSchemaBytes))
	if err != nil {
		return nil, fmt.Errorf("read template service response: %w", err)
	}

	s, err := ParseSchema(data)
	if err != nil {
		return nil, err
	}
	if s.TemplateID != templateID {
		return nil, fmt.Errorf("template service returned schema '%s' for '%s'", s.TemplateID, templateID)
	}
	return s, nil
}
