// Package transport implements the HTTP JSON client for the échéancier
// backend API. It maps the REST contract onto typed Go operations, translates
// 404s into ErrNotFound and attaches a correlation id to every mutation so
// push-channel subscribers can recognize their own writes.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mverdier/echeancier/pkg/echeance"
)

// ErrNotFound is returned when the server reports 404 for a single record.
var ErrNotFound = errors.New("echeance not found")

// StatusError reports a non-2xx response that is not a plain not-found.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api status %d", e.Code)
	}
	return fmt.Sprintf("api status %d: %s", e.Code, e.Body)
}

// IsNotFound returns true if the error is a not-found error from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Client is the HTTP client for the backend. It is safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
}

// DefaultTimeout bounds every request unless the caller's context is
// shorter. A hung backend must never hold a loading state forever.
const DefaultTimeout = 15 * time.Second

// NewClient creates a transport client for the given API endpoint,
// e.g. "https://api.cabinet.example.com/v1". Timeout <= 0 uses
// DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// List searches échéances matching the filter set. A nil filter returns the
// server's default listing.
func (c *Client) List(ctx context.Context, filtres *echeance.FilterSet) ([]echeance.Echeance, error) {
	payload := struct {
		Filtres *echeance.FilterSet `json:"filtres,omitempty"`
	}{Filtres: filtres}

	var out []echeance.Echeance
	if err := c.do(ctx, http.MethodPost, "/echeances/recherche", payload, &out, ""); err != nil {
		return nil, fmt.Errorf("failed to list echeances: %w", err)
	}
	return out, nil
}

// Get fetches one échéance by id. Returns ErrNotFound when the server does
// not know the id.
func (c *Client) Get(ctx context.Context, id string) (*echeance.Echeance, error) {
	var out echeance.Echeance
	if err := c.do(ctx, http.MethodGet, "/echeances/"+id, nil, &out, ""); err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get echeance %s: %w", id, err)
	}
	return &out, nil
}

// Create creates an échéance and returns the server-assigned record.
func (c *Client) Create(ctx context.Context, req CreateRequest, correlationID string) (*echeance.Echeance, error) {
	var out echeance.Echeance
	if err := c.do(ctx, http.MethodPost, "/echeances", req, &out, correlationID); err != nil {
		return nil, fmt.Errorf("failed to create echeance: %w", err)
	}
	return &out, nil
}

// Update applies a partial update and returns the server-confirmed record.
func (c *Client) Update(ctx context.Context, id string, req UpdateRequest, correlationID string) (*echeance.Echeance, error) {
	var out echeance.Echeance
	if err := c.do(ctx, http.MethodPatch, "/echeances/"+id, req, &out, correlationID); err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update echeance %s: %w", id, err)
	}
	return &out, nil
}

// Delete removes an échéance. Deletion is immediate; there is no soft delete.
func (c *Client) Delete(ctx context.Context, id string, correlationID string) error {
	if err := c.do(ctx, http.MethodDelete, "/echeances/"+id, nil, nil, correlationID); err != nil {
		if IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete echeance %s: %w", id, err)
	}
	return nil
}

// Analytics fetches the server-side aggregate for a reporting period
// ("7j", "30j", "trimestre", ...). Never cached.
func (c *Client) Analytics(ctx context.Context, periode string) (*AnalyticsSummary, error) {
	payload := struct {
		Periode string `json:"periode"`
	}{Periode: periode}

	var out AnalyticsSummary
	if err := c.do(ctx, http.MethodPost, "/echeances/analytics", payload, &out, ""); err != nil {
		return nil, fmt.Errorf("failed to fetch analytics: %w", err)
	}
	return &out, nil
}

// StartCollaboration opens a collaborative-editing session on one échéance.
func (c *Client) StartCollaboration(ctx context.Context, id string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/echeances/"+id+"/collaborate", nil, &out, ""); err != nil {
		return nil, fmt.Errorf("failed to start collaboration on %s: %w", id, err)
	}
	return &out, nil
}

// StopCollaboration ends the collaborative-editing session on one échéance.
func (c *Client) StopCollaboration(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/echeances/"+id+"/collaborate", nil, nil, ""); err != nil {
		return fmt.Errorf("failed to stop collaboration on %s: %w", id, err)
	}
	return nil
}

// do issues one JSON request. A non-nil out is decoded from the response
// body; 404 maps to ErrNotFound; other non-2xx statuses map to StatusError.
func (c *Client) do(ctx context.Context, method, path string, body, out any, correlationID string) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
