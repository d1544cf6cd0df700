package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wellcoach/internal/domain"
	"wellcoach/internal/recommend"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Client handles HTTP communication with the wellcoach server.
type Client struct {
	serverURL string
	client    *http.Client
}

// NewClient creates a Client for serverURL.
func NewClient(serverURL string, timeout time.Duration) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}
}

// ClientResult is one client's outcome from generating for everybody.
type ClientResult struct {
	ClientID        string                  `json:"client_id"`
	ClientName      string                  `json:"client_name"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	Error           string                  `json:"error,omitempty"`
}

// BulkFailure names a recommendation a bulk call could not update.
type BulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkResult is the outcome of a bulk accept or decline.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// ListFilter narrows the recommendation listing.
type ListFilter struct {
	ClientID string
	Status   string
	Search   string
	Sort     string
}

func (c *Client) Clients(ctx context.Context) ([]domain.Client, error) {
	var out struct {
		Clients []domain.Client `json:"clients"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/clients", nil, &out); err != nil {
		return nil, err
	}
	return out.Clients, nil
}

// Generate creates recommendations for one client.
func (c *Client) Generate(ctx context.Context, clientID string, limit int) ([]domain.Recommendation, error) {
	var out struct {
		Recommendations []domain.Recommendation `json:"recommendations"`
	}
	body := map[string]any{"client_id": clientID, "limit": limit}
	if err := c.do(ctx, http.MethodPost, "/api/v1/recommendations/generate", body, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// GenerateAll creates recommendations for every client.
func (c *Client) GenerateAll(ctx context.Context, limit int) ([]ClientResult, error) {
	var out struct {
		Results []ClientResult `json:"results"`
	}
	body := map[string]any{"limit": limit}
	if err := c.do(ctx, http.MethodPost, "/api/v1/recommendations/generate", body, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) List(ctx context.Context, f ListFilter) ([]recommend.Entry, error) {
	q := url.Values{}
	for k, v := range map[string]string{"client_id": f.ClientID, "status": f.Status, "search": f.Search, "sort": f.Sort} {
		if v != "" {
			q.Set(k, v)
		}
	}
	path := "/api/v1/recommendations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Recommendations []recommend.Entry `json:"recommendations"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// Dispose accepts or declines one recommendation.
func (c *Client) Dispose(ctx context.Context, id, action string) (*domain.Recommendation, error) {
	var rec domain.Recommendation
	path := "/api/v1/recommendations/" + url.PathEscape(id) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/recommendations/"+url.PathEscape(id), nil, nil)
}

// Bulk applies action to ids, or to the pending recommendations matching
// clientID and search when ids is empty.
func (c *Client) Bulk(ctx context.Context, action string, ids []string, clientID, search string) (*BulkResult, error) {
	body := map[string]any{"action": action, "ids": ids, "client_id": clientID, "search": search}
	var out BulkResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/recommendations/bulk", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message, apiErr.Detail = payload.Error, payload.Detail
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
