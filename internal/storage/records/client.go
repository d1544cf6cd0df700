// Package records adapts the hosted table API to the storage contracts.
// Field naming (snake_case, integer ids, reference objects) is translated
// here and nowhere else.
package records

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

	"golang.org/x/time/rate"

	"wellcoach/internal/observability"
	"wellcoach/internal/storage"
)

// Table names on the hosted service.
const (
	tableClient         = "client"
	tableGoal           = "goal"
	tableResource       = "resource"
	tableInteraction    = "interaction"
	tableRecommendation = "recommendation"
)

// Config holds connection settings for the hosted record store.
type Config struct {
	BaseURL   string
	ProjectID string
	APIKey    string
	// RequestsPerSecond throttles outgoing calls. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     observability.Logger
}

// Client talks to the hosted table API. It implements storage.Store and
// storage.RecommendationStore.
type Client struct {
	baseURL   string
	projectID string
	apiKey    string
	http      *http.Client
	limiter   *rate.Limiter
	log       observability.Logger
}

var (
	_ storage.Store               = (*Client)(nil)
	_ storage.RecommendationStore = (*Client)(nil)
)

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("records: base URL is required")
	}
	if cfg.ProjectID == "" || cfg.APIKey == "" {
		return nil, errors.New("records: project id and api key are required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	log := cfg.Logger
	if log == nil {
		log = observability.Discard()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		projectID: cfg.ProjectID,
		apiKey:    cfg.APIKey,
		http:      hc,
		limiter:   limiter,
		log:       log.WithComponent("records"),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Wire envelopes.

type condition struct {
	FieldName string `json:"fieldName"`
	Operator  string `json:"operator"`
	Values    []any  `json:"values"`
}

type ordering struct {
	FieldName string `json:"fieldName"`
	SortType  string `json:"sortType"`
}

type queryRequest struct {
	Where   []condition `json:"where,omitempty"`
	OrderBy []ordering  `json:"orderBy,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Results []result        `json:"results"`
}

type result struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func eq(field string, v any) condition {
	return condition{FieldName: field, Operator: "EqualTo", Values: []any{v}}
}

func isNull(field string) condition {
	return condition{FieldName: field, Operator: "IsNull", Values: []any{}}
}

func desc(field string) ordering { return ordering{FieldName: field, SortType: "DESC"} }
func asc(field string) ordering  { return ordering{FieldName: field, SortType: "ASC"} }

// do sends one request and decodes the envelope. Transport failures,
// non-JSON bodies and 5xx map to ErrUpstream; 404 to ErrNotFound; 400 and
// 422 to ErrValidation.
func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("records throttle: %w", err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Project-Id", c.projectID)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", storage.ErrUpstream, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.DebugContext(ctx, "record store call", "method", method, "path", path,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, messageOr(env.Message, path))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", storage.ErrValidation, messageOr(env.Message, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s %s returned %s", storage.ErrUpstream, method, path, resp.Status)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode %s %s: %v", storage.ErrUpstream, method, path, decodeErr)
	}
	if !env.Success {
		return nil, classify(env.Message)
	}
	return &env, nil
}

// first returns the data of the single per-record result of a create,
// update or delete call.
func first(env *envelope) (json.RawMessage, error) {
	if len(env.Results) == 0 {
		return env.Data, nil
	}
	r := env.Results[0]
	if !r.Success {
		return nil, classify(r.Message)
	}
	return r.Data, nil
}

// classify maps a rejection message from the service to a sentinel.
func classify(msg string) error {
	if strings.Contains(strings.ToLower(msg), "not found") {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, msg)
	}
	return fmt.Errorf("%w: %s", storage.ErrValidation, messageOr(msg, "record rejected"))
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

func tablePath(table string) string {
	return "/v1/tables/" + table + "/records"
}

// query runs a filtered, ordered fetch and decodes the rows into out.
func (c *Client) query(ctx context.Context, table string, q queryRequest, out any) error {
	env, err := c.do(ctx, http.MethodPost, tablePath(table)+"/query", q)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s rows: %v", storage.ErrUpstream, table, err)
	}
	return nil
}

// get fetches one record by id into out.
func (c *Client) get(ctx context.Context, table, id string, out any) error {
	n, err := parseID(id)
	if err != nil {
		return fmt.Errorf("%s %s: %w", table, id, storage.ErrNotFound)
	}
	env, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", tablePath(table), n), nil)
	if err != nil {
		return fmt.Errorf("get %s %s: %w", table, id, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s %s: %w", table, id, storage.ErrNotFound)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", storage.ErrUpstream, table, err)
	}
	return nil
}

// write sends a single-record create (POST) or update (PATCH) and decodes
// the stored record into out.
func (c *Client) write(ctx context.Context, method, table string, record map[string]any, out any) error {
	env, err := c.do(ctx, method, tablePath(table), map[string]any{"records": []map[string]any{record}})
	if err != nil {
		return fmt.Errorf("%s %s: %w", strings.ToLower(method), table, err)
	}
	data, err := first(env)
	if err != nil {
		return fmt.Errorf("%s %s: %w", strings.ToLower(method), table, err)
	}
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: %s %s returned no record", storage.ErrUpstream, method, table)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", storage.ErrUpstream, table, err)
	}
	return nil
}

func (c *Client) remove(ctx context.Context, table, id string) error {
	n, err := parseID(id)
	if err != nil {
		return fmt.Errorf("%s %s: %w", table, id, storage.ErrNotFound)
	}
	env, err := c.do(ctx, http.MethodDelete, tablePath(table), map[string]any{"recordIds": []int64{n}})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	if _, err := first(env); err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return nil
}
