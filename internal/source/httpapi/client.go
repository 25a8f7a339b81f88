// Package httpapi reads the fraud graph from the backend's HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// Backend endpoints.
const (
	EndpointGraph        = "/graph"
	EndpointUsers        = "/users"
	EndpointTransactions = "/transactions"
	EndpointUserRels     = "/relationships/user/{id}"
	EndpointTxnRels      = "/relationships/transaction/{id}"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// DefaultBreaker is used when no breaker settings are configured.
var DefaultBreaker = core.BreakerConfig{
	MaxRequests:  1,
	Interval:     30 * time.Second,
	Timeout:      30 * time.Second,
	FailureRatio: 0.6,
	MinRequests:  3,
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Breaker    *core.BreakerConfig
	HTTPClient *http.Client
	Logger     *slog.Logger

	// OnBreakerChange is called with the new state: 0 closed, 1 half-open, 2 open.
	OnBreakerChange func(name string, state int)
}

// Client is a read-only client for the backend API.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// New creates a client for the backend at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	bc := DefaultBreaker
	if opts.Breaker != nil {
		bc = *opts.Breaker
	}

	c := &Client{baseURL: base, http: hc, logger: logger}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        u.Host,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= bc.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			if opts.OnBreakerChange != nil {
				opts.OnBreakerChange(name, int(to))
			}
		},
		IsSuccessful: isSuccessful,
	})
	return c, nil
}

// isSuccessful decides what counts against the breaker: server errors
// and transport failures do, client errors and cancellation do not.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var fe *core.FetchError
	if errors.As(err, &fe) && fe.StatusCode > 0 && fe.StatusCode < 500 {
		return true
	}
	return false
}

// Name identifies the source in logs and stored snapshots.
func (c *Client) Name() string {
	return "http " + c.baseURL
}

// BreakerState returns the breaker state name.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Graph fetches the node/edge graph.
func (c *Client) Graph(ctx context.Context) (core.Graph, error) {
	var g core.Graph
	err := c.get(ctx, EndpointGraph, EndpointGraph, &g)
	return g, err
}

// Users fetches all user records.
func (c *Client) Users(ctx context.Context) ([]core.User, error) {
	var users []core.User
	err := c.get(ctx, EndpointUsers, EndpointUsers, &users)
	return users, err
}

// Transactions fetches all transaction records.
func (c *Client) Transactions(ctx context.Context) ([]core.Transaction, error) {
	var txns []core.Transaction
	err := c.get(ctx, EndpointTransactions, EndpointTransactions, &txns)
	return txns, err
}

// UserRelationships fetches the categorised connections of a user.
func (c *Client) UserRelationships(ctx context.Context, id string) (*core.UserRelationships, error) {
	var r core.UserRelationships
	if err := c.get(ctx, EndpointUserRels, "/relationships/user/"+url.PathEscape(id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// TransactionRelationships fetches the categorised connections of a transaction.
func (c *Client) TransactionRelationships(ctx context.Context, id string) (*core.TransactionRelationships, error) {
	var r core.TransactionRelationships
	if err := c.get(ctx, EndpointTxnRels, "/relationships/transaction/"+url.PathEscape(id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// get issues a GET for path and decodes the JSON body into out.
// endpoint is the route template used in errors.
func (c *Client) get(ctx context.Context, endpoint, path string, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, endpoint, path, out)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &core.FetchError{Endpoint: endpoint, Err: err}
	}
	return err
}

func (c *Client) do(ctx context.Context, endpoint, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &core.FetchError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("fetch failed", "path", path, "error", err)
		return &core.FetchError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("fetched", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &core.FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: errorDetail(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &core.FetchError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorDetail extracts the backend's {"detail": "..."} message, if any.
func errorDetail(body io.Reader) error {
	b, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(b) == 0 {
		return nil
	}
	var payload struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(b, &payload) == nil && payload.Detail != nil {
		return fmt.Errorf("%v", payload.Detail)
	}
	return nil
}
