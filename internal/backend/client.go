// Package backend is the storefront's client for the marketplace API.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/atelier-market/atelier/internal/rbac"
)

const maxBodyBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL          string
	ServiceToken     string
	Timeout          time.Duration
	RatePerSecond    float64
	Burst            int
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HTTPClient       *http.Client
	Logger           *slog.Logger
}

// Client calls the marketplace backend. Requests are rate limited and pass
// through a circuit breaker that trips on transport errors and 5xx responses.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// New constructs a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, ErrBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 50
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		base:    base,
		token:   opts.ServiceToken,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("backend breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return c, nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// ListProducts returns a page of the catalog.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (ProductPage, error) {
	var page ProductPage
	err := c.get(ctx, "/v1/products", q.Values(), &page)
	return page, err
}

// GetProduct returns a single catalog item.
func (c *Client) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := c.get(ctx, "/v1/products/"+url.PathEscape(id), nil, &p)
	return p, err
}

// ListOrders returns orders for the scope: the caller's own or all of them.
func (c *Client) ListOrders(ctx context.Context, scope string) ([]Order, error) {
	var orders []Order
	err := c.get(ctx, "/v1/orders", scoped(scope), &orders)
	return orders, err
}

// ListDesigns returns designs for the scope: mine, all or pending review.
func (c *Client) ListDesigns(ctx context.Context, scope string) ([]Design, error) {
	var designs []Design
	err := c.get(ctx, "/v1/designs", scoped(scope), &designs)
	return designs, err
}

// ListInventory returns stock positions, optionally only those at or below reorder level.
func (c *Client) ListInventory(ctx context.Context, lowOnly bool) ([]InventoryItem, error) {
	var v url.Values
	if lowOnly {
		v = url.Values{"low": {"1"}}
	}
	var items []InventoryItem
	err := c.get(ctx, "/v1/inventory", v, &items)
	return items, err
}

// ListSuppliers returns inventory suppliers.
func (c *Client) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	var suppliers []Supplier
	err := c.get(ctx, "/v1/suppliers", nil, &suppliers)
	return suppliers, err
}

// ListTickets returns support tickets or returns depending on kind.
func (c *Client) ListTickets(ctx context.Context, kind string) ([]Ticket, error) {
	var tickets []Ticket
	err := c.get(ctx, "/v1/tickets", url.Values{"kind": {kind}}, &tickets)
	return tickets, err
}

// ListUsers returns marketplace accounts.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := c.get(ctx, "/v1/users", nil, &users)
	return users, err
}

// AnalyticsSummary returns sales figures for the scope.
func (c *Client) AnalyticsSummary(ctx context.Context, scope string) (AnalyticsSummary, error) {
	var s AnalyticsSummary
	err := c.get(ctx, "/v1/analytics/summary", scoped(scope), &s)
	return s, err
}

// Profile returns the backend record for a user.
func (c *Client) Profile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	if err := c.get(ctx, "/v1/users/"+url.PathEscape(userID)+"/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Ping checks backend health.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil, nil)
}

func scoped(scope string) url.Values {
	if scope == "" {
		return nil
	}
	return url.Values{"scope": {scope}}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("backend: rate limit: %w", err)
	}
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, path, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
		}
		return err
	}
	if dest == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if subject := rbac.SubjectFromContext(ctx); subject.UserID != "" {
		req.Header.Set("X-User-ID", subject.UserID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &APIError{Status: resp.StatusCode, Path: path}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// ListWishlist returns the products the caller saved.
func (c *Client) ListWishlist(ctx context.Context) ([]Product, error) {
	var products []Product
	err := c.get(ctx, "/v1/wishlist", nil, &products)
	return products, err
}
