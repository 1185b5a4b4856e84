package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-market/atelier/internal/rbac"
)

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts := Options{BaseURL: srv.URL + "/api", ServiceToken: "svc-token", RatePerSecond: 1000, Burst: 100}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "/api"})
	assert.ErrorIs(t, err, ErrBaseURL)
}

func TestListProductsSendsQueryAndHeaders(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/products", r.URL.Path)
		assert.Equal(t, "dresses", r.URL.Query().Get("category"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		assert.Equal(t, "u-7", r.Header.Get("X-User-ID"))
		_, _ = w.Write([]byte(`{"items":[{"id":"p-1","name":"Linen Dress","price_cents":12900,"currency":"USD"}],"total":1,"page":2}`))
	}))

	ctx := rbac.ContextWithSubject(context.Background(), rbac.Subject{UserID: "u-7", Role: rbac.RoleCustomer})
	page, err := c.ListProducts(ctx, ProductQuery{Category: "dresses", Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(12900), page.Items[0].PriceCents)
	assert.Equal(t, 2, page.Page)
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "/v1/products/missing", apiErr.Path)
}

func TestServerErrorsTripBreaker(t *testing.T) {
	var hits int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}), func(o *Options) {
		o.FailureThreshold = 2
		o.OpenTimeout = time.Minute
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, c.Ping(ctx), ErrUnavailable)
	}
	assert.Equal(t, "open", c.BreakerState())

	assert.ErrorIs(t, c.Ping(ctx), ErrUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), func(o *Options) { o.FailureThreshold = 1 })
	for i := 0; i < 3; i++ {
		_, err := c.Profile(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, "closed", c.BreakerState())
}

func TestProfileAndScopedLists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/users/u-1/profile", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u-1","email":"ana@example.com","role":"designer"}`))
	})
	mux.HandleFunc("/api/v1/designs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ScopeMine, r.URL.Query().Get("scope"))
		_, _ = w.Write([]byte(`[{"id":"d-1","title":"Wave Print","status":"approved","sales":4}]`))
	})
	mux.HandleFunc("/api/v1/inventory", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("low"))
		_, _ = w.Write([]byte(`[{"sku":"S-1","on_hand":2,"reorder_level":5}]`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	p, err := c.Profile(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "designer", p.Role)

	designs, err := c.ListDesigns(ctx, ScopeMine)
	require.NoError(t, err)
	require.Len(t, designs, 1)
	assert.Equal(t, 4, designs[0].Sales)

	items, err := c.ListInventory(ctx, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Low())
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Ping(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
