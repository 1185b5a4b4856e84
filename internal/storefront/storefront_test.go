package storefront

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-market/atelier/internal/backend"
	"github.com/atelier-market/atelier/internal/platform/cache"
	"github.com/atelier-market/atelier/internal/preload"
	"github.com/atelier-market/atelier/internal/rbac"
	"github.com/atelier-market/atelier/internal/shared"
	"github.com/atelier-market/atelier/internal/view"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeBackend) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

var linenDress = backend.Product{ID: "p-1", Name: "Linen Dress", Designer: "Studio Ana", PriceCents: 12900, Currency: "USD", Stock: 3, Featured: true}

func (f *fakeBackend) ListProducts(ctx context.Context, q backend.ProductQuery) (backend.ProductPage, error) {
	f.hit("products")
	return backend.ProductPage{Items: []backend.Product{linenDress}, Total: 1, Page: q.Page}, nil
}

func (f *fakeBackend) GetProduct(ctx context.Context, id string) (backend.Product, error) {
	f.hit("product")
	if id != linenDress.ID {
		return backend.Product{}, &backend.APIError{Status: http.StatusNotFound, Path: "/v1/products/" + id}
	}
	return linenDress, nil
}

func (f *fakeBackend) ListOrders(ctx context.Context, scope string) ([]backend.Order, error) {
	f.hit("orders:" + scope)
	return []backend.Order{{ID: "o-1", Status: "shipped", Items: 2, TotalCents: 25800, Currency: "USD"}}, nil
}

func (f *fakeBackend) ListDesigns(ctx context.Context, scope string) ([]backend.Design, error) {
	f.hit("designs:" + scope)
	return []backend.Design{
		{ID: "d-1", Title: "Wave Print", Status: "approved", Sales: 4, EarningsCents: 4000, Currency: "USD"},
		{ID: "d-2", Title: "Dune", Status: "approved", Sales: 1, EarningsCents: 1500, Currency: "USD"},
	}, nil
}

func (f *fakeBackend) ListInventory(ctx context.Context, lowOnly bool) ([]backend.InventoryItem, error) {
	f.hit("inventory")
	return []backend.InventoryItem{{SKU: "S-1", Name: "Linen Dress S", OnHand: 2, ReorderLevel: 5}, {SKU: "S-2", OnHand: 40, ReorderLevel: 5}}, nil
}

func (f *fakeBackend) ListSuppliers(ctx context.Context) ([]backend.Supplier, error) {
	f.hit("suppliers")
	return []backend.Supplier{{ID: "s-1", Name: "Mill & Loom", LeadTimeDays: 14}}, nil
}

func (f *fakeBackend) ListTickets(ctx context.Context, kind string) ([]backend.Ticket, error) {
	f.hit("tickets:" + kind)
	return []backend.Ticket{{ID: "t-1", Kind: kind, Subject: "Wrong size", Status: "open"}}, nil
}

func (f *fakeBackend) ListUsers(ctx context.Context) ([]backend.User, error) {
	f.hit("users")
	return []backend.User{{ID: "u-1", Email: "ana@example.com", Name: "Ana", Role: "designer", Active: true}}, nil
}

func (f *fakeBackend) ListWishlist(ctx context.Context) ([]backend.Product, error) {
	f.hit("wishlist")
	return []backend.Product{linenDress}, nil
}

func (f *fakeBackend) AnalyticsSummary(ctx context.Context, scope string) (backend.AnalyticsSummary, error) {
	f.hit("summary:" + scope)
	return backend.AnalyticsSummary{Scope: scope, RevenueCents: 990000, Currency: "USD", Orders: 80, Customers: 50, ConversionRate: 0.031}, nil
}

type fakeWarmup struct {
	calls    int
	preloads []rbac.Subject
}

func (w *fakeWarmup) EnqueueCatalogWarmup(context.Context) error {
	w.calls++
	return nil
}

func (w *fakeWarmup) EnqueueRoutePreload(_ context.Context, subject rbac.Subject, _ ...string) error {
	w.preloads = append(w.preloads, subject)
	return nil
}

type testEnv struct {
	backend   *fakeBackend
	cache     *cache.Cache
	decisions *rbac.DecisionCache
	warmup    *fakeWarmup
	sessions  *shared.SessionManager
	handler   *Handler
	router    http.Handler
	subject   rbac.Subject
	session   *shared.Session
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		backend:   &fakeBackend{},
		cache:     cache.NewCache(client, time.Minute),
		decisions: rbac.NewDecisionCache(0, nil),
		warmup:    &fakeWarmup{},
		sessions:  shared.NewSessionManager(client, "atelier_session", "secret", time.Hour, false),
	}
	authz := rbac.NewAuthorizer(nil, env.decisions, nil)
	engine, err := view.NewEngine(authz)
	require.NoError(t, err)

	guard := rbac.Guard{Authorizer: authz}
	env.handler = NewHandler(HandlerConfig{
		Templates:  engine,
		Pages:      NewPages(env.backend, env.cache, nil),
		Authorizer: authz,
		Guard:      guard,
		CSRF:       shared.NewCSRFManager("csrf"),
		Cache:      env.cache,
		Decisions:  env.decisions,
		Warmup:     env.warmup,
	})
	guard.Pending = http.HandlerFunc(env.handler.Pending)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := env.sessions.Load(req.Context(), req)
			require.NoError(t, err)
			env.session = sess
			ctx := shared.ContextWithSession(req.Context(), sess)
			ctx = rbac.ContextWithSubject(ctx, env.subject)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Use(guard.Routes())
	env.handler.MountRoutes(r)
	env.router = r
	return env
}

func (e *testEnv) do(method, target string, subject rbac.Subject) *httptest.ResponseRecorder {
	e.subject = subject
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

var (
	anonymous = rbac.Subject{}
	pending   = rbac.Subject{UserID: "u-0", Loading: true}
	customer  = rbac.Subject{UserID: "u-1", Email: "c@example.com", Role: rbac.RoleCustomer}
	designer  = rbac.Subject{UserID: "u-2", Role: rbac.RoleDesigner}
	inventory = rbac.Subject{UserID: "u-3", Role: rbac.RoleInventoryManager}
	staff     = rbac.Subject{UserID: "u-4", Role: rbac.RoleStaff}
	admin     = rbac.Subject{UserID: "u-5", Role: rbac.RoleAdmin}
)

func TestHomeShowsFeaturedProducts(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/", anonymous)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Linen Dress")
	assert.Contains(t, body, "129")
	assert.Contains(t, body, `href="/auth/sign-in"`)

	env.do(http.MethodGet, "/", anonymous)
	assert.Equal(t, 1, env.backend.count("products"))
}

func TestProductsValidatesFilters(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/products?page=-3", anonymous).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/products?category=a%2Fb", anonymous).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/products?category=dresses&page=1", anonymous).Code)
}

func TestProductPage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/products/p-1", anonymous)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sign in to buy")

	rec = env.do(http.MethodGet, "/products/p-1", customer)
	assert.Contains(t, rec.Body.String(), "Add to bag")

	rec = env.do(http.MethodGet, "/products/p-1", designer)
	assert.Contains(t, rec.Body.String(), "Only customer accounts can place orders.")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/products/nope", anonymous).Code)
}

func TestRouteGuardOnSections(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/admin/users", customer)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account", rec.Header().Get("Location"))

	rec = env.do(http.MethodGet, "/account/orders", anonymous)
	assert.Equal(t, "/auth/sign-in?redirect_url=%2Faccount%2Forders", rec.Header().Get("Location"))

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/inventory/alerts", inventory).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/staff/returns", staff).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/admin/users", admin).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/reports", admin).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/reports", inventory).Code)
	assert.Equal(t, http.StatusSeeOther, env.do(http.MethodGet, "/reports", staff).Code)
}

func TestPendingIdentityRendersPlaceholder(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/designer", pending)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.NotContains(t, rec.Body.String(), "Designer studio")
	assert.Zero(t, env.backend.count("designs:"+backend.ScopeMine))
}

func TestDesignerEarningsAreCachedPerUser(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/designer/earnings", designer)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "55")
	assert.Contains(t, body, "Wave Print")

	env.do(http.MethodGet, "/designer/earnings", designer)
	assert.Equal(t, 1, env.backend.count("designs:"+backend.ScopeMine))

	env.do(http.MethodGet, "/designer/earnings", rbac.Subject{UserID: "u-9", Role: rbac.RoleDesigner})
	assert.Equal(t, 2, env.backend.count("designs:"+backend.ScopeMine))
}

func TestSectionRenderGuards(t *testing.T) {
	env := newTestEnv(t)
	staffBody := env.do(http.MethodGet, "/staff/orders", staff).Body.String()
	assert.Contains(t, staffBody, "Manage")

	customerBody := env.do(http.MethodGet, "/account/orders", customer).Body.String()
	assert.Contains(t, customerBody, "o-1")
	assert.NotContains(t, customerBody, `<span class="tag">Manage</span>`)
}

func TestDashboardRedirectsToLanding(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]rbac.Subject{
		"/account":   customer,
		"/designer":  designer,
		"/inventory": inventory,
		"/staff":     staff,
		"/admin":     admin,
	}
	for want, subject := range cases {
		rec := env.do(http.MethodGet, "/dashboard", subject)
		assert.Equal(t, want, rec.Header().Get("Location"), subject.Role)
	}
	rec := env.do(http.MethodGet, "/dashboard", anonymous)
	assert.Equal(t, "/auth/sign-in?redirect_url=%2Fdashboard", rec.Header().Get("Location"))
}

func TestAccessDeniedPage(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/access-denied?from=%2Fadmin%2Fusers", designer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Designer")
	assert.Contains(t, body, "manage_users")
	assert.Contains(t, body, `href="/designer"`)
}

func TestRolesMatrix(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/admin/roles", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, p := range rbac.Catalog() {
		assert.Contains(t, body, string(p))
	}
	assert.Contains(t, body, "Inventory manager")
	assert.Equal(t, http.StatusSeeOther, env.do(http.MethodGet, "/admin/roles", staff).Code)
}

func TestMeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/me", staff)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"role":"staff"`)
	assert.Contains(t, body, `"landing":"/staff"`)
	assert.Contains(t, body, `"process_returns"`)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/me", anonymous).Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/api/me", pending).Code)
}

func TestAuthzCheckEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/authz/check?path=/admin/settings", customer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"decision":"denied"`)
	assert.Contains(t, rec.Body.String(), `"manage_settings"`)

	rec = env.do(http.MethodGet, "/api/authz/check?path=/products", anonymous)
	assert.Contains(t, rec.Body.String(), `"decision":"granted"`)
	assert.NotContains(t, rec.Body.String(), `"rule"`)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/authz/check?path=admin", admin).Code)
}

func TestCacheFlush(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before, err := env.cache.Version(ctx)
	require.NoError(t, err)
	env.decisions.Set(rbac.RoleAdmin, rbac.PermManageSettings, true)

	rec := env.do(http.MethodPost, "/admin/cache/flush", admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/settings", rec.Header().Get("Location"))

	after, err := env.cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
	assert.Zero(t, env.decisions.Len())
	assert.Equal(t, 1, env.warmup.calls)
	require.Len(t, env.warmup.preloads, 1)
	assert.Equal(t, admin.UserID, env.warmup.preloads[0].UserID)

	flash := env.session.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Caches cleared", flash.Message)

	rec = env.do(http.MethodPost, "/admin/cache/flush", staff)
	assert.Equal(t, "/staff", rec.Header().Get("Location"))
	assert.Equal(t, 1, env.warmup.calls)
}

func TestSettingsPage(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/admin/settings", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Clear caches")
	assert.Contains(t, rec.Body.String(), "5m0s")
}

func TestWarmFillsCacheForPreloadTask(t *testing.T) {
	env := newTestEnv(t)
	pages := env.handler.cfg.Pages
	ctx := context.Background()

	require.NoError(t, pages.Warm(ctx, preload.Task{Role: rbac.RoleStaff, UserID: "u-4", Path: "/staff/support"}))
	require.NoError(t, pages.Warm(ctx, preload.Task{Role: rbac.RoleStaff, UserID: "u-4", Path: "/not-a-section"}))
	assert.Equal(t, 1, env.backend.count("tickets:"+backend.TicketSupport))

	rec := env.do(http.MethodGet, "/staff/support", staff)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong size")
	assert.Equal(t, 1, env.backend.count("tickets:"+backend.TicketSupport))
}

func TestWarmCatalog(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.handler.cfg.Pages.WarmCatalog(context.Background()))
	assert.Equal(t, 2, env.backend.count("products"))
	env.do(http.MethodGet, "/", anonymous)
	env.do(http.MethodGet, "/products", anonymous)
	assert.Equal(t, 2, env.backend.count("products"))
}

func TestCompositeSectionLoadsBothParts(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/staff", staff)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "o-1")
	assert.Contains(t, body, "Wrong size")
	assert.True(t, strings.Contains(body, "Staff desk"))
}
