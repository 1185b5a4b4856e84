// Package storefront serves the public catalog and the role dashboards.
package storefront

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/atelier-market/atelier/internal/backend"
	"github.com/atelier-market/atelier/internal/platform/cache"
	"github.com/atelier-market/atelier/internal/preload"
	"github.com/atelier-market/atelier/internal/rbac"
)

// Backend is the subset of the marketplace API the storefront reads.
type Backend interface {
	ListProducts(ctx context.Context, q backend.ProductQuery) (backend.ProductPage, error)
	GetProduct(ctx context.Context, id string) (backend.Product, error)
	ListOrders(ctx context.Context, scope string) ([]backend.Order, error)
	ListDesigns(ctx context.Context, scope string) ([]backend.Design, error)
	ListInventory(ctx context.Context, lowOnly bool) ([]backend.InventoryItem, error)
	ListSuppliers(ctx context.Context) ([]backend.Supplier, error)
	ListTickets(ctx context.Context, kind string) ([]backend.Ticket, error)
	ListUsers(ctx context.Context) ([]backend.User, error)
	ListWishlist(ctx context.Context) ([]backend.Product, error)
	AnalyticsSummary(ctx context.Context, scope string) (backend.AnalyticsSummary, error)
}

// Pages loads page data through the shared Redis cache.
type Pages struct {
	backend  Backend
	cache    *cache.Cache
	logger   *slog.Logger
	sections []Section
	byPath   map[string]Section
}

// NewPages constructs a Pages service. c may be nil to disable caching.
func NewPages(b Backend, c *cache.Cache, logger *slog.Logger) *Pages {
	if logger == nil {
		logger = slog.Default()
	}
	sections := DefaultSections()
	byPath := make(map[string]Section, len(sections))
	for _, s := range sections {
		byPath[s.Path] = s
	}
	return &Pages{backend: b, cache: c, logger: logger, sections: sections, byPath: byPath}
}

// Sections returns the dashboard sections in display order.
func (p *Pages) Sections() []Section {
	return append([]Section(nil), p.sections...)
}

// Section looks up the section served at path.
func (p *Pages) Section(path string) (Section, bool) {
	s, ok := p.byPath[path]
	return s, ok
}

// Load returns the section data for subject, keyed by path and user.
func (p *Pages) Load(ctx context.Context, subject rbac.Subject, path string) (SectionData, error) {
	var data SectionData
	sec, ok := p.byPath[path]
	if !ok || !sec.Loads() {
		return data, nil
	}
	ctx = rbac.ContextWithSubject(ctx, subject)
	key, err := p.cache.BuildKey(ctx, "page", path, string(subject.Role), subject.UserID)
	if err != nil {
		return data, err
	}
	err = p.cache.FetchJSON(ctx, key, &data, func(ctx context.Context) (any, error) {
		return sec.load(ctx, p.backend)
	})
	return data, err
}

// Warm loads a preload task's page into the cache.
func (p *Pages) Warm(ctx context.Context, t preload.Task) error {
	_, err := p.Load(ctx, rbac.Subject{UserID: t.UserID, Role: t.Role}, t.Path)
	return err
}

// Featured returns the products shown on the home page.
func (p *Pages) Featured(ctx context.Context) ([]backend.Product, error) {
	var products []backend.Product
	key, err := p.cache.BuildKey(ctx, "catalog", "featured")
	if err != nil {
		return nil, err
	}
	err = p.cache.FetchJSON(ctx, key, &products, func(ctx context.Context) (any, error) {
		page, err := p.backend.ListProducts(ctx, backend.ProductQuery{Featured: true})
		return page.Items, err
	})
	return products, err
}

// Products returns a catalog page.
func (p *Pages) Products(ctx context.Context, q backend.ProductQuery) (backend.ProductPage, error) {
	var page backend.ProductPage
	key, err := p.cache.BuildKey(ctx, "catalog", "list", q.Category, q.Search, strconv.Itoa(q.Page))
	if err != nil {
		return page, err
	}
	err = p.cache.FetchJSON(ctx, key, &page, func(ctx context.Context) (any, error) {
		return p.backend.ListProducts(ctx, q)
	})
	return page, err
}

// Product returns a single catalog item.
func (p *Pages) Product(ctx context.Context, id string) (backend.Product, error) {
	var product backend.Product
	key, err := p.cache.BuildKey(ctx, "catalog", "product", id)
	if err != nil {
		return product, err
	}
	err = p.cache.FetchJSON(ctx, key, &product, func(ctx context.Context) (any, error) {
		return p.backend.GetProduct(ctx, id)
	})
	return product, err
}

// WarmCatalog fills the cache for the home page and the first catalog page.
func (p *Pages) WarmCatalog(ctx context.Context) error {
	if _, err := p.Featured(ctx); err != nil {
		return err
	}
	_, err := p.Products(ctx, backend.ProductQuery{})
	return err
}
