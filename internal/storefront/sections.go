package storefront

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/atelier-market/atelier/internal/backend"
)

// SectionData is the cached payload behind a dashboard section. Only the
// fields a section loads are set.
type SectionData struct {
	Summary   *backend.AnalyticsSummary `json:"summary,omitempty"`
	Orders    []backend.Order           `json:"orders,omitempty"`
	Designs   []backend.Design          `json:"designs,omitempty"`
	Inventory []backend.InventoryItem   `json:"inventory,omitempty"`
	Suppliers []backend.Supplier        `json:"suppliers,omitempty"`
	Tickets   []backend.Ticket          `json:"tickets,omitempty"`
	Users     []backend.User            `json:"users,omitempty"`
	Products  []backend.Product         `json:"products,omitempty"`
	Earnings  *Earnings                 `json:"earnings,omitempty"`
	Stock     *StockTotals              `json:"stock,omitempty"`
}

// Earnings totals a designer's design sales.
type Earnings struct {
	TotalCents int64  `json:"total_cents"`
	Currency   string `json:"currency"`
	Sales      int    `json:"sales"`
	Designs    int    `json:"designs"`
}

// StockTotals summarises inventory positions.
type StockTotals struct {
	SKUs  int `json:"skus"`
	Units int `json:"units"`
	Low   int `json:"low"`
}

// Section is a role dashboard page backed by backend data.
type Section struct {
	Path   string
	Title  string
	Group  string
	Notice string
	load   func(ctx context.Context, b Backend) (SectionData, error)
}

// Loads reports whether the section fetches backend data.
func (s Section) Loads() bool {
	return s.load != nil
}

// DefaultSections lists the dashboard sections served under the role areas.
func DefaultSections() []Section {
	return []Section{
		{Path: "/account", Title: "Your account", Group: "account", load: ordersFor(backend.ScopeMine)},
		{Path: "/account/orders", Title: "Your orders", Group: "account", load: ordersFor(backend.ScopeMine)},
		{Path: "/account/wishlist", Title: "Wishlist", Group: "account", load: loadWishlist},
		{Path: "/checkout", Title: "Checkout", Group: "account", Notice: "Review your bag and confirm delivery details to place the order."},

		{Path: "/designer", Title: "Designer studio", Group: "designer", load: both(summaryFor(backend.ScopeMine), designsFor(backend.ScopeMine))},
		{Path: "/designer/designs", Title: "Your designs", Group: "designer", load: designsFor(backend.ScopeMine)},
		{Path: "/designer/designs/new", Title: "Upload a design", Group: "designer", Notice: "Designs are reviewed by the staff team before they go on sale."},
		{Path: "/designer/analytics", Title: "Design analytics", Group: "designer", load: summaryFor(backend.ScopeMine)},
		{Path: "/designer/earnings", Title: "Earnings", Group: "designer", load: loadEarnings},

		{Path: "/inventory", Title: "Inventory", Group: "inventory", load: inventoryFor(false)},
		{Path: "/inventory/alerts", Title: "Stock alerts", Group: "inventory", load: inventoryFor(true)},
		{Path: "/inventory/suppliers", Title: "Suppliers", Group: "inventory", load: loadSuppliers},
		{Path: "/inventory/reports", Title: "Inventory reports", Group: "inventory", load: loadStockReport},

		{Path: "/staff", Title: "Staff desk", Group: "staff", load: both(ordersFor(backend.ScopeAll), ticketsFor(backend.TicketSupport))},
		{Path: "/staff/orders", Title: "Orders", Group: "staff", load: ordersFor(backend.ScopeAll)},
		{Path: "/staff/returns", Title: "Returns", Group: "staff", load: ticketsFor(backend.TicketReturn)},
		{Path: "/staff/support", Title: "Customer support", Group: "staff", load: ticketsFor(backend.TicketSupport)},
		{Path: "/staff/designs", Title: "Design review", Group: "staff", load: designsFor(backend.ScopePending)},

		{Path: "/admin", Title: "Administration", Group: "admin", load: summaryFor(backend.ScopeAll)},
		{Path: "/admin/users", Title: "Users", Group: "admin", load: loadUsers},
		{Path: "/admin/analytics", Title: "Analytics", Group: "admin", load: summaryFor(backend.ScopeAll)},
		{Path: "/admin/designs", Title: "Design approvals", Group: "admin", load: designsFor(backend.ScopePending)},

		{Path: "/reports", Title: "Reports", Group: "reports", load: both(summaryFor(backend.ScopeAll), loadStockReport)},
	}
}

func ordersFor(scope string) func(context.Context, Backend) (SectionData, error) {
	return func(ctx context.Context, b Backend) (SectionData, error) {
		orders, err := b.ListOrders(ctx, scope)
		return SectionData{Orders: orders}, err
	}
}

func designsFor(scope string) func(context.Context, Backend) (SectionData, error) {
	return func(ctx context.Context, b Backend) (SectionData, error) {
		designs, err := b.ListDesigns(ctx, scope)
		return SectionData{Designs: designs}, err
	}
}

func summaryFor(scope string) func(context.Context, Backend) (SectionData, error) {
	return func(ctx context.Context, b Backend) (SectionData, error) {
		s, err := b.AnalyticsSummary(ctx, scope)
		if err != nil {
			return SectionData{}, err
		}
		return SectionData{Summary: &s}, nil
	}
}

func inventoryFor(lowOnly bool) func(context.Context, Backend) (SectionData, error) {
	return func(ctx context.Context, b Backend) (SectionData, error) {
		items, err := b.ListInventory(ctx, lowOnly)
		return SectionData{Inventory: items}, err
	}
}

func ticketsFor(kind string) func(context.Context, Backend) (SectionData, error) {
	return func(ctx context.Context, b Backend) (SectionData, error) {
		tickets, err := b.ListTickets(ctx, kind)
		return SectionData{Tickets: tickets}, err
	}
}

func loadWishlist(ctx context.Context, b Backend) (SectionData, error) {
	products, err := b.ListWishlist(ctx)
	return SectionData{Products: products}, err
}

func loadSuppliers(ctx context.Context, b Backend) (SectionData, error) {
	suppliers, err := b.ListSuppliers(ctx)
	return SectionData{Suppliers: suppliers}, err
}

func loadUsers(ctx context.Context, b Backend) (SectionData, error) {
	users, err := b.ListUsers(ctx)
	return SectionData{Users: users}, err
}

func loadEarnings(ctx context.Context, b Backend) (SectionData, error) {
	designs, err := b.ListDesigns(ctx, backend.ScopeMine)
	if err != nil {
		return SectionData{}, err
	}
	e := &Earnings{Designs: len(designs)}
	for _, d := range designs {
		e.TotalCents += d.EarningsCents
		e.Sales += d.Sales
		if e.Currency == "" {
			e.Currency = d.Currency
		}
	}
	return SectionData{Designs: designs, Earnings: e}, nil
}

func loadStockReport(ctx context.Context, b Backend) (SectionData, error) {
	items, err := b.ListInventory(ctx, false)
	if err != nil {
		return SectionData{}, err
	}
	totals := &StockTotals{SKUs: len(items)}
	for _, it := range items {
		totals.Units += it.OnHand
		if it.Low() {
			totals.Low++
		}
	}
	return SectionData{Stock: totals}, nil
}

// both runs two loaders concurrently and merges their results.
func both(a, b func(context.Context, Backend) (SectionData, error)) func(context.Context, Backend) (SectionData, error) {
	return func(ctx context.Context, be Backend) (SectionData, error) {
		var left, right SectionData
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			left, err = a(ctx, be)
			return err
		})
		g.Go(func() (err error) {
			right, err = b(ctx, be)
			return err
		})
		if err := g.Wait(); err != nil {
			return SectionData{}, err
		}
		return merge(left, right), nil
	}
}

func merge(a, b SectionData) SectionData {
	if a.Summary == nil {
		a.Summary = b.Summary
	}
	if a.Orders == nil {
		a.Orders = b.Orders
	}
	if a.Designs == nil {
		a.Designs = b.Designs
	}
	if a.Inventory == nil {
		a.Inventory = b.Inventory
	}
	if a.Suppliers == nil {
		a.Suppliers = b.Suppliers
	}
	if a.Tickets == nil {
		a.Tickets = b.Tickets
	}
	if a.Users == nil {
		a.Users = b.Users
	}
	if a.Products == nil {
		a.Products = b.Products
	}
	if a.Earnings == nil {
		a.Earnings = b.Earnings
	}
	if a.Stock == nil {
		a.Stock = b.Stock
	}
	return a
}
