package backend

import (
	"net/url"
	"strconv"
	"time"
)

// Product is a catalog item listed on the storefront.
type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Designer   string `json:"designer"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
	ImageURL   string `json:"image_url,omitempty"`
	Stock      int    `json:"stock"`
	Featured   bool   `json:"featured"`
}

// ProductQuery filters catalog listings.
type ProductQuery struct {
	Category string `validate:"omitempty,max=64,excludesall=/?#"`
	Search   string `validate:"omitempty,max=100"`
	Featured bool
	Page     int `validate:"gte=0,lte=1000"`
}

// Values encodes the query for the catalog endpoint.
func (q ProductQuery) Values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Featured {
		v.Set("featured", "1")
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

// ProductPage is one page of catalog results.
type ProductPage struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
}

// Order is a customer purchase.
type Order struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	Items      int       `json:"items"`
	TotalCents int64     `json:"total_cents"`
	Currency   string    `json:"currency"`
	PlacedAt   time.Time `json:"placed_at"`
}

// Design is a designer submission.
type Design struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	DesignerID    string `json:"designer_id"`
	Status        string `json:"status"`
	Sales         int    `json:"sales"`
	EarningsCents int64  `json:"earnings_cents"`
	Currency      string `json:"currency"`
}

// InventoryItem is the stock position of one SKU.
type InventoryItem struct {
	SKU          string `json:"sku"`
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	OnHand       int    `json:"on_hand"`
	ReorderLevel int    `json:"reorder_level"`
}

// Low reports whether the SKU is at or below its reorder level.
func (i InventoryItem) Low() bool {
	return i.OnHand <= i.ReorderLevel
}

// Supplier provides stock to the inventory team.
type Supplier struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Contact      string `json:"contact"`
	LeadTimeDays int    `json:"lead_time_days"`
}

// Ticket kinds.
const (
	TicketSupport = "support"
	TicketReturn  = "return"
)

// Ticket is a support request or return.
type Ticket struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Subject  string    `json:"subject"`
	Status   string    `json:"status"`
	OrderID  string    `json:"order_id,omitempty"`
	OpenedAt time.Time `json:"opened_at"`
}

// User is a marketplace account as seen by administrators.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// AnalyticsSummary aggregates sales figures for a scope.
type AnalyticsSummary struct {
	Scope          string    `json:"scope"`
	RevenueCents   int64     `json:"revenue_cents"`
	Currency       string    `json:"currency"`
	Orders         int       `json:"orders"`
	Customers      int       `json:"customers"`
	ConversionRate float64   `json:"conversion_rate"`
	TopProducts    []Product `json:"top_products"`
}

// Profile is the backend record for a signed-in user.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Listing scopes.
const (
	ScopeMine    = "mine"
	ScopeAll     = "all"
	ScopePending = "pending"
)
