package storefront

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atelier-market/atelier/internal/backend"
	"github.com/atelier-market/atelier/internal/platform/cache"
	"github.com/atelier-market/atelier/internal/rbac"
	"github.com/atelier-market/atelier/internal/shared"
	"github.com/atelier-market/atelier/internal/view"
)

// Warmup schedules background cache warmups.
type Warmup interface {
	EnqueueCatalogWarmup(ctx context.Context) error
	EnqueueRoutePreload(ctx context.Context, subject rbac.Subject, paths ...string) error
}

// HandlerConfig carries the handler dependencies.
type HandlerConfig struct {
	Logger     *slog.Logger
	Templates  *view.Engine
	Pages      *Pages
	Authorizer *rbac.Authorizer
	Guard      rbac.Guard
	CSRF       *shared.CSRFManager
	Cache      *cache.Cache
	Decisions  *rbac.DecisionCache
	Warmup     Warmup
}

// Handler serves storefront pages.
type Handler struct {
	cfg      HandlerConfig
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = rbac.NewAuthorizer(nil, cfg.Decisions, nil)
	}
	return &Handler{cfg: cfg, validate: validator.New()}
}

// MountRoutes registers storefront routes. Route-table enforcement is
// applied by the caller's rbac.Guard middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/products", h.products)
	r.Get("/products/{id}", h.product)
	r.With(h.cfg.Guard.Protect(rbac.SignedIn(), "")).Get("/dashboard", h.dashboard)
	r.Get("/access-denied", h.accessDenied)

	for _, sec := range h.cfg.Pages.Sections() {
		r.Get(sec.Path, h.section(sec))
	}
	r.Get("/admin/roles", h.roles)
	r.Get("/admin/settings", h.settings)
	r.Post("/admin/cache/flush", h.flushCache)

	r.Route("/api", func(r chi.Router) {
		r.With(h.cfg.Guard.RequireSignedIn()).Get("/me", h.me)
		r.Get("/authz/check", h.check)
	})
}

// Pending renders the placeholder shown while the identity resolves.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Refresh", "2")
	h.render(w, r, http.StatusServiceUnavailable, "pages/pending.html", "One moment", nil)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	var flash *shared.FlashMessage
	if sess != nil {
		if h.cfg.CSRF != nil {
			csrfToken, _ = h.cfg.CSRF.EnsureToken(sess)
		}
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Viewer:      rbac.SubjectFromContext(r.Context()),
		Data:        data,
	}
	if err := h.cfg.Templates.Render(w, status, name, viewData); err != nil {
		h.cfg.Logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := http.StatusInternalServerError, "Something went wrong"
	switch {
	case errors.Is(err, backend.ErrNotFound):
		status, title = http.StatusNotFound, "Not found"
	case errors.Is(err, backend.ErrUnavailable):
		status, title = http.StatusBadGateway, "Temporarily unavailable"
	}
	h.cfg.Logger.Warn("storefront page failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	h.render(w, r, status, "pages/error.html", title, map[string]any{"Status": status})
}

type homePage struct {
	Featured []backend.Product
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	featured, err := h.cfg.Pages.Featured(r.Context())
	if err != nil {
		// The home page stays up without featured products.
		h.cfg.Logger.Warn("featured products", slog.Any("error", err))
	}
	h.render(w, r, http.StatusOK, "pages/home.html", "Atelier", homePage{Featured: featured})
}

type productsPage struct {
	Query  backend.ProductQuery
	Result backend.ProductPage
	Error  string
	Next   int
	Prev   int
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := backend.ProductQuery{
		Category: strings.TrimSpace(values.Get("category")),
		Search:   strings.TrimSpace(values.Get("q")),
	}
	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			page = -1
		}
		q.Page = page
	}
	if err := h.validate.Struct(q); err != nil {
		h.render(w, r, http.StatusBadRequest, "pages/products.html", "Shop", productsPage{Query: q, Error: "Please check your search filters."})
		return
	}

	result, err := h.cfg.Pages.Products(r.Context(), q)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	data := productsPage{Query: q, Result: result, Prev: q.Page - 1}
	if (q.Page+1)*len(result.Items) < result.Total && len(result.Items) > 0 {
		data.Next = q.Page + 1
	}
	h.render(w, r, http.StatusOK, "pages/products.html", "Shop", data)
}

func (h *Handler) product(w http.ResponseWriter, r *http.Request) {
	p, err := h.cfg.Pages.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/product.html", p.Name, p)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	http.Redirect(w, r, h.cfg.Authorizer.Policy().Landing(subject.Role), http.StatusSeeOther)
}

type accessDeniedPage struct {
	From     string
	Rule     *rbac.RouteRule
	RoleName string
	Landing  string
}

func (h *Handler) accessDenied(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	policy := h.cfg.Authorizer.Policy()
	data := accessDeniedPage{
		RoleName: view.RoleLabel(subject.Role),
		Landing:  policy.Landing(subject.Role),
	}
	if from := r.URL.Query().Get("from"); strings.HasPrefix(from, "/") && !strings.HasPrefix(from, "//") {
		data.From = from
		if rule, ok := policy.MatchRoute(from); ok {
			data.Rule = &rule
		}
	}
	h.render(w, r, http.StatusForbidden, "pages/access_denied.html", "Access denied", data)
}

type sectionPage struct {
	Section Section
	Data    SectionData
}

func (h *Handler) section(sec Section) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := rbac.SubjectFromContext(r.Context())
		data, err := h.cfg.Pages.Load(r.Context(), subject, sec.Path)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		h.render(w, r, http.StatusOK, "pages/section.html", sec.Title, sectionPage{Section: sec, Data: data})
	}
}

type matrixRow struct {
	Permission rbac.Permission
	Granted    []bool
}

type rolesPage struct {
	Roles  []rbac.Role
	Rows   []matrixRow
	Routes rbac.RouteTable
}

func (h *Handler) roles(w http.ResponseWriter, r *http.Request) {
	policy := h.cfg.Authorizer.Policy()
	data := rolesPage{Roles: rbac.Roles(), Routes: policy.Routes()}
	for _, perm := range rbac.Catalog() {
		row := matrixRow{Permission: perm, Granted: make([]bool, len(data.Roles))}
		for i, role := range data.Roles {
			row.Granted[i] = policy.HasPermission(role, perm)
		}
		data.Rows = append(data.Rows, row)
	}
	h.render(w, r, http.StatusOK, "pages/roles.html", "Roles and permissions", data)
}

type settingsPage struct {
	CacheVersion    int64
	CacheTTL        string
	DecisionEntries int
	DecisionTTL     string
}

func (h *Handler) settings(w http.ResponseWriter, r *http.Request) {
	version, err := h.cfg.Cache.Version(r.Context())
	if err != nil {
		h.cfg.Logger.Warn("cache version", slog.Any("error", err))
	}
	data := settingsPage{
		CacheVersion:    version,
		CacheTTL:        h.cfg.Cache.TTL().String(),
		DecisionEntries: h.cfg.Decisions.Len(),
		DecisionTTL:     h.cfg.Decisions.TTL().String(),
	}
	h.render(w, r, http.StatusOK, "pages/settings.html", "Settings", data)
}

func (h *Handler) flushCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	version, err := h.cfg.Cache.Bump(ctx)
	if err != nil {
		h.cfg.Logger.Error("cache bump", slog.Any("error", err))
		h.renderError(w, r, err)
		return
	}
	purged := h.cfg.Decisions.Reset()
	subject := rbac.SubjectFromContext(ctx)
	if h.cfg.Warmup != nil {
		if err := h.cfg.Warmup.EnqueueCatalogWarmup(ctx); err != nil {
			h.cfg.Logger.Warn("enqueue catalog warmup", slog.Any("error", err))
		}
		if err := h.cfg.Warmup.EnqueueRoutePreload(ctx, subject); err != nil {
			h.cfg.Logger.Warn("enqueue route preload", slog.Any("error", err))
		}
	}
	h.cfg.Logger.Info("storefront cache flushed",
		slog.String("user_id", subject.UserID),
		slog.Int64("version", version),
		slog.Int("decisions_purged", purged))
	if sess := shared.SessionFromContext(ctx); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Caches cleared"})
	}
	http.Redirect(w, r, "/admin/settings", http.StatusSeeOther)
}
