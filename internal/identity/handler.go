package identity

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-market/atelier/internal/rbac"
	"github.com/atelier-market/atelier/internal/shared"
)

// Preloader warms the pages a subject is likely to open next.
type Preloader interface {
	PreloadFor(subject rbac.Subject) int
}

// HandlerConfig carries the handler dependencies.
type HandlerConfig struct {
	Logger      *slog.Logger
	Verifier    *Verifier
	Sessions    *shared.SessionManager
	Ledger      Ledger
	Preloader   Preloader
	Policy      *rbac.Policy
	SignInURL   string
	CallbackURL string
}

// Handler serves the provider sign-in round trip.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Policy == nil {
		cfg.Policy = rbac.DefaultPolicy()
	}
	return &Handler{cfg: cfg}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sign-in", h.signIn)
	r.Get("/callback", h.callback)
	r.Post("/sign-out", h.signOut)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	ret := SanitizeReturn(r.URL.Query().Get(rbac.ReturnParam))
	if subject := rbac.SubjectFromContext(r.Context()); subject.Authenticated() {
		http.Redirect(w, r, h.afterSignIn(subject, ret), http.StatusSeeOther)
		return
	}

	target, err := url.Parse(h.cfg.SignInURL)
	if err != nil {
		h.cfg.Logger.Error("identity sign-in url", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	q := target.Query()
	q.Set("callback_url", h.cfg.CallbackURL)
	if ret != "" {
		q.Set(rbac.ReturnParam, ret)
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.cfg.Logger.Error("identity callback without session")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	claims, err := h.cfg.Verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		h.cfg.Logger.Warn("identity token rejected", slog.Any("error", err))
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Sign-in failed. Please try again."})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.cfg.Sessions.Rotate(sess)
	sess.Delete(shared.CSRFSessionKey)
	sess.SetIdentity(shared.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   claims.Role,
	})
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})

	if h.cfg.Ledger != nil {
		entry := SignIn{
			SessionID: sess.ID,
			UserID:    claims.Subject,
			Email:     claims.Email,
			Role:      claims.Role,
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
			ExpiresAt: time.Now().Add(h.cfg.Sessions.TTL()),
		}
		if err := h.cfg.Ledger.Record(r.Context(), entry); err != nil {
			h.cfg.Logger.Warn("identity ledger record", slog.Any("error", err))
		}
	}

	subject := rbac.Subject{UserID: claims.Subject, Email: claims.Email, Role: rbac.Role(claims.Role)}
	if claims.Role != "" && h.cfg.Preloader != nil {
		queued := h.cfg.Preloader.PreloadFor(subject)
		h.cfg.Logger.Debug("identity preload queued", slog.String("role", claims.Role), slog.Int("routes", queued))
	}
	h.cfg.Logger.Info("identity signed in", slog.String("user_id", claims.Subject), slog.String("role", claims.Role))

	ret := SanitizeReturn(r.URL.Query().Get(rbac.ReturnParam))
	if claims.Role == "" {
		// Landing unknown until the profile resolves.
		if ret == "" {
			ret = "/dashboard"
		}
		http.Redirect(w, r, ret, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, h.afterSignIn(subject, ret), http.StatusSeeOther)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if h.cfg.Ledger != nil {
			if err := h.cfg.Ledger.Remove(context.WithoutCancel(r.Context()), sess.ID); err != nil {
				h.cfg.Logger.Warn("identity ledger remove", slog.Any("error", err))
			}
		}
		h.cfg.Sessions.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// afterSignIn picks the return path when the subject may open it, else the landing.
func (h *Handler) afterSignIn(subject rbac.Subject, ret string) string {
	if ret != "" && h.cfg.Policy.DecideRoute(subject, pathOnly(ret)) == rbac.Granted {
		return ret
	}
	return h.cfg.Policy.Landing(subject.Role)
}

// SanitizeReturn keeps only local absolute paths, returning "" otherwise.
func SanitizeReturn(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	if strings.HasPrefix(u.Path, "/auth/") {
		return ""
	}
	return u.RequestURI()
}

func pathOnly(ret string) string {
	if i := strings.IndexAny(ret, "?#"); i >= 0 {
		return ret[:i]
	}
	return ret
}
