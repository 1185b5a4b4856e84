package rbac

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/atelier-market/atelier/internal/platform/httpx"
)

// DeniedMode selects where an authenticated but unauthorized visitor is sent.
type DeniedMode string

const (
	// DeniedToLanding silently redirects to the role's landing route.
	DeniedToLanding DeniedMode = "landing"
	// DeniedToAccessPage redirects to the access-denied view.
	DeniedToAccessPage DeniedMode = "access_denied"
)

// Default guard destinations.
const (
	DefaultSignInPath = "/auth/sign-in"
	DefaultDeniedPath = "/access-denied"
	ReturnParam       = "redirect_url"
)

// Guard enforces authorization at navigation time. Authorization failures
// always degrade to a redirect; they never surface as error pages.
type Guard struct {
	Authorizer *Authorizer
	Logger     *slog.Logger
	SignInPath string
	DeniedPath string
	DeniedMode DeniedMode
	// Pending renders the response while the identity is still loading. It
	// must write its own status; nil writes a bare 503.
	Pending http.Handler
}

// Routes applies the route table to every request path.
func (g Guard) Routes() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := SubjectFromContext(r.Context())
			g.enforce(w, r, next, subject, g.Authorizer.DecideRoute(subject, r.URL.Path), "")
		})
	}
}

// Protect guards a handler group with req. On denial the visitor is sent to
// fallback when set, otherwise according to DeniedMode.
func (g Guard) Protect(req Requirement, fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := SubjectFromContext(r.Context())
			g.enforce(w, r, next, subject, g.Authorizer.Decide(subject, req), fallback)
		})
	}
}

func (g Guard) enforce(w http.ResponseWriter, r *http.Request, next http.Handler, subject Subject, d Decision, fallback string) {
	switch d {
	case Granted:
		next.ServeHTTP(w, r)
	case Pending:
		w.Header().Set("Retry-After", "2")
		w.Header().Set("Cache-Control", "no-store")
		if g.Pending != nil {
			g.Pending.ServeHTTP(w, r)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		if !subject.Authenticated() {
			http.Redirect(w, r, g.SignInURL(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		target := g.deniedTarget(subject, r.URL.Path, fallback)
		g.logger().Info("navigation denied",
			slog.String("path", r.URL.Path),
			slog.String("role", subject.Role.String()),
			slog.String("redirect", target))
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// SignInURL builds the sign-in redirect carrying the return path.
func (g Guard) SignInURL(returnTo string) string {
	signIn := g.SignInPath
	if signIn == "" {
		signIn = DefaultSignInPath
	}
	return signIn + "?" + ReturnParam + "=" + url.QueryEscape(returnTo)
}

func (g Guard) deniedTarget(subject Subject, path, fallback string) string {
	policy := g.Authorizer.Policy()
	target := fallback
	if target == "" {
		if g.DeniedMode == DeniedToAccessPage {
			denied := g.DeniedPath
			if denied == "" {
				denied = DefaultDeniedPath
			}
			target = denied + "?from=" + url.QueryEscape(path)
		} else {
			target = policy.Landing(subject.Role)
		}
	}
	targetPath, _, _ := strings.Cut(target, "?")
	if targetPath == path || policy.DecideRoute(subject, targetPath) != Granted {
		return "/"
	}
	return target
}

// RequireAny guards JSON endpoints: the subject needs one of perms. Tokens
// are matched verbatim; an empty or malformed list is never satisfied.
func (g Guard) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return g.requireAPI(AnyOf(perms...))
}

// RequireAll guards JSON endpoints: the subject needs every one of perms.
func (g Guard) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return g.requireAPI(AllOf(perms...))
}

// RequireSignedIn guards JSON endpoints that only need a resolved subject.
func (g Guard) RequireSignedIn() func(http.Handler) http.Handler {
	return g.requireAPI(SignedIn())
}

func (g Guard) requireAPI(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := SubjectFromContext(r.Context())
			switch g.Authorizer.Decide(subject, req) {
			case Granted:
				next.ServeHTTP(w, r)
			case Pending:
				w.Header().Set("Retry-After", "2")
				httpx.Problem(w, http.StatusServiceUnavailable, "Identity Pending", "identity is still being resolved")
			default:
				if !subject.Authenticated() {
					httpx.RespondError(w, httpx.ErrUnauthorized)
					return
				}
				httpx.RespondError(w, httpx.ErrForbidden)
			}
		})
	}
}

func (g Guard) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
