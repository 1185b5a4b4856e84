package identity

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/atelier-market/atelier/internal/backend"
	"github.com/atelier-market/atelier/internal/rbac"
	"github.com/atelier-market/atelier/internal/shared"
)

// ProfileSource looks up a user's backend profile.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (*backend.Profile, error)
}

// Resolver turns the session identity into an rbac.Subject.
type Resolver struct {
	profiles ProfileSource
	logger   *slog.Logger
	timeout  time.Duration
}

// NewResolver constructs a Resolver. profiles may be nil, in which case a
// session without a role stays pending.
func NewResolver(profiles ProfileSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{profiles: profiles, logger: logger, timeout: 2 * time.Second}
}

// Resolve returns the subject for the session. A signed-in user whose role
// cannot be established yet is returned with Loading set; no role is assumed.
func (r *Resolver) Resolve(ctx context.Context, sess *shared.Session) rbac.Subject {
	id := sess.Identity()
	if id.UserID == "" {
		return rbac.Subject{}
	}
	subject := rbac.Subject{UserID: id.UserID, Email: id.Email, Role: rbac.Role(id.Role)}
	if id.Role != "" {
		return subject
	}
	if r.profiles == nil {
		subject.Loading = true
		return subject
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	profile, err := r.profiles.Profile(ctx, id.UserID)
	if err != nil || profile == nil || profile.Role == "" {
		r.logger.Warn("identity role unresolved",
			slog.String("user_id", id.UserID),
			slog.Any("error", err))
		subject.Loading = true
		return subject
	}
	if !rbac.Role(profile.Role).Known() {
		r.logger.Warn("identity unknown role", slog.String("user_id", id.UserID), slog.String("role", profile.Role))
	}
	sess.SetRole(profile.Role)
	subject.Role = rbac.Role(profile.Role)
	return subject
}

// Middleware stores the resolved subject in the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sess := shared.SessionFromContext(req.Context())
		subject := r.Resolve(req.Context(), sess)
		next.ServeHTTP(w, req.WithContext(rbac.ContextWithSubject(req.Context(), subject)))
	})
}
