package storefront

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/atelier-market/atelier/internal/platform/httpx"
	"github.com/atelier-market/atelier/internal/rbac"
)

type meResponse struct {
	UserID      string            `json:"user_id"`
	Email       string            `json:"email,omitempty"`
	Role        rbac.Role         `json:"role"`
	Permissions []rbac.Permission `json:"permissions"`
	Routes      []string          `json:"routes"`
	Landing     string            `json:"landing"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	policy := h.cfg.Authorizer.Policy()
	httpx.JSON(w, http.StatusOK, meResponse{
		UserID:      subject.UserID,
		Email:       subject.Email,
		Role:        subject.Role,
		Permissions: policy.UserPermissions(subject.Role),
		Routes:      policy.AccessibleRoutes(subject.Role),
		Landing:     policy.Landing(subject.Role),
	})
}

type checkResponse struct {
	Path     string          `json:"path"`
	Decision string          `json:"decision"`
	Rule     *rbac.RouteRule `json:"rule,omitempty"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if !strings.HasPrefix(path, "/") {
		httpx.RespondError(w, fmt.Errorf("%w: path must start with /", httpx.ErrValidation))
		return
	}
	subject := rbac.SubjectFromContext(r.Context())
	resp := checkResponse{Path: path, Decision: h.cfg.Authorizer.DecideRoute(subject, path).String()}
	if rule, ok := h.cfg.Authorizer.Policy().MatchRoute(path); ok {
		resp.Rule = &rule
	}
	httpx.JSON(w, http.StatusOK, resp)
}
