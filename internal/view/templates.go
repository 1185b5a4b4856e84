package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/atelier-market/atelier/internal/rbac"
	"github.com/atelier-market/atelier/internal/shared"
	"github.com/atelier-market/atelier/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Viewer      rbac.Subject
	Data        any
}

// NewEngine parses the embedded templates. Guard helpers such as can and
// canVisit are bound to authz.
func NewEngine(authz *rbac.Authorizer) (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatPrice": FormatPrice,
		"percent": func(v float64) string {
			return fmt.Sprintf("%.1f%%", v*100)
		},
		"roleLabel": RoleLabel,
		"join":      strings.Join,
	}
	for name, fn := range rbac.TemplateFuncs(authz) {
		funcMap[name] = fn
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template and writes it with status.
// Nothing is written when execution fails.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RoleLabel returns a display name for a role.
func RoleLabel(role rbac.Role) string {
	switch role {
	case rbac.RoleCustomer:
		return "Customer"
	case rbac.RoleDesigner:
		return "Designer"
	case rbac.RoleInventoryManager:
		return "Inventory manager"
	case rbac.RoleStaff:
		return "Staff"
	case rbac.RoleAdmin:
		return "Administrator"
	case "":
		return "Guest"
	default:
		return string(role)
	}
}
