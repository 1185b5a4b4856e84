package rbac

import "html/template"

// Outcome is what a render guard tells a view to draw.
type Outcome int

const (
	// OutcomeNothing renders nothing: identity still loading, or a silent denial.
	OutcomeNothing Outcome = iota
	// OutcomeFallback renders the guard's fallback view.
	OutcomeFallback
	// OutcomeChildren renders the guarded content.
	OutcomeChildren
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFallback:
		return "fallback"
	case OutcomeChildren:
		return "children"
	default:
		return "nothing"
	}
}

// ShowChildren reports whether guarded content should render.
func (o Outcome) ShowChildren() bool { return o == OutcomeChildren }

// ShowFallback reports whether the fallback view should render.
func (o Outcome) ShowFallback() bool { return o == OutcomeFallback }

// RenderGuard gates a fragment of a view.
type RenderGuard struct {
	Requirement Requirement
	// Fallback selects OutcomeFallback instead of OutcomeNothing on denial.
	Fallback bool
}

// Outcome maps the decision for subject onto what to render. A pending
// decision always renders nothing so unauthorized content never flashes.
func (g RenderGuard) Outcome(a *Authorizer, subject Subject) Outcome {
	switch a.Decide(subject, g.Requirement) {
	case Granted:
		return OutcomeChildren
	case Denied:
		if g.Fallback {
			return OutcomeFallback
		}
		return OutcomeNothing
	default:
		return OutcomeNothing
	}
}

// TemplateFuncs exposes render guards to html/template:
//
//	{{if can .Viewer "manage_users"}}…{{end}}
//	{{with guard .Viewer "all" "view_orders" "manage_orders"}}{{if .ShowChildren}}…{{else if .ShowFallback}}…{{end}}{{end}}
func TemplateFuncs(a *Authorizer) template.FuncMap {
	return template.FuncMap{
		"can": func(subject Subject, perm string) bool {
			return a.Can(subject, Permission(perm))
		},
		"canAny": func(subject Subject, perms ...string) bool {
			return a.Decide(subject, AnyOf(toPermissions(perms)...)) == Granted
		},
		"canAll": func(subject Subject, perms ...string) bool {
			return a.Decide(subject, AllOf(toPermissions(perms)...)) == Granted
		},
		"canVisit": func(subject Subject, path string) bool {
			return a.DecideRoute(subject, path) == Granted
		},
		"isLoading": func(subject Subject) bool {
			return subject.Loading
		},
		"guard": func(subject Subject, mode string, perms ...string) Outcome {
			req := AnyOf(toPermissions(perms)...)
			if mode == "all" {
				req = AllOf(toPermissions(perms)...)
			}
			return RenderGuard{Requirement: req, Fallback: true}.Outcome(a, subject)
		},
	}
}

func toPermissions(raw []string) []Permission {
	out := make([]Permission, len(raw))
	for i, p := range raw {
		out[i] = Permission(p)
	}
	return out
}
