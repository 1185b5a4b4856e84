package rbac

import "slices"

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Pending means the subject's identity is still resolving; callers must
	// neither allow nor deny.
	Pending Decision = iota
	// Granted allows access.
	Granted
	// Denied refuses access.
	Denied
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Subject is the actor an authorization check is made for.
type Subject struct {
	UserID string
	Email  string
	Role   Role
	// Loading is set while the identity provider has not resolved the role.
	Loading bool
}

// Authenticated reports whether the subject is a signed-in, resolved user.
func (s Subject) Authenticated() bool {
	return s.UserID != "" && !s.Loading
}

// Mode selects how a permission list is evaluated.
type Mode int

const (
	// ModeAny is satisfied by one held permission.
	ModeAny Mode = iota
	// ModeAll requires every permission.
	ModeAll
	// ModeSignedIn ignores Permissions and only demands a resolved subject.
	ModeSignedIn
)

// Requirement describes what a guarded resource needs. Permissions are
// evaluated exactly like HasAnyPermission or HasAllPermissions, so AnyOf()
// is never satisfied and AllOf() always is. Use SignedIn for
// authentication-only checks.
type Requirement struct {
	Roles       []Role
	Permissions []Permission
	Mode        Mode
}

// AnyOf builds a requirement satisfied by any of perms.
func AnyOf(perms ...Permission) Requirement {
	return Requirement{Permissions: perms, Mode: ModeAny}
}

// AllOf builds a requirement satisfied only by all of perms.
func AllOf(perms ...Permission) Requirement {
	return Requirement{Permissions: perms, Mode: ModeAll}
}

// SignedIn builds a requirement satisfied by any resolved subject.
func SignedIn() Requirement {
	return Requirement{Mode: ModeSignedIn}
}

// OneOfRoles builds a requirement satisfied by membership in any of roles.
func OneOfRoles(roles ...Role) Requirement {
	return Requirement{Roles: roles, Mode: ModeSignedIn}
}

// Decide evaluates req for subject.
func (p *Policy) Decide(subject Subject, req Requirement) Decision {
	if subject.Loading {
		return Pending
	}
	if !subject.Authenticated() {
		return Denied
	}
	if len(req.Roles) > 0 && !slices.Contains(req.Roles, subject.Role) {
		return Denied
	}
	var ok bool
	switch req.Mode {
	case ModeSignedIn:
		ok = true
	case ModeAll:
		ok = p.HasAllPermissions(subject.Role, req.Permissions)
	default:
		ok = p.HasAnyPermission(subject.Role, req.Permissions)
	}
	if ok {
		return Granted
	}
	return Denied
}

// DecideRoute evaluates navigation to path for subject. Unruled paths are
// granted to everyone, anonymous visitors included.
func (p *Policy) DecideRoute(subject Subject, path string) Decision {
	if subject.Loading {
		return Pending
	}
	rule, ok := p.MatchRoute(path)
	if !ok {
		return Granted
	}
	if !subject.Authenticated() {
		return Denied
	}
	if p.HasAnyPermission(subject.Role, rule.Permissions) {
		return Granted
	}
	return Denied
}
