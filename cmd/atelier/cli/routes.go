package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/atelier-market/atelier/internal/rbac"
)

// PrintRoutes writes the route table with the roles that may visit each rule.
func PrintRoutes(w io.Writer, policy *rbac.Policy) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tMATCH\tPERMISSIONS\tROLES")
	for _, rule := range policy.Routes() {
		match := "prefix"
		if rule.Exact {
			match = "exact"
		}
		perms := make([]string, 0, len(rule.Permissions))
		for _, p := range rule.Permissions {
			perms = append(perms, string(p))
		}
		var roles []string
		for _, role := range rbac.Roles() {
			if policy.CanAccessRoute(role, rule.Path) {
				roles = append(roles, string(role))
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rule.Path, match, strings.Join(perms, ","), strings.Join(roles, ","))
	}
	return tw.Flush()
}
