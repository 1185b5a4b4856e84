package app

import (
	"fmt"
	"os"

	"github.com/atelier-market/atelier/internal/rbac"
)

// LoadPolicy builds the authorization policy, reading route rules from
// ROUTE_RULES_FILE when it is set.
func LoadPolicy(cfg *Config) (*rbac.Policy, error) {
	opts := []rbac.PolicyOption{rbac.WithSegmentBoundary(cfg.RouteMatchSegments)}
	if cfg.RouteRulesFile != "" {
		f, err := os.Open(cfg.RouteRulesFile)
		if err != nil {
			return nil, fmt.Errorf("route rules: %w", err)
		}
		defer f.Close()
		routes, err := rbac.LoadRouteTable(f)
		if err != nil {
			return nil, fmt.Errorf("route rules %s: %w", cfg.RouteRulesFile, err)
		}
		opts = append(opts, rbac.WithRoutes(routes))
	}
	policy := rbac.NewPolicy(opts...)
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}
